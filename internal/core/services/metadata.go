package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/docpipe/internal/core/domain"
	"github.com/custodia-labs/docpipe/internal/core/ports/driven"
	"github.com/custodia-labs/docpipe/internal/logger"
)

// DocumentTx is the exclusive view of one document inside
// MetadataService.Exclusive.
type DocumentTx struct {
	// Ref is the document location.
	Ref domain.DocumentRef

	// Meta is the current metadata. Changes are written back when the
	// callback returns nil and Touch was called.
	Meta *domain.Metadata

	changed bool
}

// Touch marks the metadata as modified.
func (tx *DocumentTx) Touch() {
	tx.changed = true
}

// MetadataService owns metadata.json. All writes go through Exclusive.
type MetadataService struct {
	store driven.ArtifactStore
	locks *keyedLocker
	now   func() time.Time
}

// NewMetadataService creates a metadata manager over an artifact store.
func NewMetadataService(store driven.ArtifactStore) *MetadataService {
	return &MetadataService{
		store: store,
		locks: newKeyedLocker(),
		now:   time.Now,
	}
}

// Get reads the metadata of a document without taking the document lock.
// metadata.json is replaced atomically so the read is always consistent.
func (m *MetadataService) Get(ctx context.Context, documentID string) (*domain.Metadata, error) {
	ref, err := m.store.FindDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	return m.store.ReadMetadata(ctx, ref)
}

// lockDocument takes the per-document lock without requiring the document
// to exist.
func (m *MetadataService) lockDocument(ctx context.Context, documentID string) (func(), error) {
	return m.locks.Lock(ctx, "doc:"+documentID)
}

// Exclusive runs fn while holding the document lock. The metadata is
// reconciled with the files on disk before fn sees it. When fn returns nil
// and the metadata changed, it is written back atomically.
func (m *MetadataService) Exclusive(ctx context.Context, documentID string, fn func(tx *DocumentTx) error) error {
	unlock, err := m.lockDocument(ctx, documentID)
	if err != nil {
		return err
	}
	defer unlock()
	return m.exclusiveLocked(ctx, documentID, fn)
}

func (m *MetadataService) exclusiveLocked(ctx context.Context, documentID string, fn func(tx *DocumentTx) error) error {
	ref, err := m.store.FindDocument(ctx, documentID)
	if err != nil {
		return err
	}
	meta, err := m.store.ReadMetadata(ctx, ref)
	if err != nil {
		return err
	}
	reconciled, err := m.reconcile(ctx, ref, meta)
	if err != nil {
		return err
	}
	tx := &DocumentTx{Ref: ref, Meta: meta, changed: reconciled}
	if err := fn(tx); err != nil {
		return err
	}
	if !tx.changed {
		return nil
	}
	tx.Meta.UpdatedAt = m.now().UTC()
	if err := m.store.WriteMetadata(ctx, ref, tx.Meta); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	return nil
}

// Reconcile brings metadata.json in line with the artifacts on disk and
// reports whether it had to be rewritten.
func (m *MetadataService) Reconcile(ctx context.Context, documentID string) (bool, error) {
	var changed bool
	err := m.Exclusive(ctx, documentID, func(tx *DocumentTx) error {
		changed = tx.changed
		return nil
	})
	return changed, err
}

// reconcile drops records of missing artifacts and adds records for
// artifacts that metadata does not mention.
//
//nolint:gocyclo // One pass per artifact kind
func (m *MetadataService) reconcile(ctx context.Context, ref domain.DocumentRef, meta *domain.Metadata) (bool, error) {
	changed := false

	converted, err := m.store.ListArtifacts(ctx, ref, driven.ArtifactConverted)
	if err != nil {
		return false, err
	}
	convertedName := ref.Name + ".md"
	hasConverted := contains(converted, convertedName)
	switch {
	case meta.Conversion != nil && !contains(converted, meta.Conversion.Filename):
		logger.Warn("Document %s: converted file %s is missing, dropping record", meta.DocumentID, meta.Conversion.Filename)
		meta.Conversion = nil
		meta.ConvertedAt = nil
		changed = true
	case meta.Conversion == nil && hasConverted:
		logger.Warn("Document %s: found unrecorded converted file %s", meta.DocumentID, convertedName)
		meta.Conversion = &domain.ConversionRecord{Tool: "unknown", Filename: convertedName}
		changed = true
	}

	chunked, err := m.store.ListArtifacts(ctx, ref, driven.ArtifactChunked)
	if err != nil {
		return false, err
	}
	kept := meta.Chunking[:0]
	recorded := make(map[string]bool, len(meta.Chunking))
	for _, rec := range meta.Chunking {
		if !contains(chunked, rec.Filename) {
			logger.Warn("Document %s: chunked file %s is missing, dropping record", meta.DocumentID, rec.Filename)
			changed = true
			continue
		}
		recorded[rec.Filename] = true
		kept = append(kept, rec)
	}
	meta.Chunking = kept

	for _, name := range chunked {
		if recorded[name] {
			continue
		}
		chunker, version, ok := parseChunkedFilename(ref.Name, name)
		if !ok || meta.ChunkingRun(chunker, version) != nil {
			continue
		}
		data, err := m.store.ReadArtifact(ctx, ref, driven.ArtifactChunked, name)
		if err != nil {
			return false, err
		}
		logger.Warn("Document %s: found unrecorded chunked file %s", meta.DocumentID, name)
		meta.Chunking = append(meta.Chunking, domain.ChunkingRecord{
			Chunker:        chunker,
			ChunkerVersion: version,
			Variant:        domain.ChunkerConfig{},
			CreatedAt:      m.now().UTC(),
			NumChunks:      domain.CountChunkMarkers(data),
			Filename:       name,
		})
		changed = true
	}

	if changed {
		meta.RefreshStatus()
	}
	return changed, nil
}

// parseChunkedFilename splits <doc>__<chunker>__<version>.md.
func parseChunkedFilename(document, filename string) (chunker, version string, ok bool) {
	rest, found := strings.CutPrefix(strings.TrimSuffix(filename, ".md"), document+"__")
	if !found {
		return "", "", false
	}
	chunker, version, ok = strings.Cut(rest, "__")
	if !ok || chunker == "" || version == "" {
		return "", "", false
	}
	return chunker, version, true
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
