package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/docpipe/internal/core/domain"
	"github.com/custodia-labs/docpipe/internal/core/ports/driven"
	"github.com/custodia-labs/docpipe/internal/core/ports/driving"
	"github.com/custodia-labs/docpipe/internal/logger"
)

// Ensure ChunkingService implements the interface.
var _ driving.ChunkingService = (*ChunkingService)(nil)

// DefaultChunkingTimeout bounds one strategy call.
const DefaultChunkingTimeout = 5 * time.Minute

// ChunkingService runs chunk strategies against converted Markdown.
type ChunkingService struct {
	store    driven.ArtifactStore
	meta     *MetadataService
	archive  *ArchiveService
	chunkers driven.ChunkerRegistry
	timeout  time.Duration
	metrics  driven.PipelineMetrics
	now      func() time.Time
}

// NewChunkingService creates the chunking engine.
// A zero timeout uses DefaultChunkingTimeout. metrics may be nil.
func NewChunkingService(
	store driven.ArtifactStore,
	meta *MetadataService,
	archive *ArchiveService,
	chunkers driven.ChunkerRegistry,
	timeout time.Duration,
	metrics driven.PipelineMetrics,
) *ChunkingService {
	if timeout <= 0 {
		timeout = DefaultChunkingTimeout
	}
	return &ChunkingService{
		store:    store,
		meta:     meta,
		archive:  archive,
		chunkers: chunkers,
		timeout:  timeout,
		metrics:  metrics,
		now:      time.Now,
	}
}

// Chunkers lists the registered strategies.
func (s *ChunkingService) Chunkers() []driving.ChunkerInfo {
	if s.chunkers == nil {
		return nil
	}
	keys := s.chunkers.Keys()
	out := make([]driving.ChunkerInfo, 0, len(keys))
	for _, k := range keys {
		strategy, err := s.chunkers.Lookup(k.Name, k.Version)
		if err != nil {
			continue
		}
		out = append(out, driving.ChunkerInfo{
			Name:          k.Name,
			Version:       k.Version,
			DefaultConfig: strategy.DefaultConfig(),
		})
	}
	return out
}

func chunkLockKey(documentID string, key driven.ChunkerKey) string {
	return "chunk:" + documentID + "/" + key.String()
}

// Run executes one strategy and records it in metadata. An existing run
// with the same Markdown and effective config is returned as is unless
// Force is set.
//
//nolint:gocyclo // Sequential chunking steps
func (s *ChunkingService) Run(ctx context.Context, req driving.ChunkRequest) (_ *driving.ChunkRunResult, err error) {
	start := time.Now()
	skipped := false
	defer func() { observe(s.metrics, driven.StageChunk, start, err, skipped) }()

	if s.chunkers == nil {
		return nil, fmt.Errorf("chunk: %w", domain.ErrNotImplemented)
	}
	strategy, err := s.chunkers.Lookup(req.Chunker, req.Version)
	if err != nil {
		return nil, err
	}
	key := driven.ChunkerKey{Name: strategy.Name(), Version: strategy.Version()}

	unlock, err := s.meta.locks.Lock(ctx, chunkLockKey(req.DocumentID, key))
	if err != nil {
		return nil, err
	}
	defer unlock()

	ref, err := s.store.FindDocument(ctx, req.DocumentID)
	if err != nil {
		return nil, err
	}
	meta, err := s.store.ReadMetadata(ctx, ref)
	if err != nil {
		return nil, err
	}
	markdown, err := s.readMarkdown(ctx, ref, meta)
	if err != nil {
		return nil, err
	}

	cfg := req.Config.Merge(strategy.DefaultConfig())
	fingerprint, err := domain.Fingerprint(markdown, cfg)
	if err != nil {
		return nil, err
	}
	filename := domain.ChunkedFilename(ref.Name, key.Name, key.Version)

	if !req.Force {
		if rec := s.unchanged(ctx, ref, meta, key, fingerprint); rec != nil {
			skipped = true
			logger.Debug("Document %s: %s unchanged, skipping", req.DocumentID, key)
			return &driving.ChunkRunResult{Record: *rec, Skipped: true}, nil
		}
	}

	result, err := callWithTimeout(ctx, s.timeout, func(cctx context.Context) (domain.ChunkResult, error) {
		return strategy.Chunk(cctx, string(markdown), cfg.Clone())
	})
	if err != nil {
		return nil, fmt.Errorf("chunker %s: %w", key, err)
	}
	if err := domain.ValidateChunkResult(result); err != nil {
		return nil, fmt.Errorf("chunker %s: %w", key, err)
	}
	data := domain.FormatChunks(result.Chunks)
	markdownDigest := domain.MarkdownDigest(markdown)

	out := &driving.ChunkRunResult{}
	err = s.meta.Exclusive(ctx, req.DocumentID, func(tx *DocumentTx) error {
		current, err := s.readMarkdown(ctx, tx.Ref, tx.Meta)
		if err != nil {
			return err
		}
		if domain.MarkdownDigest(current) != markdownDigest {
			return fmt.Errorf("%w: converted Markdown of %s changed", domain.ErrConflict, req.DocumentID)
		}

		existing, err := s.store.ListArtifacts(ctx, tx.Ref, driven.ArtifactChunked)
		if err != nil {
			return err
		}
		if contains(existing, filename) {
			entry, err := s.archive.snapshotLocked(ctx, tx, domain.ReasonRechunk)
			if err != nil {
				return err
			}
			out.Archived = &entry
		}
		if err := s.store.WriteArtifact(ctx, tx.Ref, driven.ArtifactChunked, filename, data); err != nil {
			return err
		}
		out.Record = domain.ChunkingRecord{
			Chunker:        key.Name,
			ChunkerVersion: key.Version,
			Variant:        cfg,
			CreatedAt:      s.now().UTC(),
			NumChunks:      result.Count,
			Filename:       filename,
			Fingerprint:    fingerprint,
		}
		tx.Meta.SetChunkingRun(out.Record)
		tx.Touch()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("commit %s: %w", key, err)
	}
	if s.metrics != nil {
		s.metrics.ObserveChunks(key.Name, result.Count)
	}
	logger.Info("Chunked document %s with %s into %d chunks", req.DocumentID, key, result.Count)
	return out, nil
}

// unchanged returns the existing record when its file is present and was
// built from the same Markdown and config.
func (s *ChunkingService) unchanged(
	ctx context.Context,
	ref domain.DocumentRef,
	meta *domain.Metadata,
	key driven.ChunkerKey,
	fingerprint string,
) *domain.ChunkingRecord {
	rec := meta.ChunkingRun(key.Name, key.Version)
	if rec == nil || rec.Fingerprint != fingerprint {
		return nil
	}
	names, err := s.store.ListArtifacts(ctx, ref, driven.ArtifactChunked)
	if err != nil || !contains(names, rec.Filename) {
		return nil
	}
	return rec
}

func (s *ChunkingService) readMarkdown(ctx context.Context, ref domain.DocumentRef, meta *domain.Metadata) ([]byte, error) {
	if meta.Conversion == nil {
		return nil, fmt.Errorf("%w: document %s has not been converted", domain.ErrPrerequisiteMissing, meta.DocumentID)
	}
	md, err := s.store.ReadArtifact(ctx, ref, driven.ArtifactConverted, meta.Conversion.Filename)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("%w: converted Markdown of %s is missing", domain.ErrPrerequisiteMissing, meta.DocumentID)
	}
	return md, err
}

// DeleteRun archives the document and removes one chunked file.
// An empty version matches the only recorded version of the chunker.
func (s *ChunkingService) DeleteRun(ctx context.Context, documentID, chunker, version string) error {
	meta, err := s.meta.Get(ctx, documentID)
	if err != nil {
		return err
	}
	rec := findRun(meta, chunker, version)
	if rec == nil {
		return fmt.Errorf("chunking run %s@%s: %w", chunker, version, domain.ErrNotFound)
	}
	key := driven.ChunkerKey{Name: rec.Chunker, Version: rec.ChunkerVersion}

	unlock, err := s.meta.locks.Lock(ctx, chunkLockKey(documentID, key))
	if err != nil {
		return err
	}
	defer unlock()

	err = s.meta.Exclusive(ctx, documentID, func(tx *DocumentTx) error {
		current := tx.Meta.ChunkingRun(key.Name, key.Version)
		if current == nil {
			return fmt.Errorf("chunking run %s: %w", key, domain.ErrNotFound)
		}
		filename := current.Filename
		if _, err := s.archive.snapshotLocked(ctx, tx, domain.ReasonDeleteChunkedRun); err != nil {
			return err
		}
		if err := s.store.RemoveArtifact(ctx, tx.Ref, driven.ArtifactChunked, filename); err != nil {
			return err
		}
		tx.Meta.RemoveChunkingRun(key.Name, key.Version)
		tx.Touch()
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete chunking run: %w", err)
	}
	logger.Info("Deleted chunking run %s of document %s", key, documentID)
	return nil
}
