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

// Ensure ArchiveService implements the interface.
var _ driving.ArchiveService = (*ArchiveService)(nil)

// ArchiveService snapshots documents before destructive changes and
// restores them on request.
type ArchiveService struct {
	meta     *MetadataService
	store    driven.ArtifactStore
	archives driven.ArchiveStore
	limits   Limits
	metrics  driven.PipelineMetrics
}

// NewArchiveService creates an archive manager. metrics may be nil.
func NewArchiveService(
	meta *MetadataService,
	store driven.ArtifactStore,
	archives driven.ArchiveStore,
	limits Limits,
	metrics driven.PipelineMetrics,
) *ArchiveService {
	return &ArchiveService{
		meta:     meta,
		store:    store,
		archives: archives,
		limits:   limits.withDefaults(),
		metrics:  metrics,
	}
}

// Snapshot captures the current state of a document.
func (s *ArchiveService) Snapshot(ctx context.Context, documentID string) (domain.ArchiveEntry, error) {
	var entry domain.ArchiveEntry
	err := s.meta.Exclusive(ctx, documentID, func(tx *DocumentTx) error {
		var err error
		entry, err = s.snapshotLocked(ctx, tx, domain.ReasonManual)
		return err
	})
	return entry, err
}

// snapshotLocked archives the document inside an exclusive section.
// Pending metadata changes are flushed first so the archive is consistent.
func (s *ArchiveService) snapshotLocked(ctx context.Context, tx *DocumentTx, reason string) (domain.ArchiveEntry, error) {
	start := time.Now()
	if tx.changed {
		if err := s.store.WriteMetadata(ctx, tx.Ref, tx.Meta); err != nil {
			return domain.ArchiveEntry{}, fmt.Errorf("%w: flush metadata: %w", domain.ErrArchiveFailed, err)
		}
		tx.changed = false
	}
	entry, err := s.archives.Snapshot(ctx, tx.Meta, reason)
	observe(s.metrics, driven.StageSnapshot, start, err, false)
	if err != nil {
		return domain.ArchiveEntry{}, err
	}
	logger.Debug("Archived document %s as %s (%s)", tx.Meta.DocumentID, entry.ID, reason)
	return entry, nil
}

// List returns the snapshots of a document, oldest first.
func (s *ArchiveService) List(ctx context.Context, documentID string) ([]domain.ArchiveEntry, error) {
	return s.archives.List(ctx, documentID)
}

// Restore replaces a document with an archived state. The current state is
// archived first so a restore can itself be undone.
//
//nolint:gocyclo // Sequential restore steps
func (s *ArchiveService) Restore(ctx context.Context, documentID, archiveID string) (_ *domain.Metadata, err error) {
	start := time.Now()
	defer func() { observe(s.metrics, driven.StageRestore, start, err, false) }()

	entry, err := s.archives.Get(ctx, documentID, archiveID)
	if err != nil {
		return nil, fmt.Errorf("get archive: %w", err)
	}

	sub := domain.SubcatalogPath{Catalog: entry.Ref.Catalog, Subcatalog: entry.Ref.Subcatalog}
	unlockSub, err := s.meta.locks.Lock(ctx, subcatalogLockKey(sub))
	if err != nil {
		return nil, err
	}
	defer unlockSub()
	unlockDoc, err := s.meta.lockDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	defer unlockDoc()

	target, err := s.store.FindDocument(ctx, documentID)
	switch {
	case err == nil:
		err = s.meta.exclusiveLocked(ctx, documentID, func(tx *DocumentTx) error {
			_, err := s.snapshotLocked(ctx, tx, domain.ReasonRestore)
			return err
		})
		if err != nil {
			return nil, err
		}
	case errors.Is(err, domain.ErrNotFound):
		target = entry.Ref
		if err := s.checkRestoreTarget(ctx, target); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	if err := s.archives.Extract(ctx, entry, target); err != nil {
		return nil, fmt.Errorf("restore %s: %w", archiveID, err)
	}

	// Reconcile rewrites metadata.json only if the snapshot disagrees with
	// its own files, so an intact snapshot is restored byte for byte.
	err = s.meta.exclusiveLocked(ctx, documentID, func(*DocumentTx) error { return nil })
	if err != nil {
		return nil, err
	}
	logger.Info("Restored document %s from archive %s", documentID, archiveID)
	return s.store.ReadMetadata(ctx, target)
}

// checkRestoreTarget applies upload rules to a document that is being
// recreated from an archive.
func (s *ArchiveService) checkRestoreTarget(ctx context.Context, ref domain.DocumentRef) error {
	sub := domain.SubcatalogPath{Catalog: ref.Catalog, Subcatalog: ref.Subcatalog}
	names, err := s.store.ListDocuments(ctx, sub)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if contains(names, ref.Name) {
		return domain.NewValidationError(domain.ViolationDuplicateName,
			"%s is taken by another document", ref)
	}
	if len(names) >= s.limits.MaxDocuments {
		return domain.NewValidationError(domain.ViolationCount,
			"%s already holds %d documents", sub, len(names))
	}
	return nil
}

func subcatalogLockKey(p domain.SubcatalogPath) string {
	return "sub:" + p.String()
}
