package driven

import (
	"context"

	"github.com/custodia-labs/docpipe/internal/core/domain"
)

// ArchiveStore keeps immutable snapshots of document directories.
type ArchiveStore interface {
	// Snapshot captures the whole document directory.
	// Implementations return an error wrapping domain.ErrArchiveFailed
	// when the snapshot could not be made durable.
	Snapshot(ctx context.Context, meta *domain.Metadata, reason string) (domain.ArchiveEntry, error)

	// List returns the snapshots of a document, oldest first.
	List(ctx context.Context, documentID string) ([]domain.ArchiveEntry, error)

	// Get returns one snapshot. Returns domain.ErrNotFound if absent.
	Get(ctx context.Context, documentID, archiveID string) (domain.ArchiveEntry, error)

	// Extract replaces the document directory at ref with the snapshot content.
	// The current directory, if any, stays untouched until the snapshot has
	// been fully unpacked.
	Extract(ctx context.Context, entry domain.ArchiveEntry, ref domain.DocumentRef) error
}
