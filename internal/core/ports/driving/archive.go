package driving

import (
	"context"

	"github.com/custodia-labs/docpipe/internal/core/domain"
)

// ArchiveService snapshots and restores documents.
type ArchiveService interface {
	// Snapshot captures the current state of a document.
	Snapshot(ctx context.Context, documentID string) (domain.ArchiveEntry, error)

	// List returns the snapshots of a document, oldest first.
	// Snapshots of deleted documents are still listed.
	List(ctx context.Context, documentID string) ([]domain.ArchiveEntry, error)

	// Restore snapshots the current state and then replaces the document
	// with the archived one. A deleted document is recreated at its
	// archived location.
	Restore(ctx context.Context, documentID, archiveID string) (*domain.Metadata, error)
}
