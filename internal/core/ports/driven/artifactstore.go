package driven

import (
	"context"

	"github.com/custodia-labs/docpipe/internal/core/domain"
)

// ArtifactKind names one of the artifact directories of a document.
type ArtifactKind string

// Artifact directories.
const (
	ArtifactOriginal  ArtifactKind = "original"
	ArtifactConverted ArtifactKind = "converted"
	ArtifactChunked   ArtifactKind = "chunked"
)

// ArtifactStore persists the catalog hierarchy and document artifacts.
// Every write must be atomic: a reader sees the old content or the new
// content, never a partial file.
type ArtifactStore interface {
	// CreateCatalog creates a top-level catalog.
	// Returns domain.ErrAlreadyExists if it exists.
	CreateCatalog(ctx context.Context, name string) error

	// CreateSubcatalog creates a subcatalog inside an existing catalog.
	CreateSubcatalog(ctx context.Context, path domain.SubcatalogPath) error

	// ListCatalogs returns catalog names in lexical order.
	ListCatalogs(ctx context.Context) ([]string, error)

	// ListSubcatalogs returns subcatalog names in lexical order.
	ListSubcatalogs(ctx context.Context, catalog string) ([]string, error)

	// ListDocuments returns the document names of a subcatalog in lexical order.
	// Returns domain.ErrNotFound if the subcatalog does not exist.
	ListDocuments(ctx context.Context, path domain.SubcatalogPath) ([]string, error)

	// CreateDocument assembles a document directory out of sight and moves it
	// into place in one rename. The original is written under original/.
	CreateDocument(ctx context.Context, meta *domain.Metadata, originalFilename string, original []byte) error

	// FindDocument locates a document by id.
	FindDocument(ctx context.Context, documentID string) (domain.DocumentRef, error)

	// ReadMetadata reads metadata.json.
	ReadMetadata(ctx context.Context, ref domain.DocumentRef) (*domain.Metadata, error)

	// WriteMetadata atomically replaces metadata.json.
	WriteMetadata(ctx context.Context, ref domain.DocumentRef, meta *domain.Metadata) error

	// ReadArtifact reads a file from an artifact directory.
	ReadArtifact(ctx context.Context, ref domain.DocumentRef, kind ArtifactKind, filename string) ([]byte, error)

	// WriteArtifact atomically writes a file into an artifact directory.
	WriteArtifact(ctx context.Context, ref domain.DocumentRef, kind ArtifactKind, filename string, data []byte) error

	// RemoveArtifact deletes a file. Missing files are not an error.
	RemoveArtifact(ctx context.Context, ref domain.DocumentRef, kind ArtifactKind, filename string) error

	// ListArtifacts returns the file names in an artifact directory.
	ListArtifacts(ctx context.Context, ref domain.DocumentRef, kind ArtifactKind) ([]string, error)

	// DeleteDocument removes the document directory.
	DeleteDocument(ctx context.Context, ref domain.DocumentRef) error

	// DocumentDir returns the document directory path.
	DocumentDir(ref domain.DocumentRef) string
}
