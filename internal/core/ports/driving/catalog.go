package driving

import (
	"context"

	"github.com/custodia-labs/docpipe/internal/core/domain"
)

// AddDocumentRequest is an upload into a subcatalog.
type AddDocumentRequest struct {
	// Subcatalog is the target location.
	Subcatalog domain.SubcatalogPath

	// Filename is the original file name. Its stem becomes the document name.
	Filename string

	// Content is the original bytes.
	Content []byte

	// MIMEType is the declared format. Empty infers it from the extension.
	MIMEType string

	// SkipConversion leaves the document uploaded even when the service
	// converts automatically.
	SkipConversion bool
}

// CatalogService manages the catalog hierarchy and documents.
type CatalogService interface {
	// CreateCatalog creates a top-level catalog.
	CreateCatalog(ctx context.Context, name string) error

	// CreateSubcatalog creates a subcatalog in an existing catalog.
	CreateSubcatalog(ctx context.Context, path domain.SubcatalogPath) error

	// ListCatalogs returns all catalog names.
	ListCatalogs(ctx context.Context) ([]string, error)

	// ListSubcatalogs returns the subcatalog names of a catalog.
	ListSubcatalogs(ctx context.Context, catalog string) ([]string, error)

	// Tree returns every catalog with its subcatalogs and documents.
	Tree(ctx context.Context) ([]domain.CatalogNode, error)

	// AddDocument validates and stores an upload. On validation failure
	// nothing is written and the error wraps a *domain.ValidationError.
	AddDocument(ctx context.Context, req AddDocumentRequest) (*domain.Metadata, error)

	// ListDocuments returns the metadata of every document in a subcatalog.
	ListDocuments(ctx context.Context, path domain.SubcatalogPath) ([]domain.Metadata, error)

	// GetDocument returns the metadata of one document.
	GetDocument(ctx context.Context, documentID string) (*domain.Metadata, error)

	// ReplaceOriginal snapshots the document, swaps in a new original and
	// discards the converted and chunked artifacts derived from the old one.
	ReplaceOriginal(ctx context.Context, documentID, filename string, content []byte, mimeType string) (*domain.Metadata, error)

	// DeleteDocument snapshots and removes a document.
	DeleteDocument(ctx context.Context, documentID string) error

	// ReadConverted returns the converted Markdown.
	ReadConverted(ctx context.Context, documentID string) ([]byte, error)

	// ReadChunks returns the chunks of one chunking run.
	ReadChunks(ctx context.Context, documentID, chunker, version string) ([]domain.Chunk, error)
}
