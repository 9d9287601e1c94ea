package mcp

import (
	"context"

	"github.com/custodia-labs/docpipe/internal/core/domain"
	"github.com/custodia-labs/docpipe/internal/core/ports/driving"
)

// mockCatalogService is a mock implementation of driving.CatalogService.
type mockCatalogService struct {
	tree      []domain.CatalogNode
	documents []domain.Metadata
	document  *domain.Metadata
	converted []byte
	chunks    []domain.Chunk
	err       error

	gotChunker string
	gotVersion string
}

func (m *mockCatalogService) CreateCatalog(_ context.Context, _ string) error {
	return m.err
}

func (m *mockCatalogService) CreateSubcatalog(_ context.Context, _ domain.SubcatalogPath) error {
	return m.err
}

func (m *mockCatalogService) ListCatalogs(_ context.Context) ([]string, error) {
	names := make([]string, len(m.tree))
	for i, c := range m.tree {
		names[i] = c.Name
	}
	return names, m.err
}

func (m *mockCatalogService) ListSubcatalogs(_ context.Context, _ string) ([]string, error) {
	return nil, m.err
}

func (m *mockCatalogService) Tree(_ context.Context) ([]domain.CatalogNode, error) {
	return m.tree, m.err
}

func (m *mockCatalogService) AddDocument(_ context.Context, _ driving.AddDocumentRequest) (*domain.Metadata, error) {
	return m.document, m.err
}

func (m *mockCatalogService) ListDocuments(_ context.Context, _ domain.SubcatalogPath) ([]domain.Metadata, error) {
	return m.documents, m.err
}

func (m *mockCatalogService) GetDocument(_ context.Context, _ string) (*domain.Metadata, error) {
	if m.document == nil && m.err == nil {
		return nil, domain.ErrNotFound
	}
	return m.document, m.err
}

func (m *mockCatalogService) ReplaceOriginal(_ context.Context, _, _ string, _ []byte, _ string) (*domain.Metadata, error) {
	return m.document, m.err
}

func (m *mockCatalogService) DeleteDocument(_ context.Context, _ string) error {
	return m.err
}

func (m *mockCatalogService) ReadConverted(_ context.Context, _ string) ([]byte, error) {
	return m.converted, m.err
}

func (m *mockCatalogService) ReadChunks(_ context.Context, _, chunker, version string) ([]domain.Chunk, error) {
	m.gotChunker, m.gotVersion = chunker, version
	return m.chunks, m.err
}
