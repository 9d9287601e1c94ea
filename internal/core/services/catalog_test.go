package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docpipe/internal/core/domain"
	"github.com/custodia-labs/docpipe/internal/core/ports/driving"
)

func violation(t *testing.T, err error) domain.Violation {
	t.Helper()
	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr), "expected a validation error, got %v", err)
	return verr.Violation
}

func TestCatalogService_CreateHierarchy(t *testing.T) {
	p := newTestPipeline(t, DefaultLimits())
	ctx := context.Background()

	require.NoError(t, p.catalog.CreateCatalog(ctx, "finance"))
	assert.ErrorIs(t, p.catalog.CreateCatalog(ctx, "finance"), domain.ErrAlreadyExists)
	assert.ErrorIs(t, p.catalog.CreateCatalog(ctx, "a/b"), domain.ErrValidation)

	require.NoError(t, p.catalog.CreateSubcatalog(ctx, testSub))
	err := p.catalog.CreateSubcatalog(ctx, domain.SubcatalogPath{Catalog: "legal", Subcatalog: "x"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	catalogs, err := p.catalog.ListCatalogs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"finance"}, catalogs)
}

func TestCatalogService_AddDocument(t *testing.T) {
	p := newTestPipeline(t, DefaultLimits())
	meta := p.add(t, "report.txt", "Quarterly numbers.")

	assert.NotEmpty(t, meta.DocumentID)
	assert.Equal(t, "report", meta.Name)
	assert.Equal(t, "report.txt", meta.OriginalFilename)
	assert.Equal(t, domain.FormatTXT.MIMEType, meta.MIMEType)
	assert.Equal(t, domain.StatusUploaded, meta.Status)
	assert.Nil(t, meta.ConvertedAt)
	assert.Nil(t, meta.Conversion)
	assert.Empty(t, meta.Chunking)

	docs, err := p.catalog.ListDocuments(context.Background(), testSub)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, meta.DocumentID, docs[0].DocumentID)
}

func TestCatalogService_AddDocument_Validation(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name     string
		filename string
		mime     string
		size     int
		want     domain.Violation
	}{
		{"unsupported extension", "image.png", "", 10, domain.ViolationUnsupportedFormat},
		{"mime mismatch", "report.pdf", "text/plain", 10, domain.ViolationUnsupportedFormat},
		{"too large", "big.pdf", "application/pdf", 11 * 1024 * 1024, domain.ViolationSize},
		{"hidden name", ".secret.txt", "", 10, domain.ViolationInvalidName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPipeline(t, DefaultLimits())
			p.mkSubcatalog(t)

			_, err := p.catalog.AddDocument(ctx, driving.AddDocumentRequest{
				Subcatalog: testSub,
				Filename:   tt.filename,
				MIMEType:   tt.mime,
				Content:    make([]byte, tt.size),
			})
			assert.Equal(t, tt.want, violation(t, err))

			docs, err := p.catalog.ListDocuments(ctx, testSub)
			require.NoError(t, err)
			assert.Empty(t, docs)
			entries, err := os.ReadDir(p.store.Root() + "/finance/2024")
			require.NoError(t, err)
			assert.Empty(t, entries, "nothing may be written on validation failure")
		})
	}
}

func TestCatalogService_AddDocument_CountLimit(t *testing.T) {
	p := newTestPipeline(t, DefaultLimits())
	for i := 1; i <= 15; i++ {
		p.add(t, fmt.Sprintf("doc%02d.txt", i), "text")
	}

	_, err := p.catalog.AddDocument(context.Background(), driving.AddDocumentRequest{
		Subcatalog: testSub,
		Filename:   "doc16.txt",
		Content:    []byte("text"),
	})
	assert.Equal(t, domain.ViolationCount, violation(t, err))

	docs, err := p.catalog.ListDocuments(context.Background(), testSub)
	require.NoError(t, err)
	assert.Len(t, docs, 15)
}

func TestCatalogService_AddDocument_CountLimitConcurrent(t *testing.T) {
	p := newTestPipeline(t, Limits{MaxDocuments: 3})
	p.mkSubcatalog(t)

	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		go func(i int) {
			_, err := p.catalog.AddDocument(context.Background(), driving.AddDocumentRequest{
				Subcatalog: testSub,
				Filename:   fmt.Sprintf("doc%d.txt", i),
				Content:    []byte("text"),
			})
			errs <- err
		}(i)
	}
	ok := 0
	for i := 0; i < 10; i++ {
		if <-errs == nil {
			ok++
		}
	}
	assert.Equal(t, 3, ok)
}

func TestCatalogService_AddDocument_Duplicate(t *testing.T) {
	p := newTestPipeline(t, DefaultLimits())
	first := p.add(t, "report.txt", "original")

	_, err := p.catalog.AddDocument(context.Background(), driving.AddDocumentRequest{
		Subcatalog: testSub,
		Filename:   "report.txt",
		Content:    []byte("impostor"),
	})
	assert.Equal(t, domain.ViolationDuplicateName, violation(t, err))

	got := p.readMeta(t, first.DocumentID)
	assert.Equal(t, first.FileSizeMB, got.FileSizeMB)
	assert.Equal(t, first.CreatedAt, got.CreatedAt)
}

func TestCatalogService_AddDocument_AutoConvert(t *testing.T) {
	p := newTestPipeline(t, DefaultLimits())
	p.catalog = NewCatalogService(p.store, p.meta, p.archive, DefaultLimits(), WithAutoConvert(p.conversion))

	ok := p.add(t, "good.txt", "Fine text.")
	assert.Equal(t, domain.StatusConverted, ok.Status)
	require.NotNil(t, ok.Conversion)

	failed := p.add(t, "bad.txt", "FAIL please")
	assert.Equal(t, domain.StatusConversionFailed, failed.Status)
	assert.Contains(t, failed.LastError, "unreadable")

	skipped, err := p.catalog.AddDocument(context.Background(), driving.AddDocumentRequest{
		Subcatalog:     testSub,
		Filename:       "later.txt",
		Content:        []byte("Convert me later."),
		SkipConversion: true,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusUploaded, skipped.Status)
	assert.Nil(t, skipped.Conversion)
}

func TestCatalogService_Tree(t *testing.T) {
	p := newTestPipeline(t, DefaultLimits())
	p.add(t, "b.txt", "x")
	p.add(t, "a.txt", "y")
	require.NoError(t, p.catalog.CreateCatalog(context.Background(), "legal"))

	tree, err := p.catalog.Tree(context.Background())
	require.NoError(t, err)
	require.Len(t, tree, 2)
	assert.Equal(t, "finance", tree[0].Name)
	require.Len(t, tree[0].Subcatalogs, 1)
	docs := tree[0].Subcatalogs[0].Documents
	require.Len(t, docs, 2)
	assert.Equal(t, "a", docs[0].Name)
	assert.Equal(t, "legal", tree[1].Name)
	assert.Empty(t, tree[1].Subcatalogs)
}

func TestCatalogService_ReplaceOriginal(t *testing.T) {
	p := newTestPipeline(t, DefaultLimits())
	ctx := context.Background()
	meta := p.addConverted(t, "report.txt", "First version.")
	_, err := p.chunking.Run(ctx, driving.ChunkRequest{DocumentID: meta.DocumentID, Chunker: "paragraph", Version: "1.0"})
	require.NoError(t, err)

	updated, err := p.catalog.ReplaceOriginal(ctx, meta.DocumentID, "report.txt", []byte("Second version."), "")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusUploaded, updated.Status)
	assert.Nil(t, updated.Conversion)
	assert.Empty(t, updated.Chunking)
	assert.Equal(t, 1, p.archiveCount(t, meta.DocumentID))

	_, err = p.catalog.ReadConverted(ctx, meta.DocumentID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	entries, err := p.archive.List(ctx, meta.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonReplaceOriginal, entries[0].Reason)
}

func TestCatalogService_ReplaceOriginal_Validation(t *testing.T) {
	p := newTestPipeline(t, Limits{MaxFileSize: 10})
	meta := p.add(t, "report.txt", "tiny")

	_, err := p.catalog.ReplaceOriginal(context.Background(), meta.DocumentID, "report.txt",
		[]byte(strings.Repeat("x", 11)), "")
	assert.Equal(t, domain.ViolationSize, violation(t, err))
	assert.Equal(t, 0, p.archiveCount(t, meta.DocumentID))
}

func TestCatalogService_DeleteDocument(t *testing.T) {
	p := newTestPipeline(t, DefaultLimits())
	ctx := context.Background()
	meta := p.add(t, "report.txt", "text")

	require.NoError(t, p.catalog.DeleteDocument(ctx, meta.DocumentID))

	_, err := p.catalog.GetDocument(ctx, meta.DocumentID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, 1, p.archiveCount(t, meta.DocumentID))

	assert.ErrorIs(t, p.catalog.DeleteDocument(ctx, meta.DocumentID), domain.ErrNotFound)
}

func TestCatalogService_ReadChunks(t *testing.T) {
	p := newTestPipeline(t, DefaultLimits())
	ctx := context.Background()
	meta := p.addConverted(t, "report.txt", "One.\n\nTwo.")
	_, err := p.chunking.Run(ctx, driving.ChunkRequest{DocumentID: meta.DocumentID, Chunker: "paragraph", Version: "1.0"})
	require.NoError(t, err)

	chunks, err := p.catalog.ReadChunks(ctx, meta.DocumentID, "paragraph", "")
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, "# report", chunks[0].Content)
	assert.Equal(t, "Two.", chunks[2].Content)

	_, err = p.catalog.ReadChunks(ctx, meta.DocumentID, "paragraph", "9.9")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
