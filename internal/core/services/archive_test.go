package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docpipe/internal/core/domain"
	"github.com/custodia-labs/docpipe/internal/core/ports/driving"
)

func snapshotTree(t *testing.T, root string) map[string]string {
	t.Helper()
	out := map[string]string{}
	require.NoError(t, filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(root, path)
		if d.IsDir() {
			out[rel+"/"] = ""
			return nil
		}
		data, err := os.ReadFile(path)
		out[rel] = string(data)
		return err
	}))
	return out
}

func TestArchiveService_RestoreRoundTrip(t *testing.T) {
	p := newTestPipeline(t, DefaultLimits())
	ctx := context.Background()
	meta := p.addConverted(t, "report.txt", "One.\n\nTwo.")
	_, err := p.chunking.Run(ctx, driving.ChunkRequest{DocumentID: meta.DocumentID, Chunker: "paragraph", Version: "1.0"})
	require.NoError(t, err)

	dir := p.store.DocumentDir(meta.Ref())
	before := snapshotTree(t, dir)
	entry, err := p.archive.Snapshot(ctx, meta.DocumentID)
	require.NoError(t, err)

	// Mutate: rerun with another config and add a second version.
	_, err = p.chunking.Run(ctx, driving.ChunkRequest{
		DocumentID: meta.DocumentID, Chunker: "paragraph", Version: "1.0",
		Config: domain.ChunkerConfig{"prefix": "* "},
	})
	require.NoError(t, err)
	_, err = p.chunking.Run(ctx, driving.ChunkRequest{DocumentID: meta.DocumentID, Chunker: "paragraph", Version: "2.0"})
	require.NoError(t, err)
	require.NotEqual(t, before, snapshotTree(t, dir))

	restored, err := p.archive.Restore(ctx, meta.DocumentID, entry.ID)
	require.NoError(t, err)
	assert.Len(t, restored.Chunking, 1)
	assert.Equal(t, before, snapshotTree(t, dir))

	// The pre-restore state was archived too.
	entries, err := p.archive.List(ctx, meta.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonRestore, entries[len(entries)-1].Reason)
}

func TestArchiveService_RestoreUnknownArchive(t *testing.T) {
	p := newTestPipeline(t, DefaultLimits())
	ctx := context.Background()
	meta := p.addConverted(t, "report.txt", "Text.")
	dir := p.store.DocumentDir(meta.Ref())
	before := snapshotTree(t, dir)

	_, err := p.archive.Restore(ctx, meta.DocumentID, "20200101T000000.000000000Z")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, before, snapshotTree(t, dir))
	assert.Equal(t, 0, p.archiveCount(t, meta.DocumentID))
}

func TestArchiveService_RestoreDeletedDocument(t *testing.T) {
	p := newTestPipeline(t, DefaultLimits())
	ctx := context.Background()
	meta := p.addConverted(t, "report.txt", "Text.")

	require.NoError(t, p.catalog.DeleteDocument(ctx, meta.DocumentID))
	entries, err := p.archive.List(ctx, meta.DocumentID)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	restored, err := p.archive.Restore(ctx, meta.DocumentID, entries[0].ID)
	require.NoError(t, err)
	assert.Equal(t, meta.Ref(), restored.Ref())
	assert.Equal(t, domain.StatusConverted, restored.Status)

	md, err := p.catalog.ReadConverted(ctx, meta.DocumentID)
	require.NoError(t, err)
	assert.Contains(t, string(md), "Text.")
}

func TestArchiveService_RestoreDeletedDocumentNameTaken(t *testing.T) {
	p := newTestPipeline(t, DefaultLimits())
	ctx := context.Background()
	meta := p.add(t, "report.txt", "Text.")
	require.NoError(t, p.catalog.DeleteDocument(ctx, meta.DocumentID))
	p.add(t, "report.txt", "A new document with the same name.")

	entries, err := p.archive.List(ctx, meta.DocumentID)
	require.NoError(t, err)
	_, err = p.archive.Restore(ctx, meta.DocumentID, entries[0].ID)
	assert.Equal(t, domain.ViolationDuplicateName, violation(t, err))
}

func TestArchiveService_SnapshotMissing(t *testing.T) {
	p := newTestPipeline(t, DefaultLimits())
	_, err := p.archive.Snapshot(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestArchiveService_FailureAbortsMutation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *testPipeline, documentID string) error
	}{
		{
			name: "rechunk with new config",
			mutate: func(p *testPipeline, id string) error {
				_, err := p.chunking.Run(context.Background(), driving.ChunkRequest{
					DocumentID: id,
					Chunker:    "paragraph",
					Version:    "1.0",
					Config:     domain.ChunkerConfig{"prefix": "> "},
				})
				return err
			},
		},
		{
			name: "reconvert with new converter version",
			mutate: func(p *testPipeline, id string) error {
				p.converters.version = "2.0"
				_, err := p.conversion.Convert(context.Background(), id, "")
				return err
			},
		},
		{
			name: "replace original",
			mutate: func(p *testPipeline, id string) error {
				_, err := p.catalog.ReplaceOriginal(context.Background(), id, "report.txt", []byte("New body."), "")
				return err
			},
		},
		{
			name: "delete document",
			mutate: func(p *testPipeline, id string) error {
				return p.catalog.DeleteDocument(context.Background(), id)
			},
		},
		{
			name: "delete chunking run",
			mutate: func(p *testPipeline, id string) error {
				return p.chunking.DeleteRun(context.Background(), id, "paragraph", "1.0")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPipeline(t, DefaultLimits())
			meta := p.addConverted(t, "report.txt", "First.\n\nSecond.")
			_, err := p.chunking.Run(context.Background(), driving.ChunkRequest{
				DocumentID: meta.DocumentID, Chunker: "paragraph", Version: "1.0",
			})
			require.NoError(t, err)

			before := snapshotTree(t, p.dataDir)
			p.breakArchives(t)

			err = tt.mutate(p, meta.DocumentID)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrArchiveFailed)
			assert.Equal(t, before, snapshotTree(t, p.dataDir), "document must be left untouched")

			got := p.readMeta(t, meta.DocumentID)
			assert.Equal(t, domain.StatusChunked, got.Status)
			require.Len(t, got.Chunking, 1)
		})
	}
}
