package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docpipe/internal/core/domain"
	"github.com/custodia-labs/docpipe/internal/core/ports/driven"
	"github.com/custodia-labs/docpipe/internal/core/ports/driving"
)

func TestChunkingService_PrerequisiteMissing(t *testing.T) {
	p := newTestPipeline(t, DefaultLimits())
	meta := p.add(t, "report.txt", "Text.")

	_, err := p.chunking.Run(context.Background(), driving.ChunkRequest{DocumentID: meta.DocumentID, Chunker: "paragraph"})
	assert.ErrorIs(t, err, domain.ErrPrerequisiteMissing)
	assert.Equal(t, int32(0), p.sentences.calls.Load())
}

func TestChunkingService_UnknownChunker(t *testing.T) {
	p := newTestPipeline(t, DefaultLimits())
	meta := p.addConverted(t, "report.txt", "Text.")

	_, err := p.chunking.Run(context.Background(), driving.ChunkRequest{DocumentID: meta.DocumentID, Chunker: "nope"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestChunkingService_Run(t *testing.T) {
	p := newTestPipeline(t, DefaultLimits())
	ctx := context.Background()
	meta := p.addConverted(t, "report.txt", "First.\n\nSecond.\n\nThird.")

	res, err := p.chunking.Run(ctx, driving.ChunkRequest{DocumentID: meta.DocumentID, Chunker: "paragraph", Version: "1.0"})
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Nil(t, res.Archived)
	assert.Equal(t, 4, res.Record.NumChunks)
	assert.Equal(t, "report__paragraph__1.0.md", res.Record.Filename)
	assert.Equal(t, domain.ChunkerConfig{"prefix": ""}, res.Record.Variant)

	data, err := p.store.ReadArtifact(ctx, meta.Ref(), driven.ArtifactChunked, res.Record.Filename)
	require.NoError(t, err)
	assert.Equal(t, res.Record.NumChunks, domain.CountChunkMarkers(data))

	got := p.readMeta(t, meta.DocumentID)
	assert.Equal(t, domain.StatusChunked, got.Status)
	require.Len(t, got.Chunking, 1)
	assert.Equal(t, res.Record.Fingerprint, got.Chunking[0].Fingerprint)
}

func TestChunkingService_Idempotent(t *testing.T) {
	p := newTestPipeline(t, DefaultLimits())
	ctx := context.Background()
	meta := p.addConverted(t, "report.txt", "First.\n\nSecond.")
	req := driving.ChunkRequest{DocumentID: meta.DocumentID, Chunker: "paragraph", Version: "1.0"}

	_, err := p.chunking.Run(ctx, req)
	require.NoError(t, err)
	before, err := p.store.ReadArtifact(ctx, meta.Ref(), driven.ArtifactChunked, "report__paragraph__1.0.md")
	require.NoError(t, err)
	metaBefore := p.readMeta(t, meta.DocumentID)

	res, err := p.chunking.Run(ctx, req)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Equal(t, int32(1), p.sentences.calls.Load())

	after, err := p.store.ReadArtifact(ctx, meta.Ref(), driven.ArtifactChunked, "report__paragraph__1.0.md")
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, metaBefore, p.readMeta(t, meta.DocumentID))
	assert.Equal(t, 0, p.archiveCount(t, meta.DocumentID))
}

func TestChunkingService_Force(t *testing.T) {
	p := newTestPipeline(t, DefaultLimits())
	ctx := context.Background()
	meta := p.addConverted(t, "report.txt", "First.")
	req := driving.ChunkRequest{DocumentID: meta.DocumentID, Chunker: "paragraph", Version: "1.0"}

	_, err := p.chunking.Run(ctx, req)
	require.NoError(t, err)

	req.Force = true
	res, err := p.chunking.Run(ctx, req)
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	require.NotNil(t, res.Archived)
	assert.Equal(t, 1, p.archiveCount(t, meta.DocumentID))
}

// A rerun with a different config archives the old file, replaces it and
// keeps a single metadata entry for the chunker version.
func TestChunkingService_RerunWithDifferentConfig(t *testing.T) {
	p := newTestPipeline(t, DefaultLimits())
	ctx := context.Background()
	meta := p.addConverted(t, "report.txt", "First.\n\nSecond.")

	_, err := p.chunking.Run(ctx, driving.ChunkRequest{DocumentID: meta.DocumentID, Chunker: "paragraph", Version: "1.0"})
	require.NoError(t, err)

	res, err := p.chunking.Run(ctx, driving.ChunkRequest{
		DocumentID: meta.DocumentID,
		Chunker:    "paragraph",
		Version:    "1.0",
		Config:     domain.ChunkerConfig{"prefix": "> "},
	})
	require.NoError(t, err)
	require.NotNil(t, res.Archived)
	assert.Equal(t, domain.ReasonRechunk, res.Archived.Reason)

	got := p.readMeta(t, meta.DocumentID)
	require.Len(t, got.Chunking, 1)
	assert.Equal(t, "> ", got.Chunking[0].Variant["prefix"])

	chunks, err := p.catalog.ReadChunks(ctx, meta.DocumentID, "paragraph", "1.0")
	require.NoError(t, err)
	assert.Equal(t, "> First.", chunks[1].Content)
}

func TestChunkingService_VersionsCoexist(t *testing.T) {
	p := newTestPipeline(t, DefaultLimits())
	ctx := context.Background()
	meta := p.addConverted(t, "report.txt", "First.")

	_, err := p.chunking.Run(ctx, driving.ChunkRequest{DocumentID: meta.DocumentID, Chunker: "paragraph", Version: "1.0"})
	require.NoError(t, err)
	res, err := p.chunking.Run(ctx, driving.ChunkRequest{DocumentID: meta.DocumentID, Chunker: "paragraph"})
	require.NoError(t, err)
	assert.Equal(t, "2.0", res.Record.ChunkerVersion)

	assert.Len(t, p.readMeta(t, meta.DocumentID).Chunking, 2)
	assert.Equal(t, 0, p.archiveCount(t, meta.DocumentID))
}

func TestChunkingService_ContractViolation(t *testing.T) {
	p := newTestPipeline(t, DefaultLimits())
	ctx := context.Background()
	meta := p.addConverted(t, "report.txt", "First.")

	_, err := p.chunking.Run(ctx, driving.ChunkRequest{DocumentID: meta.DocumentID, Chunker: "broken"})
	assert.ErrorIs(t, err, domain.ErrStrategyContractViolation)

	names, err := p.store.ListArtifacts(ctx, meta.Ref(), driven.ArtifactChunked)
	require.NoError(t, err)
	assert.Empty(t, names)
	assert.Empty(t, p.readMeta(t, meta.DocumentID).Chunking)
}

func TestChunkingService_ConcurrentVariants(t *testing.T) {
	p := newTestPipeline(t, DefaultLimits())
	ctx := context.Background()
	meta := p.addConverted(t, "report.txt", "A.\n\nB.\n\nC.")

	var wg sync.WaitGroup
	for _, version := range []string{"1.0", "2.0", "1.0", "2.0"} {
		wg.Add(1)
		go func(version string) {
			defer wg.Done()
			_, err := p.chunking.Run(ctx, driving.ChunkRequest{DocumentID: meta.DocumentID, Chunker: "paragraph", Version: version})
			assert.NoError(t, err)
		}(version)
	}
	wg.Wait()

	got := p.readMeta(t, meta.DocumentID)
	assert.Len(t, got.Chunking, 2)
	assert.Equal(t, int32(1), p.sentences.calls.Load(), "the second identical run must be skipped")
}

func TestChunkingService_ConflictWhenMarkdownChanges(t *testing.T) {
	p := newTestPipeline(t, DefaultLimits())
	ctx := context.Background()
	meta := p.addConverted(t, "report.txt", "First.")
	p.sentences.block = make(chan struct{})

	errs := make(chan error, 1)
	go func() {
		_, err := p.chunking.Run(ctx, driving.ChunkRequest{DocumentID: meta.DocumentID, Chunker: "paragraph", Version: "1.0"})
		errs <- err
	}()

	require.Eventually(t, func() bool { return p.sentences.calls.Load() == 1 }, time.Second, time.Millisecond)
	require.NoError(t, p.store.WriteArtifact(ctx, meta.Ref(), driven.ArtifactConverted, "report.md", []byte("# changed\n")))
	close(p.sentences.block)

	assert.ErrorIs(t, <-errs, domain.ErrConflict)
}

func TestChunkingService_DeleteRun(t *testing.T) {
	p := newTestPipeline(t, DefaultLimits())
	ctx := context.Background()
	meta := p.addConverted(t, "report.txt", "First.")
	_, err := p.chunking.Run(ctx, driving.ChunkRequest{DocumentID: meta.DocumentID, Chunker: "paragraph", Version: "1.0"})
	require.NoError(t, err)

	require.NoError(t, p.chunking.DeleteRun(ctx, meta.DocumentID, "paragraph", ""))

	got := p.readMeta(t, meta.DocumentID)
	assert.Empty(t, got.Chunking)
	assert.Equal(t, domain.StatusConverted, got.Status)
	names, err := p.store.ListArtifacts(ctx, meta.Ref(), driven.ArtifactChunked)
	require.NoError(t, err)
	assert.Empty(t, names)
	assert.Equal(t, 1, p.archiveCount(t, meta.DocumentID))

	err = p.chunking.DeleteRun(ctx, meta.DocumentID, "paragraph", "1.0")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestChunkingService_TimeoutIgnoredContext(t *testing.T) {
	p := newTestPipeline(t, DefaultLimits())
	ctx := context.Background()
	meta := p.addConverted(t, "report.txt", "First.\n\nSecond.")
	chunking := NewChunkingService(p.store, p.meta, p.archive,
		newStubChunkers(sleepyStrategy{delay: 2 * time.Second}), 50*time.Millisecond, nil)

	start := time.Now()
	_, err := chunking.Run(ctx, driving.ChunkRequest{DocumentID: meta.DocumentID, Chunker: "sleepy"})
	assert.Less(t, time.Since(start), time.Second)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	got := p.readMeta(t, meta.DocumentID)
	assert.Equal(t, domain.StatusConverted, got.Status)
	assert.Empty(t, got.Chunking)
	names, err := p.store.ListArtifacts(ctx, meta.Ref(), driven.ArtifactChunked)
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestChunkingService_Chunkers(t *testing.T) {
	p := newTestPipeline(t, DefaultLimits())
	infos := p.chunking.Chunkers()
	assert.Len(t, infos, 3)
}
