package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docpipe/internal/adapters/driven/storage/filesystem"
	"github.com/custodia-labs/docpipe/internal/core/domain"
	"github.com/custodia-labs/docpipe/internal/core/ports/driven"
	"github.com/custodia-labs/docpipe/internal/core/ports/driving"
)

// stubConverters converts text by prefixing a heading. Content starting
// with FAIL makes it fail and EMPTY makes it return nothing. With deaf set
// the delay is slept through regardless of cancellation.
type stubConverters struct {
	version string
	calls   atomic.Int32
	delay   time.Duration
	deaf    bool
}

func (c *stubConverters) Convert(ctx context.Context, in driven.ConvertInput) (*driven.ConvertResult, error) {
	c.calls.Add(1)
	if c.delay > 0 && c.deaf {
		time.Sleep(c.delay)
	} else if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	content := string(in.Content)
	switch {
	case strings.HasPrefix(content, "FAIL"):
		return nil, errors.New("unreadable document")
	case strings.HasPrefix(content, "EMPTY"):
		return &driven.ConvertResult{Tool: "stub", ToolVersion: c.ver()}, nil
	}
	md := "# " + domain.DocumentName(in.Filename) + "\n\n" + content + "\n"
	return &driven.ConvertResult{Markdown: []byte(md), Tool: "stub", ToolVersion: c.ver()}, nil
}

func (c *stubConverters) ConvertWith(ctx context.Context, name string, in driven.ConvertInput) (*driven.ConvertResult, error) {
	if name != "stub" {
		return nil, fmt.Errorf("converter %s: %w", name, domain.ErrNotFound)
	}
	return c.Convert(ctx, in)
}

func (c *stubConverters) Register(driven.Converter) {}

func (c *stubConverters) SupportedMIMETypes() []string { return []string{"text/plain"} }

func (c *stubConverters) ver() string {
	if c.version == "" {
		return "1.0"
	}
	return c.version
}

// paragraphStrategy splits on blank lines. The "prefix" config key is
// prepended to every chunk.
type paragraphStrategy struct {
	name    string
	version string
	calls   atomic.Int32
	block   chan struct{}
}

func (s *paragraphStrategy) Name() string    { return s.name }
func (s *paragraphStrategy) Version() string { return s.version }

func (s *paragraphStrategy) DefaultConfig() domain.ChunkerConfig {
	return domain.ChunkerConfig{"prefix": ""}
}

func (s *paragraphStrategy) Chunk(ctx context.Context, md string, cfg domain.ChunkerConfig) (domain.ChunkResult, error) {
	s.calls.Add(1)
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return domain.ChunkResult{}, ctx.Err()
		}
	}
	prefix, _ := cfg["prefix"].(string)
	var parts []string
	for _, p := range strings.Split(md, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, prefix+p)
		}
	}
	return domain.NewChunkResult(parts), nil
}

// brokenStrategy reports a count that does not match its chunks.
type brokenStrategy struct{}

func (brokenStrategy) Name() string                        { return "broken" }
func (brokenStrategy) Version() string                     { return "1.0" }
func (brokenStrategy) DefaultConfig() domain.ChunkerConfig { return nil }

func (brokenStrategy) Chunk(context.Context, string, domain.ChunkerConfig) (domain.ChunkResult, error) {
	r := domain.NewChunkResult([]string{"a", "b"})
	r.Count = 3
	return r, nil
}

// sleepyStrategy sleeps without watching its context, then returns one chunk.
type sleepyStrategy struct {
	delay time.Duration
}

func (sleepyStrategy) Name() string                        { return "sleepy" }
func (sleepyStrategy) Version() string                     { return "1.0" }
func (sleepyStrategy) DefaultConfig() domain.ChunkerConfig { return nil }

func (s sleepyStrategy) Chunk(_ context.Context, md string, _ domain.ChunkerConfig) (domain.ChunkResult, error) {
	time.Sleep(s.delay)
	return domain.ChunkResult{
		Chunks: []domain.Chunk{{ID: domain.ChunkID(1), Order: 1, Content: md}},
		Count:  1,
	}, nil
}

type stubChunkers struct {
	strategies map[driven.ChunkerKey]driven.ChunkStrategy
}

func newStubChunkers(strategies ...driven.ChunkStrategy) *stubChunkers {
	r := &stubChunkers{strategies: make(map[driven.ChunkerKey]driven.ChunkStrategy)}
	for _, s := range strategies {
		r.strategies[driven.ChunkerKey{Name: s.Name(), Version: s.Version()}] = s
	}
	return r
}

func (r *stubChunkers) Lookup(name, version string) (driven.ChunkStrategy, error) {
	var best driven.ChunkStrategy
	for k, s := range r.strategies {
		if k.Name != name || (version != "" && k.Version != version) {
			continue
		}
		if best == nil || k.Version > best.Version() {
			best = s
		}
	}
	if best == nil {
		return nil, fmt.Errorf("chunker %s@%s: %w", name, version, domain.ErrNotFound)
	}
	return best, nil
}

func (r *stubChunkers) Keys() []driven.ChunkerKey {
	keys := make([]driven.ChunkerKey, 0, len(r.strategies))
	for k := range r.strategies {
		keys = append(keys, k)
	}
	return keys
}

type recordingMetrics struct {
	mu     sync.Mutex
	stages map[string]int
}

func (m *recordingMetrics) ObserveStage(stage, outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stages == nil {
		m.stages = map[string]int{}
	}
	m.stages[stage+"/"+outcome]++
}

func (m *recordingMetrics) ObserveChunks(string, int) {}

func (m *recordingMetrics) count(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stages[key]
}

// testPipeline wires every service over a temporary directory.
type testPipeline struct {
	dataDir    string
	archiveDir string
	store      *filesystem.Store
	archives   *filesystem.ArchiveStore
	meta       *MetadataService
	archive    *ArchiveService
	catalog    *CatalogService
	conversion *ConversionService
	chunking   *ChunkingService
	batch      *BatchService
	converters *stubConverters
	sentences  *paragraphStrategy
	metrics    *recordingMetrics
}

func newTestPipeline(t *testing.T, limits Limits) *testPipeline {
	t.Helper()
	root := t.TempDir()
	dataDir, archiveDir := filepath.Join(root, "data"), filepath.Join(root, "archive")
	store, err := filesystem.NewStore(dataDir)
	require.NoError(t, err)
	archives, err := filesystem.NewArchiveStore(archiveDir, store)
	require.NoError(t, err)

	p := &testPipeline{
		dataDir:    dataDir,
		archiveDir: archiveDir,
		store:      store,
		archives:   archives,
		converters: &stubConverters{},
		sentences:  &paragraphStrategy{name: "paragraph", version: "1.0"},
		metrics:    &recordingMetrics{},
	}
	p.meta = NewMetadataService(store)
	p.archive = NewArchiveService(p.meta, store, archives, limits, p.metrics)
	p.conversion = NewConversionService(store, p.meta, p.archive, p.converters, time.Second, p.metrics)
	p.chunking = NewChunkingService(store, p.meta, p.archive,
		newStubChunkers(p.sentences, &paragraphStrategy{name: "paragraph", version: "2.0"}, brokenStrategy{}),
		time.Second, p.metrics)
	p.catalog = NewCatalogService(store, p.meta, p.archive, limits, WithCatalogMetrics(p.metrics))
	p.batch = NewBatchService(p.catalog, p.conversion, p.chunking, driving.BatchOptions{Workers: 3})
	return p
}

var testSub = domain.SubcatalogPath{Catalog: "finance", Subcatalog: "2024"}

func (p *testPipeline) mkSubcatalog(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	if err := p.catalog.CreateCatalog(ctx, testSub.Catalog); err != nil {
		require.ErrorIs(t, err, domain.ErrAlreadyExists)
	}
	if err := p.catalog.CreateSubcatalog(ctx, testSub); err != nil {
		require.ErrorIs(t, err, domain.ErrAlreadyExists)
	}
}

func (p *testPipeline) add(t *testing.T, filename, content string) *domain.Metadata {
	t.Helper()
	p.mkSubcatalog(t)
	meta, err := p.catalog.AddDocument(context.Background(), driving.AddDocumentRequest{
		Subcatalog: testSub,
		Filename:   filename,
		Content:    []byte(content),
	})
	require.NoError(t, err)
	return meta
}

func (p *testPipeline) addConverted(t *testing.T, filename, content string) *domain.Metadata {
	t.Helper()
	meta := p.add(t, filename, content)
	_, err := p.conversion.Convert(context.Background(), meta.DocumentID, "")
	require.NoError(t, err)
	return meta
}

// breakArchives replaces the archive root with a regular file so every
// snapshot fails.
func (p *testPipeline) breakArchives(t *testing.T) {
	t.Helper()
	require.NoError(t, os.RemoveAll(p.archiveDir))
	require.NoError(t, os.WriteFile(p.archiveDir, []byte("not a directory"), 0o600))
}

func (p *testPipeline) archiveCount(t *testing.T, documentID string) int {
	t.Helper()
	entries, err := p.archive.List(context.Background(), documentID)
	require.NoError(t, err)
	return len(entries)
}

func (p *testPipeline) readMeta(t *testing.T, documentID string) *domain.Metadata {
	t.Helper()
	meta, err := p.meta.Get(context.Background(), documentID)
	require.NoError(t, err)
	return meta
}
