package metrics

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docpipe/internal/core/ports/driven"
)

func TestMetrics_ObserveStage(t *testing.T) {
	m := New()
	m.ObserveStage(driven.StageConvert, driven.OutcomeOK, 20*time.Millisecond)
	m.ObserveStage(driven.StageConvert, driven.OutcomeOK, 30*time.Millisecond)
	m.ObserveStage(driven.StageConvert, driven.OutcomeFailed, time.Millisecond)

	assert.InDelta(t, 2, testutil.ToFloat64(m.stageTotal.WithLabelValues("convert", "ok")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.stageTotal.WithLabelValues("convert", "failed")), 0)
}

func TestMetrics_ObserveChunks(t *testing.T) {
	m := New()
	m.ObserveChunks("sentence_v1", 5)
	m.ObserveChunks("sentence_v1", 7)

	assert.InDelta(t, 12, testutil.ToFloat64(m.chunksTotal.WithLabelValues("sentence_v1")), 0)
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	a, b := New(), New()
	a.ObserveChunks("x", 1)
	assert.InDelta(t, 0, testutil.ToFloat64(b.chunksTotal.WithLabelValues("x")), 0)
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ObserveStage(driven.StageUpload, driven.OutcomeOK, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `docpipe_stage_total{outcome="ok",stage="upload"} 1`)
}

func TestMetrics_WriteTextfile(t *testing.T) {
	m := New()
	m.ObserveChunks("paragraph_v1", 3)
	path := filepath.Join(t.TempDir(), "docpipe.prom")

	require.NoError(t, m.WriteTextfile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `docpipe_chunks_total{chunker="paragraph_v1"} 3`)
}
