package driving

import "context"

// Batch item stages.
const (
	BatchStageConvert = "convert"
	BatchStageChunk   = "chunk"
)

// Batch item outcomes.
const (
	BatchStatusOK      = "ok"
	BatchStatusSkipped = "skipped"
	BatchStatusFailed  = "failed"
)

// ChunkerSelection is one chunker variant to run across a catalog.
type ChunkerSelection struct {
	Chunker string         `yaml:"chunker"`
	Version string         `yaml:"version"`
	Config  map[string]any `yaml:"config"`
}

// BatchOptions tunes a batch run.
type BatchOptions struct {
	// Workers bounds concurrently processed documents.
	Workers int

	// ChunkerWorkers bounds concurrent chunker runs per document.
	ChunkerWorkers int

	// Include filters documents by "subcatalog/document" glob patterns.
	// Empty includes everything.
	Include []string

	// Force regenerates chunked files even when identical.
	Force bool

	// RetryFailed converts documents whose last conversion failed.
	RetryFailed bool

	// OnProgress is called after each document with processed and total counts.
	OnProgress func(processed, total int)
}

// BatchItem is the outcome of one stage for one document.
type BatchItem struct {
	DocumentID string
	Document   string
	Stage      string
	Chunker    string
	Version    string
	Status     string
	NumChunks  int
	Error      string
}

// BatchReport collects per-item outcomes of a batch run.
type BatchReport struct {
	Catalog   string
	Total     int
	Processed int
	Cancelled bool
	Items     []BatchItem
}

// Failed counts failed items.
func (r *BatchReport) Failed() int {
	n := 0
	for _, it := range r.Items {
		if it.Status == BatchStatusFailed {
			n++
		}
	}
	return n
}

// BatchService processes many documents concurrently.
type BatchService interface {
	// ProcessCatalog converts unconverted documents of a catalog (or a
	// single "catalog/subcatalog") and runs every selection against each.
	// One failing item never aborts the others.
	ProcessCatalog(ctx context.Context, catalogPath string, selections []ChunkerSelection, opts BatchOptions) (*BatchReport, error)
}
