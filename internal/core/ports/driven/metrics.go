package driven

import "time"

// Pipeline stages reported to PipelineMetrics.
const (
	StageUpload   = "upload"
	StageConvert  = "convert"
	StageChunk    = "chunk"
	StageSnapshot = "snapshot"
	StageRestore  = "restore"
)

// Stage outcomes.
const (
	OutcomeOK      = "ok"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// PipelineMetrics records stage outcomes and durations.
type PipelineMetrics interface {
	// ObserveStage records one stage execution.
	ObserveStage(stage, outcome string, d time.Duration)

	// ObserveChunks records the chunk count of a chunking run.
	ObserveChunks(chunker string, n int)
}
