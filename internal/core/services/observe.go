package services

import (
	"time"

	"github.com/custodia-labs/docpipe/internal/core/ports/driven"
)

// observe reports a stage to optional metrics.
func observe(m driven.PipelineMetrics, stage string, start time.Time, err error, skipped bool) {
	if m == nil {
		return
	}
	outcome := driven.OutcomeOK
	switch {
	case err != nil:
		outcome = driven.OutcomeFailed
	case skipped:
		outcome = driven.OutcomeSkipped
	}
	m.ObserveStage(stage, outcome, time.Since(start))
}
