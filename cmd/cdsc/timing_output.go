package main

import (
	"fmt"
	"io"
	"time"

	"cdsc/internal/pipeline"
)

func printStageTimings(out io.Writer, timings pipeline.Timings) {
	if out == nil {
		return
	}
	if timings.Has(pipeline.StageDecode) {
		_, _ = fmt.Fprintf(out, "decoded %.1f ms\n", toMillis(timings.Duration(pipeline.StageDecode)))
	}
	if timings.Has(pipeline.StageResolve) {
		_, _ = fmt.Fprintf(out, "resolved %.1f ms\n", toMillis(timings.Duration(pipeline.StageResolve)))
	}
	if timings.Has(pipeline.StageFlatten) {
		_, _ = fmt.Fprintf(out, "flattened %.1f ms\n", toMillis(timings.Duration(pipeline.StageFlatten)))
	}
	if timings.Has(pipeline.StageLower) || timings.Has(pipeline.StageConstraints) || timings.Has(pipeline.StageDrafts) {
		rewritten := timings.Sum(pipeline.StageLower, pipeline.StageConstraints, pipeline.StageDrafts)
		_, _ = fmt.Fprintf(out, "rewritten %.1f ms\n", toMillis(rewritten))
	}
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
