package pipeline

import (
	"context"
	"fmt"
	"time"

	"cdsc/internal/csn"
	"cdsc/internal/driver"
)

// CompileRequest configures the shared compilation pipeline.
type CompileRequest struct {
	Paths          []string
	Semantic       *csn.Options
	MaxDiagnostics int
	Jobs           int
	Timings        bool
	Cache          *driver.ModelCache
	Progress       ProgressSink
}

// CompileResult captures compilation artefacts and stage timings.
type CompileResult struct {
	Compile *driver.Result
	Timings Timings
}

// Compile runs the compiler and feeds stage progress into the sink.
// Diagnostics do not turn into errors here; the caller inspects the
// bag and decides. The returned error covers environment failures only.
func Compile(ctx context.Context, req *CompileRequest) (CompileResult, error) {
	var result CompileResult
	if ctx == nil {
		ctx = context.Background()
	}
	if req == nil {
		return result, fmt.Errorf("missing compile request")
	}
	if len(req.Paths) == 0 {
		return result, fmt.Errorf("missing input paths")
	}

	if req.Progress != nil {
		emitQueued(req.Progress, req.Paths)
	}
	phaseProgress := &phaseObserver{
		sink:    req.Progress,
		files:   req.Paths,
		timings: &result.Timings,
	}

	opts := driver.Options{
		Semantic:       req.Semantic,
		MaxDiagnostics: req.MaxDiagnostics,
		Jobs:           req.Jobs,
		Timings:        req.Timings,
		Cache:          req.Cache,
		Observer:       phaseProgress.OnPhase,
	}
	res, err := driver.Compile(ctx, req.Paths, opts)
	if err != nil {
		stage := phaseProgress.last
		if stage == "" {
			stage = StageDecode
		}
		emitStage(req.Progress, req.Paths, stage, StatusError, err, 0)
		return result, err
	}
	result.Compile = res

	// A cache hit skips every phase past decode, so finish there.
	final := StageDrafts
	if res.FromCache {
		final = StageDecode
	}
	if res.Bag != nil && res.Bag.HasErrors() {
		emitStage(req.Progress, req.Paths, final, StatusError, nil, 0)
		return result, nil
	}
	emitStage(req.Progress, req.Paths, final, StatusDone, nil, 0)
	return result, nil
}

type phaseObserver struct {
	sink    ProgressSink
	files   []string
	timings *Timings
	last    Stage
}

// OnPhase updates the progress sink based on compiler phase events.
func (p *phaseObserver) OnPhase(ev driver.PhaseEvent) {
	if p == nil {
		return
	}
	stage, ok := stageForPhase(ev.Name)
	if !ok {
		return
	}
	switch ev.Status {
	case driver.PhaseStart:
		if stage == p.last {
			return
		}
		p.last = stage
		emitStage(p.sink, p.files, stage, StatusWorking, nil, 0)
	case driver.PhaseEnd:
		if p.timings != nil {
			p.timings.Set(stage, p.timings.Duration(stage)+ev.Elapsed)
		}
	}
}

// stageForPhase folds driver phase names into coarse pipeline stages.
// Reading, cache probing and decoding share the decode stage.
func stageForPhase(name string) (Stage, bool) {
	switch name {
	case "read", "cache", "decode":
		return StageDecode, true
	case "resolve":
		return StageResolve, true
	case "flatten":
		return StageFlatten, true
	case "lower":
		return StageLower, true
	case "constraints":
		return StageConstraints, true
	case "drafts":
		return StageDrafts, true
	}
	return "", false
}

func emitQueued(sink ProgressSink, files []string) {
	if sink == nil {
		return
	}
	for _, file := range files {
		sink.OnEvent(Event{File: file, Stage: StageDecode, Status: StatusQueued})
	}
}

func emitStage(sink ProgressSink, files []string, stage Stage, status Status, err error, elapsed time.Duration) {
	if sink == nil {
		return
	}
	sink.OnEvent(Event{Stage: stage, Status: status, Err: err, Elapsed: elapsed})
	for _, file := range files {
		sink.OnEvent(Event{File: file, Stage: stage, Status: status, Err: err, Elapsed: elapsed})
	}
}
