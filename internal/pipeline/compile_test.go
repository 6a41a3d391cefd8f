package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

const zooCSN = `{
  "definitions": {
    "zoo.Keepers": {
      "kind": "entity",
      "elements": {
        "ID": {"key": true, "type": "cds.Integer"},
        "name": {"type": "cds.String"}
      }
    }
  }
}`

func writeInput(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func collectEvents(ch chan Event) []Event {
	close(ch)
	out := make([]Event, 0, len(ch))
	for ev := range ch {
		out = append(out, ev)
	}
	return out
}

func TestCompileEmitsStageEvents(t *testing.T) {
	path := writeInput(t, "zoo.csn.json", zooCSN)
	events := make(chan Event, 256)

	res, err := Compile(context.Background(), &CompileRequest{
		Paths:    []string{path},
		Progress: ChannelSink{Ch: events},
	})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if res.Compile == nil || res.Compile.Bag.HasErrors() {
		t.Fatal("expected a clean compile")
	}

	got := collectEvents(events)
	if len(got) == 0 {
		t.Fatal("no progress events")
	}
	if got[0].Status != StatusQueued || got[0].File != path {
		t.Errorf("first event = %+v, want queued %s", got[0], path)
	}
	last := got[len(got)-1]
	if last.Status != StatusDone || last.Stage != StageDrafts {
		t.Errorf("last event = %+v, want drafts done", last)
	}

	// Every stage went through working at least once.
	seen := map[Stage]bool{}
	for _, ev := range got {
		if ev.Status == StatusWorking {
			seen[ev.Stage] = true
		}
	}
	for _, stage := range []Stage{StageDecode, StageResolve, StageFlatten, StageLower, StageConstraints, StageDrafts} {
		if !seen[stage] {
			t.Errorf("stage %s never reported working", stage)
		}
		if !res.Timings.Has(stage) {
			t.Errorf("stage %s has no recorded duration", stage)
		}
	}
}

func TestCompileReportsDiagnosticErrorsAsStatus(t *testing.T) {
	path := writeInput(t, "broken.csn.json", `{"definitions": {`)
	events := make(chan Event, 256)

	res, err := Compile(context.Background(), &CompileRequest{
		Paths:    []string{path},
		Progress: ChannelSink{Ch: events},
	})
	if err != nil {
		t.Fatalf("diagnostics must not surface as errors: %v", err)
	}
	if res.Compile == nil || !res.Compile.Bag.HasErrors() {
		t.Fatal("expected diagnostics in the bag")
	}

	got := collectEvents(events)
	last := got[len(got)-1]
	if last.Status != StatusError {
		t.Errorf("last event = %+v, want error status", last)
	}
}

func TestCompileRejectsEmptyRequest(t *testing.T) {
	if _, err := Compile(context.Background(), nil); err == nil {
		t.Error("nil request should fail")
	}
	if _, err := Compile(context.Background(), &CompileRequest{}); err == nil {
		t.Error("empty path list should fail")
	}
}
