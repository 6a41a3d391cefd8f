package observ

import (
	"strings"
	"testing"
)

func TestTimerTrack(t *testing.T) {
	tm := NewTimer()
	done := tm.Track("decode")
	done("files=2")
	tm.Track("flatten")("")

	report := tm.Report()
	if len(report.Phases) != 2 {
		t.Fatalf("expected 2 phases, got %d", len(report.Phases))
	}
	if report.Phases[0].Name != "decode" || report.Phases[0].Note != "files=2" {
		t.Errorf("unexpected first phase: %+v", report.Phases[0])
	}
	if report.Phases[1].Name != "flatten" {
		t.Errorf("unexpected second phase: %+v", report.Phases[1])
	}

	summary := tm.Summary()
	if !strings.Contains(summary, "decode") || !strings.Contains(summary, "total") {
		t.Errorf("summary missing phases:\n%s", summary)
	}
	if !strings.Contains(summary, "files=2") {
		t.Errorf("summary missing note:\n%s", summary)
	}
}

func TestTimerNilSafe(t *testing.T) {
	var tm *Timer
	// a nil timer must not panic: that is how the driver disables timings
	tm.Track("decode")("note")
	if got := tm.Report(); len(got.Phases) != 0 || got.TotalMS != 0 {
		t.Fatalf("nil timer produced phases: %+v", got)
	}
}
