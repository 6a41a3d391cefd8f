package diag

import "cdsc/internal/source"

type dedupKey struct {
	code Code
	sev  Severity
	file source.FileID
	line uint32
	col  uint32
	home string
	msg  string
}

// DedupReporter wraps another Reporter and suppresses duplicate messages
// with the same code, severity, location, semantic location and text.
type DedupReporter struct {
	next Reporter
	seen map[dedupKey]struct{}
}

// NewDedupReporter returns a Reporter that filters out duplicates while
// forwarding unique messages to the provided reporter.
func NewDedupReporter(next Reporter) *DedupReporter {
	return &DedupReporter{
		next: next,
		seen: make(map[dedupKey]struct{}),
	}
}

func (r *DedupReporter) Report(code Code, sev Severity, loc source.Loc, home, msg string, notes []Note) {
	if r == nil {
		return
	}
	key := dedupKey{
		code: code,
		sev:  sev,
		file: loc.File,
		line: loc.Line,
		col:  loc.Col,
		home: home,
		msg:  msg,
	}
	if _, ok := r.seen[key]; ok {
		return
	}
	r.seen[key] = struct{}{}
	if r.next != nil {
		r.next.Report(code, sev, loc, home, msg, notes)
	}
}
