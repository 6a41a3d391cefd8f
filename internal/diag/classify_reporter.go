package diag

import "cdsc/internal/source"

// ClassifyingReporter reclassifies severity at emission time against
// the central registry. Phases request a severity, the registry and
// user overrides decide what the consumer actually gets. Overrides
// live in an explicit config value, not in global state.
type ClassifyingReporter struct {
	next         Reporter
	module       string
	overrides    map[Code]Severity
	downgradable bool
}

// NewClassifyingReporter builds the reclassifying wrapper for the
// consumer module ("to.sql", "to.hdbcds", "for.odata").
func NewClassifyingReporter(next Reporter, module string, overrides map[Code]Severity, downgradable bool) *ClassifyingReporter {
	return &ClassifyingReporter{
		next:         next,
		module:       module,
		overrides:    overrides,
		downgradable: downgradable,
	}
}

func (r *ClassifyingReporter) Report(code Code, sev Severity, loc source.Loc, home, msg string, notes []Note) {
	if r == nil || r.next == nil {
		return
	}
	effective := ReclassifiedSeverity(code, sev, r.overrides, r.module, r.downgradable)
	r.next.Report(code, effective, loc, home, msg, notes)
}

// Effective returns the severity a code will be emitted with through
// this wrapper. Phases use it when a transformation depends on the
// final severity (the LargeString surrogate for arrays, say).
func (r *ClassifyingReporter) Effective(code Code, requested Severity) Severity {
	if r == nil {
		return requested
	}
	return ReclassifiedSeverity(code, requested, r.overrides, r.module, r.downgradable)
}
