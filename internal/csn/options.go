package csn

import (
	"fmt"

	"cdsc/internal/diag"
)

// NamingMode sets the database naming style and with it the flat-path
// delimiter: plain glues with "_", quoted and hdbcds keep ".".
type NamingMode uint8

const (
	NamingPlain NamingMode = iota
	NamingQuoted
	NamingHdbcds
)

func (m NamingMode) String() string {
	switch m {
	case NamingPlain:
		return "plain"
	case NamingQuoted:
		return "quoted"
	case NamingHdbcds:
		return "hdbcds"
	}
	return "unknown"
}

// Delimiter returns the mode's flat-name delimiter.
func (m NamingMode) Delimiter() string {
	if m == NamingPlain {
		return "_"
	}
	return "."
}

// ParseNamingMode parses the naming value from configuration.
func ParseNamingMode(s string) (NamingMode, error) {
	switch s {
	case "plain", "":
		return NamingPlain, nil
	case "quoted":
		return NamingQuoted, nil
	case "hdbcds":
		return NamingHdbcds, nil
	}
	return NamingPlain, fmt.Errorf("unknown naming mode %q (must be plain, quoted or hdbcds)", s)
}

// Target is the backend the model is prepared for.
type Target uint8

const (
	TargetSQL Target = iota
	TargetHdbcds
)

func (t Target) String() string {
	switch t {
	case TargetSQL:
		return "sql"
	case TargetHdbcds:
		return "hdbcds"
	}
	return "unknown"
}

// Module returns the consumer name for the message registry.
func (t Target) Module() string {
	switch t {
	case TargetHdbcds:
		return "to.hdbcds"
	default:
		return "to.sql"
	}
}

// ParseTarget parses the target value from configuration.
func ParseTarget(s string) (Target, error) {
	switch s {
	case "sql", "":
		return TargetSQL, nil
	case "hdbcds":
		return TargetHdbcds, nil
	}
	return TargetSQL, fmt.Errorf("unknown target %q (must be sql or hdbcds)", s)
}

// Options are the semantic compilation settings. Passed into every
// phase as an explicit value; the compiler has no global state.
type Options struct {
	Naming NamingMode
	Target Target

	// SeverityOverrides are user severity overrides by message code.
	// The registry applies them subject to the configurable mode.
	SeverityOverrides map[diag.Code]diag.Severity
	// DowngradableErrors enables lowering deprecated codes (legacy
	// model-migration mode).
	DowngradableErrors bool

	Deprecated map[string]bool
	Beta       map[string]bool

	// LegacyDraftSuffix: draft shadows are named <name>_drafts instead
	// of <name>.drafts.
	LegacyDraftSuffix bool
	// KeepVirtualInDrafts keeps virtual elements in draft shadows.
	KeepVirtualInDrafts bool
}

// Delimiter returns the flat-name delimiter.
func (o *Options) Delimiter() string {
	if o == nil {
		return "_"
	}
	return o.Naming.Delimiter()
}

// Module returns the consumer name for the message registry.
func (o *Options) Module() string {
	if o == nil {
		return "to.sql"
	}
	return o.Target.Module()
}

// DeprecatedEnabled reports whether a named deprecated toggle is on.
func (o *Options) DeprecatedEnabled(name string) bool {
	return o != nil && o.Deprecated[name]
}

// BetaEnabled reports whether a named beta toggle is on.
func (o *Options) BetaEnabled(name string) bool {
	return o != nil && o.Beta[name]
}
