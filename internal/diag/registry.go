package diag

import "slices"

// Configurable says when a code's severity may be lowered by overrides.
type Configurable uint8

const (
	// ConfigurableNever: the code's severity is fixed, overrides are ignored.
	ConfigurableNever Configurable = iota
	// ConfigurableAlways: the code may be overridden by any consumer.
	ConfigurableAlways
	// ConfigurableDeprecated: lowering is allowed only with the
	// downgradable-errors option on (legacy model-migration mode).
	ConfigurableDeprecated
	// ConfigurableModules: the code is overridable only for consumers
	// listed in Entry.Modules.
	ConfigurableModules
)

func (c Configurable) String() string {
	switch c {
	case ConfigurableNever:
		return "never"
	case ConfigurableAlways:
		return "always"
	case ConfigurableDeprecated:
		return "deprecated"
	case ConfigurableModules:
		return "modules"
	}
	return "unknown"
}

// Entry describes a code's registration in the central message registry.
type Entry struct {
	// Default is the severity the code classifies to without overrides.
	// The severity a pass requests is only a fallback for unregistered
	// codes.
	Default Severity
	// Mode controls whether this code's severity may be lowered.
	Mode Configurable
	// Modules lists the consumers allowed to override
	// (ConfigurableModules only).
	Modules []string
	// ErrorFor lists the consumers for which the code is always an
	// error, whatever the overrides say.
	ErrorFor []string
}

// registry is the single process-wide code table. Read-only after init.
var registry = map[Code]Entry{
	RefUndefinedDef:     {Default: SevError, Mode: ConfigurableNever},
	RefUndefinedElement: {Default: SevError, Mode: ConfigurableNever},
	RefUndefinedSource:  {Default: SevError, Mode: ConfigurableNever},
	RefCyclic:           {Default: SevError, Mode: ConfigurableNever},

	TypeCyclic:   {Default: SevError, Mode: ConfigurableNever},
	TypeMissing:  {Default: SevWarning, Mode: ConfigurableAlways},
	DefDuplicate: {Default: SevError, Mode: ConfigurableNever},

	// Not every backend can do arrays and spatial types: for to.sql the
	// code may be lowered (the element collapses into a LargeString
	// surrogate), every other consumer always gets an error.
	TypeUnsupportedArray:   {Default: SevError, Mode: ConfigurableModules, Modules: []string{"to.sql"}},
	TypeUnsupportedSpatial: {Default: SevError, Mode: ConfigurableModules, Modules: []string{"to.sql"}},

	FlattenDuplicate: {Default: SevError, Mode: ConfigurableNever},

	ExistsExpectedAssoc: {Default: SevError, Mode: ConfigurableNever},
	OnExpectedBacklink:  {Default: SevError, Mode: ConfigurableNever},

	ConstraintInvalidValue:    {Default: SevError, Mode: ConfigurableDeprecated},
	ConstraintInvalidPath:     {Default: SevError, Mode: ConfigurableDeprecated},
	ConstraintUnsupportedType: {Default: SevError, Mode: ConfigurableNever},
	ConstraintDuplicatePath:   {Default: SevError, Mode: ConfigurableNever},
	ConstraintDuplicate:       {Default: SevWarning, Mode: ConfigurableAlways},

	DraftNestedRoot:    {Default: SevError, Mode: ConfigurableNever},
	DraftNameCollision: {Default: SevError, Mode: ConfigurableNever},

	CSNInvalidJSON: {Default: SevError, Mode: ConfigurableNever},
	// An unknown kind is carried as an opaque definition; for to.hdbcds
	// it is always an error - the backend cannot render it.
	CSNUnknownKind:  {Default: SevWarning, Mode: ConfigurableAlways, ErrorFor: []string{"to.hdbcds"}},
	CSNInvalidRef:   {Default: SevError, Mode: ConfigurableNever},
	CSNInvalidQuery: {Default: SevError, Mode: ConfigurableNever},

	IOLoadFileError: {Default: SevError, Mode: ConfigurableNever},
	ObsTimings:      {Default: SevInfo, Mode: ConfigurableNever},
}

// Registered returns the registry entry for a code.
func Registered(code Code) (Entry, bool) {
	e, ok := registry[code]
	return e, ok
}

// configurableFor checks whether module may override the code.
func (e Entry) configurableFor(module string, downgradable bool) bool {
	switch e.Mode {
	case ConfigurableAlways:
		return true
	case ConfigurableDeprecated:
		return downgradable
	case ConfigurableModules:
		return slices.Contains(e.Modules, module)
	default:
		return false
	}
}

// ReclassifiedSeverity computes the final message severity for a consumer.
//
// Rule order:
//  1. registry default is Error and the code is not overridable for module: Error;
//  2. module is in ErrorFor: Error;
//  3. a user override exists: the override;
//  4. otherwise the registry default; for unregistered codes, requested.
func ReclassifiedSeverity(code Code, requested Severity, overrides map[Code]Severity, module string, downgradable bool) Severity {
	entry, registered := Registered(code)
	if registered {
		if entry.Default == SevError && !entry.configurableFor(module, downgradable) {
			return SevError
		}
		if slices.Contains(entry.ErrorFor, module) {
			return SevError
		}
	}
	if sev, ok := overrides[code]; ok {
		return sev
	}
	if registered {
		return entry.Default
	}
	return requested
}
