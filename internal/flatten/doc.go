// Package flatten brings the model into a flat shape fit for tabular
// rendering.
//
// # Phases
//
// FlattenModel runs five phases in a fixed order: final base types
// (alias chains carried onto elements), collapsing struct runs in path
// steps, expanding structs into flat leaves, materializing managed
// associations' foreign keys, and surrogates for arrays and spatial
// types.
//
// # Resolver cache
//
// Step collapsing relies on the resolver cache filled before
// expansion: only it knows which steps passed through structs.
// Rewritten paths get new versions in the arena, so later phases
// resolve them afresh against the now-flat model.
//
// # Idempotence
//
// Running again over a flat model changes nothing: no structs, no
// runs, and materialized keys are marked with GeneratedName.
package flatten
