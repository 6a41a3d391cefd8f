// Package resolve binds model paths to definitions and elements.
//
// # Scopes
//
// A path's step zero is looked up in descending priority: query
// sources (by alias), mixins, the local scope (struct siblings for
// nested associations), the starting scope's elements (Base or Def,
// including $self and $projection), then absolute definition names.
// Every later step is a member: an element of the association's target
// or of a nested struct, following chains of named types.
//
// # Error recovery
//
// A missing step reports ref-undefined-* and cuts the Links chain at
// the last successful step; Complete stays false and the model walk
// continues. Passes must skip incomplete paths silently, the message
// has already been issued here.
//
// # Cache
//
// Results are cached by path ID and arena node version: a pass that
// rewrites a path through Update or Bump voids the entry without a
// separate invalidation protocol. Snapshot hands the cache out as a
// deterministic list for cdsc inspect.
package resolve
