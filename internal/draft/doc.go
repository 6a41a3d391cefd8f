// Package draft spawns draft shadow entities for roots annotated with
// @odata.draft.enabled.
//
// # Subtree collection
//
// A depth-first walk follows compositions from the root; plain
// associations do not cross the draft boundary. The walk tolerates
// cycles and skips targets outside services. A second draft root in
// the subtree is a nesting error: a draft cannot contain another
// draft.
//
// # Two phases
//
// First every shadow of a root materializes: a copy of the elements
// (virtual ones dropped, notNull kept only on keys and on-conditions)
// plus the IsActiveEntity, HasActiveEntity, HasDraftEntity service
// fields and the DraftAdministrativeData link with its explicit FK
// element. A separate pass then redirects links between shadows of the
// same root onto the sibling shadows: a redirect target can
// materialize after its source, so the phases do not merge.
//
// # Administrative data
//
// DraftAdministrativeData is created once per service on first use; an
// existing entity with that name is reused. Name collisions at any
// phase are reported and the single step skipped without aborting the
// rest of the generation.
package draft
