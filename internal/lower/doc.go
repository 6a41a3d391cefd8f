// Package lower rewrites the flattened model's queries and associations
// into forms a relational backend can handle.
//
// # Exists
//
// An `exists <path>` predicate lowers into a correlated subquery
// `exists (SELECT 1 as dummy FROM <target> AS <alias> WHERE <predicate>)`.
// A pre-pass folds the association chain after exists into step filters
// (exists a.b becomes exists a[exists b]), so materialization always
// deals with a path to a single association. Generated tokens are
// marked and the pre-pass does not touch them again.
//
// The join predicate of a managed association is one comparison per
// foreign key in declared order; for an unmanaged one it is the
// rewritten on-condition: target refs reroot onto the subquery alias,
// source refs onto the outer root, and a $self = <assoc>.<back>
// backlink expands over the backlink's foreign keys. The association
// step's filter joins the predicate with and.
//
// # Worklist
//
// Nested exists from the WHEREs of generated subqueries and bracketed
// streams are processed by a loop over a list of unprocessed streams,
// not by recursion: nesting depth does not grow the stack, every step
// strictly shrinks the number of unprocessed exists tokens, and N
// tokens cost exactly N materializations.
//
// # On-condition absolutization
//
// After exists lowering, the on-conditions of entity unmanaged
// associations are rewritten into fully qualified comparisons: $self
// becomes the entity name, source refs gain it as a prefix, target
// refs stay under the association name. Exists lowers first: its
// rewriting reads on-conditions in their original, unabsolutized form.
package lower
