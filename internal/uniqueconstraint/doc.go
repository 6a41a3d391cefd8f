// Package uniqueconstraint derives table-level unique constraints from
// @assert.unique.<name> annotations.
//
// # Preparation
//
// Prepare collects the annotations of concrete entities, checks every
// path against the flat model and stores surviving constraints in the
// derived TableConstraints.Unique dict. A path is rejected when it
// crosses an array or to-many element, an association with an
// on-condition, goes past a managed association's foreign keys, or
// ends in a LOB or spatial type. A repeated flat leaf inside one
// constraint is an error and drops the whole constraint; two
// constraints of the same entity with an identical ordered leaf list
// are a duplicate warning, both stay in the dict.
//
// # Rewriting
//
// Rewrite expands paths ending in an association over its foreign
// keys: sql naming substitutes flat glued names (author_id), hdbcds
// the nested "keys after ref" shape (author.id). For the hdbcds target
// every constraint additionally gets a secondary-index DDL fragment
// with the final columns.
//
// # Place in the pipeline
//
// The generator runs strictly after flattening: greedy step merging
// ("s.x" to "s_x") relies on the flat element dict, and key expansion
// on the GeneratedName fields flattening filled in.
package uniqueconstraint
