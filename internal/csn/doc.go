// Package csn defines the in-memory model for CSN documents and its JSON
// interchange.
//
// # Purpose
//
//   - Provide the shared, mutable model that every compiler phase reads and
//     rewrites in place: definitions, elements, queries, paths.
//   - Decode CSN JSON into that model without losing declaration order, and
//     encode the transformed model back deterministically.
//   - Own the RefArena: the single store for all paths in the model.
//
// # Data model
//
// Model holds definitions in an insertion-ordered Dict keyed by their
// absolute dotted name. Definition is a closed union over kinds with a Kind
// discriminant; a view is an entity with a non-nil Query. Elements nest the
// same way CSN nests them: structured elements carry sub-elements, arrayed
// elements carry Items, associations carry Target plus either Keys (managed)
// or an On condition (unmanaged).
//
// Conditions are flat token streams (Xpr), mirroring CSN's "xpr" arrays:
// references, literals and operator tokens interleaved, with nested streams
// for parenthesised groups.
//
// # Paths and versions
//
// All paths live in the RefArena and are addressed by RefID. IDs are
// 1-based, NoRefID is the null reference. Every node carries a version
// counter; rewriting phases bump it (Update does so automatically), and the
// resolver's cache keys on (id, version), so stale resolutions are never
// served. Deep copies re-allocate every nested ref; see clone.go.
//
// # Interchange
//
// decode.go walks JSON tokens directly instead of unmarshalling into maps:
// the order of definitions, elements and annotations is part of the model's
// semantics. Identifiers are NFC-normalised and canonicalised through the
// interner, so equal names from different files share one string value.
// Definitions with an unknown kind are carried verbatim (csn-unknown-kind)
// rather than dropped. encode.go writes the model back in dictionary order;
// numbers survive as json.Number without reformatting.
package csn
