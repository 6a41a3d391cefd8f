package flatten

import (
	"cdsc/internal/csn"
	"cdsc/internal/diag"
	"cdsc/internal/resolve"
)

// Flattener brings the model into flat, renderable shape: final base
// types, expanded structs, materialized foreign keys, collapsed path
// steps, and surrogates for types the target cannot handle.
type Flattener struct {
	model *csn.Model
	res   *resolve.Resolver
	rep   diag.Reporter
	opts  *csn.Options
	delim string
}

// New builds a flattener over the model. The resolver must be the one
// that resolved the model: step collapsing reads its cache.
func New(model *csn.Model, res *resolve.Resolver, rep diag.Reporter, opts *csn.Options) *Flattener {
	return &Flattener{
		model: model,
		res:   res,
		rep:   rep,
		opts:  opts,
		delim: opts.Delimiter(),
	}
}

// FlattenModel runs the flattening phases. The order is fixed:
//
//  1. final base types (alias chains);
//  2. model resolution: the cache fills with links BEFORE expansion,
//     step collapsing uses them to tell which steps were structural;
//  3. collapsing step runs into flat names;
//  4. expanding structs into flat elements;
//  5. materializing managed associations' foreign keys;
//  6. surrogates for arrays and spatial types.
//
// Calling it again on an already flat model changes nothing.
func (f *Flattener) FlattenModel() {
	f.model.Definitions.Range(func(_ string, def *csn.Definition) bool {
		f.finalizeDefinitionTypes(def)
		return true
	})
	f.res.ResolveModel()
	f.collapseModelRefs()
	f.model.Definitions.Range(func(_ string, def *csn.Definition) bool {
		f.flattenDefinition(def)
		return true
	})
	f.model.Definitions.Range(func(_ string, def *csn.Definition) bool {
		f.materializeForeignKeys(def)
		return true
	})
	f.downgradeUnsupported()
}

// effective returns the code's final severity after consumer
// reclassification; without a classifying reporter, the requested one.
func (f *Flattener) effective(code diag.Code, requested diag.Severity) diag.Severity {
	if c, ok := f.rep.(*diag.ClassifyingReporter); ok {
		return c.Effective(code, requested)
	}
	return requested
}
