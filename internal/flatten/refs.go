package flatten

import (
	"cdsc/internal/csn"
	"cdsc/internal/resolve"
)

// collapseModelRefs collapses runs of struct steps in every model
// path: queries, on-conditions, managed-association keys. Which steps
// were structural comes from the resolver cache filled before the
// structs were expanded.
func (f *Flattener) collapseModelRefs() {
	f.model.Definitions.Range(func(_ string, def *csn.Definition) bool {
		f.collapseDefinition(def)
		return true
	})
}

func (f *Flattener) collapseDefinition(def *csn.Definition) {
	if def.Kind == csn.KindUnknown {
		return
	}
	f.collapseElements(def, def.Elements)
	if def.Target != "" {
		f.collapseRelation(def, def.Target, def.Keys, def.On)
	}
	if def.Query != nil {
		f.collapseQuery(def, def.Query)
	}
}

func (f *Flattener) collapseElements(def *csn.Definition, elems *csn.Dict[*csn.Element]) {
	elems.Range(func(_ string, el *csn.Element) bool {
		if el.Target != "" {
			f.collapseRelation(def, el.Target, el.Keys, el.On)
		}
		if el.Elements.Len() > 0 {
			f.collapseElements(def, el.Elements)
		}
		if el.Items != nil && el.Items.Target != "" {
			f.collapseRelation(def, el.Items.Target, el.Items.Keys, el.Items.On)
		}
		return true
	})
}

func (f *Flattener) collapseRelation(def *csn.Definition, targetName string, keys []csn.KeyRef, on csn.Xpr) {
	target, ok := f.model.Definition(targetName)
	if ok {
		for _, k := range keys {
			f.FlattenRefSteps(k.Ref, resolve.Scope{Base: target})
		}
	}
	f.collapseXpr(def, on, resolve.Scope{Def: def})
}

func (f *Flattener) collapseQuery(def *csn.Definition, q *csn.Query) {
	if q == nil {
		return
	}
	if q.Select != nil {
		f.collapseSelect(def, q.Select)
	}
	for _, arg := range q.Args {
		f.collapseQuery(def, arg)
	}
}

func (f *Flattener) collapseSelect(def *csn.Definition, sel *csn.Select) {
	qs := resolve.Scope{Def: def, Select: sel}
	f.collapseFrom(def, sel.From, qs)
	sel.Mixins.Range(func(_ string, mx *csn.Element) bool {
		f.collapseXpr(def, mx.On, qs)
		return true
	})
	for i := range sel.Columns {
		f.collapseExpr(def, &sel.Columns[i], qs)
	}
	f.collapseXpr(def, sel.Where, qs)
	for i := range sel.GroupBy {
		f.collapseExpr(def, &sel.GroupBy[i], qs)
	}
	f.collapseXpr(def, sel.Having, qs)
	for i := range sel.OrderBy {
		f.collapseExpr(def, &sel.OrderBy[i].Expr, qs)
	}
}

func (f *Flattener) collapseFrom(def *csn.Definition, from *csn.From, qs resolve.Scope) {
	if from == nil {
		return
	}
	switch from.Kind {
	case csn.FromRef:
		f.FlattenRefSteps(from.Ref, resolve.Scope{InFrom: true})
	case csn.FromJoin:
		if from.Join != nil {
			for _, arg := range from.Join.Args {
				f.collapseFrom(def, arg, qs)
			}
			f.collapseXpr(def, from.Join.On, qs)
		}
	case csn.FromQuery:
		f.collapseQuery(def, from.Query)
	}
}

func (f *Flattener) collapseXpr(def *csn.Definition, x csn.Xpr, scope resolve.Scope) {
	for i := range x {
		f.collapseExpr(def, &x[i], scope)
	}
}

func (f *Flattener) collapseExpr(def *csn.Definition, e *csn.Expr, scope resolve.Scope) {
	switch e.Kind {
	case csn.ExprRef:
		f.FlattenRefSteps(e.Ref, scope)
	case csn.ExprFunc, csn.ExprList:
		for i := range e.Args {
			f.collapseExpr(def, &e.Args[i], scope)
		}
	case csn.ExprXpr:
		f.collapseXpr(def, e.Sub, scope)
	case csn.ExprQuery:
		f.collapseQuery(def, e.Query)
	}
}

// FlattenRefSteps collapses step runs through struct elements into
// single flat steps joined with the naming-mode delimiter. Association
// steps stay separate and keep their args and filters. A rewritten
// node gets a new version in the arena.
func (f *Flattener) FlattenRefSteps(id csn.RefID, scope resolve.Scope) {
	if id == csn.NoRefID {
		return
	}
	res := f.res.Resolve(id, scope)
	if !res.Complete {
		return
	}
	ref := f.model.Refs.Get(id)
	if ref == nil || len(ref.Steps) < 2 || len(res.Links) != len(ref.Steps) {
		return
	}

	out := make([]csn.RefStep, 0, len(ref.Steps))
	run := "" // accumulated flat prefix of a struct run
	changed := false
	for i := range ref.Steps {
		step := ref.Steps[i]
		if run != "" {
			step.ID = run + f.delim + step.ID
			run = ""
			changed = true
		}
		if i < len(ref.Steps)-1 && isStructLink(res.Links[i]) {
			run = step.ID
			continue
		}
		out = append(out, step)
	}
	if changed {
		f.model.Refs.Update(id, csn.Ref{Steps: out})
	}
}

func isStructLink(l resolve.Link) bool {
	return l.Elem != nil && l.Elem.Target == "" && l.Elem.Elements.Len() > 0
}
