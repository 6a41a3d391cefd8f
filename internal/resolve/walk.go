package resolve

import (
	"fmt"

	"cdsc/internal/csn"
	"cdsc/internal/diag"
	"cdsc/internal/source"
)

// ResolveModel resolves every model path and fills the cache: type
// refs, managed-association keys, on-conditions, include lists and
// queries. Errors go to the reporter, the walk does not stop.
func (r *Resolver) ResolveModel() {
	r.model.Definitions.Range(func(_ string, def *csn.Definition) bool {
		r.walkDefinition(def)
		return true
	})
}

func (r *Resolver) walkDefinition(def *csn.Definition) {
	if def.Kind == csn.KindUnknown {
		// Opaque carry-over: the body is not interpreted
		return
	}
	home := def.Home()
	if def.TypeRef != csn.NoRefID {
		r.Resolve(def.TypeRef, Scope{Home: home, Loc: def.Loc})
	}
	for _, inc := range def.Includes {
		if _, ok := r.model.Definition(inc); !ok {
			diag.ReportError(r.rep, diag.RefUndefinedDef, def.Loc, home,
				fmt.Sprintf("no definition named %q (include)", inc)).Emit()
		}
	}
	if def.Target != "" {
		// typedef of an association
		r.walkRelation(def, def.Target, def.Keys, def.On, nil, home, def.Loc)
	}
	r.walkElements(def, nil, def.Elements)
	if def.Items != nil {
		r.walkElement(def, []string{"items"}, def.Items, nil)
	}
	def.Params.Range(func(name string, p *csn.Element) bool {
		r.walkElement(def, []string{name}, p, nil)
		return true
	})
	if def.Returns != nil {
		r.walkElement(def, []string{"returns"}, def.Returns, nil)
	}
	if def.Query != nil {
		r.walkQuery(def, def.Query)
	}
}

func (r *Resolver) walkElements(def *csn.Definition, path []string, elems *csn.Dict[*csn.Element]) {
	var local *csn.Dict[*csn.Element]
	if len(path) > 0 {
		// nested struct: the siblings form the local scope
		local = elems
	}
	elems.Range(func(name string, el *csn.Element) bool {
		r.walkElement(def, append(path, name), el, local)
		return true
	})
}

func (r *Resolver) walkElement(def *csn.Definition, path []string, el *csn.Element, local *csn.Dict[*csn.Element]) {
	home := def.HomeElement(path...)
	loc := el.Loc
	if loc.Empty() {
		loc = def.Loc
	}
	if el.TypeRef != csn.NoRefID {
		r.Resolve(el.TypeRef, Scope{Home: home, Loc: loc})
	}
	if el.Target != "" {
		r.walkRelation(def, el.Target, el.Keys, el.On, local, home, loc)
	}
	if el.Elements.Len() > 0 {
		r.walkElements(def, path, el.Elements)
	}
	if el.Items != nil {
		r.walkElement(def, path, el.Items, local)
	}
}

// walkRelation resolves an association's target, keys and
// on-condition. Keys live in the target's elements, the on-condition
// in the source definition's (step zero being the association itself,
// a sibling, or $self); for a nested association the struct siblings
// take priority.
func (r *Resolver) walkRelation(def *csn.Definition, targetName string, keys []csn.KeyRef, on csn.Xpr, local *csn.Dict[*csn.Element], home string, loc source.Loc) {
	target, ok := r.model.Definition(targetName)
	if !ok {
		diag.ReportError(r.rep, diag.RefUndefinedDef, loc, home,
			fmt.Sprintf("no definition named %q (association target)", targetName)).Emit()
		return
	}
	for _, k := range keys {
		r.Resolve(k.Ref, Scope{Base: target, Home: home, Loc: loc})
	}
	if len(on) > 0 {
		r.walkXpr(def, on, Scope{Def: def, Elems: local, Home: home, Loc: loc})
	}
}

func (r *Resolver) walkQuery(def *csn.Definition, q *csn.Query) {
	if q == nil {
		return
	}
	if q.Select != nil {
		r.walkSelect(def, q.Select)
	}
	for _, arg := range q.Args {
		r.walkQuery(def, arg)
	}
}

func (r *Resolver) walkSelect(def *csn.Definition, sel *csn.Select) {
	home := def.Home()
	loc := def.Loc
	r.walkFrom(def, sel.From, home, loc)

	qs := Scope{
		Def:    def,
		Select: sel,
		Base:   r.primaryDef(sel.From),
		Home:   home,
		Loc:    loc,
	}
	sel.Mixins.Range(func(_ string, mx *csn.Element) bool {
		if len(mx.On) > 0 {
			r.walkXpr(def, mx.On, qs)
		}
		return true
	})
	for i := range sel.Columns {
		r.walkExpr(def, &sel.Columns[i], qs)
	}
	r.walkXpr(def, sel.Where, qs)
	for i := range sel.GroupBy {
		r.walkExpr(def, &sel.GroupBy[i], qs)
	}
	r.walkXpr(def, sel.Having, qs)
	for i := range sel.OrderBy {
		r.walkExpr(def, &sel.OrderBy[i].Expr, qs)
	}
	r.walkJoinOn(def, sel.From, qs)
}

func (r *Resolver) walkFrom(def *csn.Definition, from *csn.From, home string, loc source.Loc) {
	if from == nil {
		return
	}
	switch from.Kind {
	case csn.FromRef:
		r.Resolve(from.Ref, Scope{InFrom: true, Home: home, Loc: loc})
	case csn.FromJoin:
		if from.Join != nil {
			for _, arg := range from.Join.Args {
				r.walkFrom(def, arg, home, loc)
			}
		}
	case csn.FromQuery:
		r.walkQuery(def, from.Query)
	}
}

// walkJoinOn resolves join on-conditions once all query sources are
// known.
func (r *Resolver) walkJoinOn(def *csn.Definition, from *csn.From, qs Scope) {
	if from == nil || from.Kind != csn.FromJoin || from.Join == nil {
		return
	}
	for _, arg := range from.Join.Args {
		r.walkJoinOn(def, arg, qs)
	}
	r.walkXpr(def, from.Join.On, qs)
}

func (r *Resolver) primaryDef(from *csn.From) *csn.Definition {
	if from == nil {
		return nil
	}
	p := from.Primary()
	if p == nil || p.Kind != csn.FromRef {
		return nil
	}
	return fromDef(r.model, p)
}

func (r *Resolver) walkXpr(def *csn.Definition, x csn.Xpr, scope Scope) {
	for i := range x {
		r.walkExpr(def, &x[i], scope)
	}
}

func (r *Resolver) walkExpr(def *csn.Definition, e *csn.Expr, scope Scope) {
	switch e.Kind {
	case csn.ExprRef:
		res := r.Resolve(e.Ref, scope)
		r.walkStepFilters(def, e.Ref, res, scope)
	case csn.ExprFunc, csn.ExprList:
		for i := range e.Args {
			r.walkExpr(def, &e.Args[i], scope)
		}
	case csn.ExprXpr:
		r.walkXpr(def, e.Sub, scope)
	case csn.ExprQuery:
		r.walkQuery(def, e.Query)
	}
}

// walkStepFilters resolves path step arguments and filters. Arguments
// evaluate in the outer scope, a filter in its step's target elements.
func (r *Resolver) walkStepFilters(def *csn.Definition, id csn.RefID, res *Resolution, scope Scope) {
	ref := r.model.Refs.Get(id)
	if ref == nil {
		return
	}
	for i := range ref.Steps {
		step := &ref.Steps[i]
		if step.Args == nil && step.Where == nil {
			continue
		}
		step.Args.Range(func(_ string, arg csn.Expr) bool {
			r.walkExpr(def, &arg, scope)
			return true
		})
		if step.Where == nil || i >= len(res.Links) {
			continue
		}
		target := res.Links[i].TargetDef(r.model)
		if target == nil {
			continue
		}
		r.walkXpr(def, step.Where, Scope{Def: target, Home: scope.Home, Loc: scope.Loc})
	}
}
