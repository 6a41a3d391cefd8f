package lower

import (
	"cdsc/internal/csn"
	"cdsc/internal/diag"
	"cdsc/internal/resolve"
)

// absolutizeOnConditions rewrites the on-conditions of unmanaged
// associations on concrete entities into fully qualified comparisons:
// $self becomes the entity name, unqualified source refs get the
// entity-name prefix, target refs stay under the association name.
// Comparisons $self = <assoc>.<back> unroll over the backlink's
// foreign keys. After this a backend needs no scope context: every
// ref reads on its own.
func (l *Lowerer) absolutizeOnConditions() {
	l.model.Definitions.Range(func(_ string, def *csn.Definition) bool {
		if !def.IsConcreteEntity() {
			return true
		}
		def.Elements.Range(func(_ string, el *csn.Element) bool {
			if el.IsUnmanaged() {
				el.On = l.absolutizeOn(def, el, el.On)
			}
			return true
		})
		return true
	})
}

func (l *Lowerer) absolutizeOn(def *csn.Definition, assoc *csn.Element, x csn.Xpr) csn.Xpr {
	loc := assoc.Loc
	if loc.Empty() {
		loc = def.Loc
	}
	scope := resolve.Scope{Def: def, Home: def.HomeElement(assoc.Name), Loc: loc}
	root := []string{def.Name}

	out := make(csn.Xpr, 0, len(x))
	for i := 0; i < len(x); i++ {
		if i+2 < len(x) && x[i+1].IsOp("=") {
			if repl, ok := l.tryBacklink(x[i], x[i+2], scope, assoc, assoc.Name, root); ok {
				out = append(out, repl...)
				i += 2
				continue
			}
		}
		e := x[i]
		switch e.Kind {
		case csn.ExprRef:
			out = append(out, l.absolutizeRef(e, scope, assoc, root))
		case csn.ExprXpr:
			e.Sub = l.absolutizeOn(def, assoc, e.Sub)
			out = append(out, e)
		case csn.ExprFunc, csn.ExprList:
			e.Args = l.absolutizeOn(def, assoc, e.Args)
			out = append(out, e)
		default:
			out = append(out, e)
		}
	}
	return out
}

// absolutizeRef qualifies a single on-condition ref in place: the
// path is rewritten under the same identifier, the token survives.
func (l *Lowerer) absolutizeRef(e csn.Expr, scope resolve.Scope, assoc *csn.Element, root []string) csn.Expr {
	ref := l.model.Refs.Get(e.Ref)
	if ref == nil || len(ref.Steps) == 0 {
		return e
	}
	if isBareSelf(ref) {
		// a bare $self outside a backlink comparison has nothing to compare to
		diag.ReportError(l.rep, diag.OnExpectedBacklink, scope.Loc, scope.Home,
			`"$self" must be compared to a managed association of the target`).Emit()
		return e
	}
	res := l.res.Resolve(e.Ref, scope)
	if !res.Complete || len(res.Links) == 0 {
		return e
	}
	switch {
	case res.Links[0].Elem == assoc:
		// target side is already under the association name
	case ref.Steps[0].ID == "$self":
		l.replaceRoot(e.Ref, root, 1)
	case res.Links[0].Def != nil:
		// already an absolute name
	default:
		l.replaceRoot(e.Ref, root, 0)
	}
	return e
}

// replaceRoot rewrites the path in place: head + steps[skip:]. The
// node version goes up, the cached resolution invalidates itself.
func (l *Lowerer) replaceRoot(id csn.RefID, head []string, skip int) {
	old := l.model.Refs.Get(id).Steps
	steps := make([]csn.RefStep, 0, len(old)-skip+len(head))
	for _, h := range head {
		steps = append(steps, csn.RefStep{ID: h})
	}
	steps = append(steps, old[skip:]...)
	l.model.Refs.Update(id, csn.Ref{Steps: steps})
}
