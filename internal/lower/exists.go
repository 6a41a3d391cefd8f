package lower

import (
	"fmt"
	"strings"

	"cdsc/internal/csn"
	"cdsc/internal/diag"
	"cdsc/internal/resolve"
)

// leftover is one unprocessed token stream of the worklist loop: the
// WHEREs of generated subqueries and nested bracketed streams land
// here. A loop instead of recursion: exists nesting depth does not grow
// the stack, and N exists tokens cost exactly N materializations.
type leftover struct {
	x   *csn.Xpr
	ctx existsCtx
}

// nestStream is the pre-pass over one stream: an association chain
// after exists folds into step filters before any materialization. It
// triggers on user tokens only: generated ones carry Generated and are
// not processed again.
func (l *Lowerer) nestStream(x csn.Xpr, scope resolve.Scope) {
	for i := range x {
		e := &x[i]
		switch e.Kind {
		case csn.ExprOp:
			if e.Op == "exists" && !e.Generated && i+1 < len(x) && x[i+1].Kind == csn.ExprRef {
				l.nestExistsTail(x[i+1].Ref, scope)
			}
		case csn.ExprXpr:
			l.nestStream(e.Sub, scope)
		case csn.ExprFunc, csn.ExprList:
			l.nestStream(e.Args, scope)
		}
	}
}

// nestExistsTail folds the path after the first association into its
// step filter as a nested exists: exists a.b (a being an association)
// becomes exists a[exists b]. The tail folds recursively, so a chain of
// any length settles into nested filters and materialization always
// sees a path ending in a single association. Calling it on an already
// folded path changes nothing.
func (l *Lowerer) nestExistsTail(id csn.RefID, scope resolve.Scope) {
	res := l.res.Resolve(id, scope)
	if !res.Complete {
		return
	}
	steps := l.model.Refs.Get(id).Steps
	idx := firstAssocLink(res)
	if idx < 0 || idx >= len(steps)-1 {
		return
	}
	head := make([]csn.RefStep, idx+1)
	copy(head, steps[:idx+1])
	rest := make([]csn.RefStep, len(steps)-idx-1)
	copy(rest, steps[idx+1:])

	restID := l.model.Refs.Allocate(csn.Ref{Steps: rest})
	gen := csn.OpExpr("exists")
	gen.Generated = true
	head[idx].Where = csn.And(head[idx].Where, csn.Xpr{gen, csn.RefExpr(restID)})
	l.model.Refs.Update(id, csn.Ref{Steps: head})

	target := res.Links[idx].TargetDef(l.model)
	if target == nil {
		return
	}
	l.nestExistsTail(restID, resolve.Scope{Base: target, Home: scope.Home, Loc: scope.Loc})
}

func firstAssocLink(res *resolve.Resolution) int {
	for i, link := range res.Links {
		if link.Elem != nil && link.Elem.IsAssociation() {
			return i
		}
	}
	return -1
}

// processExists rewrites one stream: every `exists <path>` pair
// becomes `exists (subquery)`. Nested streams (brackets, function
// arguments, the WHEREs of fresh subqueries) are not processed in
// place but pushed onto work.
func (l *Lowerer) processExists(x *csn.Xpr, ctx existsCtx, work *[]leftover) {
	if len(*x) == 0 {
		return
	}
	out := make(csn.Xpr, 0, len(*x))
	for i := 0; i < len(*x); i++ {
		e := (*x)[i]
		if e.IsOp("exists") && i+1 < len(*x) && (*x)[i+1].Kind == csn.ExprRef {
			sub, ok := l.materializeExists(ctx, (*x)[i+1].Ref, work)
			i++
			if !ok {
				// diagnostic reported, the pair is dropped from the stream
				continue
			}
			out = append(out, e, csn.Expr{Kind: csn.ExprQuery, Query: sub, Generated: true})
			continue
		}
		out = append(out, e)
	}
	*x = out
	for i := range *x {
		e := &(*x)[i]
		switch e.Kind {
		case csn.ExprXpr:
			*work = append(*work, leftover{x: &e.Sub, ctx: ctx})
		case csn.ExprFunc, csn.ExprList:
			*work = append(*work, leftover{x: (*csn.Xpr)(&e.Args), ctx: ctx})
		case csn.ExprQuery:
			// a user subquery lowers as an ordinary query; the WHEREs of
			// generated ones are already on work
			if !e.Generated {
				l.lowerQuery(ctx.def, e.Query)
			}
		}
	}
}

// materializeExists builds the correlated subquery for one exists
// path: SELECT 1 as dummy FROM <target> AS <alias> WHERE
// <join predicate [and step filter]>.
func (l *Lowerer) materializeExists(ctx existsCtx, id csn.RefID, work *[]leftover) (*csn.Query, bool) {
	scope := l.queryScope(ctx)
	// filters on user paths may have brought an unfolded chain
	l.nestExistsTail(id, scope)
	res := l.res.Resolve(id, scope)
	if !res.Complete {
		return nil, false
	}
	final, _ := res.Final()
	assoc := final.Elem
	if assoc == nil || !assoc.IsAssociation() {
		ref := l.model.Refs.Get(id)
		diag.ReportError(l.rep, diag.ExistsExpectedAssoc, refLoc(ctx.def), ctx.def.Home(),
			fmt.Sprintf("exists path %q must end in an association or composition", ref.Path())).Emit()
		return nil, false
	}
	target, ok := l.model.Definition(assoc.Target)
	if !ok {
		// association target does not exist: reported during resolution
		return nil, false
	}

	alias := uniqueAlias(ctx.taken, assoc.Name)

	// The access path to the association from the outer query. An
	// unqualified path gets the outer source alias, a qualified one
	// stays as written.
	steps := l.model.Refs.Get(id).Steps
	access := stepIDsOf(steps)
	if res.Links[0].Def == nil && ctx.alias != "" {
		access = append([]string{ctx.alias}, access...)
	}
	root := access[:len(access)-1]

	var pred csn.Xpr
	if assoc.IsManaged() {
		pred = l.managedPredicate(assoc, alias, access)
	} else {
		pred = l.rewriteOn(l.ownerOf(ctx, res), assoc, alias, root)
	}
	if filt := steps[len(steps)-1].Where; len(filt) > 0 {
		pred = csn.And(pred, l.rerootFilter(filt, alias))
	}

	one := csn.ValExpr(csn.Num("1"))
	one.Alias = "dummy"
	sub := &csn.Query{
		Kind: csn.QuerySelect,
		Select: &csn.Select{
			From:    &csn.From{Kind: csn.FromRef, Ref: l.model.Refs.Steps(target.Name), Alias: alias},
			Columns: []csn.Expr{one},
			Where:   pred,
		},
	}
	*work = append(*work, leftover{x: &sub.Select.Where, ctx: existsCtx{
		def:   ctx.def,
		sel:   sub.Select,
		base:  target,
		alias: alias,
		taken: ctx.taken,
	}})
	return sub, true
}

// managedPredicate: one comparison per foreign key in declared order:
// <alias>.<fk> = <outer path>.<fk>.
func (l *Lowerer) managedPredicate(assoc *csn.Element, alias string, access []string) csn.Xpr {
	var pred csn.Xpr
	for _, k := range assoc.Keys {
		kref := l.model.Refs.Get(k.Ref)
		if kref == nil || len(kref.Steps) == 0 {
			continue
		}
		kids := stepIDsOf(kref.Steps)
		left := l.model.Refs.Steps(append([]string{alias}, kids...)...)
		right := l.model.Refs.Steps(append(append([]string(nil), access...), kids...)...)
		pred = csn.And(pred, csn.Eq(csn.RefExpr(left), csn.RefExpr(right)))
	}
	return pred
}

// ownerOf returns the definition owning the path's trailing
// association: the next-to-last step's target or the primary source.
func (l *Lowerer) ownerOf(ctx existsCtx, res *resolve.Resolution) *csn.Definition {
	if len(res.Links) > 1 {
		if def := res.Links[len(res.Links)-2].TargetDef(l.model); def != nil {
			return def
		}
	}
	return ctx.base
}

// rewriteOn turns an unmanaged association's on-condition into the
// subquery's join predicate: target refs reroot onto the subquery
// alias, source refs onto the outer root. The original on-condition is
// not mutated: every predicate ref is a fresh copy.
func (l *Lowerer) rewriteOn(owner *csn.Definition, assoc *csn.Element, alias string, root []string) csn.Xpr {
	if owner == nil {
		return csn.CloneXpr(l.model.Refs, assoc.On)
	}
	loc := assoc.Loc
	if loc.Empty() {
		loc = owner.Loc
	}
	scope := resolve.Scope{Def: owner, Home: owner.HomeElement(assoc.Name), Loc: loc}
	return l.rewriteOnXpr(assoc.On, scope, assoc, alias, root)
}

func (l *Lowerer) rewriteOnXpr(x csn.Xpr, scope resolve.Scope, assoc *csn.Element, alias string, root []string) csn.Xpr {
	out := make(csn.Xpr, 0, len(x))
	for i := 0; i < len(x); i++ {
		if i+2 < len(x) && x[i+1].IsOp("=") {
			if repl, ok := l.tryBacklink(x[i], x[i+2], scope, assoc, alias, root); ok {
				out = append(out, repl...)
				i += 2
				continue
			}
		}
		e := x[i]
		switch e.Kind {
		case csn.ExprRef:
			out = append(out, l.rewriteOnRef(e, scope, assoc, alias, root))
		case csn.ExprXpr:
			e.Sub = l.rewriteOnXpr(e.Sub, scope, assoc, alias, root)
			out = append(out, e)
		case csn.ExprFunc, csn.ExprList:
			e.Args = l.rewriteOnXpr(e.Args, scope, assoc, alias, root)
			out = append(out, e)
		default:
			out = append(out, e)
		}
	}
	return out
}

// rewriteOnRef reroots one on-condition ref. The side comes from the
// link chain: a root at the association itself is target, everything
// else is source.
func (l *Lowerer) rewriteOnRef(e csn.Expr, scope resolve.Scope, assoc *csn.Element, alias string, root []string) csn.Expr {
	ref := l.model.Refs.Get(e.Ref)
	if ref == nil || len(ref.Steps) == 0 {
		return e
	}
	out := e
	if isBareSelf(ref) {
		diag.ReportError(l.rep, diag.OnExpectedBacklink, scope.Loc, scope.Home,
			`"$self" must be compared to a managed association of the target`).Emit()
		out.Ref = l.model.Refs.CloneRef(e.Ref)
		return out
	}
	res := l.res.Resolve(e.Ref, scope)
	switch {
	case !res.Complete || len(res.Links) == 0:
		out.Ref = l.model.Refs.CloneRef(e.Ref)
	case res.Links[0].Elem == assoc:
		out.Ref = l.cloneRerooted(e.Ref, []string{alias}, 1)
	case ref.Steps[0].ID == "$self":
		out.Ref = l.cloneRerooted(e.Ref, root, 1)
	case res.Links[0].Def != nil:
		// query source or absolute name: already qualified
		out.Ref = l.model.Refs.CloneRef(e.Ref)
	default:
		out.Ref = l.cloneRerooted(e.Ref, root, 0)
	}
	return out
}

// tryBacklink recognizes a $self = <assoc>.<back> comparison (either
// side order) and expands it over the backlink's foreign keys:
// <alias>.<back>.<fk> = <root>.<fk>. An expansion of several
// comparisons is wrapped in a bracketed node so the precedence around
// it stays put.
func (l *Lowerer) tryBacklink(a, b csn.Expr, scope resolve.Scope, assoc *csn.Element, alias string, root []string) (csn.Xpr, bool) {
	var refTok csn.Expr
	switch {
	case l.isBareSelfExpr(a) && b.Kind == csn.ExprRef:
		refTok = b
	case l.isBareSelfExpr(b) && a.Kind == csn.ExprRef:
		refTok = a
	default:
		return nil, false
	}
	res := l.res.Resolve(refTok.Ref, scope)
	if !res.Complete || len(res.Links) < 2 || res.Links[0].Elem != assoc {
		return nil, false
	}
	back := res.FinalElem()
	if back == nil || !back.IsManaged() || len(back.Keys) == 0 {
		return nil, false
	}
	steps := stepIDsOf(l.model.Refs.Get(refTok.Ref).Steps)
	var out csn.Xpr
	n := 0
	for _, k := range back.Keys {
		kref := l.model.Refs.Get(k.Ref)
		if kref == nil || len(kref.Steps) == 0 {
			continue
		}
		kids := stepIDsOf(kref.Steps)
		left := l.model.Refs.Steps(append(append([]string{alias}, steps[1:]...), kids...)...)
		right := l.model.Refs.Steps(append(append([]string(nil), root...), kids...)...)
		if n > 0 {
			out = append(out, csn.OpExpr("and"))
		}
		out = append(out, csn.RefExpr(left), csn.OpExpr("="), csn.RefExpr(right))
		n++
	}
	if n == 0 {
		return nil, false
	}
	if n > 1 {
		return csn.Xpr{{Kind: csn.ExprXpr, Sub: out}}, true
	}
	return out, true
}

// rerootFilter returns a copy of the step filter with its refs
// attached to the subquery alias.
func (l *Lowerer) rerootFilter(x csn.Xpr, alias string) csn.Xpr {
	out := csn.CloneXpr(l.model.Refs, x)
	l.prefixRefs(out, alias)
	return out
}

// prefixRefs attaches the alias to the first step of every ref in the
// stream. Paths with a "$" root and parameter markers stay untouched.
func (l *Lowerer) prefixRefs(x csn.Xpr, alias string) {
	for i := range x {
		e := &x[i]
		switch e.Kind {
		case csn.ExprRef:
			ref := l.model.Refs.Get(e.Ref)
			if ref == nil || len(ref.Steps) == 0 || strings.HasPrefix(ref.Steps[0].ID, "$") {
				continue
			}
			steps := make([]csn.RefStep, 0, len(ref.Steps)+1)
			steps = append(steps, csn.RefStep{ID: alias})
			steps = append(steps, ref.Steps...)
			l.model.Refs.Update(e.Ref, csn.Ref{Steps: steps})
		case csn.ExprXpr:
			l.prefixRefs(e.Sub, alias)
		case csn.ExprFunc, csn.ExprList:
			l.prefixRefs(e.Args, alias)
		}
	}
}

// cloneRerooted allocates a copy of the path with its root replaced:
// head + steps[skip:].
func (l *Lowerer) cloneRerooted(id csn.RefID, head []string, skip int) csn.RefID {
	cid := l.model.Refs.CloneRef(id)
	cloned := l.model.Refs.Get(cid).Steps
	steps := make([]csn.RefStep, 0, len(head)+len(cloned)-skip)
	for _, h := range head {
		steps = append(steps, csn.RefStep{ID: h})
	}
	steps = append(steps, cloned[skip:]...)
	l.model.Refs.Update(cid, csn.Ref{Steps: steps})
	return cid
}

func uniqueAlias(taken map[string]bool, assocName string) string {
	alias := "_" + assocName + "_exists"
	for taken[alias] {
		alias = "_" + alias
	}
	taken[alias] = true
	return alias
}

func (l *Lowerer) isBareSelfExpr(e csn.Expr) bool {
	return e.Kind == csn.ExprRef && isBareSelf(l.model.Refs.Get(e.Ref))
}

func isBareSelf(ref *csn.Ref) bool {
	return ref != nil && len(ref.Steps) == 1 && ref.Steps[0].ID == "$self"
}

func stepIDsOf(steps []csn.RefStep) []string {
	ids := make([]string, len(steps))
	for i := range steps {
		ids[i] = steps[i].ID
	}
	return ids
}
