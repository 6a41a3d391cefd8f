package lower

import (
	"cdsc/internal/csn"
	"cdsc/internal/diag"
	"cdsc/internal/resolve"
	"cdsc/internal/source"
)

// Lowerer rewrites high-level query constructs into forms a relational
// backend can handle: exists predicates into correlated subqueries,
// unmanaged-association on-conditions into absolute comparisons. It
// works over the already-flattened model with the same resolver as
// flattening: path links come out of its cache.
type Lowerer struct {
	model *csn.Model
	res   *resolve.Resolver
	rep   diag.Reporter
}

// New builds a rewriter over the model.
func New(model *csn.Model, res *resolve.Resolver, rep diag.Reporter) *Lowerer {
	return &Lowerer{model: model, res: res, rep: rep}
}

// LowerModel runs both rewriting phases. The order is fixed: first the
// exists predicates of all queries (they read association on-conditions
// in their original form), then entity on-condition absolutization.
func (l *Lowerer) LowerModel() {
	l.model.Definitions.Range(func(_ string, def *csn.Definition) bool {
		if def.Query != nil {
			l.lowerQuery(def, def.Query)
		}
		return true
	})
	l.absolutizeOnConditions()
}

func (l *Lowerer) lowerQuery(def *csn.Definition, q *csn.Query) {
	if q == nil {
		return
	}
	switch q.Kind {
	case csn.QuerySet:
		for _, arg := range q.Args {
			l.lowerQuery(def, arg)
		}
	case csn.QuerySelect:
		l.lowerSelect(def, q.Select)
	}
}

// existsCtx is the environment of one token stream in the worklist
// loop: the owning query, its primary source, and the taken aliases.
type existsCtx struct {
	def   *csn.Definition
	sel   *csn.Select
	base  *csn.Definition
	alias string
	// taken holds source aliases already claimed along the query chain;
	// shared by all nested contexts of one top-level query.
	taken map[string]bool
}

func (l *Lowerer) lowerSelect(def *csn.Definition, sel *csn.Select) {
	if sel == nil {
		return
	}
	// Subqueries in FROM lower as standalone queries.
	l.lowerFromQueries(def, sel.From)

	primary := sel.From.Primary()
	ctx := existsCtx{
		def:   def,
		sel:   sel,
		base:  l.res.FromDef(primary),
		alias: l.res.FromAlias(primary),
		taken: map[string]bool{},
	}
	collectAliases(l.res, sel.From, ctx.taken)

	// Pre-pass: association chains after exists fold into step filters
	// before any materialization.
	scope := l.queryScope(ctx)
	l.nestStream(sel.Where, scope)
	l.nestStream(sel.Having, scope)

	work := []leftover{
		{x: &sel.Where, ctx: ctx},
		{x: &sel.Having, ctx: ctx},
	}
	appendJoinOns(sel.From, ctx, &work)
	for len(work) > 0 {
		it := work[0]
		work = work[1:]
		l.processExists(it.x, it.ctx, &work)
	}
}

func (l *Lowerer) lowerFromQueries(def *csn.Definition, from *csn.From) {
	if from == nil {
		return
	}
	switch from.Kind {
	case csn.FromQuery:
		l.lowerQuery(def, from.Query)
	case csn.FromJoin:
		if from.Join != nil {
			for _, arg := range from.Join.Args {
				l.lowerFromQueries(def, arg)
			}
		}
	}
}

// queryScope returns the resolution environment for refs inside the
// context's query: the query's sources and mixins, then the primary
// source's elements.
func (l *Lowerer) queryScope(ctx existsCtx) resolve.Scope {
	return resolve.Scope{
		Def:    ctx.def,
		Select: ctx.sel,
		Base:   ctx.base,
		Home:   ctx.def.Home(),
		Loc:    ctx.def.Loc,
	}
}

func collectAliases(res *resolve.Resolver, from *csn.From, taken map[string]bool) {
	if from == nil {
		return
	}
	if from.Kind == csn.FromJoin {
		if from.Join != nil {
			for _, arg := range from.Join.Args {
				collectAliases(res, arg, taken)
			}
		}
		return
	}
	if alias := res.FromAlias(from); alias != "" {
		taken[alias] = true
	}
}

func appendJoinOns(from *csn.From, ctx existsCtx, work *[]leftover) {
	if from == nil || from.Kind != csn.FromJoin || from.Join == nil {
		return
	}
	if len(from.Join.On) > 0 {
		*work = append(*work, leftover{x: &from.Join.On, ctx: ctx})
	}
	for _, arg := range from.Join.Args {
		appendJoinOns(arg, ctx, work)
	}
}

// refLoc returns the location for path messages: paths carry no
// locations of their own, so the enclosing definition's is used.
func refLoc(def *csn.Definition) source.Loc {
	if def == nil {
		return source.Loc{}
	}
	return def.Loc
}
