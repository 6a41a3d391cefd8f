package resolve

import (
	"fmt"

	"cdsc/internal/csn"
	"cdsc/internal/diag"
	"cdsc/internal/source"
)

// Scope is the environment a path resolves in. An empty Scope means
// "absolute names only" (how type references resolve).
type Scope struct {
	// Def is the enclosing definition: owns $self and, when Base is
	// unset, the starting element scope.
	Def *csn.Definition
	// Select is the enclosing SELECT: sources and mixins take priority
	// over elements.
	Select *csn.Select
	// Base is an explicit starting element scope when it differs from
	// Def: the managed association's target for keys, the primary source
	// for refs inside a query.
	Base *csn.Definition
	// Elems is a local element scope with priority over Base/Def: the
	// siblings of a nested association inside a struct. The on-condition
	// of such an association sees them first, then the definition's
	// elements.
	Elems *csn.Dict[*csn.Element]
	// InFrom marks a ref coming from FROM: an unresolved step zero is
	// ref-undefined-source, not ref-undefined-def.
	InFrom bool

	// Home/Loc give context for messages.
	Home string
	Loc  source.Loc
}

// Link is one resolved path step: either a definition (source, $self,
// absolute name) or an element.
type Link struct {
	Name string
	Def  *csn.Definition
	Elem *csn.Element
}

// TargetDef returns the definition whose elements the next step is
// looked up in.
func (l Link) TargetDef(model *csn.Model) *csn.Definition {
	if l.Def != nil {
		return l.Def
	}
	if l.Elem != nil && l.Elem.Target != "" {
		if def, ok := model.Definition(l.Elem.Target); ok {
			return def
		}
	}
	return nil
}

// Resolution is the outcome of resolving a path. On error Links stops
// at the last successful step and Complete is false; passes must check
// Complete and silently skip unresolved paths, the resolver has already
// reported them.
type Resolution struct {
	Links    []Link
	Scope    string
	Complete bool
}

// Final returns the last resolved step.
func (r *Resolution) Final() (Link, bool) {
	if r == nil || len(r.Links) == 0 {
		return Link{}, false
	}
	return r.Links[len(r.Links)-1], true
}

// FinalElem returns the last step's element when the path ends in an
// element.
func (r *Resolution) FinalElem() *csn.Element {
	if r == nil || !r.Complete || len(r.Links) == 0 {
		return nil
	}
	return r.Links[len(r.Links)-1].Elem
}

// FinalDef returns the definition the path ends in: either directly (a
// source, $self) or the target of the trailing association.
func (r *Resolution) FinalDef(model *csn.Model) *csn.Definition {
	if r == nil || !r.Complete || len(r.Links) == 0 {
		return nil
	}
	return r.Links[len(r.Links)-1].TargetDef(model)
}

// Resolver resolves model paths and caches results by (RefID, node
// version). A RefID belongs to exactly one spot in the model, so no
// scope key is needed: cloned paths get fresh IDs.
type Resolver struct {
	model *csn.Model
	rep   diag.Reporter
	cache *Cache
}

// New creates a resolver over the model.
func New(model *csn.Model, rep diag.Reporter) *Resolver {
	return &Resolver{
		model: model,
		rep:   rep,
		cache: NewCache(),
	}
}

// Model returns the resolver's model.
func (r *Resolver) Model() *csn.Model { return r.model }

// Cache returns the cache (for invalidation and snapshots).
func (r *Resolver) Cache() *Cache { return r.cache }

// Resolve resolves a path in the given scope. The result is cached;
// rewriting the arena node (which bumps its version) invalidates the
// entry on its own.
func (r *Resolver) Resolve(id csn.RefID, scope Scope) *Resolution {
	if id == csn.NoRefID {
		return &Resolution{}
	}
	if res, ok := r.cache.lookup(r.model.Refs, id); ok {
		return res
	}
	res := r.resolve(id, scope)
	r.cache.store(r.model.Refs, id, res)
	return res
}

func (r *Resolver) resolve(id csn.RefID, scope Scope) *Resolution {
	ref := r.model.Refs.Get(id)
	if ref == nil || len(ref.Steps) == 0 {
		return &Resolution{}
	}

	res := &Resolution{}
	if !r.resolveStepZero(ref.Steps[0].ID, scope, res) {
		return res
	}

	// Path members: elements of the association's target or a nested struct
	for i := 1; i < len(ref.Steps); i++ {
		stepID := ref.Steps[i].ID
		container := r.linkElements(res.Links[i-1])
		var el *csn.Element
		if container != nil {
			el, _ = container.Get(stepID)
		}
		if el == nil {
			diag.ReportError(r.rep, diag.RefUndefinedElement, scope.Loc, scope.Home,
				fmt.Sprintf("element %q not found (in %q)", stepID, ref.Path())).Emit()
			return res
		}
		res.Links = append(res.Links, Link{Name: stepID, Elem: el})
	}
	res.Complete = true
	return res
}

// resolveStepZero resolves step zero through the scope order: query
// sources, then mixins, then elements, then $self, then absolute names.
func (r *Resolver) resolveStepZero(step string, scope Scope, res *Resolution) bool {
	if scope.Select != nil {
		if def, alias, ok := findQuerySource(r.model, scope.Select.From, step); ok {
			res.Links = append(res.Links, Link{Name: alias, Def: def})
			res.Scope = "source"
			return true
		}
		if mixin, ok := scope.Select.Mixins.Get(step); ok {
			res.Links = append(res.Links, Link{Name: step, Elem: mixin})
			res.Scope = "mixin"
			return true
		}
	}

	base := scope.Base
	if base == nil {
		base = scope.Def
	}
	if base != nil || scope.Elems != nil {
		// $projection is a synonym for $self inside queries
		if step == "$self" || step == "$projection" {
			self := scope.Def
			if self == nil {
				self = base
			}
			if self != nil {
				res.Links = append(res.Links, Link{Name: step, Def: self})
				res.Scope = "$self"
				return true
			}
		}
		if el, ok := scope.Elems.Get(step); ok {
			res.Links = append(res.Links, Link{Name: step, Elem: el})
			res.Scope = "local"
			return true
		}
		if base != nil {
			if el, ok := base.Elements.Get(step); ok {
				res.Links = append(res.Links, Link{Name: step, Elem: el})
				res.Scope = "element"
				return true
			}
		}
	}

	if def, ok := r.model.Definition(step); ok {
		res.Links = append(res.Links, Link{Name: step, Def: def})
		res.Scope = "definition"
		return true
	}

	switch {
	case scope.InFrom:
		diag.ReportError(r.rep, diag.RefUndefinedSource, scope.Loc, scope.Home,
			fmt.Sprintf("no source named %q", step)).Emit()
	case base != nil || scope.Elems != nil:
		diag.ReportError(r.rep, diag.RefUndefinedElement, scope.Loc, scope.Home,
			fmt.Sprintf("element %q not found", step)).Emit()
	default:
		diag.ReportError(r.rep, diag.RefUndefinedDef, scope.Loc, scope.Home,
			fmt.Sprintf("no definition named %q", step)).Emit()
	}
	return false
}

// linkElements returns the element scope for the step after link: a
// nested struct, an association target, or the elements of a typedef.
func (r *Resolver) linkElements(link Link) *csn.Dict[*csn.Element] {
	if link.Def != nil {
		return r.defElements(link.Def, nil)
	}
	if link.Elem == nil {
		return nil
	}
	return r.elemElements(link.Elem, nil)
}

// elemElements opens up an element's element scope, following the
// chain of named types when needed. seen guards against cycles.
func (r *Resolver) elemElements(el *csn.Element, seen map[string]bool) *csn.Dict[*csn.Element] {
	if el.Elements.Len() > 0 {
		return el.Elements
	}
	if el.Target != "" {
		if def, ok := r.model.Definition(el.Target); ok {
			return r.defElements(def, seen)
		}
		return nil
	}
	if el.Type != "" && !csn.IsBuiltinNamespace(el.Type) {
		if def, ok := r.model.Definition(el.Type); ok {
			return r.defElements(def, seen)
		}
	}
	return nil
}

func (r *Resolver) defElements(def *csn.Definition, seen map[string]bool) *csn.Dict[*csn.Element] {
	if seen[def.Name] {
		diag.ReportError(r.rep, diag.RefCyclic, def.Loc, def.Home(),
			fmt.Sprintf("cyclic type chain through %q", def.Name)).Emit()
		return nil
	}
	if def.Elements.Len() > 0 {
		return def.Elements
	}
	// typedef pointing at another named type: walk the chain
	if def.Type != "" && !csn.IsBuiltinNamespace(def.Type) {
		if next, ok := r.model.Definition(def.Type); ok {
			if seen == nil {
				seen = make(map[string]bool, 4)
			}
			seen[def.Name] = true
			return r.defElements(next, seen)
		}
	}
	if def.Target != "" {
		if next, ok := r.model.Definition(def.Target); ok {
			if seen == nil {
				seen = make(map[string]bool, 4)
			}
			seen[def.Name] = true
			return r.defElements(next, seen)
		}
	}
	return nil
}

// findQuerySource looks up a query source by name: explicit alias or
// the implicit one (last segment of the source name). Returns the
// source definition (nil for subqueries).
func findQuerySource(model *csn.Model, from *csn.From, name string) (*csn.Definition, string, bool) {
	if from == nil {
		return nil, "", false
	}
	switch from.Kind {
	case csn.FromJoin:
		if from.Join == nil {
			return nil, "", false
		}
		for _, arg := range from.Join.Args {
			if def, alias, ok := findQuerySource(model, arg, name); ok {
				return def, alias, ok
			}
		}
		return nil, "", false
	case csn.FromQuery:
		if from.Alias == name {
			return nil, name, true
		}
		return nil, "", false
	default:
		alias := fromAlias(model, from)
		if alias != name {
			return nil, "", false
		}
		def := fromDef(model, from)
		return def, alias, true
	}
}

// FromAlias returns the effective name of a query source: the explicit
// alias or the implicit one (last segment of the dotted name).
func (r *Resolver) FromAlias(from *csn.From) string {
	if from == nil {
		return ""
	}
	return fromAlias(r.model, from)
}

// FromDef returns the definition behind a query source.
func (r *Resolver) FromDef(from *csn.From) *csn.Definition {
	if from == nil {
		return nil
	}
	return fromDef(r.model, from)
}

// fromAlias returns the effective source name.
func fromAlias(model *csn.Model, from *csn.From) string {
	if from.Alias != "" {
		return from.Alias
	}
	ref := model.Refs.Get(from.Ref)
	if ref == nil || len(ref.Steps) == 0 {
		return ""
	}
	last := ref.Steps[len(ref.Steps)-1].ID
	// Implicit alias: last segment of the dotted name
	for i := len(last) - 1; i >= 0; i-- {
		if last[i] == '.' {
			return last[i+1:]
		}
	}
	return last
}

// fromDef returns the definition behind a FROM ref, following path
// members (from Books:author) to the trailing association's target.
func fromDef(model *csn.Model, from *csn.From) *csn.Definition {
	ref := model.Refs.Get(from.Ref)
	if ref == nil || len(ref.Steps) == 0 {
		return nil
	}
	def, ok := model.Definition(ref.Steps[0].ID)
	if !ok {
		return nil
	}
	for i := 1; i < len(ref.Steps); i++ {
		el, ok := def.Elements.Get(ref.Steps[i].ID)
		if !ok || el.Target == "" {
			return nil
		}
		def, ok = model.Definition(el.Target)
		if !ok {
			return nil
		}
	}
	return def
}
