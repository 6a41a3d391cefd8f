package flatten

import (
	"fmt"
	"strings"

	"cdsc/internal/csn"
	"cdsc/internal/diag"
)

// chain is the accumulated path state while expanding a struct.
type chain struct {
	prefix  []string
	notNull bool // all ancestors notNull
	key     bool
	virtual bool
}

type prefixedAssoc struct {
	el     *csn.Element
	prefix string
}

type flattenState struct {
	def *csn.Definition
	// collision: flatten-duplicate already reported, once per artifact
	collision bool
	// prefixed: nested associations that got a flat prefix; their
	// on-conditions are rewritten by the second pass
	prefixed []prefixedAssoc
}

// flattenDefinition expands the definition's struct elements into flat
// leaves with delimiter-joined names. A leaf is forced notNull only
// when both it and every struct ancestor are notNull. A flat-name
// collision with an existing element is an error, once per artifact,
// and the existing element is not overwritten.
func (f *Flattener) flattenDefinition(def *csn.Definition) {
	if def.Kind != csn.KindEntity && def.Kind != csn.KindAspect {
		return
	}
	if !hasStructured(def.Elements) {
		return
	}

	st := &flattenState{def: def}
	flat := csn.NewDict[*csn.Element](def.Elements.Len() * 2)
	def.Elements.Range(func(_ string, el *csn.Element) bool {
		f.flattenInto(st, flat, chain{notNull: true}, el)
		return true
	})
	def.Elements = flat

	// Second pass: first steps of nested associations' on-conditions.
	// Local-scope rule: rewrite only when the flat name with the new
	// prefix exists in the expanded dict.
	for _, p := range st.prefixed {
		f.reprefixOn(flat, p.el.On, p.prefix)
	}
}

func hasStructured(elems *csn.Dict[*csn.Element]) bool {
	found := false
	elems.Range(func(_ string, el *csn.Element) bool {
		if el.IsStructured() && !el.IsAssociation() {
			found = true
			return false
		}
		return true
	})
	return found
}

func (f *Flattener) flattenInto(st *flattenState, flat *csn.Dict[*csn.Element], ch chain, el *csn.Element) {
	if el.IsStructured() && !el.IsAssociation() {
		next := chain{
			prefix:  append(ch.prefix[:len(ch.prefix):len(ch.prefix)], el.Name),
			notNull: ch.notNull && el.NotNull,
			key:     ch.key || el.Key,
			virtual: ch.virtual || el.Virtual,
		}
		el.Elements.Range(func(_ string, child *csn.Element) bool {
			f.flattenInto(st, flat, next, child)
			return true
		})
		return
	}

	if len(ch.prefix) == 0 {
		if flat.Has(el.Name) {
			f.reportCollision(st, el, el.Name)
			return
		}
		flat.Set(el.Name, el)
		return
	}

	flatName := strings.Join(ch.prefix, f.delim) + f.delim + el.Name
	if flat.Has(flatName) {
		f.reportCollision(st, el, flatName)
		return
	}
	// Shallow copy: the body is shared with the old element, the old
	// dict is discarded wholesale
	leaf := *el
	leaf.Name = flatName
	leaf.NotNull = el.NotNull && ch.notNull
	leaf.Key = el.Key || ch.key
	leaf.Virtual = el.Virtual || ch.virtual
	flat.Set(flatName, &leaf)

	if leaf.IsUnmanaged() {
		st.prefixed = append(st.prefixed, prefixedAssoc{
			el:     &leaf,
			prefix: strings.Join(ch.prefix, f.delim),
		})
	}
}

func (f *Flattener) reportCollision(st *flattenState, el *csn.Element, name string) {
	if st.collision {
		return
	}
	st.collision = true
	loc := el.Loc
	if loc.Empty() {
		loc = st.def.Loc
	}
	diag.ReportError(f.rep, diag.FlattenDuplicate, loc, st.def.Home(),
		fmt.Sprintf("flattened name %q collides with an existing element", name)).Emit()
}

// reprefixOn rewrites the first steps of on-condition paths onto the
// new flat prefix when the prefixed name exists in the same expanded
// scope; otherwise the path stays put.
func (f *Flattener) reprefixOn(flat *csn.Dict[*csn.Element], on csn.Xpr, prefix string) {
	for i := range on {
		f.reprefixExpr(flat, &on[i], prefix)
	}
}

func (f *Flattener) reprefixExpr(flat *csn.Dict[*csn.Element], e *csn.Expr, prefix string) {
	switch e.Kind {
	case csn.ExprRef:
		ref := f.model.Refs.Get(e.Ref)
		if ref == nil || len(ref.Steps) == 0 {
			return
		}
		first := ref.Steps[0].ID
		if strings.HasPrefix(first, "$") {
			return
		}
		cand := prefix + f.delim + first
		if flat.Has(cand) {
			ref.Steps[0].ID = cand
			f.model.Refs.Bump(e.Ref)
		}
	case csn.ExprXpr:
		f.reprefixOn(flat, e.Sub, prefix)
	case csn.ExprFunc, csn.ExprList:
		for i := range e.Args {
			f.reprefixExpr(flat, &e.Args[i], prefix)
		}
	}
}
