package uniqueconstraint

import (
	"fmt"
	"strings"

	"cdsc/internal/csn"
)

// Rewrite expands association-terminated paths over their foreign
// keys. sql naming substitutes the flat joined names, hdbcds the
// nested "keys after ref" shape; for the hdbcds target every
// constraint additionally gets a secondary-index DDL fragment.
func (g *Generator) Rewrite() {
	g.model.Definitions.Range(func(_ string, def *csn.Definition) bool {
		if def.IsConcreteEntity() && def.TableConstraints != nil {
			def.TableConstraints.Unique.Range(func(_ string, c *csn.UniqueConstraint) bool {
				g.rewriteConstraint(def, c)
				return true
			})
		}
		return true
	})
}

func (g *Generator) rewriteConstraint(def *csn.Definition, c *csn.UniqueConstraint) {
	paths := make([]csn.RefID, 0, len(c.Paths))
	cols := make([]string, 0, len(c.Paths))
	for _, id := range c.Paths {
		for _, e := range g.expandPath(def, id) {
			paths = append(paths, e)
			cols = append(cols, strings.Join(stepIDs(g.model.Refs.Get(e).Steps), g.delim))
		}
	}
	c.Paths = paths
	c.Columns = cols

	if g.opts != nil && g.opts.Target == csn.TargetHdbcds {
		quoted := make([]string, len(cols))
		for i, col := range cols {
			quoted[i] = `"` + col + `"`
		}
		c.Index = fmt.Sprintf("unique index %q on (%s)", c.Name, strings.Join(quoted, ", "))
	}
}

// expandPath returns the paths after foreign-key substitution: one
// per key for a terminal association, the flat name for a drilled-down
// key under sql naming, the original path in every other case.
func (g *Generator) expandPath(def *csn.Definition, id csn.RefID) []csn.RefID {
	ref := g.model.Refs.Get(id)
	if ref == nil || len(ref.Steps) == 0 {
		return []csn.RefID{id}
	}
	el, ok := def.Elements.Get(ref.Steps[0].ID)
	if !ok {
		return []csn.RefID{id}
	}
	if !el.IsAssociation() {
		return []csn.RefID{id}
	}
	nested := g.opts != nil && g.opts.Naming == csn.NamingHdbcds

	if len(ref.Steps) > 1 {
		if nested {
			return []csn.RefID{id}
		}
		suffix := stepIDs(ref.Steps[1:])
		for i := range el.Keys {
			k := &el.Keys[i]
			kref := g.model.Refs.Get(k.Ref)
			if kref != nil && sameSteps(kref.Steps, suffix) {
				return []csn.RefID{g.model.Refs.Steps(g.flatKeyName(el, k))}
			}
		}
		return []csn.RefID{id}
	}

	out := make([]csn.RefID, 0, len(el.Keys))
	for i := range el.Keys {
		k := &el.Keys[i]
		kref := g.model.Refs.Get(k.Ref)
		if kref == nil || len(kref.Steps) == 0 {
			continue
		}
		if nested {
			ids := append([]string{el.Name}, stepIDs(kref.Steps)...)
			out = append(out, g.model.Refs.Steps(ids...))
		} else {
			out = append(out, g.model.Refs.Steps(g.flatKeyName(el, k)))
		}
	}
	if len(out) == 0 {
		// keys not materialized: flattening has already reported why
		return []csn.RefID{id}
	}
	return out
}

// flatKeyName is the flat FK column name. GeneratedName is filled in
// by flattening; without it the name is joined by the same rules.
func (g *Generator) flatKeyName(assoc *csn.Element, k *csn.KeyRef) string {
	if k.GeneratedName != "" {
		return k.GeneratedName
	}
	base := k.Alias
	if base == "" {
		base = strings.Join(stepIDs(g.model.Refs.Get(k.Ref).Steps), g.delim)
	}
	return assoc.Name + g.delim + base
}
