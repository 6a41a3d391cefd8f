package uniqueconstraint

import (
	"fmt"
	"strings"

	"cdsc/internal/csn"
	"cdsc/internal/diag"
)

const (
	annRoot   = "@assert.unique"
	annPrefix = "@assert.unique."
)

// Generator is the two-phase unique-constraint generator: Prepare
// validates annotations and fills the derived dict, Rewrite expands
// association paths over foreign keys.
type Generator struct {
	model *csn.Model
	rep   diag.Reporter
	opts  *csn.Options
	delim string
}

func New(model *csn.Model, rep diag.Reporter, opts *csn.Options) *Generator {
	return &Generator{
		model: model,
		rep:   rep,
		opts:  opts,
		delim: opts.Delimiter(),
	}
}

// Prepare collects @assert.unique.<name> from every concrete entity.
// The model is flat by now: struct path steps merge into flat names
// and managed associations have their foreign keys filled in.
func (g *Generator) Prepare() {
	g.model.Definitions.Range(func(_ string, def *csn.Definition) bool {
		if def.IsConcreteEntity() {
			g.prepareEntity(def)
		}
		return true
	})
}

func (g *Generator) prepareEntity(def *csn.Definition) {
	type pending struct {
		name string
		val  csn.Value
	}
	var anns []pending
	def.Annotations.Range(func(name string, v csn.Value) bool {
		switch {
		case strings.HasPrefix(name, annPrefix):
			anns = append(anns, pending{name[len(annPrefix):], v})
		case name == annRoot && v.Kind == csn.ValObject:
			// unexpanded form: @assert.unique: {name: [...]}
			v.Fields.Range(func(sub string, fv csn.Value) bool {
				anns = append(anns, pending{sub, fv})
				return true
			})
		}
		return true
	})
	if len(anns) == 0 {
		return
	}

	// ordered leaf concatenation -> name of the first constraint
	sigs := make(map[string]string, len(anns))
	for _, a := range anns {
		c := g.prepareConstraint(def, a.name, a.val)
		if c == nil {
			continue
		}
		sig := strings.Join(c.Columns, "\n")
		if prev, dup := sigs[sig]; dup {
			diag.ReportWarning(g.rep, diag.ConstraintDuplicate, def.Loc, def.Home(),
				fmt.Sprintf("unique constraint %q duplicates constraint %q", a.name, prev)).Emit()
		} else {
			sigs[sig] = a.name
		}
		if def.TableConstraints == nil {
			def.TableConstraints = &csn.TableConstraints{
				Unique: csn.NewDict[*csn.UniqueConstraint](len(anns)),
			}
		}
		def.TableConstraints.Unique.Set(a.name, c)
	}
}

// prepareConstraint validates one constraint as a whole. Any bad path
// drops the constraint: uniqueness over a truncated column list would
// be stricter than declared.
func (g *Generator) prepareConstraint(def *csn.Definition, name string, v csn.Value) *csn.UniqueConstraint {
	if v.Kind != csn.ValArray || len(v.Items) == 0 {
		diag.ReportError(g.rep, diag.ConstraintInvalidValue, def.Loc, def.Home(),
			fmt.Sprintf("@assert.unique.%s must be a non-empty array of element paths", name)).Emit()
		return nil
	}
	c := &csn.UniqueConstraint{Name: name}
	seen := make(map[string]struct{}, len(v.Items))
	ok := true
	for _, item := range v.Items {
		raw, valid := item.PathSteps()
		if !valid {
			diag.ReportError(g.rep, diag.ConstraintInvalidValue, def.Loc, def.Home(),
				fmt.Sprintf("@assert.unique.%s must contain only element paths", name)).Emit()
			ok = false
			continue
		}
		steps, valid := g.checkPath(def, name, raw)
		if !valid {
			ok = false
			continue
		}
		leaf := strings.Join(steps, g.delim)
		if _, dup := seen[leaf]; dup {
			diag.ReportError(g.rep, diag.ConstraintDuplicatePath, def.Loc, def.Home(),
				fmt.Sprintf("unique constraint %q lists %q twice", name, strings.Join(raw, "."))).Emit()
			ok = false
			continue
		}
		seen[leaf] = struct{}{}
		c.Paths = append(c.Paths, g.model.Refs.Steps(steps...))
		// before rewriting the column equals the flat leaf
		c.Columns = append(c.Columns, leaf)
	}
	if !ok {
		return nil
	}
	return c
}

// checkPath validates one path against the flat element dict. Steps of
// struct origin ("s.x") merge into flat names ("s_x") by greedy
// lookup; crossing is allowed only through a managed association and
// exactly to one of its foreign keys.
func (g *Generator) checkPath(def *csn.Definition, cname string, raw []string) ([]string, bool) {
	home := def.Home()
	dotted := strings.Join(raw, ".")

	id := raw[0]
	el, found := def.Elements.Get(id)
	next := 1
	for !found && next < len(raw) {
		id += g.delim + raw[next]
		next++
		el, found = def.Elements.Get(id)
	}
	if !found {
		diag.ReportError(g.rep, diag.ConstraintInvalidPath, def.Loc, home,
			fmt.Sprintf("unique constraint %q: element %q not found in %q", cname, dotted, def.Name)).Emit()
		return nil, false
	}

	loc := el.Loc
	if loc.Empty() {
		loc = def.Loc
	}
	relation := el.IsAssociation()
	switch {
	case el.IsArrayed():
		diag.ReportError(g.rep, diag.ConstraintInvalidPath, loc, home,
			fmt.Sprintf("unique constraint %q: arrayed element %q is not allowed", cname, el.Name)).Emit()
		return nil, false
	case relation && el.Cardinality.IsToMany():
		diag.ReportError(g.rep, diag.ConstraintInvalidPath, loc, home,
			fmt.Sprintf("unique constraint %q: to-many association %q is not allowed", cname, el.Name)).Emit()
		return nil, false
	case el.IsUnmanaged():
		diag.ReportError(g.rep, diag.ConstraintInvalidPath, loc, home,
			fmt.Sprintf("unique constraint %q: unmanaged association %q is not allowed", cname, el.Name)).Emit()
		return nil, false
	}

	if next == len(raw) {
		if relation {
			// key expansion happens in Rewrite
			return []string{id}, true
		}
		if csn.IsLarge(el.Type) || csn.IsSpatial(el.Type) {
			diag.ReportError(g.rep, diag.ConstraintUnsupportedType, loc, home,
				fmt.Sprintf("unique constraint %q: element %q of type %q can not be used", cname, el.Name, el.Type)).Emit()
			return nil, false
		}
		return []string{id}, true
	}

	// a path remainder is valid only as a managed association's foreign key
	if !relation {
		diag.ReportError(g.rep, diag.ConstraintInvalidPath, loc, home,
			fmt.Sprintf("unique constraint %q: element %q of %q has no sub-elements", cname, id, def.Name)).Emit()
		return nil, false
	}
	if _, ok := g.model.Definition(el.Target); !ok {
		// the resolver already reported the missing target
		return nil, false
	}
	suffix := raw[next:]
	for i := range el.Keys {
		kref := g.model.Refs.Get(el.Keys[i].Ref)
		if kref != nil && sameSteps(kref.Steps, suffix) {
			return append([]string{id}, suffix...), true
		}
	}
	diag.ReportError(g.rep, diag.ConstraintInvalidPath, loc, home,
		fmt.Sprintf("unique constraint %q: %q is not a foreign key of association %q", cname, strings.Join(suffix, "."), el.Name)).Emit()
	return nil, false
}

func sameSteps(steps []csn.RefStep, ids []string) bool {
	if len(steps) != len(ids) {
		return false
	}
	for i := range steps {
		if steps[i].ID != ids[i] {
			return false
		}
	}
	return true
}

func stepIDs(steps []csn.RefStep) []string {
	ids := make([]string, len(steps))
	for i := range steps {
		ids[i] = steps[i].ID
	}
	return ids
}
