package flatten

import (
	"fmt"
	"strings"

	"cdsc/internal/csn"
	"cdsc/internal/diag"
	"cdsc/internal/resolve"
)

// materializeForeignKeys gives the definition's managed associations
// flat FK elements: one per key, in declaration order, right after
// the association itself. A key without an explicit list takes the
// target's primary keys. An already materialized key (GeneratedName
// set) is not materialized again.
func (f *Flattener) materializeForeignKeys(def *csn.Definition) {
	if def.Kind != csn.KindEntity && def.Kind != csn.KindAspect {
		return
	}
	if def.Query != nil {
		// view: associations render through joins, no FKs needed
		return
	}

	// InsertAfter shifts the dict, so collect the associations first.
	// To-many carries no foreign keys: the matching column lives on
	// the target side.
	var managed []*csn.Element
	def.Elements.Range(func(_ string, el *csn.Element) bool {
		if el.IsManaged() && !el.Cardinality.IsToMany() {
			managed = append(managed, el)
		}
		return true
	})
	for _, assoc := range managed {
		f.materializeElementKeys(def, assoc)
	}
}

func (f *Flattener) materializeElementKeys(def *csn.Definition, assoc *csn.Element) {
	target, ok := f.model.Definition(assoc.Target)
	if !ok {
		// the resolver has already reported the missing target
		return
	}
	if len(assoc.Keys) == 0 {
		assoc.Keys = implicitKeys(f.model.Refs, target)
		if len(assoc.Keys) == 0 {
			return
		}
	}

	home := def.HomeElement(assoc.Name)
	anchor := assoc.Name
	for i := range assoc.Keys {
		k := &assoc.Keys[i]
		if k.GeneratedName != "" {
			anchor = k.GeneratedName
			continue
		}
		res := f.res.Resolve(k.Ref, resolve.Scope{Base: target, Home: home, Loc: assoc.Loc})
		keyEl := res.FinalElem()
		if keyEl == nil {
			continue
		}

		base := k.Alias
		if base == "" {
			base = joinSteps(f.model.Refs.Get(k.Ref), f.delim)
		}
		fkName := assoc.Name + f.delim + base
		fk := &csn.Element{
			Name:    fkName,
			Loc:     assoc.Loc,
			Type:    keyEl.Type,
			Facets:  keyEl.Facets,
			Enum:    keyEl.Enum,
			Key:     assoc.Key,
			NotNull: assoc.NotNull || assoc.Key,
			Virtual: assoc.Virtual,
		}
		if !def.Elements.InsertAfter(anchor, fkName, fk) {
			diag.ReportError(f.rep, diag.FlattenDuplicate, assoc.Loc, home,
				fmt.Sprintf("generated foreign key %q collides with an existing element", fkName)).Emit()
			continue
		}
		k.GeneratedName = fkName
		anchor = fkName
	}
}

// implicitKeys builds the key list from the target's primary keys.
func implicitKeys(arena *csn.RefArena, target *csn.Definition) []csn.KeyRef {
	var keys []csn.KeyRef
	target.Elements.Range(func(name string, el *csn.Element) bool {
		if el.Key && !el.IsAssociation() && !el.Virtual {
			keys = append(keys, csn.KeyRef{Ref: arena.Steps(name)})
		}
		return true
	})
	return keys
}

func joinSteps(ref *csn.Ref, delim string) string {
	if ref == nil {
		return ""
	}
	ids := make([]string, len(ref.Steps))
	for i := range ref.Steps {
		ids[i] = ref.Steps[i].ID
	}
	return strings.Join(ids, delim)
}
