package flatten

import (
	"fmt"

	"cdsc/internal/csn"
	"cdsc/internal/diag"
	"cdsc/internal/source"
)

// finalizeDefinitionTypes brings every element type of a definition
// to its final base: chains of named aliases are followed down to a
// builtin, a struct, an enum or an association, and the outcome is
// carried over onto the element.
func (f *Flattener) finalizeDefinitionTypes(def *csn.Definition) {
	if def.Kind == csn.KindUnknown {
		return
	}
	f.finalizeElements(def, nil, def.Elements)
	if def.Items != nil {
		f.finalizeElement(def, []string{"items"}, def.Items)
	}
	def.Params.Range(func(name string, p *csn.Element) bool {
		f.finalizeElement(def, []string{name}, p)
		return true
	})
	if def.Returns != nil {
		f.finalizeElement(def, []string{"returns"}, def.Returns)
	}
}

func (f *Flattener) finalizeElements(def *csn.Definition, path []string, elems *csn.Dict[*csn.Element]) {
	elems.Range(func(name string, el *csn.Element) bool {
		f.finalizeElement(def, append(path, name), el)
		return true
	})
}

func (f *Flattener) finalizeElement(def *csn.Definition, path []string, el *csn.Element) {
	if el.Type != "" && !csn.IsBuiltinNamespace(el.Type) {
		loc := el.Loc
		if loc.Empty() {
			loc = def.Loc
		}
		f.resolveNamedType(el, def.HomeElement(path...), loc)
	}
	if el.Elements.Len() > 0 {
		f.finalizeElements(def, path, el.Elements)
	}
	if el.Items != nil {
		f.finalizeElement(def, path, el.Items)
	}
}

// resolveNamedType follows the element's named-type chain and carries
// its outcome onto the element itself: a builtin with merged facets,
// cloned struct elements, an enum, or an association body. Element
// facets win over alias facets.
func (f *Flattener) resolveNamedType(el *csn.Element, home string, loc source.Loc) {
	seen := make(map[string]bool, 4)
	name := el.Type
	for {
		if csn.IsBuiltinNamespace(name) {
			el.Type = name
			return
		}
		td, ok := f.model.Definition(name)
		if !ok {
			diag.ReportWarning(f.rep, diag.TypeMissing, loc, home,
				fmt.Sprintf("type %q is not defined", name)).Emit()
			return
		}
		if seen[name] {
			diag.ReportError(f.rep, diag.TypeCyclic, loc, home,
				fmt.Sprintf("cyclic type chain through %q", name)).Emit()
			return
		}
		seen[name] = true

		mergeFacets(&el.Facets, td.Facets)
		if td.Target != "" && el.Target == "" {
			el.Target = td.Target
			if el.Cardinality == nil && td.Cardinality != nil {
				card := *td.Cardinality
				el.Cardinality = &card
			}
			if len(el.On) == 0 && len(el.Keys) == 0 {
				el.On = csn.CloneXpr(f.model.Refs, td.On)
				el.Keys = cloneKeys(f.model.Refs, td.Keys)
			}
		}
		if td.Elements.Len() > 0 {
			if el.Elements.Len() == 0 {
				el.Elements = csn.NewDict[*csn.Element](td.Elements.Len())
				td.Elements.Range(func(n string, c *csn.Element) bool {
					el.Elements.Set(n, csn.CloneElement(f.model.Refs, c))
					return true
				})
			}
			// the struct type is expanded into elements, the name is no longer needed
			el.Type = ""
			return
		}
		if td.Enum.Len() > 0 && el.Enum.Len() == 0 {
			el.Enum = td.Enum.Clone()
		}
		if td.Items != nil && el.Items == nil {
			el.Items = csn.CloneElement(f.model.Refs, td.Items)
		}
		if td.Type == "" {
			// terminal definition without a type of its own
			el.Type = td.Name
			return
		}
		name = td.Type
	}
}

// mergeFacets fills unset dst facets with src values.
func mergeFacets(dst *csn.TypeFacets, src csn.TypeFacets) {
	if dst.Length == 0 {
		dst.Length = src.Length
	}
	if dst.Precision == 0 {
		dst.Precision = src.Precision
	}
	if dst.Scale == 0 {
		dst.Scale = src.Scale
	}
	if dst.SRID == 0 {
		dst.SRID = src.SRID
	}
}

func cloneKeys(arena *csn.RefArena, keys []csn.KeyRef) []csn.KeyRef {
	if len(keys) == 0 {
		return nil
	}
	out := make([]csn.KeyRef, len(keys))
	for i, k := range keys {
		out[i] = csn.KeyRef{Ref: arena.CloneRef(k.Ref), Alias: k.Alias}
	}
	return out
}
