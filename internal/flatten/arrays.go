package flatten

import (
	"fmt"

	"cdsc/internal/csn"
	"cdsc/internal/diag"
)

// downgradeUnsupported collapses elements the sql target cannot
// render natively: arrays and spatial types. The message is always
// emitted; the element itself collapses into a LargeString surrogate
// only when the consumer downgraded the code's severity, a deliberate
// loss of semantics. At severity Error the element is left alone:
// compilation stops before rendering.
func (f *Flattener) downgradeUnsupported() {
	if f.opts == nil || f.opts.Target != csn.TargetSQL {
		return
	}
	f.model.Definitions.Range(func(_ string, def *csn.Definition) bool {
		if !def.IsConcreteEntity() {
			return true
		}
		def.Elements.Range(func(_ string, el *csn.Element) bool {
			f.downgradeElement(def, el)
			return true
		})
		return true
	})
}

func (f *Flattener) downgradeElement(def *csn.Definition, el *csn.Element) {
	home := def.HomeElement(el.Name)
	loc := el.Loc
	if loc.Empty() {
		loc = def.Loc
	}
	switch {
	case el.IsArrayed():
		diag.ReportError(f.rep, diag.TypeUnsupportedArray, loc, home,
			fmt.Sprintf("arrayed element %q is not supported for this target", el.Name)).Emit()
		if f.effective(diag.TypeUnsupportedArray, diag.SevError) != diag.SevError {
			f.surrogate(el)
		}
	case csn.IsSpatial(el.Type):
		diag.ReportError(f.rep, diag.TypeUnsupportedSpatial, loc, home,
			fmt.Sprintf("spatial type %q is not supported for this target", el.Type)).Emit()
		if f.effective(diag.TypeUnsupportedSpatial, diag.SevError) != diag.SevError {
			f.surrogate(el)
		}
	}
}

// surrogate replaces the element body with LargeString, dropping the
// original array or spatial semantics.
func (f *Flattener) surrogate(el *csn.Element) {
	el.Type = csn.TypeLargeString
	el.Facets = csn.TypeFacets{}
	el.Items = nil
	el.Elements = nil
	el.Enum = nil
	el.Target = ""
	el.Cardinality = nil
	el.On = nil
	el.Keys = nil
}
