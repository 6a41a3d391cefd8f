package draft

import (
	"fmt"

	"cdsc/internal/csn"
	"cdsc/internal/diag"
)

const annEnabled = "@odata.draft.enabled"

// Generator synthesizes draft shadow entities for annotated roots and
// their composition subtrees.
type Generator struct {
	model *csn.Model
	rep   diag.Reporter
	opts  *csn.Options
	// admin caches the DraftAdministrativeData name per service; an
	// empty string means generation failed and the step was skipped.
	admin map[string]string
}

func New(model *csn.Model, rep diag.Reporter, opts *csn.Options) *Generator {
	return &Generator{
		model: model,
		rep:   rep,
		opts:  opts,
		admin: make(map[string]string),
	}
}

// GenerateModel walks the model and spawns the shadows. Roots are
// collected before the first insert: a dict Range during Set would see
// the new definitions too.
func (g *Generator) GenerateModel() {
	var roots []*csn.Definition
	g.model.Definitions.Range(func(_ string, def *csn.Definition) bool {
		if g.isRoot(def) {
			roots = append(roots, def)
		}
		return true
	})
	for _, root := range roots {
		g.generateRoot(root)
	}
}

// isRoot: a concrete entity with a truthy @odata.draft.enabled inside
// a service. Annotated entities outside services are not processed.
func (g *Generator) isRoot(def *csn.Definition) bool {
	if !def.IsConcreteEntity() {
		return false
	}
	v, ok := def.Annotation(annEnabled)
	if !ok || !v.IsTruthy() {
		return false
	}
	_, inService := g.model.EnclosingService(def.Name)
	return inService
}

func (g *Generator) generateRoot(root *csn.Definition) {
	nodes, ok := g.collectSubtree(root)
	if !ok {
		return
	}

	// phase 1: materialize all of the root's shadows
	shadows := make([]*csn.Definition, 0, len(nodes))
	shadowOf := make(map[string]string, len(nodes))
	for _, node := range nodes {
		sh := g.materialize(node)
		if sh == nil {
			continue
		}
		shadows = append(shadows, sh)
		shadowOf[node.Name] = sh.Name
	}

	// phase 2: redirect links between shadows of the same root. Only
	// after every shadow exists: a redirect target can materialize
	// after its source.
	for _, sh := range shadows {
		sh.Elements.Range(func(_ string, el *csn.Element) bool {
			if el.IsAssociation() {
				if to, has := shadowOf[el.Target]; has {
					el.Target = to
				}
			}
			return true
		})
	}
}

// collectSubtree gathers the root and every entity reachable over
// compositions (plain associations are not walked). Cycles are
// tolerated via seen; targets outside services are skipped. A second
// draft root in the subtree is a nesting error and the whole root is
// skipped.
func (g *Generator) collectSubtree(root *csn.Definition) ([]*csn.Definition, bool) {
	var nodes []*csn.Definition
	seen := map[string]bool{root.Name: true}
	ok := true
	var visit func(*csn.Definition)
	visit = func(def *csn.Definition) {
		nodes = append(nodes, def)
		def.Elements.Range(func(_ string, el *csn.Element) bool {
			if !el.IsComposition() || seen[el.Target] {
				return true
			}
			target, found := g.model.Definition(el.Target)
			if !found || !target.IsConcreteEntity() {
				return true
			}
			if _, inService := g.model.EnclosingService(target.Name); !inService {
				return true
			}
			seen[el.Target] = true
			if v, has := target.Annotation(annEnabled); has && v.IsTruthy() {
				diag.ReportError(g.rep, diag.DraftNestedRoot, target.Loc, target.Home(),
					fmt.Sprintf("draft-enabled entity %q must not be reachable from draft root %q", target.Name, root.Name)).Emit()
				ok = false
				return true
			}
			visit(target)
			return true
		})
	}
	visit(root)
	return nodes, ok
}
