package draft

import (
	"fmt"

	"cdsc/internal/csn"
	"cdsc/internal/diag"
)

// shadowName is the shadow name: a ".drafts" suffix, or legacy "_drafts".
func (g *Generator) shadowName(name string) string {
	if g.opts != nil && g.opts.LegacyDraftSuffix {
		return name + "_drafts"
	}
	return name + ".drafts"
}

// materialize builds one entity's shadow and registers it in the
// model. A name collision is an error, the existing definition is
// left alone.
func (g *Generator) materialize(node *csn.Definition) *csn.Definition {
	name := g.shadowName(node.Name)
	if _, exists := g.model.Definitions.Get(name); exists {
		diag.ReportError(g.rep, diag.DraftNameCollision, node.Loc, node.Home(),
			fmt.Sprintf("draft shadow %q collides with an existing definition", name)).Emit()
		return nil
	}

	sh := &csn.Definition{
		Kind:     csn.KindEntity,
		Name:     name,
		Loc:      node.Loc,
		Elements: csn.NewDict[*csn.Element](node.Elements.Len() + 5),
	}
	keepVirtual := g.opts != nil && g.opts.KeepVirtualInDrafts
	node.Elements.Range(func(ename string, el *csn.Element) bool {
		if el.Virtual && !keepVirtual {
			return true
		}
		c := csn.CloneElement(g.model.Refs, el)
		// a draft fills in gradually: notNull survives only on keys
		// and on-conditions
		if !c.Key && !c.IsUnmanaged() {
			c.NotNull = false
		}
		g.reroot(c.On, node.Name, name)
		sh.Elements.Set(ename, c)
		return true
	})

	g.appendDraftElements(sh, node)
	g.model.Definitions.Set(name, sh)
	return sh
}

// appendDraftElements appends the draft bookkeeping elements to the
// shadow: three boolean flags and the link to the service's
// administrative data.
func (g *Generator) appendDraftElements(sh, node *csn.Definition) {
	flag := func(name string, dflt bool) *csn.Element {
		d := csn.ValExpr(csn.Bool(dflt))
		return &csn.Element{Name: name, Type: csn.TypeBoolean, Default: &d}
	}
	active := flag("IsActiveEntity", true)
	active.Key = true
	active.NotNull = true
	sh.Elements.Set("IsActiveEntity", active)
	sh.Elements.Set("HasActiveEntity", flag("HasActiveEntity", false))
	sh.Elements.Set("HasDraftEntity", flag("HasDraftEntity", false))

	svc, _ := g.model.EnclosingService(node.Name)
	admin, ok := g.adminFor(svc)
	if !ok {
		return
	}
	// managed associations are already lowered at this point, so the
	// link is built directly with an explicit FK element and on-condition
	const fkName = "DraftAdministrativeData_DraftUUID"
	assoc := &csn.Element{
		Name:    "DraftAdministrativeData",
		Type:    csn.TypeAssociation,
		Target:  admin,
		NotNull: true,
		On: csn.Xpr{
			csn.RefExpr(g.model.Refs.Steps("DraftAdministrativeData", "DraftUUID")),
			csn.OpExpr("="),
			csn.RefExpr(g.model.Refs.Steps(sh.Name, fkName)),
		},
	}
	sh.Elements.Set("DraftAdministrativeData", assoc)
	sh.Elements.Set(fkName, &csn.Element{Name: fkName, Type: csn.TypeUUID, NotNull: true})
}

// adminFor returns the service's DraftAdministrativeData, creating it
// on first use. An existing entity is reused; a collision with a
// definition of another kind skips the step for the whole service.
func (g *Generator) adminFor(svc string) (string, bool) {
	if name, done := g.admin[svc]; done {
		return name, name != ""
	}
	name := svc + ".DraftAdministrativeData"
	if def, exists := g.model.Definitions.Get(name); exists {
		if def.Kind == csn.KindEntity {
			g.admin[svc] = name
			return name, true
		}
		svcDef, _ := g.model.Definitions.Get(svc)
		diag.ReportError(g.rep, diag.DraftNameCollision, svcDef.Loc, svcDef.Home(),
			fmt.Sprintf("draft administrative data %q collides with an existing definition", name)).Emit()
		g.admin[svc] = ""
		return "", false
	}

	adm := &csn.Definition{
		Kind:     csn.KindEntity,
		Name:     name,
		Elements: csn.NewDict[*csn.Element](8),
	}
	user := func(n string) *csn.Element {
		return &csn.Element{Name: n, Type: csn.TypeString, Facets: csn.TypeFacets{Length: 256}}
	}
	adm.Elements.Set("DraftUUID", &csn.Element{Name: "DraftUUID", Type: csn.TypeUUID, Key: true, NotNull: true})
	adm.Elements.Set("CreationDateTime", &csn.Element{Name: "CreationDateTime", Type: csn.TypeTimestamp})
	adm.Elements.Set("CreatedByUser", user("CreatedByUser"))
	adm.Elements.Set("DraftIsCreatedByMe", &csn.Element{Name: "DraftIsCreatedByMe", Type: csn.TypeBoolean})
	adm.Elements.Set("LastChangeDateTime", &csn.Element{Name: "LastChangeDateTime", Type: csn.TypeTimestamp})
	adm.Elements.Set("LastChangedByUser", user("LastChangedByUser"))
	adm.Elements.Set("InProcessByUser", user("InProcessByUser"))
	adm.Elements.Set("DraftIsProcessedByMe", &csn.Element{Name: "DraftIsProcessedByMe", Type: csn.TypeBoolean})
	g.model.Definitions.Set(name, adm)
	g.admin[svc] = name
	return name, true
}

// reroot rewrites on-condition path roots from the source entity name
// to the shadow name. Paths under the association name and "$" markers
// stay as they are.
func (g *Generator) reroot(x csn.Xpr, from, to string) {
	for i := range x {
		e := &x[i]
		switch e.Kind {
		case csn.ExprRef:
			ref := g.model.Refs.Get(e.Ref)
			if ref == nil || len(ref.Steps) == 0 || ref.Steps[0].ID != from {
				continue
			}
			steps := make([]csn.RefStep, len(ref.Steps))
			copy(steps, ref.Steps)
			steps[0].ID = to
			g.model.Refs.Update(e.Ref, csn.Ref{Steps: steps})
		case csn.ExprXpr:
			g.reroot(e.Sub, from, to)
		case csn.ExprFunc, csn.ExprList:
			g.reroot(csn.Xpr(e.Args), from, to)
		}
	}
}
