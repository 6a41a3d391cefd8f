package draft

import (
	"strings"
	"testing"

	"cdsc/internal/csn"
	"cdsc/internal/diag"
	"cdsc/internal/flatten"
	"cdsc/internal/resolve"
	"cdsc/internal/source"
)

func decodeModel(t *testing.T, src string) (*csn.Model, *diag.Bag) {
	t.Helper()
	fs := source.NewFileSet()
	fileID := fs.AddVirtual("model.csn.json", []byte(src))
	bag := diag.NewBag(64)
	model := csn.NewModel()
	err := model.DecodeFile([]byte(src), fileID, fs, source.NewInterner(), diag.BagReporter{Bag: bag})
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	return model, bag
}

func generateModel(t *testing.T, src string, opts *csn.Options) (*csn.Model, *diag.Bag) {
	t.Helper()
	model, bag := decodeModel(t, src)
	rep := diag.BagReporter{Bag: bag}
	res := resolve.New(model, rep)
	flatten.New(model, res, rep, opts).FlattenModel()
	New(model, rep, opts).GenerateModel()
	return model, bag
}

func plainOptions() *csn.Options {
	return &csn.Options{Naming: csn.NamingPlain, Target: csn.TargetSQL}
}

func hasCode(bag *diag.Bag, code diag.Code) bool {
	for _, m := range bag.Messages() {
		if m.Code == code {
			return true
		}
	}
	return false
}

const ordersCSN = `{
  "definitions": {
    "S": {"kind": "service"},
    "S.Orders": {"kind": "entity",
      "@odata.draft.enabled": true,
      "elements": {
        "ID": {"key": true, "type": "cds.UUID"},
        "total": {"type": "cds.Decimal", "notNull": true},
        "hint": {"type": "cds.String", "virtual": true}
      }}
  }
}`

func TestDraftShadowGenerated(t *testing.T) {
	model, bag := generateModel(t, ordersCSN, plainOptions())
	if bag.HasErrors() {
		t.Fatalf("unexpected errors: %v", bag.Messages())
	}
	sh, ok := model.Definition("S.Orders.drafts")
	if !ok {
		t.Fatalf("shadow S.Orders.drafts not created: %v", model.Definitions.Names())
	}
	want := []string{"ID", "total", "IsActiveEntity", "HasActiveEntity", "HasDraftEntity",
		"DraftAdministrativeData", "DraftAdministrativeData_DraftUUID"}
	if got := sh.Elements.Names(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("shadow elements: %v, want %v", got, want)
	}

	// virtual dropped, notNull lifted from everything but keys
	id, _ := sh.Elements.Get("ID")
	if !id.Key || !id.NotNull {
		t.Errorf("key ID lost its notNull: key=%v notNull=%v", id.Key, id.NotNull)
	}
	total, _ := sh.Elements.Get("total")
	if total.NotNull {
		t.Errorf("total stayed notNull in the draft")
	}

	active, _ := sh.Elements.Get("IsActiveEntity")
	if !active.Key || active.Type != csn.TypeBoolean {
		t.Errorf("IsActiveEntity: key=%v type=%q", active.Key, active.Type)
	}
	if active.Default == nil || active.Default.Val.Kind != csn.ValBool || !active.Default.Val.Bool {
		t.Errorf("IsActiveEntity: default not true: %+v", active.Default)
	}
	has, _ := sh.Elements.Get("HasActiveEntity")
	if has.Default == nil || has.Default.Val.Bool {
		t.Errorf("HasActiveEntity: default not false: %+v", has.Default)
	}

	admin, _ := sh.Elements.Get("DraftAdministrativeData")
	if admin.Target != "S.DraftAdministrativeData" || !admin.NotNull {
		t.Errorf("admin-data link: target=%q notNull=%v", admin.Target, admin.NotNull)
	}
	if len(admin.On) != 3 {
		t.Fatalf("link on-condition: %+v", admin.On)
	}
	if got := model.Refs.Get(admin.On[0].Ref).Path(); got != "DraftAdministrativeData.DraftUUID" {
		t.Errorf("on left side: %q", got)
	}
	if got := model.Refs.Get(admin.On[2].Ref).Path(); got != "S.Orders.drafts.DraftAdministrativeData_DraftUUID" {
		t.Errorf("on right side: %q", got)
	}
	fk, _ := sh.Elements.Get("DraftAdministrativeData_DraftUUID")
	if fk.Type != csn.TypeUUID {
		t.Errorf("FK element: type %q", fk.Type)
	}

	adm, ok := model.Definition("S.DraftAdministrativeData")
	if !ok {
		t.Fatalf("S.DraftAdministrativeData not created")
	}
	key, _ := adm.Elements.Get("DraftUUID")
	if key == nil || !key.Key || key.Type != csn.TypeUUID {
		t.Errorf("DraftUUID: %+v", key)
	}
	if _, ok := adm.Elements.Get("InProcessByUser"); !ok {
		t.Errorf("no administrative fields: %v", adm.Elements.Names())
	}
}

func TestDraftCompositionSubtreeRedirected(t *testing.T) {
	const src = `{
  "definitions": {
    "S": {"kind": "service"},
    "S.Orders": {"kind": "entity",
      "@odata.draft.enabled": true,
      "elements": {
        "ID": {"key": true, "type": "cds.UUID"},
        "items": {"type": "cds.Composition", "target": "S.Items", "cardinality": {"max": "*"}},
        "buyer": {"type": "cds.Association", "target": "S.Buyers"}
      }},
    "S.Items": {"kind": "entity", "elements": {
      "ID": {"key": true, "type": "cds.UUID"}
    }},
    "S.Buyers": {"kind": "entity", "elements": {
      "ID": {"key": true, "type": "cds.UUID"}
    }}
  }
}`
	model, bag := generateModel(t, src, plainOptions())
	if bag.HasErrors() {
		t.Fatalf("unexpected errors: %v", bag.Messages())
	}
	if _, ok := model.Definition("S.Items.drafts"); !ok {
		t.Fatalf("composition node got no shadow: %v", model.Definitions.Names())
	}
	// a plain association does not extend the subtree
	if _, ok := model.Definition("S.Buyers.drafts"); ok {
		t.Errorf("an association must not yield a shadow")
	}

	sh, _ := model.Definition("S.Orders.drafts")
	items, _ := sh.Elements.Get("items")
	if items.Target != "S.Items.drafts" {
		t.Errorf("shadow composition not redirected: %q", items.Target)
	}
	buyer, _ := sh.Elements.Get("buyer")
	if buyer.Target != "S.Buyers" {
		t.Errorf("association outside the subtree redirected: %q", buyer.Target)
	}

	// the original is untouched
	orig, _ := model.Definition("S.Orders")
	origItems, _ := orig.Elements.Get("items")
	if origItems.Target != "S.Items" {
		t.Errorf("original composition redirected: %q", origItems.Target)
	}
}

func TestDraftNestedRootRejected(t *testing.T) {
	const src = `{
  "definitions": {
    "S": {"kind": "service"},
    "S.Orders": {"kind": "entity",
      "@odata.draft.enabled": true,
      "elements": {
        "ID": {"key": true, "type": "cds.UUID"},
        "sub": {"type": "cds.Composition", "target": "S.Sub"}
      }},
    "S.Sub": {"kind": "entity",
      "@odata.draft.enabled": true,
      "elements": {
        "ID": {"key": true, "type": "cds.UUID"}
      }}
  }
}`
	model, bag := generateModel(t, src, plainOptions())
	if !hasCode(bag, diag.DraftNestedRoot) {
		t.Fatalf("no draft-nested-root error: %v", bag.Messages())
	}
	// a nested root skips the whole outer root
	if _, ok := model.Definition("S.Orders.drafts"); ok {
		t.Errorf("root with a nested draft got a shadow")
	}
	// the nested root itself remains a root in its own right
	if _, ok := model.Definition("S.Sub.drafts"); !ok {
		t.Errorf("S.Sub as a standalone root has no shadow")
	}
}

func TestDraftLegacySuffix(t *testing.T) {
	opts := plainOptions()
	opts.LegacyDraftSuffix = true
	model, bag := generateModel(t, ordersCSN, opts)
	if bag.HasErrors() {
		t.Fatalf("unexpected errors: %v", bag.Messages())
	}
	if _, ok := model.Definition("S.Orders_drafts"); !ok {
		t.Fatalf("legacy suffix not applied: %v", model.Definitions.Names())
	}
	if _, ok := model.Definition("S.Orders.drafts"); ok {
		t.Errorf("dotted-suffix shadow created despite the legacy flag")
	}
}

func TestDraftKeepVirtualFlag(t *testing.T) {
	opts := plainOptions()
	opts.KeepVirtualInDrafts = true
	model, bag := generateModel(t, ordersCSN, opts)
	if bag.HasErrors() {
		t.Fatalf("unexpected errors: %v", bag.Messages())
	}
	sh, _ := model.Definition("S.Orders.drafts")
	if _, ok := sh.Elements.Get("hint"); !ok {
		t.Errorf("virtual element not kept under the compatibility flag: %v", sh.Elements.Names())
	}
}

func TestDraftNameCollisionSkipsNode(t *testing.T) {
	const src = `{
  "definitions": {
    "S": {"kind": "service"},
    "S.Orders": {"kind": "entity",
      "@odata.draft.enabled": true,
      "elements": {
        "ID": {"key": true, "type": "cds.UUID"}
      }},
    "S.Orders.drafts": {"kind": "type", "type": "cds.String"}
  }
}`
	model, bag := generateModel(t, src, plainOptions())
	if !hasCode(bag, diag.DraftNameCollision) {
		t.Fatalf("no draft-name-collision error: %v", bag.Messages())
	}
	// the existing definition is not clobbered
	def, _ := model.Definition("S.Orders.drafts")
	if def.Kind != csn.KindType {
		t.Errorf("existing definition clobbered: kind=%v", def.Kind)
	}
}

func TestDraftOutsideServiceIgnored(t *testing.T) {
	const src = `{
  "definitions": {
    "Orders": {"kind": "entity",
      "@odata.draft.enabled": true,
      "elements": {
        "ID": {"key": true, "type": "cds.UUID"}
      }}
  }
}`
	model, bag := generateModel(t, src, plainOptions())
	if bag.HasErrors() {
		t.Fatalf("unexpected errors: %v", bag.Messages())
	}
	if _, ok := model.Definition("Orders.drafts"); ok {
		t.Errorf("entity outside a service got a shadow")
	}
}

func TestDraftSharedAdminDataPerService(t *testing.T) {
	const src = `{
  "definitions": {
    "S": {"kind": "service"},
    "S.A": {"kind": "entity",
      "@odata.draft.enabled": true,
      "elements": {"ID": {"key": true, "type": "cds.UUID"}}},
    "S.B": {"kind": "entity",
      "@odata.draft.enabled": true,
      "elements": {"ID": {"key": true, "type": "cds.UUID"}}}
  }
}`
	model, bag := generateModel(t, src, plainOptions())
	if bag.HasErrors() {
		t.Fatalf("second root of the same service did not reuse the admin data: %v", bag.Messages())
	}
	count := 0
	for _, name := range model.Definitions.Names() {
		if strings.HasSuffix(name, ".DraftAdministrativeData") {
			count++
		}
	}
	if count != 1 {
		t.Errorf("%d admin entities, want 1", count)
	}
	for _, root := range []string{"S.A.drafts", "S.B.drafts"} {
		if _, ok := model.Definition(root); !ok {
			t.Errorf("no shadow %q", root)
		}
	}
}

func TestDraftShadowOnConditionRerooted(t *testing.T) {
	const src = `{
  "definitions": {
    "S": {"kind": "service"},
    "S.Orders": {"kind": "entity",
      "@odata.draft.enabled": true,
      "elements": {
        "ID": {"key": true, "type": "cds.UUID"},
        "open": {"type": "cds.Association", "target": "S.Flags",
                 "on": [{"ref": ["open", "code"]}, "=", {"ref": ["S.Orders", "ID"]}]}
      }},
    "S.Flags": {"kind": "entity", "elements": {
      "code": {"key": true, "type": "cds.UUID"}
    }}
  }
}`
	model, bag := generateModel(t, src, plainOptions())
	if bag.HasErrors() {
		t.Fatalf("unexpected errors: %v", bag.Messages())
	}
	sh, _ := model.Definition("S.Orders.drafts")
	open, _ := sh.Elements.Get("open")
	// source side rerooted onto the shadow, target side untouched
	if got := model.Refs.Get(open.On[2].Ref).Path(); got != "S.Orders.drafts.ID" {
		t.Errorf("source root: %q", got)
	}
	if got := model.Refs.Get(open.On[0].Ref).Path(); got != "open.code" {
		t.Errorf("target side changed: %q", got)
	}
	// the original's on-condition did not suffer from the clone
	orig, _ := model.Definition("S.Orders")
	od, _ := orig.Elements.Get("open")
	if got := model.Refs.Get(od.On[2].Ref).Path(); got != "S.Orders.ID" {
		t.Errorf("original on rewritten: %q", got)
	}
}
