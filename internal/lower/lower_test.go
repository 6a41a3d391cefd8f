package lower

import (
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

// lowerModel runs the model through flattening and rewriting — exists
// reads materialized foreign keys, so flattening is mandatory.
func lowerModel(t *testing.T, src string) (*csn.Model, *diag.Bag) {
	t.Helper()
	model, bag := decodeModel(t, src)
	rep := diag.BagReporter{Bag: bag}
	res := resolve.New(model, rep)
	opts := &csn.Options{Naming: csn.NamingPlain, Target: csn.TargetSQL}
	flatten.New(model, res, rep, opts).FlattenModel()
	New(model, res, rep).LowerModel()
	return model, bag
}

func refPath(t *testing.T, m *csn.Model, e csn.Expr) string {
	t.Helper()
	if e.Kind != csn.ExprRef {
		t.Fatalf("expected a ref, got kind %d", e.Kind)
	}
	return m.Refs.Get(e.Ref).Path()
}

func viewWhere(t *testing.T, m *csn.Model, name string) csn.Xpr {
	t.Helper()
	def, ok := m.Definition(name)
	if !ok || def.Query == nil || def.Query.Select == nil {
		t.Fatalf("no query on %q", name)
	}
	return def.Query.Select.Where
}

func subSelect(t *testing.T, e csn.Expr) *csn.Select {
	t.Helper()
	if e.Kind != csn.ExprQuery || e.Query == nil || e.Query.Select == nil {
		t.Fatalf("expected a subquery, got kind %d", e.Kind)
	}
	return e.Query.Select
}

func TestExistsManagedLowering(t *testing.T) {
	const src = `{
  "definitions": {
    "E": {"kind": "entity", "elements": {
      "id": {"key": true, "type": "cds.Integer"},
      "assoc": {"type": "cds.Association", "target": "F"}
    }},
    "F": {"kind": "entity", "elements": {
      "id": {"key": true, "type": "cds.Integer"}
    }},
    "EV": {"kind": "entity", "query": {"SELECT": {
      "from": {"ref": ["E"]},
      "where": ["exists", {"ref": ["assoc"]}]
    }}}
  }
}`
	model, bag := lowerModel(t, src)
	if bag.HasErrors() {
		t.Fatalf("unexpected errors: %v", bag.Messages())
	}
	where := viewWhere(t, model, "EV")
	if len(where) != 2 || !where[0].IsOp("exists") {
		t.Fatalf("expected exists (subquery), got %d tokens", len(where))
	}
	sub := subSelect(t, where[1])
	if got := model.Refs.Get(sub.From.Ref).Path(); got != "F" {
		t.Errorf("subquery source %q, want F", got)
	}
	if sub.From.Alias != "_assoc_exists" {
		t.Errorf("subquery alias %q, want _assoc_exists", sub.From.Alias)
	}
	// SELECT 1 as dummy
	if len(sub.Columns) != 1 || sub.Columns[0].Val.Num != "1" || sub.Columns[0].Alias != "dummy" {
		t.Errorf("subquery columns: %+v", sub.Columns)
	}
	// join predicate over the foreign key
	if len(sub.Where) != 3 {
		t.Fatalf("predicate of %d tokens: %+v", len(sub.Where), sub.Where)
	}
	if got := refPath(t, model, sub.Where[0]); got != "_assoc_exists.id" {
		t.Errorf("left side %q, want _assoc_exists.id", got)
	}
	if !sub.Where[1].IsOp("=") {
		t.Errorf("operator %+v, want =", sub.Where[1])
	}
	if got := refPath(t, model, sub.Where[2]); got != "E.assoc.id" {
		t.Errorf("right side %q, want E.assoc.id", got)
	}
}

func TestExistsChainNestsIntoSubSelects(t *testing.T) {
	const src = `{
  "definitions": {
    "A": {"kind": "entity", "elements": {
      "id": {"key": true, "type": "cds.Integer"},
      "b": {"type": "cds.Association", "target": "B"}
    }},
    "B": {"kind": "entity", "elements": {
      "id": {"key": true, "type": "cds.Integer"},
      "c": {"type": "cds.Association", "target": "C"}
    }},
    "C": {"kind": "entity", "elements": {
      "id": {"key": true, "type": "cds.Integer"}
    }},
    "AV": {"kind": "entity", "query": {"SELECT": {
      "from": {"ref": ["A"]},
      "where": ["exists", {"ref": ["b", "c"]}]
    }}}
  }
}`
	model, bag := lowerModel(t, src)
	if bag.HasErrors() {
		t.Fatalf("unexpected errors: %v", bag.Messages())
	}
	where := viewWhere(t, model, "AV")
	if len(where) != 2 {
		t.Fatalf("outer stream of %d tokens", len(where))
	}
	sub1 := subSelect(t, where[1])
	if sub1.From.Alias != "_b_exists" {
		t.Errorf("first subquery alias %q", sub1.From.Alias)
	}
	// and-predicate (nested exists folded from the path tail)
	if len(sub1.Where) != 3 || sub1.Where[0].Kind != csn.ExprXpr || !sub1.Where[1].IsOp("and") || sub1.Where[2].Kind != csn.ExprXpr {
		t.Fatalf("first subquery WHERE: %+v", sub1.Where)
	}
	join := sub1.Where[0].Sub
	if got := refPath(t, model, join[0]); got != "_b_exists.id" {
		t.Errorf("join predicate left %q", got)
	}
	if got := refPath(t, model, join[2]); got != "A.b.id" {
		t.Errorf("join predicate right %q", got)
	}
	nested := sub1.Where[2].Sub
	if len(nested) != 2 || !nested[0].IsOp("exists") {
		t.Fatalf("nested exists not materialized: %+v", nested)
	}
	sub2 := subSelect(t, nested[1])
	if got := model.Refs.Get(sub2.From.Ref).Path(); got != "C" {
		t.Errorf("second subquery source %q", got)
	}
	if sub2.From.Alias != "_c_exists" {
		t.Errorf("second subquery alias %q", sub2.From.Alias)
	}
	// correlation via the first subquery's alias
	if got := refPath(t, model, sub2.Where[0]); got != "_c_exists.id" {
		t.Errorf("second predicate left %q", got)
	}
	if got := refPath(t, model, sub2.Where[2]); got != "_b_exists.c.id" {
		t.Errorf("second predicate right %q", got)
	}
}

func TestExistsUnmanagedBacklink(t *testing.T) {
	const src = `{
  "definitions": {
    "Authors": {"kind": "entity", "elements": {
      "id": {"key": true, "type": "cds.Integer"},
      "books": {"type": "cds.Association", "target": "Books", "cardinality": {"max": "*"},
        "on": [{"ref": ["books", "author"]}, "=", {"ref": ["$self"]}]}
    }},
    "Books": {"kind": "entity", "elements": {
      "id": {"key": true, "type": "cds.Integer"},
      "author": {"type": "cds.Association", "target": "Authors"}
    }},
    "AV": {"kind": "entity", "query": {"SELECT": {
      "from": {"ref": ["Authors"]},
      "where": ["exists", {"ref": ["books"]}]
    }}}
  }
}`
	model, bag := lowerModel(t, src)
	if bag.HasErrors() {
		t.Fatalf("unexpected errors: %v", bag.Messages())
	}
	where := viewWhere(t, model, "AV")
	sub := subSelect(t, where[1])
	if sub.From.Alias != "_books_exists" {
		t.Errorf("alias %q", sub.From.Alias)
	}
	// backlink expanded over the foreign key: target side under the alias,
	// source side under the outer name
	if len(sub.Where) != 3 {
		t.Fatalf("predicate of %d tokens: %+v", len(sub.Where), sub.Where)
	}
	if got := refPath(t, model, sub.Where[0]); got != "_books_exists.author.id" {
		t.Errorf("target side %q", got)
	}
	if got := refPath(t, model, sub.Where[2]); got != "Authors.id" {
		t.Errorf("source side %q", got)
	}

	// the entity's own on-condition is absolutized independently of the subquery
	authors, _ := model.Definition("Authors")
	books, _ := authors.Elements.Get("books")
	if len(books.On) != 3 {
		t.Fatalf("on of %d tokens: %+v", len(books.On), books.On)
	}
	if got := refPath(t, model, books.On[0]); got != "books.author.id" {
		t.Errorf("on target side %q", got)
	}
	if got := refPath(t, model, books.On[2]); got != "Authors.id" {
		t.Errorf("on source side %q", got)
	}
}

func TestExistsStepFilterRerooted(t *testing.T) {
	const src = `{
  "definitions": {
    "E": {"kind": "entity", "elements": {
      "id": {"key": true, "type": "cds.Integer"},
      "assoc": {"type": "cds.Association", "target": "F"}
    }},
    "F": {"kind": "entity", "elements": {
      "id": {"key": true, "type": "cds.Integer"},
      "price": {"type": "cds.Integer"}
    }},
    "EV": {"kind": "entity", "query": {"SELECT": {
      "from": {"ref": ["E"]},
      "where": ["exists", {"ref": [{"id": "assoc", "where": [{"ref": ["price"]}, ">", {"val": 10}]}]}]
    }}}
  }
}`
	model, bag := lowerModel(t, src)
	if bag.HasErrors() {
		t.Fatalf("unexpected errors: %v", bag.Messages())
	}
	sub := subSelect(t, viewWhere(t, model, "EV")[1])
	// step filter joined to the predicate with and
	if len(sub.Where) != 3 || !sub.Where[1].IsOp("and") {
		t.Fatalf("subquery WHERE: %+v", sub.Where)
	}
	filt := sub.Where[2].Sub
	if len(filt) != 3 {
		t.Fatalf("filter of %d tokens: %+v", len(filt), filt)
	}
	if got := refPath(t, model, filt[0]); got != "_assoc_exists.price" {
		t.Errorf("filter ref %q, want _assoc_exists.price", got)
	}
	if filt[2].Val.Num != "10" {
		t.Errorf("filter literal %+v", filt[2].Val)
	}
}

func TestExistsNonAssociationFails(t *testing.T) {
	const src = `{
  "definitions": {
    "E": {"kind": "entity", "elements": {
      "id": {"key": true, "type": "cds.Integer"},
      "name": {"type": "cds.String"}
    }},
    "EV": {"kind": "entity", "query": {"SELECT": {
      "from": {"ref": ["E"]},
      "where": ["exists", {"ref": ["name"]}]
    }}}
  }
}`
	model, bag := lowerModel(t, src)
	found := false
	for _, m := range bag.Messages() {
		if m.Code == diag.ExistsExpectedAssoc {
			found = true
		}
	}
	if !found {
		t.Fatalf("no exists-expected-assoc message: %v", bag.Messages())
	}
	// the pair is dropped: empty result for the expression
	if where := viewWhere(t, model, "EV"); len(where) != 0 {
		t.Errorf("stream not emptied: %+v", where)
	}
}

func TestExistsAliasLengthenedOnCollision(t *testing.T) {
	const src = `{
  "definitions": {
    "E": {"kind": "entity", "elements": {
      "id": {"key": true, "type": "cds.Integer"},
      "assoc": {"type": "cds.Association", "target": "F"}
    }},
    "F": {"kind": "entity", "elements": {
      "id": {"key": true, "type": "cds.Integer"}
    }},
    "EV": {"kind": "entity", "query": {"SELECT": {
      "from": {"ref": ["E"], "as": "_assoc_exists"},
      "where": ["exists", {"ref": ["assoc"]}]
    }}}
  }
}`
	model, bag := lowerModel(t, src)
	if bag.HasErrors() {
		t.Fatalf("unexpected errors: %v", bag.Messages())
	}
	sub := subSelect(t, viewWhere(t, model, "EV")[1])
	// alias grows by underscores until unique
	if sub.From.Alias != "__assoc_exists" {
		t.Errorf("alias %q, want __assoc_exists", sub.From.Alias)
	}
	if got := refPath(t, model, sub.Where[2]); got != "_assoc_exists.assoc.id" {
		t.Errorf("right side %q", got)
	}
}

func TestExistsAliasQualifiedAccess(t *testing.T) {
	const src = `{
  "definitions": {
    "E": {"kind": "entity", "elements": {
      "id": {"key": true, "type": "cds.Integer"},
      "assoc": {"type": "cds.Association", "target": "F"}
    }},
    "F": {"kind": "entity", "elements": {
      "id": {"key": true, "type": "cds.Integer"}
    }},
    "EV": {"kind": "entity", "query": {"SELECT": {
      "from": {"ref": ["E"], "as": "e"},
      "where": ["exists", {"ref": ["e", "assoc"]}]
    }}}
  }
}`
	model, bag := lowerModel(t, src)
	if bag.HasErrors() {
		t.Fatalf("unexpected errors: %v", bag.Messages())
	}
	sub := subSelect(t, viewWhere(t, model, "EV")[1])
	// alias-qualified access does not grow a second prefix
	if got := refPath(t, model, sub.Where[2]); got != "e.assoc.id" {
		t.Errorf("right side %q, want e.assoc.id", got)
	}
}

func TestExistsInsideConjunctionKeepsSiblings(t *testing.T) {
	const src = `{
  "definitions": {
    "E": {"kind": "entity", "elements": {
      "id": {"key": true, "type": "cds.Integer"},
      "assoc": {"type": "cds.Association", "target": "F"}
    }},
    "F": {"kind": "entity", "elements": {
      "id": {"key": true, "type": "cds.Integer"}
    }},
    "EV": {"kind": "entity", "query": {"SELECT": {
      "from": {"ref": ["E"]},
      "where": [{"ref": ["id"]}, "=", {"val": 1}, "and", "exists", {"ref": ["assoc"]}]
    }}}
  }
}`
	model, bag := lowerModel(t, src)
	if bag.HasErrors() {
		t.Fatalf("unexpected errors: %v", bag.Messages())
	}
	where := viewWhere(t, model, "EV")
	if len(where) != 6 {
		t.Fatalf("stream of %d tokens: %+v", len(where), where)
	}
	if got := refPath(t, model, where[0]); got != "id" {
		t.Errorf("first token %q", got)
	}
	if !where[4].IsOp("exists") || where[5].Kind != csn.ExprQuery {
		t.Errorf("stream tail not rewritten: %+v", where[4:])
	}
}

func TestOnAbsolutizationQualifiesSourceSide(t *testing.T) {
	const src = `{
  "definitions": {
    "S.E": {"kind": "entity", "elements": {
      "id": {"key": true, "type": "cds.Integer"},
      "code": {"type": "cds.Integer"},
      "rel": {"type": "cds.Association", "target": "S.F",
        "on": [{"ref": ["rel", "code"]}, "=", {"ref": ["code"]}]}
    }},
    "S.F": {"kind": "entity", "elements": {
      "code": {"key": true, "type": "cds.Integer"}
    }}
  }
}`
	model, bag := lowerModel(t, src)
	if bag.HasErrors() {
		t.Fatalf("unexpected errors: %v", bag.Messages())
	}
	e, _ := model.Definition("S.E")
	rel, _ := e.Elements.Get("rel")
	if len(rel.On) != 3 {
		t.Fatalf("on of %d tokens", len(rel.On))
	}
	// target side stays under the association name
	if got := refPath(t, model, rel.On[0]); got != "rel.code" {
		t.Errorf("target side %q", got)
	}
	// the source-side sibling gets the entity name
	if got := refPath(t, model, rel.On[2]); got != "S.E.code" {
		t.Errorf("source side %q, want S.E.code", got)
	}
}

func TestOnBacklinkMultiKeyWrapped(t *testing.T) {
	const src = `{
  "definitions": {
    "Authors": {"kind": "entity", "elements": {
      "id": {"key": true, "type": "cds.Integer"},
      "ver": {"key": true, "type": "cds.Integer"},
      "books": {"type": "cds.Association", "target": "Books", "cardinality": {"max": "*"},
        "on": [{"ref": ["books", "author"]}, "=", {"ref": ["$self"]}]}
    }},
    "Books": {"kind": "entity", "elements": {
      "id": {"key": true, "type": "cds.Integer"},
      "author": {"type": "cds.Association", "target": "Authors"}
    }}
  }
}`
	model, bag := lowerModel(t, src)
	if bag.HasErrors() {
		t.Fatalf("unexpected errors: %v", bag.Messages())
	}
	authors, _ := model.Definition("Authors")
	books, _ := authors.Elements.Get("books")
	// two-key expansion is wrapped in a bracketed node
	if len(books.On) != 1 || books.On[0].Kind != csn.ExprXpr {
		t.Fatalf("on: %+v", books.On)
	}
	sub := books.On[0].Sub
	if len(sub) != 7 || !sub[3].IsOp("and") {
		t.Fatalf("expansion of %d tokens: %+v", len(sub), sub)
	}
	if got := refPath(t, model, sub[0]); got != "books.author.id" {
		t.Errorf("first comparison %q", got)
	}
	if got := refPath(t, model, sub[4]); got != "books.author.ver" {
		t.Errorf("second comparison %q", got)
	}
	if got := refPath(t, model, sub[6]); got != "Authors.ver" {
		t.Errorf("second comparison source %q", got)
	}
}

func TestOnBareSelfWithoutBacklinkFails(t *testing.T) {
	const src = `{
  "definitions": {
    "E": {"kind": "entity", "elements": {
      "id": {"key": true, "type": "cds.Integer"},
      "code": {"type": "cds.Integer"},
      "rel": {"type": "cds.Association", "target": "F",
        "on": [{"ref": ["code"]}, "=", {"ref": ["$self"]}]}
    }},
    "F": {"kind": "entity", "elements": {
      "code": {"key": true, "type": "cds.Integer"}
    }}
  }
}`
	model, bag := lowerModel(t, src)
	found := false
	for _, m := range bag.Messages() {
		if m.Code == diag.OnExpectedBacklink {
			found = true
		}
	}
	if !found {
		t.Fatalf("no on-expected-backlink message: %v", bag.Messages())
	}
	// the token is kept, the stream stays intact
	e, _ := model.Definition("E")
	rel, _ := e.Elements.Get("rel")
	if len(rel.On) != 3 {
		t.Errorf("on of %d tokens: %+v", len(rel.On), rel.On)
	}
	if got := refPath(t, model, rel.On[2]); got != "$self" {
		t.Errorf("right side %q, want $self", got)
	}
}
