package csn

import "testing"

func TestRefArenaBasics(t *testing.T) {
	arena := NewRefArena(0)

	if got := arena.Get(NoRefID); got != nil {
		t.Fatalf("Get(NoRefID) must return nil, got %v", got)
	}

	first := arena.Steps("books", "author")
	second := arena.Steps("genre")
	if first != 1 || second != 2 {
		t.Fatalf("ids must be 1-based sequential, got %d %d", first, second)
	}
	if arena.Len() != 2 {
		t.Fatalf("expected len 2, got %d", arena.Len())
	}
	if got := arena.Get(first).Path(); got != "books.author" {
		t.Fatalf("unexpected path %q", got)
	}
	if got := arena.Get(second).FirstID(); got != "genre" {
		t.Fatalf("unexpected first id %q", got)
	}
}

func TestRefArenaVersions(t *testing.T) {
	arena := NewRefArena(0)
	id := arena.Steps("a", "b")

	if v := arena.Version(id); v != 0 {
		t.Fatalf("fresh node must be version 0, got %d", v)
	}

	// Mutating through Get takes an explicit Bump
	arena.Get(id).Steps[0].ID = "x"
	arena.Bump(id)
	if v := arena.Version(id); v != 1 {
		t.Fatalf("expected version 1 after bump, got %d", v)
	}

	arena.Update(id, Ref{Steps: []RefStep{{ID: "y"}}})
	if v := arena.Version(id); v != 2 {
		t.Fatalf("expected version 2 after update, got %d", v)
	}
	if got := arena.Get(id).Path(); got != "y" {
		t.Fatalf("update must replace steps, got %q", got)
	}

	// NoRefID is a safe no-op
	arena.Bump(NoRefID)
	arena.Update(NoRefID, Ref{})
	if v := arena.Version(NoRefID); v != 0 {
		t.Fatalf("NoRefID version must stay 0, got %d", v)
	}
}

func TestRefArenaCloneIsDeep(t *testing.T) {
	arena := NewRefArena(0)
	inner := arena.Steps("id")
	orig := arena.Allocate(Ref{Steps: []RefStep{
		{ID: "author", Where: Xpr{RefExpr(inner), OpExpr("="), ValExpr(Num("1"))}},
		{ID: "name"},
	}})

	clone := arena.CloneRef(orig)
	if clone == orig || clone == NoRefID {
		t.Fatalf("clone must be a fresh id, got %d (orig %d)", clone, orig)
	}

	// Mutate the copy: the original must not change
	arena.Get(clone).Steps[0].ID = "changed"
	arena.Get(clone).Steps[0].Where[2] = ValExpr(Num("2"))
	if got := arena.Get(orig).Steps[0].ID; got != "author" {
		t.Fatalf("original step mutated: %q", got)
	}
	origWhere := arena.Get(orig).Steps[0].Where
	if origWhere[2].Val.Num != "1" {
		t.Fatalf("original filter mutated: %v", origWhere[2].Val)
	}

	// The nested ref inside the filter also moved to a fresh id
	cloneInner := arena.Get(clone).Steps[0].Where[0].Ref
	if cloneInner == inner {
		t.Fatalf("nested ref must be re-allocated, both are %d", inner)
	}
}

func TestAndWrapsOperands(t *testing.T) {
	a := Xpr{RefExpr(1), OpExpr("="), ValExpr(Num("1"))}
	b := Xpr{RefExpr(2), OpExpr("="), ValExpr(Num("2"))}

	out := And(a, b)
	if len(out) != 3 {
		t.Fatalf("expected wrapped form of 3 tokens, got %d", len(out))
	}
	if out[0].Kind != ExprXpr || len(out[0].Sub) != 3 {
		t.Fatalf("left operand must be wrapped, got kind %d", out[0].Kind)
	}
	if !out[1].IsOp("and") {
		t.Fatalf("middle token must be and, got %v", out[1])
	}

	// Empty operands pass through
	if got := And(nil, b); len(got) != 3 || got[0].Ref != 2 {
		t.Fatalf("And(nil, b) must return b")
	}
	if got := And(a, nil); len(got) != 3 || got[0].Ref != 1 {
		t.Fatalf("And(a, nil) must return a")
	}
}
