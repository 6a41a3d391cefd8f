package source

import "testing"

func TestLocString(t *testing.T) {
	point := Loc{File: 1, Line: 3, Col: 5}
	if got := point.String(); got != "1:3:5" {
		t.Errorf("point String() = %q", got)
	}

	ranged := Loc{File: 1, Line: 3, Col: 5, EndLine: 3, EndCol: 12}
	if got := ranged.String(); got != "1:3:5-3:12" {
		t.Errorf("range String() = %q", got)
	}
}

func TestLocBefore(t *testing.T) {
	cases := []struct {
		name string
		a, b Loc
		want bool
	}{
		{"earlier line", Loc{File: 1, Line: 2, Col: 9}, Loc{File: 1, Line: 3, Col: 1}, true},
		{"same line earlier col", Loc{File: 1, Line: 2, Col: 1}, Loc{File: 1, Line: 2, Col: 9}, true},
		{"later col", Loc{File: 1, Line: 2, Col: 9}, Loc{File: 1, Line: 2, Col: 1}, false},
		{"file id dominates", Loc{File: 1, Line: 99, Col: 99}, Loc{File: 2, Line: 1, Col: 1}, true},
	}
	for _, c := range cases {
		if got := c.a.Before(c.b); got != c.want {
			t.Errorf("%s: Before = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestLocCover(t *testing.T) {
	a := Loc{File: 1, Line: 2, Col: 4, EndLine: 2, EndCol: 10}
	b := Loc{File: 1, Line: 2, Col: 1, EndLine: 3, EndCol: 2}

	got := a.Cover(b)
	want := Loc{File: 1, Line: 2, Col: 1, EndLine: 3, EndCol: 2}
	if got != want {
		t.Errorf("Cover = %+v, want %+v", got, want)
	}

	// Positions from different files never merge
	other := Loc{File: 2, Line: 1, Col: 1}
	if got := a.Cover(other); got != a {
		t.Errorf("cross-file Cover = %+v, want unchanged %+v", got, a)
	}
}

func TestLocNarrower(t *testing.T) {
	known := Loc{File: 1, Line: 2, Col: 3}
	empty := Loc{}
	if !known.Narrower(empty) {
		t.Error("known position must be narrower than empty")
	}

	closed := Loc{File: 1, Line: 2, Col: 3, EndLine: 2, EndCol: 8}
	if !closed.Narrower(known) {
		t.Error("closed range must be narrower than open point")
	}

	wide := Loc{File: 1, Line: 2, Col: 3, EndLine: 5, EndCol: 1}
	if !closed.Narrower(wide) {
		t.Error("short range must be narrower than multi-line range")
	}
	if wide.Narrower(closed) {
		t.Error("multi-line range must not be narrower than short range")
	}
}
