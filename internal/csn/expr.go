package csn

type ExprKind uint8

const (
	ExprInvalid ExprKind = iota
	// ExprRef is a path reference: {"ref": [...]}.
	ExprRef
	// ExprVal is a literal: {"val": ...}.
	ExprVal
	// ExprOp is a bare operator token in the stream: "=", "and", "exists".
	ExprOp
	// ExprFunc is a function call: {"func": "count", "args": [...]}.
	ExprFunc
	// ExprXpr is a nested (bracketed) expression: {"xpr": [...]}.
	ExprXpr
	// ExprQuery is a subquery: {"SELECT": {...}}.
	ExprQuery
	// ExprList is a tuple: {"list": [...]}.
	ExprList
	// ExprStar is "*" in a column list.
	ExprStar
	// ExprParam is a parameter marker: {"ref": [...], "param": true}.
	ExprParam
)

// Expr is one expression node. CSN stores conditions as flat token
// streams, not trees, so an Expr is a stream element: a ref, a
// literal, an operator token, a call, or a nested stream.
type Expr struct {
	Kind ExprKind

	Ref   RefID  // ExprRef, ExprParam
	Val   Value  // ExprVal
	Op    string // ExprOp
	Func  string // ExprFunc
	Args  []Expr // ExprFunc, ExprList
	Sub   Xpr    // ExprXpr
	Query *Query // ExprQuery

	// Column decorations ("as", "key", "cast"). Empty outside column lists.
	Alias string
	Key   bool
	Cast  *TypeFacetsWithType

	// Generated marks tokens synthesized by the rewriting phases so the
	// exists pre-pass does not fire on them a second time.
	Generated bool
}

// TypeFacetsWithType is a type with facets for column "cast".
type TypeFacetsWithType struct {
	Type   string
	Facets TypeFacets
}

// RefExpr builds a plain reference node.
func RefExpr(id RefID) Expr { return Expr{Kind: ExprRef, Ref: id} }

// ValExpr builds a literal node.
func ValExpr(v Value) Expr { return Expr{Kind: ExprVal, Val: v} }

// OpExpr builds an operator token node.
func OpExpr(op string) Expr { return Expr{Kind: ExprOp, Op: op} }

// IsOp reports whether the node is the given operator token.
// No case-insensitive comparison needed: the decoder normalizes tokens.
func (e *Expr) IsOp(op string) bool {
	return e.Kind == ExprOp && e.Op == op
}

// Xpr is a flat condition token stream, as in the CSN "xpr" array.
type Xpr []Expr

// And joins two token streams with and, wrapping the operands in
// bracketed nodes to keep precedence intact.
func And(a, b Xpr) Xpr {
	switch {
	case len(a) == 0:
		return b
	case len(b) == 0:
		return a
	}
	out := make(Xpr, 0, 3)
	out = append(out, wrapXpr(a), OpExpr("and"), wrapXpr(b))
	return out
}

func wrapXpr(x Xpr) Expr {
	if len(x) == 1 {
		return x[0]
	}
	return Expr{Kind: ExprXpr, Sub: x}
}

// Eq builds the stream `left = right`.
func Eq(left, right Expr) Xpr {
	return Xpr{left, OpExpr("="), right}
}
