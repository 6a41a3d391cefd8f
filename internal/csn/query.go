package csn

// QueryKind tells the query shape apart. Deep down the model carries
// only SELECTs; set operations are stored as an operand tree and
// translate as is.
type QueryKind uint8

const (
	QuerySelect QueryKind = iota
	QuerySet
)

type Query struct {
	Kind QueryKind

	// QuerySelect
	Select *Select

	// QuerySet
	SetOp string // "union" | "intersect" | "except"
	All   bool
	Args  []*Query
}

// Select is a SELECT body. Column and mixin order matters.
type Select struct {
	From      *From
	Mixins    *Dict[*Element]
	Columns   []Expr
	Excluding []string
	Where     Xpr
	GroupBy   []Expr
	Having    Xpr
	OrderBy   []OrderItem
	Limit     *Limit
	Distinct  bool
}

// FromKind tells the data source shape apart.
type FromKind uint8

const (
	FromRef FromKind = iota
	FromJoin
	FromQuery
)

// From is a SELECT source: an entity ref, a join tree or a subquery.
type From struct {
	Kind  FromKind
	Ref   RefID // FromRef
	Join  *Join // FromJoin
	Query *Query // FromQuery
	Alias string
}

// Primary returns the leftmost source leaf of a join tree.
// For subqueries it returns nil.
func (f *From) Primary() *From {
	if f == nil {
		return nil
	}
	switch f.Kind {
	case FromRef:
		return f
	case FromJoin:
		if f.Join != nil && len(f.Join.Args) > 0 {
			return f.Join.Args[0].Primary()
		}
	}
	return nil
}

type Join struct {
	Kind string // "inner" | "left" | "right" | "full" | "cross"
	Args []*From
	On   Xpr
}

type OrderItem struct {
	Expr  Expr
	Sort  string // "asc" | "desc" | ""
	Nulls string // "first" | "last" | ""
}

type Limit struct {
	Rows   *Value
	Offset *Value
}

// NewSelectFrom builds a minimal single-source SELECT.
func NewSelectFrom(ref RefID, alias string) *Query {
	return &Query{
		Kind: QuerySelect,
		Select: &Select{
			From: &From{Kind: FromRef, Ref: ref, Alias: alias},
		},
	}
}
