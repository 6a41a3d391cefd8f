package csn

// Deep copies of model nodes. Every RefID inside a copy is
// reallocated in the same arena: a copy and its original never share
// a path, or rewriting one would silently change the other.

// CloneRef allocates a deep copy of a path and returns its identifier.
func (a *RefArena) CloneRef(id RefID) RefID {
	src := a.Get(id)
	if src == nil {
		return NoRefID
	}
	steps := make([]RefStep, len(src.Steps))
	for i := range src.Steps {
		steps[i] = RefStep{
			ID:    src.Steps[i].ID,
			Args:  cloneExprDict(a, src.Steps[i].Args),
			Where: CloneXpr(a, src.Steps[i].Where),
		}
	}
	return a.Allocate(Ref{Steps: steps})
}

// CloneXpr deep-copies a token stream.
func CloneXpr(a *RefArena, x Xpr) Xpr {
	if x == nil {
		return nil
	}
	out := make(Xpr, len(x))
	for i := range x {
		out[i] = CloneExpr(a, x[i])
	}
	return out
}

// CloneExpr deep-copies an expression node.
func CloneExpr(a *RefArena, e Expr) Expr {
	out := e
	out.Ref = a.CloneRef(e.Ref)
	if len(e.Args) > 0 {
		out.Args = make([]Expr, len(e.Args))
		for i := range e.Args {
			out.Args[i] = CloneExpr(a, e.Args[i])
		}
	}
	out.Sub = CloneXpr(a, e.Sub)
	out.Query = CloneQuery(a, e.Query)
	if e.Cast != nil {
		cast := *e.Cast
		out.Cast = &cast
	}
	return out
}

// CloneQuery deep-copies a query.
func CloneQuery(a *RefArena, q *Query) *Query {
	if q == nil {
		return nil
	}
	out := &Query{Kind: q.Kind, SetOp: q.SetOp, All: q.All}
	out.Select = CloneSelect(a, q.Select)
	if len(q.Args) > 0 {
		out.Args = make([]*Query, len(q.Args))
		for i := range q.Args {
			out.Args[i] = CloneQuery(a, q.Args[i])
		}
	}
	return out
}

// CloneSelect deep-copies a SELECT body.
func CloneSelect(a *RefArena, s *Select) *Select {
	if s == nil {
		return nil
	}
	out := &Select{
		From:     CloneFrom(a, s.From),
		Mixins:   cloneElementDict(a, s.Mixins),
		Where:    CloneXpr(a, s.Where),
		Having:   CloneXpr(a, s.Having),
		Distinct: s.Distinct,
	}
	if len(s.Excluding) > 0 {
		out.Excluding = append([]string(nil), s.Excluding...)
	}
	if len(s.Columns) > 0 {
		out.Columns = make([]Expr, len(s.Columns))
		for i := range s.Columns {
			out.Columns[i] = CloneExpr(a, s.Columns[i])
		}
	}
	if len(s.GroupBy) > 0 {
		out.GroupBy = make([]Expr, len(s.GroupBy))
		for i := range s.GroupBy {
			out.GroupBy[i] = CloneExpr(a, s.GroupBy[i])
		}
	}
	if len(s.OrderBy) > 0 {
		out.OrderBy = make([]OrderItem, len(s.OrderBy))
		for i := range s.OrderBy {
			out.OrderBy[i] = OrderItem{
				Expr:  CloneExpr(a, s.OrderBy[i].Expr),
				Sort:  s.OrderBy[i].Sort,
				Nulls: s.OrderBy[i].Nulls,
			}
		}
	}
	if s.Limit != nil {
		out.Limit = &Limit{}
		if s.Limit.Rows != nil {
			rows := *s.Limit.Rows
			out.Limit.Rows = &rows
		}
		if s.Limit.Offset != nil {
			off := *s.Limit.Offset
			out.Limit.Offset = &off
		}
	}
	return out
}

// CloneFrom deep-copies a source.
func CloneFrom(a *RefArena, f *From) *From {
	if f == nil {
		return nil
	}
	out := &From{Kind: f.Kind, Alias: f.Alias}
	out.Ref = a.CloneRef(f.Ref)
	out.Query = CloneQuery(a, f.Query)
	if f.Join != nil {
		out.Join = &Join{Kind: f.Join.Kind, On: CloneXpr(a, f.Join.On)}
		out.Join.Args = make([]*From, len(f.Join.Args))
		for i := range f.Join.Args {
			out.Join.Args[i] = CloneFrom(a, f.Join.Args[i])
		}
	}
	return out
}

// CloneElement deep-copies an element together with its nested structure.
func CloneElement(a *RefArena, e *Element) *Element {
	if e == nil {
		return nil
	}
	out := *e
	out.TypeRef = a.CloneRef(e.TypeRef)
	out.On = CloneXpr(a, e.On)
	if len(e.Keys) > 0 {
		out.Keys = make([]KeyRef, len(e.Keys))
		for i := range e.Keys {
			out.Keys[i] = KeyRef{
				Ref:           a.CloneRef(e.Keys[i].Ref),
				Alias:         e.Keys[i].Alias,
				GeneratedName: e.Keys[i].GeneratedName,
			}
		}
	}
	if e.Cardinality != nil {
		card := *e.Cardinality
		out.Cardinality = &card
	}
	out.Elements = cloneElementDict(a, e.Elements)
	out.Items = CloneElement(a, e.Items)
	if e.Default != nil {
		def := CloneExpr(a, *e.Default)
		out.Default = &def
	}
	out.Annotations = e.Annotations.Clone()
	out.Enum = e.Enum.Clone()
	return &out
}

func cloneElementDict(a *RefArena, d *Dict[*Element]) *Dict[*Element] {
	if d == nil {
		return nil
	}
	out := NewDict[*Element](d.Len())
	d.Range(func(name string, el *Element) bool {
		out.Set(name, CloneElement(a, el))
		return true
	})
	return out
}

func cloneExprDict(a *RefArena, d *Dict[Expr]) *Dict[Expr] {
	if d == nil {
		return nil
	}
	out := NewDict[Expr](d.Len())
	d.Range(func(name string, e Expr) bool {
		out.Set(name, CloneExpr(a, e))
		return true
	})
	return out
}
