package csn

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"cdsc/internal/source"
)

// EncodeModel serializes the model back into CSN JSON. Definitions,
// elements and annotations come out in the model's dict order, so the
// output is deterministic and usable for golden comparisons. Numbers
// carry over as json.Number without reformatting.
func EncodeModel(m *Model, fs *source.FileSet, indent bool) ([]byte, error) {
	e := &encoder{arena: m.Refs, fs: fs, indent: indent}

	e.open('{')
	e.key("definitions")
	e.open('{')
	m.Definitions.Range(func(name string, def *Definition) bool {
		e.key(name)
		e.definition(def)
		return true
	})
	e.close('}')

	if m.Meta != (Meta{}) {
		e.key("meta")
		e.open('{')
		if m.Meta.Creator != "" {
			e.key("creator")
			e.str(m.Meta.Creator)
		}
		if m.Meta.Flavor != "" {
			e.key("flavor")
			e.str(m.Meta.Flavor)
		}
		e.close('}')
	}
	if len(m.Sources) > 0 {
		e.key("$sources")
		e.open('[')
		for _, s := range m.Sources {
			e.item()
			e.str(s)
		}
		e.close(']')
	}
	if m.Version != "" {
		e.key("$version")
		e.str(m.Version)
	}
	e.close('}')
	if e.indent {
		e.buf.WriteByte('\n')
	}

	if e.err != nil {
		return nil, e.err
	}
	return e.buf.Bytes(), nil
}

type encoder struct {
	buf    bytes.Buffer
	arena  *RefArena
	fs     *source.FileSet
	indent bool
	err    error

	depth int
	first []bool // stack of "no items at this level yet"
}

// --- output primitives ---

func (e *encoder) open(ch byte) {
	e.buf.WriteByte(ch)
	e.depth++
	e.first = append(e.first, true)
}

func (e *encoder) close(ch byte) {
	wasEmpty := e.first[len(e.first)-1]
	e.depth--
	e.first = e.first[:len(e.first)-1]
	if e.indent && !wasEmpty {
		e.newline()
	}
	e.buf.WriteByte(ch)
}

func (e *encoder) newline() {
	e.buf.WriteByte('\n')
	for i := 0; i < e.depth; i++ {
		e.buf.WriteString("  ")
	}
}

// item starts the next array item.
func (e *encoder) item() {
	if !e.first[len(e.first)-1] {
		e.buf.WriteByte(',')
	}
	e.first[len(e.first)-1] = false
	if e.indent {
		e.newline()
	}
}

// key starts the next object pair.
func (e *encoder) key(name string) {
	e.item()
	e.str(name)
	e.buf.WriteByte(':')
	if e.indent {
		e.buf.WriteByte(' ')
	}
}

func (e *encoder) str(s string) {
	data, err := json.Marshal(s)
	if err != nil && e.err == nil {
		e.err = err
	}
	e.buf.Write(data)
}

func (e *encoder) raw(data []byte) {
	var compact bytes.Buffer
	if err := json.Compact(&compact, data); err != nil {
		if e.err == nil {
			e.err = fmt.Errorf("opaque definition: %w", err)
		}
		return
	}
	e.buf.Write(compact.Bytes())
}

func (e *encoder) boolVal(b bool) {
	e.buf.WriteString(strconv.FormatBool(b))
}

// --- model nodes ---

func (e *encoder) definition(def *Definition) {
	if def.Raw != nil {
		// Unknown kind: carry the raw body without interpretation
		e.raw(def.Raw)
		return
	}

	e.open('{')
	e.key("kind")
	e.str(def.Kind.String())
	e.annotations(def.Annotations)
	if def.Abstract {
		e.key("abstract")
		e.boolVal(true)
	}
	e.typedMember(def.Type, def.TypeRef, def.Facets)
	e.relation(def.Target, def.Cardinality, def.On, def.Keys)
	if len(def.Includes) > 0 {
		e.key("includes")
		e.open('[')
		for _, inc := range def.Includes {
			e.item()
			e.str(inc)
		}
		e.close(']')
	}
	if def.Elements.Len() > 0 {
		e.key("elements")
		e.elementDict(def.Elements)
	}
	if def.Items != nil {
		e.key("items")
		e.element(def.Items)
	}
	if def.Enum.Len() > 0 {
		e.key("enum")
		e.enumDict(def.Enum)
	}
	if def.Params.Len() > 0 {
		e.key("params")
		e.elementDict(def.Params)
	}
	if def.Returns != nil {
		e.key("returns")
		e.element(def.Returns)
	}
	if def.Query != nil {
		e.key("query")
		e.query(def.Query)
	}
	e.tableConstraints(def.TableConstraints)
	e.location(def.Loc)
	e.close('}')
}

// tableConstraints writes the derived constraints. The "$" key is
// internal: the round trip must keep the rewriting result for the
// model cache.
func (e *encoder) tableConstraints(tc *TableConstraints) {
	if tc == nil || tc.Unique.Len() == 0 {
		return
	}
	e.key("$tableConstraints")
	e.open('{')
	e.key("unique")
	e.open('{')
	tc.Unique.Range(func(name string, c *UniqueConstraint) bool {
		e.key(name)
		e.open('{')
		e.key("paths")
		e.open('[')
		for _, id := range c.Paths {
			e.item()
			e.ref(id)
		}
		e.close(']')
		if len(c.Columns) > 0 {
			e.key("columns")
			e.open('[')
			for _, col := range c.Columns {
				e.item()
				e.str(col)
			}
			e.close(']')
		}
		if c.Index != "" {
			e.key("index")
			e.str(c.Index)
		}
		e.close('}')
		return true
	})
	e.close('}')
	e.close('}')
}

func (e *encoder) elementDict(d *Dict[*Element]) {
	e.open('{')
	d.Range(func(name string, el *Element) bool {
		e.key(name)
		e.element(el)
		return true
	})
	e.close('}')
}

func (e *encoder) element(el *Element) {
	e.open('{')
	e.annotations(el.Annotations)
	if el.Key {
		e.key("key")
		e.boolVal(true)
	}
	if el.Virtual {
		e.key("virtual")
		e.boolVal(true)
	}
	e.typedMember(el.Type, el.TypeRef, el.Facets)
	e.relation(el.Target, el.Cardinality, el.On, el.Keys)
	if el.NotNull {
		e.key("notNull")
		e.boolVal(true)
	}
	if el.Elements.Len() > 0 {
		e.key("elements")
		e.elementDict(el.Elements)
	}
	if el.Items != nil {
		e.key("items")
		e.element(el.Items)
	}
	if el.Enum.Len() > 0 {
		e.key("enum")
		e.enumDict(el.Enum)
	}
	if el.Default != nil {
		e.key("default")
		e.expr(*el.Default, nil)
	}
	e.location(el.Loc)
	e.close('}')
}

// typedMember writes the type and non-zero facets.
func (e *encoder) typedMember(typ string, typeRef RefID, facets TypeFacets) {
	switch {
	case typ != "":
		e.key("type")
		e.str(typ)
	case typeRef.IsValid():
		e.key("type")
		e.open('{')
		e.key("ref")
		e.ref(typeRef)
		e.close('}')
	}
	if facets.Length != 0 {
		e.key("length")
		e.buf.WriteString(strconv.Itoa(facets.Length))
	}
	if facets.Precision != 0 {
		e.key("precision")
		e.buf.WriteString(strconv.Itoa(facets.Precision))
	}
	if facets.Scale != 0 {
		e.key("scale")
		e.buf.WriteString(strconv.Itoa(facets.Scale))
	}
	if facets.SRID != 0 {
		e.key("srid")
		e.buf.WriteString(strconv.Itoa(facets.SRID))
	}
}

// relation writes the association fields.
func (e *encoder) relation(target string, card *Cardinality, on Xpr, keys []KeyRef) {
	if target == "" {
		return
	}
	e.key("target")
	e.str(target)
	if card != nil {
		e.key("cardinality")
		e.open('{')
		if card.SrcMax != nil {
			e.key("src")
			e.value(*card.SrcMax)
		}
		if card.SrcMin != nil {
			e.key("srcmin")
			e.value(*card.SrcMin)
		}
		if card.Min != nil {
			e.key("min")
			e.value(*card.Min)
		}
		if card.Max != nil {
			e.key("max")
			e.value(*card.Max)
		}
		e.close('}')
	}
	if len(on) > 0 {
		e.key("on")
		e.xpr(on)
	}
	if len(keys) > 0 {
		e.key("keys")
		e.open('[')
		for _, kr := range keys {
			e.item()
			e.open('{')
			e.key("ref")
			e.ref(kr.Ref)
			if kr.Alias != "" {
				e.key("as")
				e.str(kr.Alias)
			}
			if kr.GeneratedName != "" {
				e.key("$generatedFieldName")
				e.str(kr.GeneratedName)
			}
			e.close('}')
		}
		e.close(']')
	}
}

func (e *encoder) enumDict(d *Dict[*EnumValue]) {
	e.open('{')
	d.Range(func(name string, ev *EnumValue) bool {
		e.key(name)
		e.open('{')
		e.annotations(ev.Annotations)
		if ev.Val != nil {
			e.key("val")
			e.value(*ev.Val)
		}
		e.close('}')
		return true
	})
	e.close('}')
}

func (e *encoder) annotations(d *Dict[Value]) {
	d.Range(func(name string, v Value) bool {
		e.key(name)
		e.value(v)
		return true
	})
}

func (e *encoder) location(loc source.Loc) {
	if loc.Line == 0 || e.fs == nil {
		return
	}
	file := e.fs.Get(loc.File)
	if file == nil {
		return
	}
	e.key("$location")
	e.open('{')
	e.key("file")
	e.str(file.Path)
	e.key("line")
	e.buf.WriteString(strconv.FormatUint(uint64(loc.Line), 10))
	if loc.Col != 0 {
		e.key("col")
		e.buf.WriteString(strconv.FormatUint(uint64(loc.Col), 10))
	}
	e.close('}')
}

// --- refs and expressions ---

func (e *encoder) ref(id RefID) {
	ref := e.arena.Get(id)
	e.open('[')
	if ref != nil {
		for i := range ref.Steps {
			step := &ref.Steps[i]
			e.item()
			if !step.HasFilter() {
				e.str(step.ID)
				continue
			}
			e.open('{')
			e.key("id")
			e.str(step.ID)
			if step.Args.Len() > 0 {
				e.key("args")
				e.open('{')
				step.Args.Range(func(name string, arg Expr) bool {
					e.key(name)
					e.expr(arg, nil)
					return true
				})
				e.close('}')
			}
			if len(step.Where) > 0 {
				e.key("where")
				e.xpr(step.Where)
			}
			e.close('}')
		}
	}
	e.close(']')
}

func (e *encoder) xpr(x Xpr) {
	e.open('[')
	for i := range x {
		e.item()
		e.expr(x[i], nil)
	}
	e.close(']')
}

// expr writes one expression node. ord adds sort/nulls (ORDER BY).
func (e *encoder) expr(ex Expr, ord *OrderItem) {
	switch ex.Kind {
	case ExprOp:
		e.str(ex.Op)
		return
	case ExprStar:
		e.str("*")
		return
	}

	e.open('{')
	switch ex.Kind {
	case ExprRef, ExprParam:
		e.key("ref")
		e.ref(ex.Ref)
		if ex.Kind == ExprParam {
			e.key("param")
			e.boolVal(true)
		}
	case ExprVal:
		switch ex.Val.Kind {
		case ValSymbol:
			e.key("#")
			e.str(ex.Val.Str)
		default:
			e.key("val")
			e.value(ex.Val)
		}
	case ExprFunc:
		e.key("func")
		e.str(ex.Func)
		e.key("args")
		e.open('[')
		for i := range ex.Args {
			e.item()
			e.expr(ex.Args[i], nil)
		}
		e.close(']')
	case ExprXpr:
		e.key("xpr")
		e.xpr(ex.Sub)
	case ExprList:
		e.key("list")
		e.open('[')
		for i := range ex.Args {
			e.item()
			e.expr(ex.Args[i], nil)
		}
		e.close(']')
	case ExprQuery:
		e.queryInline(ex.Query)
	}
	if ex.Alias != "" {
		e.key("as")
		e.str(ex.Alias)
	}
	if ex.Key {
		e.key("key")
		e.boolVal(true)
	}
	if ex.Cast != nil {
		e.key("cast")
		e.open('{')
		e.typedMember(ex.Cast.Type, NoRefID, ex.Cast.Facets)
		e.close('}')
	}
	if ord != nil {
		if ord.Sort != "" {
			e.key("sort")
			e.str(ord.Sort)
		}
		if ord.Nulls != "" {
			e.key("nulls")
			e.str(ord.Nulls)
		}
	}
	e.close('}')
}

// --- queries ---

func (e *encoder) query(q *Query) {
	e.open('{')
	e.queryInline(q)
	e.close('}')
}

// queryInline writes the SELECT/SET pairs inside an already open object.
func (e *encoder) queryInline(q *Query) {
	if q == nil {
		return
	}
	if q.Kind == QuerySet {
		e.key("SET")
		e.open('{')
		if q.SetOp != "" {
			e.key("op")
			e.str(q.SetOp)
		}
		if q.All {
			e.key("all")
			e.boolVal(true)
		}
		e.key("args")
		e.open('[')
		for _, arg := range q.Args {
			e.item()
			e.query(arg)
		}
		e.close(']')
		e.close('}')
		return
	}
	e.key("SELECT")
	e.selectBody(q.Select)
}

func (e *encoder) selectBody(sel *Select) {
	e.open('{')
	if sel == nil {
		e.close('}')
		return
	}
	if sel.From != nil {
		e.key("from")
		e.from(sel.From)
	}
	if sel.Mixins.Len() > 0 {
		e.key("mixin")
		e.elementDict(sel.Mixins)
	}
	if len(sel.Columns) > 0 {
		e.key("columns")
		e.open('[')
		for i := range sel.Columns {
			e.item()
			e.expr(sel.Columns[i], nil)
		}
		e.close(']')
	}
	if len(sel.Excluding) > 0 {
		e.key("excluding")
		e.open('[')
		for _, ex := range sel.Excluding {
			e.item()
			e.str(ex)
		}
		e.close(']')
	}
	if len(sel.Where) > 0 {
		e.key("where")
		e.xpr(sel.Where)
	}
	if len(sel.GroupBy) > 0 {
		e.key("groupBy")
		e.open('[')
		for i := range sel.GroupBy {
			e.item()
			e.expr(sel.GroupBy[i], nil)
		}
		e.close(']')
	}
	if len(sel.Having) > 0 {
		e.key("having")
		e.xpr(sel.Having)
	}
	if len(sel.OrderBy) > 0 {
		e.key("orderBy")
		e.open('[')
		for i := range sel.OrderBy {
			e.item()
			e.expr(sel.OrderBy[i].Expr, &sel.OrderBy[i])
		}
		e.close(']')
	}
	if sel.Limit != nil {
		e.key("limit")
		e.open('{')
		if sel.Limit.Rows != nil {
			e.key("rows")
			e.open('{')
			e.key("val")
			e.value(*sel.Limit.Rows)
			e.close('}')
		}
		if sel.Limit.Offset != nil {
			e.key("offset")
			e.open('{')
			e.key("val")
			e.value(*sel.Limit.Offset)
			e.close('}')
		}
		e.close('}')
	}
	if sel.Distinct {
		e.key("distinct")
		e.boolVal(true)
	}
	e.close('}')
}

func (e *encoder) from(f *From) {
	e.open('{')
	switch f.Kind {
	case FromRef:
		e.key("ref")
		e.ref(f.Ref)
	case FromJoin:
		if f.Join != nil {
			e.key("join")
			e.str(f.Join.Kind)
			e.key("args")
			e.open('[')
			for _, arg := range f.Join.Args {
				e.item()
				e.from(arg)
			}
			e.close(']')
			if len(f.Join.On) > 0 {
				e.key("on")
				e.xpr(f.Join.On)
			}
		}
	case FromQuery:
		e.queryInline(f.Query)
	}
	if f.Alias != "" {
		e.key("as")
		e.str(f.Alias)
	}
	e.close('}')
}

// --- values ---

func (e *encoder) value(v Value) {
	switch v.Kind {
	case ValNull:
		e.buf.WriteString("null")
	case ValBool:
		e.boolVal(v.Bool)
	case ValNumber:
		if v.Num == "" {
			e.buf.WriteString("0")
			return
		}
		e.buf.WriteString(string(v.Num))
	case ValString:
		e.str(v.Str)
	case ValPath:
		e.open('{')
		e.key("=")
		e.str(v.Str)
		e.close('}')
	case ValSymbol:
		e.open('{')
		e.key("#")
		e.str(v.Str)
		e.close('}')
	case ValArray:
		e.open('[')
		for i := range v.Items {
			e.item()
			e.value(v.Items[i])
		}
		e.close(']')
	case ValObject:
		e.open('{')
		v.Fields.Range(func(name string, fv Value) bool {
			e.key(name)
			e.value(fv)
			return true
		})
		e.close('}')
	default:
		e.buf.WriteString("null")
	}
}
