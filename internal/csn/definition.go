package csn

import (
	"encoding/json"
	"fmt"
	"strings"

	"cdsc/internal/source"
)

// Definition is a named model definition. A closed union over Kind:
// a view is an entity with a non-nil Query, a type alias carries Type,
// an enum is a type with Enum filled in, and so on. The name is always
// absolute (dotted); Model keeps definitions in appearance order.
type Definition struct {
	Kind Kind
	Name string
	Loc  source.Loc

	Type    string
	TypeRef RefID
	Facets  TypeFacets

	Target      string
	Cardinality *Cardinality
	On          Xpr
	Keys        []KeyRef

	Elements *Dict[*Element]
	Items    *Element
	Enum     *Dict[*EnumValue]

	Includes []string
	Params   *Dict[*Element]
	Returns  *Element
	Query    *Query

	Abstract    bool
	Annotations *Dict[Value]

	// RawKind/Raw carry a definition with an unknown kind opaquely: the
	// body is not interpreted, but not lost on output either.
	RawKind string
	Raw     json.RawMessage

	// TableConstraints are the derived table-level constraints
	// (@assert.unique after preparation). Not serialized into CSN.
	TableConstraints *TableConstraints
}

// IsView reports whether the definition is a query-backed entity.
func (d *Definition) IsView() bool {
	return d != nil && d.Kind == KindEntity && d.Query != nil
}

// IsConcreteEntity reports an entity that maps to a table.
func (d *Definition) IsConcreteEntity() bool {
	return d != nil && d.Kind == KindEntity && d.Query == nil && !d.Abstract
}

// Annotation returns an annotation value by its full name.
func (d *Definition) Annotation(name string) (Value, bool) {
	if d == nil {
		return Value{}, false
	}
	return d.Annotations.Get(name)
}

// SetAnnotation sets an annotation value, creating the dict lazily.
func (d *Definition) SetAnnotation(name string, v Value) {
	if d.Annotations == nil {
		d.Annotations = NewDict[Value](1)
	}
	d.Annotations.Set(name, v)
}

// Home returns the definition's semantic location for messages:
// entity:"S.Books".
func (d *Definition) Home() string {
	if d == nil {
		return ""
	}
	return fmt.Sprintf("%s:%q", d.Kind, d.Name)
}

// HomeElement returns the semantic location of an element inside the
// definition: entity:"S.Books"/element:"title".
func (d *Definition) HomeElement(path ...string) string {
	var b strings.Builder
	b.WriteString(d.Home())
	for _, p := range path {
		fmt.Fprintf(&b, "/element:%q", p)
	}
	return b.String()
}

// Parent returns the enclosing namespace name ("" at top level): for
// "S.sub.Books" it is "S.sub".
func (d *Definition) Parent() string {
	if i := strings.LastIndexByte(d.Name, '.'); i >= 0 {
		return d.Name[:i]
	}
	return ""
}

// TableConstraints holds derived table-level constraints.
type TableConstraints struct {
	Unique *Dict[*UniqueConstraint]
}

// UniqueConstraint is one unique constraint from @assert.unique.<name>.
type UniqueConstraint struct {
	Name  string
	Paths []RefID
	// Columns are the flat column names after rewriting.
	Columns []string
	// Index is the secondary-index DDL fragment (hdbcds only).
	Index string
}
