package csn

import (
	"cdsc/internal/source"
)

// TypeFacets are scalar type constraints. Zero value = facet unset
// (zero facets are not serialized into CSN).
type TypeFacets struct {
	Length    int
	Precision int
	Scale     int
	SRID      int
}

func (f TypeFacets) Empty() bool {
	return f == TypeFacets{}
}

// Cardinality of an association. The values are Value because max can
// be a number or "*".
type Cardinality struct {
	SrcMin *Value
	SrcMax *Value
	Min    *Value
	Max    *Value
}

// IsToMany returns true for max = "*" or max > 1.
func (c *Cardinality) IsToMany() bool {
	if c == nil || c.Max == nil {
		return false
	}
	switch c.Max.Kind {
	case ValString:
		return c.Max.Str == "*"
	case ValNumber:
		n, err := c.Max.Num.Int64()
		return err == nil && n > 1
	}
	return false
}

// KeyRef is one foreign key of a managed association.
type KeyRef struct {
	Ref   RefID
	Alias string
	// GeneratedName is the name of the materialized flat FK element,
	// filled in by flattening. Derived; written to CSN as
	// $generatedFieldName.
	GeneratedName string
}

// EnumValue is one enumeration symbol.
type EnumValue struct {
	Name        string
	Val         *Value
	Annotations *Dict[Value]
}

// Element is an entity/struct element or a parameter. Which fields are
// filled depends on the role: a scalar carries Type and Facets, an
// association Target with On (unmanaged) or Keys (managed), a struct
// nested Elements, an array Items.
type Element struct {
	Name string
	Loc  source.Loc

	Type    string
	TypeRef RefID
	Facets  TypeFacets

	Target      string
	Cardinality *Cardinality
	On          Xpr
	Keys        []KeyRef

	Key     bool
	NotNull bool
	Virtual bool

	Elements *Dict[*Element]
	Items    *Element
	Enum     *Dict[*EnumValue]

	Default     *Expr
	Annotations *Dict[Value]
}

// IsAssociation reports whether the element is an association or
// composition (both carry Target).
func (e *Element) IsAssociation() bool {
	return e != nil && e.Target != ""
}

// IsComposition reports whether the element is a composition.
func (e *Element) IsComposition() bool {
	return e.IsAssociation() && e.Type == TypeComposition
}

// IsManaged: an association with foreign keys (or without on, when the
// implied keys are not expanded yet).
func (e *Element) IsManaged() bool {
	return e.IsAssociation() && len(e.On) == 0
}

// IsUnmanaged: an association with an on-condition.
func (e *Element) IsUnmanaged() bool {
	return e.IsAssociation() && len(e.On) > 0
}

// IsStructured reports whether the element expands into sub-elements.
func (e *Element) IsStructured() bool {
	return e != nil && e.Elements.Len() > 0
}

// IsArrayed reports whether the element is an array-of.
func (e *Element) IsArrayed() bool {
	return e != nil && e.Items != nil
}

// Annotation returns an annotation value by its full name ("@a.b").
func (e *Element) Annotation(name string) (Value, bool) {
	if e == nil {
		return Value{}, false
	}
	return e.Annotations.Get(name)
}

// SetAnnotation sets an annotation value, creating the dict lazily.
func (e *Element) SetAnnotation(name string, v Value) {
	if e.Annotations == nil {
		e.Annotations = NewDict[Value](1)
	}
	e.Annotations.Set(name, v)
}
