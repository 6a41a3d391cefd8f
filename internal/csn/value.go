package csn

import (
	"encoding/json"
	"strings"
)

// ValueKind enumerates shapes of literal and annotation values.
type ValueKind uint8

const (
	ValNull ValueKind = iota
	ValBool
	ValNumber
	ValString
	ValArray
	ValObject
	// ValPath is a deferred path inside an annotation value: {"=": "a.b"}.
	ValPath
	// ValSymbol is a reference to an enum symbol: {"#": "open"}.
	ValSymbol
)

// Value is an arbitrary JSON value out of CSN: a literal in an
// expression or an annotation value. Numbers are kept as json.Number
// so output matches input byte for byte.
type Value struct {
	Kind   ValueKind
	Bool   bool
	Num    json.Number
	Str    string // ValString: text; ValPath: path; ValSymbol: symbol
	Items  []Value
	Fields *Dict[Value]
}

// Convenience constructors for generated values.

func Null() Value           { return Value{Kind: ValNull} }
func True() Value           { return Value{Kind: ValBool, Bool: true} }
func False() Value          { return Value{Kind: ValBool, Bool: false} }
func Str(s string) Value    { return Value{Kind: ValString, Str: s} }
func Num(n string) Value    { return Value{Kind: ValNumber, Num: json.Number(n)} }
func Bool(b bool) Value     { return Value{Kind: ValBool, Bool: b} }
func Path(p string) Value   { return Value{Kind: ValPath, Str: p} }
func Symbol(s string) Value { return Value{Kind: ValSymbol, Str: s} }

// IsTruthy reads an annotation value as a flag: @anno without a value
// decodes as true, and null means "the annotation is present", which
// also counts as a set flag.
func (v Value) IsTruthy() bool {
	switch v.Kind {
	case ValBool:
		return v.Bool
	case ValNull:
		return true
	case ValNumber:
		return v.Num != "0" && v.Num != ""
	case ValString:
		return v.Str != ""
	case ValArray:
		return len(v.Items) > 0
	case ValObject:
		return v.Fields.Len() > 0
	case ValPath, ValSymbol:
		return v.Str != ""
	}
	return false
}

// PathSteps parses a string value as a dotted path. Used by
// @assert.unique: array items come as strings ("genre" or
// "author.name") or as {"=": "..."}.
func (v Value) PathSteps() ([]string, bool) {
	switch v.Kind {
	case ValString, ValPath:
		if v.Str == "" {
			return nil, false
		}
		return strings.Split(v.Str, "."), true
	}
	return nil, false
}

// Equal compares values structurally.
func (v Value) Equal(other Value) bool {
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case ValNull:
		return true
	case ValBool:
		return v.Bool == other.Bool
	case ValNumber:
		return v.Num == other.Num
	case ValString, ValPath, ValSymbol:
		return v.Str == other.Str
	case ValArray:
		if len(v.Items) != len(other.Items) {
			return false
		}
		for i := range v.Items {
			if !v.Items[i].Equal(other.Items[i]) {
				return false
			}
		}
		return true
	case ValObject:
		if v.Fields.Len() != other.Fields.Len() {
			return false
		}
		for i, name := range v.Fields.Names() {
			oname := other.Fields.Names()[i]
			if name != oname {
				return false
			}
			a := v.Fields.Values()[i]
			b := other.Fields.Values()[i]
			if !a.Equal(b) {
				return false
			}
		}
		return true
	}
	return false
}
