package csn

import "strings"

// Builtin types. The names are final: the alias resolver stops once
// it reaches any of them.
const (
	TypeUUID         = "cds.UUID"
	TypeBoolean      = "cds.Boolean"
	TypeUInt8        = "cds.UInt8"
	TypeInt16        = "cds.Int16"
	TypeInt32        = "cds.Int32"
	TypeInteger      = "cds.Integer"
	TypeInt64        = "cds.Integer64"
	TypeDecimal      = "cds.Decimal"
	TypeDouble       = "cds.Double"
	TypeDate         = "cds.Date"
	TypeTime         = "cds.Time"
	TypeDateTime     = "cds.DateTime"
	TypeTimestamp    = "cds.Timestamp"
	TypeString       = "cds.String"
	TypeBinary       = "cds.Binary"
	TypeLargeBinary  = "cds.LargeBinary"
	TypeLargeString  = "cds.LargeString"
	TypeVector       = "cds.Vector"
	TypeMap          = "cds.Map"
	TypeAssociation  = "cds.Association"
	TypeComposition  = "cds.Composition"
)

// HANA dialect types, available to models through cds.hana.*.
const (
	TypeHanaSmallint     = "cds.hana.SMALLINT"
	TypeHanaTinyint      = "cds.hana.TINYINT"
	TypeHanaSmalldecimal = "cds.hana.SMALLDECIMAL"
	TypeHanaReal         = "cds.hana.REAL"
	TypeHanaChar         = "cds.hana.CHAR"
	TypeHanaNchar        = "cds.hana.NCHAR"
	TypeHanaVarchar      = "cds.hana.VARCHAR"
	TypeHanaClob         = "cds.hana.CLOB"
	TypeHanaBinary       = "cds.hana.BINARY"
	TypeHanaStPoint      = "cds.hana.ST_POINT"
	TypeHanaStGeometry   = "cds.hana.ST_GEOMETRY"
)

var builtinTypes = map[string]struct{}{
	TypeUUID:        {},
	TypeBoolean:     {},
	TypeUInt8:       {},
	TypeInt16:       {},
	TypeInt32:       {},
	TypeInteger:     {},
	TypeInt64:       {},
	TypeDecimal:     {},
	TypeDouble:      {},
	TypeDate:        {},
	TypeTime:        {},
	TypeDateTime:    {},
	TypeTimestamp:   {},
	TypeString:      {},
	TypeBinary:      {},
	TypeLargeBinary: {},
	TypeLargeString: {},
	TypeVector:      {},
	TypeMap:         {},
	TypeAssociation: {},
	TypeComposition: {},

	TypeHanaSmallint:     {},
	TypeHanaTinyint:      {},
	TypeHanaSmalldecimal: {},
	TypeHanaReal:         {},
	TypeHanaChar:         {},
	TypeHanaNchar:        {},
	TypeHanaVarchar:      {},
	TypeHanaClob:         {},
	TypeHanaBinary:       {},
	TypeHanaStPoint:      {},
	TypeHanaStGeometry:   {},
}

// IsBuiltin reports whether name is a builtin type name.
func IsBuiltin(name string) bool {
	_, ok := builtinTypes[name]
	return ok
}

// IsBuiltinNamespace: "cds." / "cds.hana." names are never looked up
// in the model, even when no such builtin exists (the type check
// reports that).
func IsBuiltinNamespace(name string) bool {
	return strings.HasPrefix(name, "cds.")
}

// IsRelation reports whether the type is an association or composition.
func IsRelation(name string) bool {
	return name == TypeAssociation || name == TypeComposition
}

// IsLarge reports the LOB types: not comparable, unusable as keys or
// unique-constraint columns.
func IsLarge(name string) bool {
	return name == TypeLargeString || name == TypeLargeBinary || name == TypeHanaClob
}

// IsSpatial reports whether the type is a HANA spatial type.
func IsSpatial(name string) bool {
	return name == TypeHanaStPoint || name == TypeHanaStGeometry
}
