package diag

import (
	"fmt"
)

// Code — стабильный идентификатор сообщения (kebab-case).
// Идентификаторы входят в публичный контракт: по ним настраиваются
// severity-переопределения, поэтому переименование кода — breaking change.
type Code string

const (
	// Неизвестная ошибка - на первое время
	UnknownCode Code = "internal-unknown"

	// Разрешение имён
	RefUndefinedDef     Code = "ref-undefined-def"
	RefUndefinedElement Code = "ref-undefined-element"
	RefUndefinedSource  Code = "ref-undefined-source"
	RefCyclic           Code = "ref-cyclic"

	// Типы и уплощение
	TypeCyclic             Code = "type-cyclic"
	TypeMissing            Code = "type-missing"
	TypeUnsupportedArray   Code = "type-unsupported-array"
	TypeUnsupportedSpatial Code = "type-unsupported-spatial"
	DefDuplicate           Code = "duplicate-definition"
	FlattenDuplicate       Code = "flatten-duplicate-element"

	// Переписывание запросов и ассоциаций
	ExistsExpectedAssoc Code = "exists-expected-assoc"
	OnExpectedBacklink  Code = "on-expected-backlink"

	// Уникальные ограничения (@assert.unique)
	ConstraintInvalidValue    Code = "constraint-invalid-value"
	ConstraintInvalidPath     Code = "constraint-invalid-path"
	ConstraintUnsupportedType Code = "constraint-unsupported-type"
	ConstraintDuplicatePath   Code = "constraint-duplicate-path"
	ConstraintDuplicate       Code = "constraint-duplicate"

	// Драфты
	DraftNestedRoot    Code = "draft-nested-root"
	DraftNameCollision Code = "draft-name-collision"

	// CSN вход
	CSNInvalidJSON  Code = "csn-invalid-json"
	CSNUnknownKind  Code = "csn-unknown-kind"
	CSNInvalidRef   Code = "csn-invalid-ref"
	CSNInvalidQuery Code = "csn-invalid-query"

	// Ошибки I/O
	IOLoadFileError Code = "io-load-file"

	// Observability
	ObsTimings Code = "obs-timings"
)

var ( // todo расширить описания и использовать как notes
	codeDescription = map[Code]string{
		UnknownCode:               "Unknown error",
		RefUndefinedDef:           "Reference to an undefined definition",
		RefUndefinedElement:       "Reference to an undefined element",
		RefUndefinedSource:        "Reference to an undefined query source",
		RefCyclic:                 "Cyclic reference",
		TypeCyclic:                "Cyclic type definition",
		TypeMissing:               "Element has no resolvable type",
		TypeUnsupportedArray:      "Arrayed element is not supported by the target",
		TypeUnsupportedSpatial:    "Spatial type is not supported by the target",
		DefDuplicate:              "Duplicate definition",
		FlattenDuplicate:          "Flattened element collides with an existing element",
		ExistsExpectedAssoc:       "EXISTS path must end in an association",
		OnExpectedBacklink:        "$self comparison expects a managed association",
		ConstraintInvalidValue:    "Invalid @assert.unique value",
		ConstraintInvalidPath:     "Invalid path in unique constraint",
		ConstraintUnsupportedType: "Unique constraint path ends in an unsupported type",
		ConstraintDuplicatePath:   "Duplicate path in unique constraint",
		ConstraintDuplicate:       "Duplicate unique constraint",
		DraftNestedRoot:           "Draft-enabled entity reachable from another draft root",
		DraftNameCollision:        "Draft artifact collides with an existing definition",
		CSNInvalidJSON:            "Input is not valid CSN JSON",
		CSNUnknownKind:            "Unknown definition kind",
		CSNInvalidRef:             "Malformed reference",
		CSNInvalidQuery:           "Malformed query",
		IOLoadFileError:           "Failed to load file",
		ObsTimings:                "Compilation timings",
	}
)

// ID возвращает строковый идентификатор кода.
func (c Code) ID() string {
	if c == "" {
		return string(UnknownCode)
	}
	return string(c)
}

func (c Code) Title() string {
	desc, ok := codeDescription[c]
	if !ok {
		return codeDescription[UnknownCode]
	}
	return desc
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Title())
}
