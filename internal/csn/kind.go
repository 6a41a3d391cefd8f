package csn

// Kind enumerates supported definition categories.
type Kind uint8

const (
	// KindUnknown is a definition with an unrecognized kind: carried
	// as an opaque node (csn-unknown-kind), never lost.
	KindUnknown Kind = iota
	KindContext
	KindService
	KindEntity
	KindType
	KindAspect
	KindAction
	KindFunction
	KindEvent
	KindAnnotation
)

func (k Kind) String() string {
	switch k {
	case KindContext:
		return "context"
	case KindService:
		return "service"
	case KindEntity:
		return "entity"
	case KindType:
		return "type"
	case KindAspect:
		return "aspect"
	case KindAction:
		return "action"
	case KindFunction:
		return "function"
	case KindEvent:
		return "event"
	case KindAnnotation:
		return "annotation"
	default:
		return "unknown"
	}
}

// ParseKind parses a CSN kind; ok=false for unrecognized values.
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "context":
		return KindContext, true
	case "service":
		return KindService, true
	case "entity":
		return KindEntity, true
	case "type":
		return KindType, true
	case "aspect":
		return KindAspect, true
	case "action":
		return KindAction, true
	case "function":
		return KindFunction, true
	case "event":
		return KindEvent, true
	case "annotation":
		return KindAnnotation, true
	}
	return KindUnknown, false
}
