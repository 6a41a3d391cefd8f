package csn

// Meta is the CSN document metadata.
type Meta struct {
	Creator string
	Flavor  string
}

// Model is the whole compilation model: definitions in appearance
// order plus the path arena. Every phase mutates the model in place;
// definition and element order is part of the output contract.
type Model struct {
	Definitions *Dict[*Definition]
	Refs        *RefArena
	Meta        Meta
	Version     string
	Sources     []string
}

// NewModel creates an empty model with a fresh ref arena.
func NewModel() *Model {
	return &Model{
		Definitions: NewDict[*Definition](64),
		Refs:        NewRefArena(256),
	}
}

// Definition returns a definition by absolute name.
func (m *Model) Definition(name string) (*Definition, bool) {
	return m.Definitions.Get(name)
}

// Entities calls fn for every entity in appearance order.
func (m *Model) Entities(fn func(*Definition) bool) {
	m.Definitions.Range(func(_ string, def *Definition) bool {
		if def.Kind != KindEntity {
			return true
		}
		return fn(def)
	})
}

// EnclosingService returns the name of the service definition name
// belongs to, and true if there is one. The longest service prefix
// wins: for "S.sub.Books" first "S.sub", then "S".
func (m *Model) EnclosingService(name string) (string, bool) {
	for {
		i := lastDot(name)
		if i < 0 {
			return "", false
		}
		name = name[:i]
		if def, ok := m.Definitions.Get(name); ok && def.Kind == KindService {
			return name, true
		}
	}
}

func lastDot(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '.' {
			return i
		}
	}
	return -1
}
