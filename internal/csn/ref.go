package csn

import (
	"fmt"
	"strings"

	"fortio.org/safecast"
)

// RefID is the stable identifier of a path in RefArena (1-based).
type RefID uint32

const NoRefID RefID = 0

func (id RefID) IsValid() bool { return id != NoRefID }

// RefStep is one path step: an identifier plus optional named
// arguments and a filter (`assoc[args][where]` in source syntax).
type RefStep struct {
	ID    string
	Args  *Dict[Expr]
	Where Xpr
}

// HasFilter reports whether the step carries args or a filter.
func (s *RefStep) HasFilter() bool {
	return s.Args.Len() > 0 || len(s.Where) > 0
}

// Ref is a path of steps. It lives only in the RefArena; every model
// structure refers to it by RefID, so a path rewritten by one phase is
// visible to all others without walking the model.
type Ref struct {
	Steps []RefStep
}

// FirstID returns the first step identifier ("" for an empty path).
func (r *Ref) FirstID() string {
	if r == nil || len(r.Steps) == 0 {
		return ""
	}
	return r.Steps[0].ID
}

// Path returns the path in dotted form for messages.
func (r *Ref) Path() string {
	if r == nil {
		return ""
	}
	ids := make([]string, len(r.Steps))
	for i := range r.Steps {
		ids[i] = r.Steps[i].ID
	}
	return strings.Join(ids, ".")
}

// RefArena owns all model paths. Indexing is 1-based with NoRefID as
// nil. Every node carries a version counter: any rewriting phase must
// bump the node's version or the resolver cache hands back stale
// links.
type RefArena struct {
	refs     []Ref
	versions []uint32
}

// NewRefArena creates and returns a *RefArena whose internal storage is
// allocated with a capacity of capHint; zero is allowed.
func NewRefArena(capHint uint) *RefArena {
	return &RefArena{
		refs:     make([]Ref, 0, capHint),
		versions: make([]uint32, 0, capHint),
	}
}

// Allocate returns the identifier of a new path (1-based).
func (a *RefArena) Allocate(ref Ref) RefID {
	a.refs = append(a.refs, ref)
	a.versions = append(a.versions, 0)
	id, err := safecast.Conv[uint32](len(a.refs))
	if err != nil {
		panic(fmt.Errorf("ref arena overflow: %w", err))
	}
	return RefID(id)
}

// Steps is shorthand for Allocate from a list of step identifiers.
func (a *RefArena) Steps(ids ...string) RefID {
	steps := make([]RefStep, len(ids))
	for i, id := range ids {
		steps[i] = RefStep{ID: id}
	}
	return a.Allocate(Ref{Steps: steps})
}

func (a *RefArena) Get(id RefID) *Ref {
	if id == NoRefID {
		return nil
	}
	return &a.refs[id-1]
}

// Version returns the node's current version (0 for NoRefID).
func (a *RefArena) Version(id RefID) uint32 {
	if id == NoRefID {
		return 0
	}
	return a.versions[id-1]
}

// Bump raises the node's version. Mandatory after mutating via Get.
func (a *RefArena) Bump(id RefID) {
	if id == NoRefID {
		return
	}
	a.versions[id-1]++
}

// Update replaces the path wholesale and bumps the version.
func (a *RefArena) Update(id RefID, ref Ref) {
	if id == NoRefID {
		return
	}
	a.refs[id-1] = ref
	a.versions[id-1]++
}

func (a *RefArena) Len() uint32 {
	n, err := safecast.Conv[uint32](len(a.refs))
	if err != nil {
		panic(fmt.Errorf("ref arena overflow: %w", err))
	}
	return n
}
