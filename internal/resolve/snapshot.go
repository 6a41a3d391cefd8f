package resolve

import "sort"

// Entry is one cache snapshot record: the path text, the step-zero
// scope and the resolved step chain.
type Entry struct {
	ID       uint32   `json:"id"`
	Ref      string   `json:"ref"`
	Scope    string   `json:"scope,omitempty"`
	Links    []string `json:"links,omitempty"`
	Complete bool     `json:"complete"`
}

// Snapshot returns the cache contents as a deterministic list ordered
// by path ID. The format is stable: cdsc inspect --what=refs and the
// tests rely on it.
func (r *Resolver) Snapshot() []Entry {
	out := make([]Entry, 0, r.cache.Len())
	for id, e := range r.cache.entries {
		entry := Entry{
			ID:       uint32(id),
			Scope:    e.res.Scope,
			Complete: e.res.Complete,
		}
		if ref := r.model.Refs.Get(id); ref != nil {
			entry.Ref = ref.Path()
		}
		for _, l := range e.res.Links {
			entry.Links = append(entry.Links, linkString(l))
		}
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func linkString(l Link) string {
	switch {
	case l.Def != nil:
		return "definition:" + l.Def.Name
	case l.Elem != nil:
		return "element:" + l.Elem.Name
	default:
		// subquery source: there is no definition name
		return "source:" + l.Name
	}
}
