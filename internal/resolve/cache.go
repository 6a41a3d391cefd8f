package resolve

import "cdsc/internal/csn"

// Cache keeps resolution results by path ID. An entry is valid while
// the node's arena version matches the recorded one: phases that
// rewrite a path through Update/Bump invalidate it with no extra
// protocol.
type Cache struct {
	entries map[csn.RefID]cacheEntry
}

type cacheEntry struct {
	version uint32
	res     *Resolution
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[csn.RefID]cacheEntry, 256)}
}

func (c *Cache) lookup(arena *csn.RefArena, id csn.RefID) (*Resolution, bool) {
	e, ok := c.entries[id]
	if !ok {
		return nil, false
	}
	if e.version != arena.Version(id) {
		delete(c.entries, id)
		return nil, false
	}
	return e.res, true
}

func (c *Cache) store(arena *csn.RefArena, id csn.RefID, res *Resolution) {
	c.entries[id] = cacheEntry{version: arena.Version(id), res: res}
}

// Invalidate drops a path's entry. Rarely needed: bumping the arena
// version invalidates the entry on its own.
func (c *Cache) Invalidate(id csn.RefID) {
	delete(c.entries, id)
}

// Len returns the entry count.
func (c *Cache) Len() int { return len(c.entries) }
