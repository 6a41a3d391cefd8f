package csn

// Dict is an ordered name-to-value dictionary. CSN semantics hinge on
// declaration order (table columns, foreign keys, struct elements), so
// a plain map will not do: Dict keeps values in insertion order with a
// separate name index.
type Dict[T any] struct {
	names  []string
	values []T
	index  map[string]int
}

// NewDict creates an empty ordered dictionary. capHint may be zero.
func NewDict[T any](capHint int) *Dict[T] {
	return &Dict[T]{
		names:  make([]string, 0, capHint),
		values: make([]T, 0, capHint),
		index:  make(map[string]int, capHint),
	}
}

// Len returns the number of entries.
func (d *Dict[T]) Len() int {
	if d == nil {
		return 0
	}
	return len(d.names)
}

// Has reports whether name is present.
func (d *Dict[T]) Has(name string) bool {
	if d == nil {
		return false
	}
	_, ok := d.index[name]
	return ok
}

// Get returns the value stored under name.
func (d *Dict[T]) Get(name string) (T, bool) {
	if d == nil {
		var zero T
		return zero, false
	}
	if i, ok := d.index[name]; ok {
		return d.values[i], true
	}
	var zero T
	return zero, false
}

// At returns the (name, value) pair at an insertion position.
func (d *Dict[T]) At(i int) (string, T) {
	return d.names[i], d.values[i]
}

// Set stores value under name. An existing entry keeps its position,
// a new entry is appended at the end.
func (d *Dict[T]) Set(name string, value T) {
	if i, ok := d.index[name]; ok {
		d.values[i] = value
		return
	}
	d.index[name] = len(d.names)
	d.names = append(d.names, name)
	d.values = append(d.values, value)
}

// InsertAfter inserts a new entry right after anchor, keeping the
// order of the rest. This is how materialized foreign-key elements end
// up next to their association. With anchor missing the entry goes to
// the end. Returns false (and changes nothing) when name already
// exists.
func (d *Dict[T]) InsertAfter(anchor, name string, value T) bool {
	if _, exists := d.index[name]; exists {
		return false
	}
	pos, ok := d.index[anchor]
	if !ok {
		d.Set(name, value)
		return true
	}
	at := pos + 1
	d.names = append(d.names, "")
	copy(d.names[at+1:], d.names[at:])
	d.names[at] = name

	var zero T
	d.values = append(d.values, zero)
	copy(d.values[at+1:], d.values[at:])
	d.values[at] = value

	// Reindex the tail
	for i := at; i < len(d.names); i++ {
		d.index[d.names[i]] = i
	}
	return true
}

// Delete removes an entry, keeping the order of the rest.
func (d *Dict[T]) Delete(name string) bool {
	pos, ok := d.index[name]
	if !ok {
		return false
	}
	d.names = append(d.names[:pos], d.names[pos+1:]...)
	d.values = append(d.values[:pos], d.values[pos+1:]...)
	delete(d.index, name)
	for i := pos; i < len(d.names); i++ {
		d.index[d.names[i]] = i
	}
	return true
}

// Names returns the insertion-ordered name list.
// READONLY
func (d *Dict[T]) Names() []string {
	if d == nil {
		return nil
	}
	return d.names
}

// Values returns the insertion-ordered value list.
// READONLY
func (d *Dict[T]) Values() []T {
	if d == nil {
		return nil
	}
	return d.values
}

// Range calls fn for every entry in insertion order while fn returns
// true. The Dict must not be mutated inside Range.
func (d *Dict[T]) Range(fn func(name string, value T) bool) {
	if d == nil {
		return
	}
	for i := range d.names {
		if !fn(d.names[i], d.values[i]) {
			return
		}
	}
}

// Clone returns a shallow copy of the dict (values are not copied).
func (d *Dict[T]) Clone() *Dict[T] {
	if d == nil {
		return nil
	}
	out := NewDict[T](len(d.names))
	for i := range d.names {
		out.Set(d.names[i], d.values[i])
	}
	return out
}
