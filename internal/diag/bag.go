package diag

import (
	"sort"
)

type Bag struct {
	items []Message
	max   uint16
}

func NewBag(max int) *Bag {
	return &Bag{
		items: make([]Message, 0, max),
		max:   uint16(max),
	}
}

// Add добавляет сообщение, учитывая лимит.
// Возвращает false, если сообщение не добавлено (достигнут лимит).
func (b *Bag) Add(m Message) bool {
	if len(b.items) >= int(b.max) {
		return false
	}
	b.items = append(b.items, m)
	return true
}

func (b *Bag) Cap() uint16 {
	return b.max
}

// HasErrors возвращает true, если есть хотя бы одно сообщение с Severity >= Error
func (b *Bag) HasErrors() bool {
	for i := range b.items {
		if b.items[i].Severity >= SevError {
			return true
		}
	}
	return false
}

// HasWarnings возвращает true, если есть хотя бы одно сообщение с Severity >= Warning
func (b *Bag) HasWarnings() bool {
	for i := range b.items {
		if b.items[i].Severity >= SevWarning {
			return true
		}
	}
	return false
}

// длина
func (b *Bag) Len() int {
	return len(b.items)
}

// Messages возвращает read-only slice сообщений.
// ВАЖНО: не модифицируйте возвращаемый срез! (он указывает на внутренний массив Bag)
func (b *Bag) Messages() []Message {
	return b.items
}

// Merge объединяет сообщения из другого Bag.
// Увеличивает max, если нужно вместить все элементы.
func (b *Bag) Merge(other *Bag) {
	newTotal := len(b.items) + len(other.items)
	if uint16(newTotal) > b.max {
		b.max = uint16(newTotal)
	}
	b.items = append(b.items, other.items...)
}

// Sort сортирует сообщения по: file, line, col, home, text
// для стабильного и детерминированного порядка вывода.
func (b *Bag) Sort() {
	sort.SliceStable(b.items, func(i, j int) bool {
		mi, mj := b.items[i], b.items[j]
		// сначала по файлу
		if mi.Loc.File != mj.Loc.File {
			return mi.Loc.File < mj.Loc.File
		}
		// затем по позиции
		if mi.Loc.Line != mj.Loc.Line {
			return mi.Loc.Line < mj.Loc.Line
		}
		if mi.Loc.Col != mj.Loc.Col {
			return mi.Loc.Col < mj.Loc.Col
		}
		// затем по семантической позиции
		if mi.Home != mj.Home {
			return mi.Home < mj.Home
		}
		// затем по тексту
		return mi.Text < mj.Text
	})
}

// Dedup убирает дубликаты по (Text, Home). Из дубликатов выживает
// сообщение с более точно ограниченной позицией.
func (b *Bag) Dedup() {
	type key struct {
		text string
		home string
	}
	kept := make(map[key]int, len(b.items))
	newitems := make([]Message, 0, len(b.items))
	for _, m := range b.items {
		k := key{text: m.Text, home: m.Home}
		if idx, ok := kept[k]; ok {
			if m.Loc.Narrower(newitems[idx].Loc) {
				newitems[idx] = m
			}
			continue
		}
		kept[k] = len(newitems)
		newitems = append(newitems, m)
	}
	b.items = newitems
}
