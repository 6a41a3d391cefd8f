package source

import (
	"fmt"
)

// Loc описывает позицию в исходном файле модели в строках/колонках.
// CSN хранит в $location только line/col (1-based), байтовых смещений нет.
// EndLine/EndCol опциональны: 0 означает "точечная" позиция.
type Loc struct {
	File    FileID
	Line    uint32 // 1-based, 0 = неизвестно
	Col     uint32 // 1-based, 0 = неизвестно
	EndLine uint32
	EndCol  uint32
}

func (l Loc) Empty() bool {
	return l.Line == 0 && l.Col == 0
}

// HasEnd возвращает true, если позиция ограничена с обеих сторон.
func (l Loc) HasEnd() bool {
	return l.EndLine != 0 || l.EndCol != 0
}

func (l Loc) String() string {
	if l.HasEnd() {
		return fmt.Sprintf("%d:%d:%d-%d:%d", l.File, l.Line, l.Col, l.EndLine, l.EndCol)
	}
	return fmt.Sprintf("%d:%d:%d", l.File, l.Line, l.Col)
}

// Before задаёт строгий порядок позиций внутри одного файла.
// Позиции из разных файлов сравниваются по FileID.
func (l Loc) Before(other Loc) bool {
	if l.File != other.File {
		return l.File < other.File
	}
	if l.Line != other.Line {
		return l.Line < other.Line
	}
	return l.Col < other.Col
}

// Cover расширяет позицию так, чтобы она покрывала other.
// Позиции из разных файлов не объединяются.
func (l Loc) Cover(other Loc) Loc {
	if l.File != other.File || other.Empty() {
		return l
	}
	if l.Empty() {
		return other
	}
	if other.Before(l) {
		l.Line, l.Col = other.Line, other.Col
	}
	le, oe := l.endPoint(), other.endPoint()
	if pointBefore(le, oe) {
		l.EndLine, l.EndCol = oe.line, oe.col
	}
	return l
}

// Narrower возвращает true, если позиция ограничена точнее, чем other:
// известная позиция точнее пустой, замкнутая точнее открытой,
// при прочих равных — более короткий диапазон.
func (l Loc) Narrower(other Loc) bool {
	if l.Empty() != other.Empty() {
		return !l.Empty()
	}
	if l.HasEnd() != other.HasEnd() {
		return l.HasEnd()
	}
	if !l.HasEnd() {
		return false
	}
	ls := l.EndLine - l.Line
	os := other.EndLine - other.Line
	if ls != os {
		return ls < os
	}
	return l.EndCol-l.Col < other.EndCol-other.Col
}

type point struct {
	line, col uint32
}

func (l Loc) endPoint() point {
	if l.HasEnd() {
		return point{l.EndLine, l.EndCol}
	}
	return point{l.Line, l.Col}
}

func pointBefore(a, b point) bool {
	if a.line != b.line {
		return a.line < b.line
	}
	return a.col < b.col
}
