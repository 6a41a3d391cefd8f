package project

import (
	"crypto/sha256"
)

// Digest — фиксированный 256-битный хеш (совместим с source.File.Hash).
type Digest [32]byte

// Combine строит агрегатный ключ кэша: H( seed || part1 || part2 ... ).
// Порядок частей должен быть детерминированным — вызывающая сторона
// передаёт хеши файлов в отсортированном порядке путей.
func Combine(seed Digest, parts ...Digest) Digest {
	h := sha256.New()
	_, _ = h.Write(seed[:])
	for _, d := range parts {
		_, _ = h.Write(d[:])
	}
	var out Digest
	copy(out[:], h.Sum(nil))
	return out
}
