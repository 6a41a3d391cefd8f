package source

type (
	// FileID uniquely identifies a source file within a FileSet.
	FileID uint32 // просто ID источника
	// FileFlags encodes metadata about a source file.
	FileFlags uint8 // метаданные
)

const (
	// FileVirtual indicates the file was added from memory (test, stdin, etc.).
	FileVirtual FileFlags = 1 << iota // добавлен не с диска (тест, stdin)
	FileHadBOM
	FileNormalizedCRLF
	// FilePathOnly indicates the file is known only by path: it came from a
	// $location fact inside a model and its content was never loaded.
	FilePathOnly
)

// File captures metadata and content for a single model source file.
type File struct {
	ID      FileID
	Path    string
	Content []byte // nil для FilePathOnly
	LineIdx []uint32
	Hash    [32]byte
	Flags   FileFlags
}
