package fuzztests

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const (
	maxSeedBytes = 64 << 10 // 64 KiB — ограничение для тестового корпуса
)

func addCorpusSeeds(f *testing.F) {
	addTestdataSeeds(f)
	addBuiltinSeeds(f)
}

func addTestdataSeeds(f *testing.F) {
	root := filepath.Join("..", "..", "testdata")
	if _, err := os.Stat(root); err != nil {
		return
	}
	// проходим по дереву testdata, добавляем все *.csn.json файлы
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !strings.HasSuffix(path, ".csn.json") {
			return nil
		}
		// #nosec G304 -- path comes from repository testdata walk
		src, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		f.Add(clampSeed(src))
		return nil
	})
	if err != nil {
		return
	}
}

// addBuiltinSeeds даёт корпусу минимальный набор форм CSN: пустая модель,
// сущность с ключом, управляемая и неуправляемая ассоциации, view с exists
// и кривые хвосты, на которых ломались ранние версии декодера.
func addBuiltinSeeds(f *testing.F) {
	seeds := []string{
		``,
		`{}`,
		`{"definitions": {}}`,
		`{"definitions": {`,
		`{"definitions": {"S": {"kind": "service"}}}`,
		`{"definitions": {"T.E": {"kind": "entity", "elements": {
			"ID": {"key": true, "type": "cds.UUID"},
			"parent": {"type": "cds.Association", "target": "T.E", "keys": [{"ref": ["ID"]}]}
		}}}}`,
		`{"definitions": {"T.E": {"kind": "entity", "elements": {
			"ID": {"key": true, "type": "cds.Integer"},
			"kids": {"type": "cds.Composition", "target": "T.K",
				"cardinality": {"max": "*"},
				"on": [{"ref": ["kids", "up_"]}, "=", {"ref": ["$self"]}]}
		}}}}`,
		`{"definitions": {"V": {"kind": "entity", "query": {"SELECT": {
			"from": {"ref": ["T.E"]},
			"where": ["exists", {"ref": ["kids"]}]
		}}}}}`,
		`{"definitions": {"T.E": {"kind": "entity",
			"@assert.unique.name": [{"ref": ["name"]}],
			"elements": {"name": {"type": "cds.String"}}}}}`,
	}
	for _, s := range seeds {
		f.Add(clampSeed([]byte(s)))
	}
}

func clampSeed(src []byte) []byte {
	if len(src) <= maxSeedBytes {
		return append([]byte(nil), src...)
	}
	return append([]byte(nil), src[:maxSeedBytes]...)
}
