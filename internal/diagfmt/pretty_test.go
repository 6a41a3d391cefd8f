package diagfmt

import (
	"bytes"
	"strings"
	"testing"

	"cdsc/internal/diag"
	"cdsc/internal/source"
)

// TestPathModes проверяет различные режимы форматирования путей
func TestPathModes(t *testing.T) {
	// Создаём FileSet
	fs := source.NewFileSet()

	// Добавляем тестовый файл
	content := []byte("{\"definitions\": {\"S.Books\": {\"kind\": \"entity\"}}}\n")
	fileID := fs.AddVirtual("/home/user/project/srv/catalog.csn.json", content)

	// Устанавливаем базовую директорию для relative paths
	fs.SetBaseDir("/home/user/project")

	// Создаём диагностику
	bag := diag.NewBag(10)
	bag.Add(diag.Message{
		Severity: diag.SevError,
		Code:     diag.RefUndefinedDef,
		Text:     `artifact "S.Missing" has not been found`,
		Loc:      source.Loc{File: fileID, Line: 1, Col: 18},
	})

	tests := []struct {
		name     string
		mode     PathMode
		contains string
	}{
		{
			name:     "Absolute path",
			mode:     PathModeAbsolute,
			contains: "/home/user/project/srv/catalog.csn.json",
		},
		{
			name:     "Relative path",
			mode:     PathModeRelative,
			contains: "srv/catalog.csn.json",
		},
		{
			name:     "Basename only",
			mode:     PathModeBasename,
			contains: "catalog.csn.json",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			opts := PrettyOpts{
				Color:    false,
				Context:  1,
				PathMode: tt.mode,
			}

			Pretty(&buf, bag, fs, opts)
			output := buf.String()

			if !strings.Contains(output, tt.contains) {
				t.Errorf("Expected output to contain %q, got:\n%s", tt.contains, output)
			}

			// Проверяем что есть основные элементы
			if !strings.Contains(output, "ERROR") {
				t.Error("Expected ERROR in output")
			}
			if !strings.Contains(output, "ref-undefined-def") {
				t.Error("Expected ref-undefined-def code in output")
			}
			if !strings.Contains(output, `artifact "S.Missing"`) {
				t.Error("Expected error message in output")
			}
		})
	}
}

// TestPathModeAuto проверяет авто-режим выбора пути
func TestPathModeAuto(t *testing.T) {
	fs := source.NewFileSet()

	tests := []struct {
		name     string
		path     string
		expected string // что должно быть в выводе
	}{
		{
			name:     "Short path - as is",
			path:     "model.csn.json",
			expected: "model.csn.json",
		},
		{
			name:     "Long absolute path - basename",
			path:     "/very/long/absolute/path/to/some/nested/directory/schema.csn.json",
			expected: "schema.csn.json",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content := []byte("{\"definitions\": {}}\n")
			fileID := fs.AddVirtual(tt.path, content)

			bag := diag.NewBag(10)
			bag.Add(diag.Message{
				Severity: diag.SevWarning,
				Code:     diag.ConstraintDuplicate,
				Text:     "test warning",
				Loc:      source.Loc{File: fileID, Line: 1, Col: 2},
			})

			var buf bytes.Buffer
			opts := PrettyOpts{
				Color:    false,
				Context:  0,
				PathMode: PathModeAuto,
			}

			Pretty(&buf, bag, fs, opts)
			output := buf.String()

			if !strings.Contains(output, tt.expected) {
				t.Errorf("Expected output to contain %q, got:\n%s", tt.expected, output)
			}
		})
	}
}

func TestPrettySnippetCaret(t *testing.T) {
	fs := source.NewFileSet()
	content := []byte("{\n  \"definitions\": {\n    \"S.Books\": {\"kind\": \"entity\"}\n  }\n}\n")
	fileID := fs.AddVirtual("model.csn.json", content)

	bag := diag.NewBag(4)
	bag.Add(diag.Message{
		Severity: diag.SevError,
		Code:     diag.RefUndefinedDef,
		Text:     `artifact "S.Missing" has not been found`,
		Loc:      source.Loc{File: fileID, Line: 3, Col: 5, EndLine: 3, EndCol: 14},
		Home:     `entity:"S.Books"`,
	})

	var buf bytes.Buffer
	Pretty(&buf, bag, fs, PrettyOpts{Context: 1, PathMode: PathModeBasename})
	output := buf.String()

	if !strings.Contains(output, "model.csn.json:3:5: ERROR ref-undefined-def:") {
		t.Fatalf("expected header with position, got:\n%s", output)
	}
	// контекст: строка до и строка после
	if !strings.Contains(output, "    2 |   \"definitions\": {") {
		t.Fatalf("expected context line above, got:\n%s", output)
	}
	if !strings.Contains(output, "    4 |   }") {
		t.Fatalf("expected context line below, got:\n%s", output)
	}
	// каретка: 4 пробела отступа, 9 клеток ширины
	if !strings.Contains(output, "      |     ^~~~~~~~~\n") {
		t.Fatalf("expected caret underline, got:\n%s", output)
	}
	if !strings.Contains(output, `  in: entity:"S.Books"`) {
		t.Fatalf("expected home line, got:\n%s", output)
	}
}

func TestPrettyWithoutLocation(t *testing.T) {
	fs := source.NewFileSet()
	fs.AddVirtual("model.csn.json", []byte("{}\n"))

	bag := diag.NewBag(4)
	bag.Add(diag.Message{
		Severity: diag.SevWarning,
		Code:     diag.ConstraintDuplicate,
		Text:     `unique constraint "b" duplicates constraint "a"`,
		Home:     `entity:"S.Books"`,
	})

	var buf bytes.Buffer
	Pretty(&buf, bag, fs, PrettyOpts{PathMode: PathModeBasename})
	output := buf.String()

	if !strings.HasPrefix(output, "WARNING constraint-duplicate:") {
		t.Fatalf("expected bare header without path, got:\n%s", output)
	}
	if !strings.Contains(output, `  in: entity:"S.Books"`) {
		t.Fatalf("expected home line, got:\n%s", output)
	}
	if strings.Contains(output, " | ") {
		t.Fatalf("expected no snippet without location, got:\n%s", output)
	}
}

func TestPrettyNotes(t *testing.T) {
	fs := source.NewFileSet()
	content := []byte("{\"definitions\": {\"T\": {\"kind\": \"type\"}}}\n")
	fileID := fs.AddVirtual("base.csn.json", content)

	bag := diag.NewBag(4)
	bag.Add(diag.Message{
		Severity: diag.SevError,
		Code:     diag.TypeCyclic,
		Text:     `type "T" is part of a dependency cycle`,
		Loc:      source.Loc{File: fileID, Line: 1, Col: 18},
		Notes: []diag.Note{
			{Loc: source.Loc{File: fileID, Line: 1, Col: 24}, Msg: "cycle enters here"},
			{Msg: "chain: T -> U -> T"},
		},
	})

	var buf bytes.Buffer
	Pretty(&buf, bag, fs, PrettyOpts{PathMode: PathModeBasename, ShowNotes: true})
	output := buf.String()

	if !strings.Contains(output, "  note: base.csn.json:1:24: cycle enters here") {
		t.Fatalf("expected located note, got:\n%s", output)
	}
	if !strings.Contains(output, "  note: chain: T -> U -> T") {
		t.Fatalf("expected bare note, got:\n%s", output)
	}

	buf.Reset()
	Pretty(&buf, bag, fs, PrettyOpts{PathMode: PathModeBasename})
	if strings.Contains(buf.String(), "note:") {
		t.Fatalf("expected notes hidden without ShowNotes, got:\n%s", buf.String())
	}
}

func TestPrettyColor(t *testing.T) {
	fs := source.NewFileSet()
	fileID := fs.AddVirtual("m.csn.json", []byte("{}\n"))

	bag := diag.NewBag(2)
	bag.Add(diag.Message{
		Severity: diag.SevError,
		Code:     diag.CSNInvalidJSON,
		Text:     "input is not valid JSON",
		Loc:      source.Loc{File: fileID, Line: 1, Col: 1},
	})

	var buf bytes.Buffer
	Pretty(&buf, bag, fs, PrettyOpts{Color: true, PathMode: PathModeBasename})
	if !strings.Contains(buf.String(), "\x1b[") {
		t.Fatalf("expected ANSI escapes with Color on, got:\n%q", buf.String())
	}

	buf.Reset()
	Pretty(&buf, bag, fs, PrettyOpts{Color: false, PathMode: PathModeBasename})
	if strings.Contains(buf.String(), "\x1b[") {
		t.Fatalf("expected plain output with Color off, got:\n%q", buf.String())
	}
}
