package diagfmt

import (
	"bytes"
	"encoding/json"
	"testing"

	"cdsc/internal/diag"
	"cdsc/internal/source"
)

// TestJSONBasic проверяет базовое JSON форматирование
func TestJSONBasic(t *testing.T) {
	fs := source.NewFileSet()
	content := []byte("{\n  \"definitions\": {\n    \"S.Books\": {\"kind\": \"entity\"}\n  }\n}\n")
	fileID := fs.AddVirtual("catalog.csn.json", content)

	bag := diag.NewBag(10)
	bag.Add(diag.Message{
		Severity: diag.SevError,
		Code:     diag.RefUndefinedElement,
		Text:     `element "titel" has not been found`,
		Loc:      source.Loc{File: fileID, Line: 3, Col: 5, EndLine: 3, EndCol: 14},
		Home:     `entity:"S.Books"/element:"titel"`,
	})

	var buf bytes.Buffer
	opts := JSONOpts{
		PathMode: PathModeBasename,
		Max:      0,
	}

	if err := JSON(&buf, bag, fs, opts); err != nil {
		t.Fatalf("JSON() error: %v", err)
	}

	// Парсим JSON чтобы убедиться что он валидный
	var output DiagnosticsOutput
	if err := json.Unmarshal(buf.Bytes(), &output); err != nil {
		t.Fatalf("Invalid JSON output: %v\nOutput: %s", err, buf.String())
	}

	// Проверяем базовые поля
	if output.Count != 1 {
		t.Errorf("Expected count=1, got %d", output.Count)
	}

	if len(output.Diagnostics) != 1 {
		t.Fatalf("Expected 1 diagnostic, got %d", len(output.Diagnostics))
	}

	d := output.Diagnostics[0]
	if d.Severity != "ERROR" {
		t.Errorf("Expected severity=ERROR, got %s", d.Severity)
	}

	if d.Code != "ref-undefined-element" {
		t.Errorf("Expected code=ref-undefined-element, got %s", d.Code)
	}

	if d.Message != `element "titel" has not been found` {
		t.Errorf("Unexpected message: %s", d.Message)
	}

	if d.Home != `entity:"S.Books"/element:"titel"` {
		t.Errorf("Unexpected home: %s", d.Home)
	}

	if d.Location == nil {
		t.Fatal("Expected location to be present")
	}

	if d.Location.File != "catalog.csn.json" {
		t.Errorf("Expected file=catalog.csn.json, got %s", d.Location.File)
	}

	if d.Location.Line != 3 || d.Location.Col != 5 {
		t.Errorf("Expected position 3:5, got %d:%d", d.Location.Line, d.Location.Col)
	}

	if d.Location.EndLine != 3 || d.Location.EndCol != 14 {
		t.Errorf("Expected end 3:14, got %d:%d", d.Location.EndLine, d.Location.EndCol)
	}
}

// TestJSONWithoutLocation проверяет, что пустая позиция опускается
func TestJSONWithoutLocation(t *testing.T) {
	fs := source.NewFileSet()
	fs.AddVirtual("model.csn.json", []byte("{}\n"))

	bag := diag.NewBag(10)
	bag.Add(diag.Message{
		Severity: diag.SevWarning,
		Code:     diag.ConstraintDuplicate,
		Text:     `unique constraint "b" duplicates constraint "a"`,
		Home:     `entity:"S.Books"`,
	})

	var buf bytes.Buffer
	if err := JSON(&buf, bag, fs, JSONOpts{PathMode: PathModeBasename}); err != nil {
		t.Fatalf("JSON() error: %v", err)
	}

	// location не должен сериализоваться вовсе
	var raw map[string]any
	if err := json.Unmarshal(buf.Bytes(), &raw); err != nil {
		t.Fatalf("Invalid JSON output: %v", err)
	}
	items, ok := raw["diagnostics"].([]any)
	if !ok || len(items) != 1 {
		t.Fatalf("Expected 1 diagnostic, got %v", raw["diagnostics"])
	}
	entry, ok := items[0].(map[string]any)
	if !ok {
		t.Fatalf("Unexpected diagnostic shape: %v", items[0])
	}
	if _, has := entry["location"]; has {
		t.Errorf("Expected location to be omitted, got %v", entry["location"])
	}
	if entry["home"] != `entity:"S.Books"` {
		t.Errorf("Expected home to survive, got %v", entry["home"])
	}
}

// TestJSONNotes проверяет вывод заметок
func TestJSONNotes(t *testing.T) {
	fs := source.NewFileSet()
	content := []byte("{\"definitions\": {\"T\": {\"kind\": \"type\"}}}\n")
	fileID := fs.AddVirtual("base.csn.json", content)

	bag := diag.NewBag(10)
	bag.Add(diag.Message{
		Severity: diag.SevError,
		Code:     diag.TypeCyclic,
		Text:     `type "T" is part of a dependency cycle`,
		Loc:      source.Loc{File: fileID, Line: 1, Col: 18},
		Notes: []diag.Note{
			{Loc: source.Loc{File: fileID, Line: 1, Col: 24}, Msg: "cycle enters here"},
		},
	})

	var buf bytes.Buffer
	opts := JSONOpts{PathMode: PathModeBasename, IncludeNotes: true}
	if err := JSON(&buf, bag, fs, opts); err != nil {
		t.Fatalf("JSON() error: %v", err)
	}

	var output DiagnosticsOutput
	if err := json.Unmarshal(buf.Bytes(), &output); err != nil {
		t.Fatalf("Invalid JSON output: %v", err)
	}

	d := output.Diagnostics[0]
	if len(d.Notes) != 1 {
		t.Fatalf("Expected 1 note, got %d", len(d.Notes))
	}
	note := d.Notes[0]
	if note.Message != "cycle enters here" {
		t.Errorf("Unexpected note message: %s", note.Message)
	}
	if note.Location == nil || note.Location.Line != 1 || note.Location.Col != 24 {
		t.Errorf("Unexpected note location: %+v", note.Location)
	}

	// без IncludeNotes заметки опускаются
	buf.Reset()
	output = DiagnosticsOutput{} // json.Unmarshal не обнуляет уже заполненные элементы слайса
	if err := JSON(&buf, bag, fs, JSONOpts{PathMode: PathModeBasename}); err != nil {
		t.Fatalf("JSON() error: %v", err)
	}
	if err := json.Unmarshal(buf.Bytes(), &output); err != nil {
		t.Fatalf("Invalid JSON output: %v", err)
	}
	if len(output.Diagnostics[0].Notes) != 0 {
		t.Errorf("Expected notes to be omitted, got %d", len(output.Diagnostics[0].Notes))
	}
}

// TestJSONTimingsNote: payload obs-timings выводится даже без IncludeNotes
func TestJSONTimingsNote(t *testing.T) {
	fs := source.NewFileSet()
	fs.AddVirtual("model.csn.json", []byte("{}\n"))

	bag := diag.NewBag(10)
	bag.Add(diag.Message{
		Severity: diag.SevInfo,
		Code:     diag.ObsTimings,
		Text:     "timings (compile): total 1.25 ms",
		Notes:    []diag.Note{{Msg: `{"kind":"compile","total_ms":1.25}`}},
	})

	var buf bytes.Buffer
	if err := JSON(&buf, bag, fs, JSONOpts{PathMode: PathModeBasename}); err != nil {
		t.Fatalf("JSON() error: %v", err)
	}

	var output DiagnosticsOutput
	if err := json.Unmarshal(buf.Bytes(), &output); err != nil {
		t.Fatalf("Invalid JSON output: %v", err)
	}
	d := output.Diagnostics[0]
	if len(d.Notes) != 1 {
		t.Fatalf("Expected timings note to survive, got %d notes", len(d.Notes))
	}
	if d.Notes[0].Message != `{"kind":"compile","total_ms":1.25}` {
		t.Errorf("Unexpected timings payload: %s", d.Notes[0].Message)
	}
}

// TestJSONMaxLimit проверяет ограничение количества диагностик
func TestJSONMaxLimit(t *testing.T) {
	fs := source.NewFileSet()
	content := []byte("{\"definitions\": {}}\n")
	fileID := fs.AddVirtual("model.csn.json", content)

	bag := diag.NewBag(10)

	// Добавляем 5 диагностик
	for i := range 5 {
		bag.Add(diag.Message{
			Severity: diag.SevError,
			Code:     diag.RefUndefinedDef,
			Text:     "error message",
			Loc:      source.Loc{File: fileID, Line: 1, Col: uint32(i + 1)},
		})
	}

	var buf bytes.Buffer
	opts := JSONOpts{
		PathMode: PathModeBasename,
		Max:      3, // Ограничение в 3 диагностики
	}

	if err := JSON(&buf, bag, fs, opts); err != nil {
		t.Fatalf("JSON() error: %v", err)
	}

	var output DiagnosticsOutput
	if err := json.Unmarshal(buf.Bytes(), &output); err != nil {
		t.Fatalf("Invalid JSON output: %v", err)
	}

	if output.Count != 3 {
		t.Errorf("Expected count=3 (limited), got %d", output.Count)
	}

	if len(output.Diagnostics) != 3 {
		t.Errorf("Expected 3 diagnostics (limited), got %d", len(output.Diagnostics))
	}
}

// TestJSONPathModes проверяет различные режимы путей
func TestJSONPathModes(t *testing.T) {
	fs := source.NewFileSet()
	fs.SetBaseDir("/home/user/project")

	content := []byte("{}\n")
	fileID := fs.AddVirtual("/home/user/project/db/schema.csn.json", content)

	bag := diag.NewBag(10)
	bag.Add(diag.Message{
		Severity: diag.SevError,
		Code:     diag.CSNInvalidJSON,
		Text:     "error",
		Loc:      source.Loc{File: fileID, Line: 1, Col: 1},
	})

	tests := []struct {
		name     string
		pathMode PathMode
		expected string
	}{
		{"Absolute", PathModeAbsolute, "/home/user/project/db/schema.csn.json"},
		{"Relative", PathModeRelative, "db/schema.csn.json"},
		{"Basename", PathModeBasename, "schema.csn.json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			opts := JSONOpts{
				PathMode: tt.pathMode,
				Max:      0,
			}

			if err := JSON(&buf, bag, fs, opts); err != nil {
				t.Fatalf("JSON() error: %v", err)
			}

			var output DiagnosticsOutput
			if err := json.Unmarshal(buf.Bytes(), &output); err != nil {
				t.Fatalf("Invalid JSON output: %v", err)
			}

			if output.Diagnostics[0].Location.File != tt.expected {
				t.Errorf("Expected file=%s, got %s", tt.expected, output.Diagnostics[0].Location.File)
			}
		})
	}
}
