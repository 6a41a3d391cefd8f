package main

import (
	"os"
	"path/filepath"
	"testing"

	"cdsc/internal/diag"
	"cdsc/internal/driver"
	"cdsc/internal/project"
)

func TestDefaultSchemaCompilesClean(t *testing.T) {
	inputs := []driver.NamedSource{
		{Name: "db/schema.csn.json", Content: []byte(defaultSchemaCSN())},
	}
	res := driver.CompileBytes(inputs, driver.Options{})
	if res.Bag.Len() != 0 {
		t.Fatalf("starter schema produced diagnostics:\n%s",
			diag.FormatShortMessages(res.Bag.Messages(), res.FileSet, false))
	}

	books, ok := res.Model.Definitions.Get("bookshop.Books")
	if !ok {
		t.Fatal("bookshop.Books missing after compile")
	}
	if _, ok := books.Elements.Get("author_ID"); !ok {
		t.Error("managed association foreign key author_ID not materialized")
	}
}

func TestBuildDefaultManifestLoads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, project.ManifestName)
	if err := os.WriteFile(path, []byte(buildDefaultManifest("demo")), 0o600); err != nil {
		t.Fatal(err)
	}

	m, err := project.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.Project.Name != "demo" {
		t.Errorf("name = %q, want demo", m.Project.Name)
	}
	files := m.InputFiles()
	if len(files) != 1 || filepath.Base(files[0]) != "schema.csn.json" {
		t.Errorf("InputFiles = %v, want one schema.csn.json", files)
	}
	if _, err := m.Options(); err != nil {
		t.Errorf("Options: %v", err)
	}
}

func TestReadUIMode(t *testing.T) {
	cases := []struct {
		in      string
		want    uiMode
		wantErr bool
	}{
		{"", uiModeAuto, false},
		{"auto", uiModeAuto, false},
		{"ON", uiModeOn, false},
		{" off ", uiModeOff, false},
		{"fancy", "", true},
	}
	for _, tc := range cases {
		got, err := readUIMode(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("readUIMode(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("readUIMode(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("readUIMode(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
