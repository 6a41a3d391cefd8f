package project

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"cdsc/internal/csn"
	"cdsc/internal/diag"
)

func writeManifest(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, ManifestName)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	return path
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, `
[project]
name = "bookshop"
files = ["db/schema.csn.json", "srv/service.csn.json"]

[build]
naming = "hdbcds"
target = "hdbcds"
legacy_draft_suffix = true
max_diagnostics = 64

[severities]
"type-missing" = "info"

[deprecated]
longAutoexposed = true
`)

	m, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if m.Project.Name != "bookshop" {
		t.Errorf("name = %q, want %q", m.Project.Name, "bookshop")
	}
	files := m.InputFiles()
	if len(files) != 2 {
		t.Fatalf("input files = %v", files)
	}
	// relative paths bind to the manifest directory
	if files[0] != filepath.Join(dir, "db", "schema.csn.json") {
		t.Errorf("file[0] = %q", files[0])
	}
	if m.Build.MaxDiagnostics != 64 {
		t.Errorf("max_diagnostics = %d, want 64", m.Build.MaxDiagnostics)
	}

	opts, err := m.Options()
	if err != nil {
		t.Fatalf("Options returned error: %v", err)
	}
	if opts.Naming != csn.NamingHdbcds || opts.Target != csn.TargetHdbcds {
		t.Errorf("naming/target = %v/%v", opts.Naming, opts.Target)
	}
	if !opts.LegacyDraftSuffix {
		t.Errorf("legacy_draft_suffix not carried")
	}
	if got := opts.SeverityOverrides[diag.TypeMissing]; got != diag.SevInfo {
		t.Errorf("severity override = %v, want INFO", got)
	}
	if !opts.DeprecatedEnabled("longAutoexposed") {
		t.Errorf("deprecated toggle not carried")
	}
}

func TestLoadManifestMissingProject(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, "[build]\nnaming = \"plain\"\n")

	_, err := Load(path)
	if !errors.Is(err, ErrProjectSectionMissing) {
		t.Fatalf("expected ErrProjectSectionMissing, got %v", err)
	}
}

func TestManifestOptionsRejectsBadValues(t *testing.T) {
	dir := t.TempDir()

	path := writeManifest(t, dir, "[project]\n[build]\nnaming = \"hungarian\"\n")
	m, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if _, err := m.Options(); err == nil {
		t.Fatalf("expected error for unknown naming mode")
	}

	path = writeManifest(t, dir, "[project]\n[severities]\n\"type-missing\" = \"fatal\"\n")
	m, err = Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if _, err := m.Options(); err == nil {
		t.Fatalf("expected error for unknown severity")
	}
}

func TestFindWalksUp(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "[project]\nname = \"x\"\n")
	nested := filepath.Join(root, "db", "models")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	path, ok, err := Find(nested)
	if err != nil || !ok {
		t.Fatalf("Find = %v, %v", ok, err)
	}
	if path != filepath.Join(root, ManifestName) {
		t.Errorf("path = %q", path)
	}

	// outside a project no manifest is found
	_, ok, err = Find(t.TempDir())
	if err != nil {
		t.Fatalf("Find returned error: %v", err)
	}
	if ok {
		t.Errorf("unexpected manifest hit outside project")
	}
}

func TestCombineDeterministic(t *testing.T) {
	var a, b Digest
	a[0], b[0] = 1, 2

	first := Combine(a, b)
	if first == (Digest{}) {
		t.Fatalf("combined digest is zero")
	}
	if second := Combine(a, b); second != first {
		t.Errorf("combine is not deterministic")
	}
	if swapped := Combine(b, a); swapped == first {
		t.Errorf("combine ignores order")
	}
}
