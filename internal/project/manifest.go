package project

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"cdsc/internal/csn"
	"cdsc/internal/diag"
)

// Manifest is a parsed cdsc.toml. All the manifest content boils down
// to the input file list and csn.Options; CLI flags may override any
// setting on top.
type Manifest struct {
	Project struct {
		Name  string   `toml:"name"`
		Files []string `toml:"files"`
	} `toml:"project"`
	Build struct {
		Naming              string `toml:"naming"`
		Target              string `toml:"target"`
		LegacyDraftSuffix   bool   `toml:"legacy_draft_suffix"`
		KeepVirtualInDrafts bool   `toml:"keep_virtual_in_drafts"`
		DowngradableErrors  bool   `toml:"downgradable_errors"`
		MaxDiagnostics      int    `toml:"max_diagnostics"`
	} `toml:"build"`
	// Severities overrides severity per message code:
	// "type-missing" = "info". The registry applies them subject to
	// the code's configurable mode, not blindly.
	Severities map[string]string `toml:"severities"`
	Deprecated map[string]bool   `toml:"deprecated"`
	Beta       map[string]bool   `toml:"beta"`

	// Dir is the manifest directory; relative file paths resolve against it.
	Dir string `toml:"-"`
}

// ErrProjectSectionMissing indicates that [project] is missing in cdsc.toml.
var ErrProjectSectionMissing = errors.New("missing [project]")

// Load parses a cdsc.toml manifest.
func Load(path string) (*Manifest, error) {
	var m Manifest
	meta, err := toml.DecodeFile(path, &m)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if !meta.IsDefined("project") {
		return nil, fmt.Errorf("%s: %w", path, ErrProjectSectionMissing)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	m.Dir = filepath.Dir(abs)
	return &m, nil
}

// InputFiles returns the manifest input files, relative paths
// resolved against the manifest directory.
func (m *Manifest) InputFiles() []string {
	if m == nil {
		return nil
	}
	out := make([]string, 0, len(m.Project.Files))
	for _, f := range m.Project.Files {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		if !filepath.IsAbs(f) {
			f = filepath.Join(m.Dir, filepath.FromSlash(f))
		}
		out = append(out, filepath.Clean(f))
	}
	return out
}

// Options turns the manifest into the semantic compilation settings.
func (m *Manifest) Options() (*csn.Options, error) {
	opts := &csn.Options{}
	if m == nil {
		return opts, nil
	}
	var err error
	if opts.Naming, err = csn.ParseNamingMode(m.Build.Naming); err != nil {
		return nil, fmt.Errorf("[build].naming: %w", err)
	}
	if opts.Target, err = csn.ParseTarget(m.Build.Target); err != nil {
		return nil, fmt.Errorf("[build].target: %w", err)
	}
	opts.LegacyDraftSuffix = m.Build.LegacyDraftSuffix
	opts.KeepVirtualInDrafts = m.Build.KeepVirtualInDrafts
	opts.DowngradableErrors = m.Build.DowngradableErrors
	if len(m.Severities) > 0 {
		opts.SeverityOverrides = make(map[diag.Code]diag.Severity, len(m.Severities))
		for code, name := range m.Severities {
			sev, err := diag.ParseSeverity(name)
			if err != nil {
				return nil, fmt.Errorf("[severities].%q: %w", code, err)
			}
			opts.SeverityOverrides[diag.Code(code)] = sev
		}
	}
	if len(m.Deprecated) > 0 {
		opts.Deprecated = make(map[string]bool, len(m.Deprecated))
		for name, on := range m.Deprecated {
			opts.Deprecated[name] = on
		}
	}
	if len(m.Beta) > 0 {
		opts.Beta = make(map[string]bool, len(m.Beta))
		for name, on := range m.Beta {
			opts.Beta[name] = on
		}
	}
	return opts, nil
}
