package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init [path|name]",
	Short: "Initialize a new cdsc project",
	Long: `Initialize a new cdsc project by creating a project manifest (cdsc.toml)
and a starter model (db/schema.csn.json). If [path|name] is omitted,
initializes the current directory. If a non-existing name is provided, a
directory will be created.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

// runInit creates the project directory if needed, writes cdsc.toml
// and the starter model. Re-initializing is an error: the manifest is
// never overwritten.
func runInit(cmd *cobra.Command, args []string) error {
	var target string
	if len(args) == 0 || args[0] == "." {
		wd, err := os.Getwd()
		if err != nil {
			return err
		}
		target = wd
	} else {
		arg := args[0]
		if !filepath.IsAbs(arg) {
			wd, err := os.Getwd()
			if err != nil {
				return err
			}
			target = filepath.Join(wd, arg)
		} else {
			target = arg
		}
	}

	if st, err := os.Stat(target); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if err = os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("failed to create directory %q: %w", target, err)
			}
		} else {
			return err
		}
	} else if !st.IsDir() {
		return fmt.Errorf("%q is not a directory", target)
	}

	name := strings.TrimSpace(filepath.Base(target))
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = "cdsc-project"
	}

	manifestPath := filepath.Join(target, "cdsc.toml")
	if _, err := os.Stat(manifestPath); err == nil {
		return fmt.Errorf("project already initialized: %s exists", manifestPath)
	}

	if err := os.WriteFile(manifestPath, []byte(buildDefaultManifest(name)), os.FileMode(0o600)); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}

	schemaPath := filepath.Join(target, "db", "schema.csn.json")
	createdSchema := false
	if _, err := os.Stat(schemaPath); errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(schemaPath), 0o755); err != nil {
			return fmt.Errorf("failed to create db directory: %w", err)
		}
		if err := os.WriteFile(schemaPath, []byte(defaultSchemaCSN()), 0o600); err != nil {
			return fmt.Errorf("failed to write schema: %w", err)
		}
		createdSchema = true
	}

	rel := target
	if wd, err := os.Getwd(); err == nil {
		if r, err2 := filepath.Rel(wd, target); err2 == nil {
			rel = r
		}
	}
	fmt.Fprintf(os.Stdout, "Initialized cdsc project in %s\n", rel)
	fmt.Fprintf(os.Stdout, "  - cdsc.toml\n")
	if createdSchema {
		fmt.Fprintf(os.Stdout, "  - db/schema.csn.json\n")
	} else {
		fmt.Fprintf(os.Stdout, "  - db/schema.csn.json (existing)\n")
	}
	return nil
}

// buildDefaultManifest returns the minimal project TOML manifest.
func buildDefaultManifest(name string) string {
	return fmt.Sprintf(`# cdsc project manifest
[project]
name = "%s"
files = ["db/schema.csn.json"]

[build]
naming = "plain"
target = "sql"
`, name)
}

// defaultSchemaCSN returns the starter model: two entities with a
// managed association, enough for a first run of the whole pipeline.
func defaultSchemaCSN() string {
	return `{
  "definitions": {
    "bookshop.Books": {
      "kind": "entity",
      "elements": {
        "ID": {"key": true, "type": "cds.Integer"},
        "title": {"type": "cds.String", "length": 111},
        "author": {
          "type": "cds.Association",
          "target": "bookshop.Authors",
          "keys": [{"ref": ["ID"]}]
        }
      }
    },
    "bookshop.Authors": {
      "kind": "entity",
      "elements": {
        "ID": {"key": true, "type": "cds.Integer"},
        "name": {"type": "cds.String", "length": 111}
      }
    }
  },
  "$version": "2.0"
}
`
}
