package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"cdsc/internal/csn"
	"cdsc/internal/diag"
	"cdsc/internal/driver"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [flags] <file.csn.json ...>",
	Short: "Dump compiler internals for a model",
	Long: `Compile the inputs and dump an internal artifact: the compiled model
as CSN, or the resolver cache as a deterministic reference report.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().String("what", "model", "artifact to dump (model|refs)")
	inspectCmd.Flags().String("naming", "plain", "database naming mode (plain|quoted|hdbcds)")
	inspectCmd.Flags().String("target", "sql", "transformation target (sql|hdbcds)")
}

// runInspect compiles the inputs and writes the artifact to stdout;
// diagnostics go to stderr one line per message, keeping pipes clean.
func runInspect(cmd *cobra.Command, args []string) error {
	what, err := cmd.Flags().GetString("what")
	if err != nil {
		return fmt.Errorf("failed to get what flag: %w", err)
	}

	namingValue, err := cmd.Flags().GetString("naming")
	if err != nil {
		return fmt.Errorf("failed to get naming flag: %w", err)
	}

	targetValue, err := cmd.Flags().GetString("target")
	if err != nil {
		return fmt.Errorf("failed to get target flag: %w", err)
	}

	maxDiagnostics, err := cmd.Root().PersistentFlags().GetInt("max-diagnostics")
	if err != nil {
		return fmt.Errorf("failed to get max-diagnostics flag: %w", err)
	}

	sem := &csn.Options{}
	if sem.Naming, err = csn.ParseNamingMode(namingValue); err != nil {
		return err
	}
	if sem.Target, err = csn.ParseTarget(targetValue); err != nil {
		return err
	}

	res, err := driver.Compile(cmd.Context(), args, driver.Options{
		Semantic:       sem,
		MaxDiagnostics: maxDiagnostics,
	})
	if err != nil {
		return fmt.Errorf("compilation failed: %w", err)
	}

	if output := diag.FormatShortMessages(res.Bag.Messages(), res.FileSet, false); output != "" {
		fmt.Fprintln(os.Stderr, output)
	}

	switch what {
	case "model":
		data, encErr := csn.EncodeModel(res.Model, res.FileSet, true)
		if encErr != nil {
			return fmt.Errorf("failed to encode model: %w", encErr)
		}
		if _, err := os.Stdout.Write(data); err != nil {
			return err
		}
	case "refs":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res.Resolver.Snapshot()); err != nil {
			return fmt.Errorf("failed to encode refs: %w", err)
		}
	default:
		return fmt.Errorf("unknown artifact: %s (must be model or refs)", what)
	}

	if res.Bag.HasErrors() {
		// Silence cobra: the diagnostics are already on stderr.
		cmd.SilenceUsage = true
		cmd.SilenceErrors = true
		return fmt.Errorf("")
	}
	return nil
}
