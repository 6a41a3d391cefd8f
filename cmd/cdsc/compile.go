package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"cdsc/internal/csn"
	"cdsc/internal/diag"
	"cdsc/internal/diagfmt"
	"cdsc/internal/driver"
	"cdsc/internal/pipeline"
	"cdsc/internal/project"
)

const noManifestMessage = "no cdsc.toml found\nplease specify input files explicitly, e.g.:\n  cdsc compile srv/model.csn.json"

var compileCmd = &cobra.Command{
	Use:   "compile [flags] [file.csn.json ...]",
	Short: "Compile CSN models into backend-ready form",
	Long: `Compile one or more CSN files through the full pipeline: resolve,
flatten, lower queries, generate unique constraints and draft shadows.
Without arguments the input list is taken from cdsc.toml.`,
	Args: cobra.ArbitraryArgs,
	RunE: runCompile,
}

func init() {
	compileCmd.Flags().String("format", "pretty", "diagnostics format (pretty|json|short)")
	compileCmd.Flags().String("naming", "plain", "database naming mode (plain|quoted|hdbcds)")
	compileCmd.Flags().String("target", "sql", "transformation target (sql|hdbcds)")
	compileCmd.Flags().String("out", "", "write the compiled CSN to a file")
	compileCmd.Flags().String("ui", "auto", "progress user interface (auto|on|off)")
	compileCmd.Flags().Int("jobs", 0, "max parallel workers for reading inputs (0=auto)")
	compileCmd.Flags().Bool("disk-cache", false, "enable persistent disk cache for compiled models")
	compileCmd.Flags().Bool("with-notes", false, "include diagnostic notes in output")
	compileCmd.Flags().Bool("fullpath", false, "emit absolute file paths in output")
}

// runCompile выполняет команду compile: собирает входы (аргументы или
// манифест), мержит настройки манифеста с флагами, гонит конвейер и
// печатает диагностики в выбранном формате. Ошибки компиляции — это
// диагностики и код выхода 1; ошибка возврата остаётся за окружением.
func runCompile(cmd *cobra.Command, args []string) error {
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}

	namingValue, err := cmd.Flags().GetString("naming")
	if err != nil {
		return fmt.Errorf("failed to get naming flag: %w", err)
	}

	targetValue, err := cmd.Flags().GetString("target")
	if err != nil {
		return fmt.Errorf("failed to get target flag: %w", err)
	}

	outPath, err := cmd.Flags().GetString("out")
	if err != nil {
		return fmt.Errorf("failed to get out flag: %w", err)
	}

	uiValue, err := cmd.Flags().GetString("ui")
	if err != nil {
		return fmt.Errorf("failed to get ui flag: %w", err)
	}

	jobs, err := cmd.Flags().GetInt("jobs")
	if err != nil {
		return fmt.Errorf("failed to get jobs flag: %w", err)
	}

	enableDiskCache, err := cmd.Flags().GetBool("disk-cache")
	if err != nil {
		return fmt.Errorf("failed to get disk-cache flag: %w", err)
	}

	withNotes, err := cmd.Flags().GetBool("with-notes")
	if err != nil {
		return fmt.Errorf("failed to get with-notes flag: %w", err)
	}

	fullPath, err := cmd.Flags().GetBool("fullpath")
	if err != nil {
		return fmt.Errorf("failed to get fullpath flag: %w", err)
	}

	maxDiagnostics, err := cmd.Root().PersistentFlags().GetInt("max-diagnostics")
	if err != nil {
		return fmt.Errorf("failed to get max-diagnostics flag: %w", err)
	}

	showTimings, err := cmd.Root().PersistentFlags().GetBool("timings")
	if err != nil {
		return fmt.Errorf("failed to get timings flag: %w", err)
	}

	quiet, err := cmd.Root().PersistentFlags().GetBool("quiet")
	if err != nil {
		return fmt.Errorf("failed to get quiet flag: %w", err)
	}

	uiModeValue, err := readUIMode(uiValue)
	if err != nil {
		return err
	}

	cleanup, err := setupProfiling(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	// Входы: явные аргументы или манифест проекта.
	sem := &csn.Options{}
	files := args
	if len(files) == 0 {
		manifestPath, ok, findErr := project.Find(".")
		if findErr != nil {
			return findErr
		}
		if !ok {
			return errors.New(noManifestMessage)
		}
		manifest, loadErr := project.Load(manifestPath)
		if loadErr != nil {
			return loadErr
		}
		files = manifest.InputFiles()
		if len(files) == 0 {
			return fmt.Errorf("%s: [project].files is empty", manifestPath)
		}
		if sem, err = manifest.Options(); err != nil {
			return err
		}
		if manifest.Build.MaxDiagnostics > 0 && !cmd.Root().PersistentFlags().Changed("max-diagnostics") {
			maxDiagnostics = manifest.Build.MaxDiagnostics
		}
	}

	// Флаги перекрывают манифест только при явном использовании.
	if cmd.Flags().Changed("naming") || len(args) > 0 {
		if sem.Naming, err = csn.ParseNamingMode(namingValue); err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("target") || len(args) > 0 {
		if sem.Target, err = csn.ParseTarget(targetValue); err != nil {
			return err
		}
	}

	var cache *driver.ModelCache
	if enableDiskCache {
		if cache, err = driver.OpenModelCache("cdsc"); err != nil {
			return fmt.Errorf("failed to open model cache: %w", err)
		}
	}

	req := &pipeline.CompileRequest{
		Paths:          files,
		Semantic:       sem,
		MaxDiagnostics: maxDiagnostics,
		Jobs:           jobs,
		Timings:        showTimings,
		Cache:          cache,
	}

	var compileRes pipeline.CompileResult
	if shouldUseTUI(uiModeValue) && len(files) > 0 {
		compileRes, err = runCompileWithUI(cmd.Context(), "cdsc compile", files, req)
	} else {
		compileRes, err = pipeline.Compile(cmd.Context(), req)
	}
	if err != nil {
		return fmt.Errorf("compilation failed: %w", err)
	}
	res := compileRes.Compile

	colorFlag, err := cmd.Root().PersistentFlags().GetString("color")
	if err != nil {
		return err
	}
	useColor := colorFlag == "on" || (colorFlag == "auto" && isTerminal(os.Stdout))
	pathMode := diagfmt.PathModeAuto
	if fullPath {
		pathMode = diagfmt.PathModeAbsolute
	}

	switch format {
	case "pretty":
		diagfmt.Pretty(os.Stdout, res.Bag, res.FileSet, diagfmt.PrettyOpts{
			Color:     useColor,
			Context:   2,
			PathMode:  pathMode,
			ShowNotes: withNotes,
		})
	case "short":
		output := diag.FormatShortMessages(res.Bag.Messages(), res.FileSet, withNotes)
		if output != "" {
			fmt.Fprintln(os.Stdout, output)
		}
	case "json":
		if err := diagfmt.JSON(os.Stdout, res.Bag, res.FileSet, diagfmt.JSONOpts{
			PathMode:     pathMode,
			IncludeNotes: withNotes,
		}); err != nil {
			return fmt.Errorf("failed to format diagnostics: %w", err)
		}
	default:
		return fmt.Errorf("unknown format: %s", format)
	}

	hasErrors := res.Bag.HasErrors()
	if outPath != "" && !hasErrors {
		data, encErr := csn.EncodeModel(res.Model, res.FileSet, true)
		if encErr != nil {
			return fmt.Errorf("failed to encode model: %w", encErr)
		}
		if writeErr := os.WriteFile(outPath, data, 0o600); writeErr != nil {
			return fmt.Errorf("failed to write %q: %w", outPath, writeErr)
		}
		if !quiet {
			_, _ = fmt.Fprintf(os.Stdout, "wrote %s\n", outPath)
		}
	}

	if showTimings && !quiet {
		printStageTimings(os.Stdout, compileRes.Timings)
	}

	if hasErrors {
		// Глушим cobra: диагностики уже напечатаны.
		cmd.SilenceUsage = true
		cmd.SilenceErrors = true
		return fmt.Errorf("")
	}
	return nil
}
