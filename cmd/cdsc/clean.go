package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"cdsc/internal/driver"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove the cdsc model cache",
	Long:  "Remove the on-disk compiled model cache ($XDG_CACHE_HOME/cdsc or ~/.cache/cdsc).",
	Args:  cobra.NoArgs,
	RunE:  runClean,
}

func runClean(_ *cobra.Command, _ []string) error {
	cache, err := driver.OpenModelCache("cdsc")
	if err != nil {
		return fmt.Errorf("failed to open model cache: %w", err)
	}
	if err := cache.DropAll(); err != nil {
		return fmt.Errorf("failed to remove %q: %w", cache.Dir(), err)
	}
	_, _ = fmt.Fprintf(os.Stdout, "removed %s\n", cache.Dir())
	return nil
}
