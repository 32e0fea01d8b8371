package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/buildscript/internal/ui"
	"github.com/papapumpkin/buildscript/internal/workspace"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove build, artifact and run directories",
	RunE: func(cmd *cobra.Command, _ []string) error {
		root, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get working directory: %w", err)
		}
		cache, _ := cmd.Flags().GetBool("cache")
		if err := (workspace.Layout{Root: root}).Clean(cache); err != nil {
			return err
		}
		if cache {
			ui.New().Success("removed .build, .bin, .run and .cache")
		} else {
			ui.New().Success("removed .build, .bin and .run")
		}
		return nil
	},
}

func init() {
	cleanCmd.Flags().Bool("cache", false, "also remove installed tools in .cache")
	rootCmd.AddCommand(cleanCmd)
}
