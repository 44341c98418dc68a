package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/conneroisu/bbcode/internal/services"
)

var buildCmd = &cobra.Command{
	Use:     "build [dir...]",
	Aliases: []string{"b"},
	Short:   "Render every watched document into the output directory",
	Long: `Render every document under the given paths, or the configured watch
paths, into the output directory. The output tree mirrors the input tree with
.html files. Documents that are not well formed are written as escaped text.

Examples:
  bbcode build -o public
  bbcode build docs/ --clean -o site`,
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)

	buildCmd.Flags().StringP("output", "o", "", "Output directory (default watch.output_dir)")
	buildCmd.Flags().Bool("clean", false, "Remove the output directory first")
}

func runBuild(cmd *cobra.Command, args []string) error {
	env, err := loadEnvironment(cmd, false)
	if err != nil {
		return err
	}

	outDir, _ := cmd.Flags().GetString("output")
	if outDir == "" {
		outDir = env.config.Watch.OutputDir
	}
	clean, _ := cmd.Flags().GetBool("clean")
	inputs := args
	if len(inputs) == 0 {
		inputs = env.config.Watch.Paths
	}

	result, err := env.render.Build(cmd.Context(), services.BuildOptions{
		Inputs:    inputs,
		OutputDir: outDir,
		Clean:     clean,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Built %d documents into %s in %s (%d not well formed)\n",
		result.Documents, outDir, result.Duration.Round(time.Millisecond), result.Fallbacks)
	return nil
}
