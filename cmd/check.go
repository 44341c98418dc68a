package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	bberrors "github.com/conneroisu/bbcode/internal/errors"
)

var checkCmd = &cobra.Command{
	Use:     "check [file|dir...]",
	Aliases: []string{"c"},
	Short:   "Report documents that are not well formed",
	Long: `Parse documents and report every one that would fall back to its raw
input, with the line and column of the problem. With no arguments the
configured watch paths are checked.

The exit status is 1 when any document falls back.

Examples:
  bbcode check
  bbcode check docs/ --format json`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().StringP("format", "f", "text", "Output format (text, json)")
}

type checkReport struct {
	Documents   int                   `json:"documents"`
	Fallbacks   int                   `json:"fallbacks"`
	Diagnostics []bberrors.Diagnostic `json:"diagnostics"`
}

func runCheck(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	if format != "text" && format != "json" {
		return fmt.Errorf("unsupported format: %s (supported: text, json)", format)
	}

	env, err := loadEnvironment(cmd, false)
	if err != nil {
		return err
	}
	paths := args
	if len(paths) == 0 {
		paths = env.config.Watch.Paths
	}

	files, err := env.render.Discover(paths)
	if err != nil {
		return err
	}
	fallbacks, err := env.render.Check(cmd.Context(), files)
	if err != nil {
		return err
	}

	report := checkReport{
		Documents:   len(files),
		Fallbacks:   fallbacks,
		Diagnostics: env.render.Diagnostics().All(),
	}

	out := cmd.OutOrStdout()
	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	default:
		for _, d := range report.Diagnostics {
			fmt.Fprintln(out, d.Error())
		}
		fmt.Fprintf(out, "%d documents checked, %d not well formed\n", report.Documents, report.Fallbacks)
	}

	if fallbacks > 0 {
		return &silentError{msg: fmt.Sprintf("%d documents not well formed", fallbacks)}
	}
	return nil
}
