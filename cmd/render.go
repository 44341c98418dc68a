package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	bberrors "github.com/conneroisu/bbcode/internal/errors"
	"github.com/conneroisu/bbcode/internal/services"
)

var renderCmd = &cobra.Command{
	Use:     "render [file|dir...]",
	Aliases: []string{"r"},
	Short:   "Render documents to HTML",
	Long: `Render BBCode documents to HTML. With no arguments the document is read
from stdin. Directories are searched for files with a watched extension.

A document that is not well formed is written unchanged to stdout. With
--output each document is written to <dir>/<name>.html, and fallbacks are
written as escaped preformatted text.

Examples:
  bbcode render post.bb
  echo '[b]hi[/b]' | bbcode render
  bbcode render --strip post.bb         # text only
  bbcode render -o public docs/`,
	RunE: runRender,
}

func init() {
	rootCmd.AddCommand(renderCmd)

	renderCmd.Flags().Bool("strip", false, "Drop tags and keep only their text")
	renderCmd.Flags().Bool("no-line-breaks", false, "Keep newlines instead of inserting line break markers")
	renderCmd.Flags().Bool("no-escape", false, "Do not escape HTML in document text")
	renderCmd.Flags().Bool("sanitize", false, "Filter rendered output through the HTML sanitizer")
	renderCmd.Flags().StringP("output", "o", "", "Write rendered documents into this directory")
}

// applyRenderFlags overrides the parser section of the configuration with
// the render flags that were set.
func applyRenderFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("strip") {
		v, _ := flags.GetBool("strip")
		viper.Set("parser.strip_tags", v)
	}
	if flags.Changed("no-line-breaks") {
		v, _ := flags.GetBool("no-line-breaks")
		viper.Set("parser.insert_line_breaks", !v)
	}
	if flags.Changed("no-escape") {
		v, _ := flags.GetBool("no-escape")
		viper.Set("parser.escape_output", !v)
	}
	if flags.Changed("sanitize") {
		v, _ := flags.GetBool("sanitize")
		viper.Set("parser.sanitize", v)
	}
}

func runRender(cmd *cobra.Command, args []string) error {
	applyRenderFlags(cmd)

	env, err := loadEnvironment(cmd, false)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	outDir, _ := cmd.Flags().GetString("output")
	out := cmd.OutOrStdout()

	if len(args) == 0 {
		if outDir != "" {
			return bberrors.NewValidationError(bberrors.ErrCodeValidationFailed, "--output needs document paths, not stdin")
		}
		content, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return bberrors.NewIOError(bberrors.ErrCodeFileRead, "cannot read stdin", err)
		}
		doc := env.render.Render(ctx, "cli", "<stdin>", string(content))
		return writeOutput(out, doc.HTML)
	}

	if outDir != "" {
		result, err := env.render.Build(ctx, services.BuildOptions{Inputs: args, OutputDir: outDir})
		if err != nil {
			return err
		}
		for _, path := range result.Written {
			fmt.Fprintln(out, path)
		}
		return nil
	}

	files, err := env.render.Discover(args)
	if err != nil {
		return err
	}
	for _, file := range files {
		doc, err := env.render.RenderFile(ctx, "cli", file)
		if err != nil {
			return err
		}
		if err := writeOutput(out, doc.HTML); err != nil {
			return err
		}
	}
	return nil
}

func writeOutput(w io.Writer, s string) error {
	if !strings.HasSuffix(s, "\n") {
		s += "\n"
	}
	_, err := io.WriteString(w, s)
	return err
}
