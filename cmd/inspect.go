package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	bberrors "github.com/conneroisu/bbcode/internal/errors"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [file]",
	Short: "Show the tokens and tree of a document",
	Long: `Show the tokens the tokenizer produced and the tree built from them.
With no argument the document is read from stdin.

Examples:
  bbcode inspect post.bb
  echo '[b]x[/i]' | bbcode inspect --format yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)

	inspectCmd.Flags().StringP("format", "f", "text", "Output format (text, json, yaml)")
}

func runInspect(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")

	env, err := loadEnvironment(cmd, false)
	if err != nil {
		return err
	}

	var content []byte
	if len(args) == 1 {
		content, err = os.ReadFile(args[0])
		if err != nil {
			return bberrors.FileError("read", args[0], err)
		}
	} else {
		content, err = io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return bberrors.NewIOError(bberrors.ErrCodeFileRead, "cannot read stdin", err)
		}
	}

	ins := env.render.Parser().Inspect(string(content))
	out := cmd.OutOrStdout()

	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(ins)
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(ins)
	case "text":
		fmt.Fprintln(out, "Tokens:")
		for _, tok := range ins.Tokens {
			fmt.Fprintf(out, "  %4d  %s\n", tok.Offset, tok)
		}
		if ins.Tree != nil {
			fmt.Fprintln(out, "Tree:")
			fmt.Fprint(out, ins.Tree.Dump())
		}
		if ins.Problem != nil {
			line, col := bberrors.LineColumn(string(content), ins.Problem.Offset)
			fmt.Fprintf(out, "Problem: %d:%d: %s\n", line, col, ins.Problem.Error())
		}
		fmt.Fprintf(out, "Valid: %t\n", ins.Valid)
		return nil
	default:
		return fmt.Errorf("unsupported format: %s (supported: text, json, yaml)", format)
	}
}
