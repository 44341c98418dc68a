package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conneroisu/bbcode/internal/services"
)

var initCmd = &cobra.Command{
	Use:     "init [dir]",
	Aliases: []string{"i"},
	Short:   "Write a starter configuration",
	Long: `Write a .bbcode.yml configuration into dir (default the current
directory). With --example a tag definition file and a sample document are
written too.

Examples:
  bbcode init
  bbcode init --example my-site`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().Bool("force", false, "Overwrite existing files")
	initCmd.Flags().Bool("example", false, "Also write a tag file and a sample document")
}

func runInit(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) == 1 {
		dir = args[0]
	}
	force, _ := cmd.Flags().GetBool("force")
	example, _ := cmd.Flags().GetBool("example")

	written, err := services.NewInitService().Init(services.InitOptions{
		Dir:     dir,
		Force:   force,
		Example: example,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, path := range written {
		fmt.Fprintln(out, "created", path)
	}
	return nil
}
