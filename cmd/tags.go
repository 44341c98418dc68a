package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var tagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "List the registered tags",
	Long: `List the tags the parser recognizes: the default tags plus any loaded
from the configured tag files.

Examples:
  bbcode tags
  bbcode tags --format json`,
	Args: cobra.NoArgs,
	RunE: runTags,
}

func init() {
	rootCmd.AddCommand(tagsCmd)

	tagsCmd.Flags().StringP("format", "f", "text", "Output format (text, json)")
}

type tagInfo struct {
	Name               string `json:"name"`
	InsertLineBreaks   bool   `json:"insert_line_breaks"`
	SuppressLineBreaks bool   `json:"suppress_line_breaks"`
	NoNesting          bool   `json:"no_nesting"`
}

func (t tagInfo) flags() []string {
	var flags []string
	if t.InsertLineBreaks {
		flags = append(flags, "line breaks")
	}
	if t.SuppressLineBreaks {
		flags = append(flags, "suppress line breaks")
	}
	if t.NoNesting {
		flags = append(flags, "no nesting")
	}
	return flags
}

func runTags(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")

	env, err := loadEnvironment(cmd, false)
	if err != nil {
		return err
	}

	var infos []tagInfo
	for _, tag := range env.render.Parser().Registry().Tags() {
		infos = append(infos, tagInfo{
			Name:               tag.Name,
			InsertLineBreaks:   tag.InsertLineBreaks,
			SuppressLineBreaks: tag.SuppressLineBreaks,
			NoNesting:          tag.NoNesting,
		})
	}

	out := cmd.OutOrStdout()
	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(infos)
	case "text":
		title := cases.Title(language.English)
		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TAG\tUSAGE\tOPTIONS")
		for _, info := range infos {
			flags := info.flags()
			for i, f := range flags {
				flags[i] = title.String(f)
			}
			fmt.Fprintf(w, "%s\t[%s]...[/%s]\t%s\n", info.Name, info.Name, info.Name, strings.Join(flags, ", "))
		}
		return w.Flush()
	default:
		return fmt.Errorf("unsupported format: %s (supported: text, json)", format)
	}
}
