package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	bberrors "github.com/conneroisu/bbcode/internal/errors"
	"github.com/conneroisu/bbcode/internal/services"
	"github.com/conneroisu/bbcode/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Aliases: []string{"w"},
	Short:   "Rebuild documents into the output directory as they change",
	Long: `Render every watched document into the output directory, then keep
re-rendering documents as they are saved. Deleted documents have their
output removed.

Examples:
  bbcode watch --output public
  BBCODE_WATCH_PATHS=posts,pages bbcode watch -o site`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringP("output", "o", "", "Output directory (default watch.output_dir)")
	watchCmd.Flags().Duration("debounce", 0, "Quiet period before a batch of changes is handled (default watch.debounce)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	env, err := loadEnvironment(cmd, false)
	if err != nil {
		return err
	}
	cfg := env.config
	if cfg.Watch.OutputDir == "" {
		return bberrors.ConfigurationError("watch.output_dir", "an output directory is required", "")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := env.render.Build(ctx, services.BuildOptions{Inputs: cfg.Watch.Paths, OutputDir: cfg.Watch.OutputDir})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Built %d documents into %s (%d not well formed)\n",
		result.Documents, cfg.Watch.OutputDir, result.Fallbacks)

	fw, err := watcher.NewFileWatcher(cfg.Watch.Debounce, env.logger)
	if err != nil {
		return err
	}
	fw.AddFilter(watcher.ExtensionFilter(cfg.Watch.Extensions))
	fw.AddFilter(watcher.NoEditorFilter)
	fw.SetIgnore(cfg.Watch.Ignore)

	b := &rebuilder{
		render: env.render,
		roots:  cfg.Watch.Paths,
		outDir: cfg.Watch.OutputDir,
		out:    cmd.OutOrStdout(),
		errs:   bberrors.NewHandler(env.logger),
	}
	fw.AddHandler(b.handle)

	for _, path := range cfg.Watch.Paths {
		if err := fw.AddRecursive(path); err != nil {
			return err
		}
	}
	fw.Start(ctx)
	defer fw.Stop()

	env.logger.Info(ctx, "Watching for changes", "paths", cfg.Watch.Paths, "output", cfg.Watch.OutputDir)
	<-ctx.Done()
	return nil
}

// rebuilder keeps an output directory in step with the watched documents.
type rebuilder struct {
	render *services.RenderService
	roots  []string
	outDir string
	out    io.Writer
	errs   *bberrors.Handler
}

func (b *rebuilder) handle(ctx context.Context, events []watcher.ChangeEvent) error {
	for _, event := range events {
		root := b.rootOf(event.Path)
		target := services.OutputPath(root, event.Path, b.outDir)

		switch event.Type {
		case watcher.EventTypeDeleted, watcher.EventTypeRenamed:
			b.render.Diagnostics().Reset(event.Path)
			if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
				b.errs.Handle(ctx, bberrors.FileError("delete", target, err))
				continue
			}
			fmt.Fprintf(b.out, "removed %s\n", target)
		default:
			doc, err := b.render.WriteDocument(ctx, root, event.Path, b.outDir)
			if err != nil {
				b.errs.Handle(ctx, err)
				continue
			}
			status := "rendered"
			if !doc.Valid {
				status = "fell back"
			}
			fmt.Fprintf(b.out, "%s %s -> %s\n", status, event.Path, target)
		}
	}
	return nil
}

// rootOf returns the watch root that contains path, or path's directory
// when none does.
func (b *rebuilder) rootOf(path string) string {
	for _, root := range b.roots {
		if filepath.Clean(root) == filepath.Clean(path) {
			return root
		}
		rel, err := filepath.Rel(root, path)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel) {
			return root
		}
	}
	return filepath.Dir(path)
}
