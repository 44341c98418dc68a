package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/conneroisu/bbcode/internal/server"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s"},
	Short:   "Start the live preview server",
	Long: `Serve the watched documents as HTML pages that reload when a document
is saved, together with a JSON render API.

Endpoints:
  GET  /                 Index of the watched documents
  GET  /doc/<name>       A rendered document
  POST /api/render       Render {"content": "..."} to {"html", "valid"}
  GET  /render/<text>    Render the rest of the path
  GET  /health           Health checks
  GET  /metrics          Prometheus metrics

Examples:
  bbcode serve
  bbcode serve --port 3000 --host 0.0.0.0`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 8080, "Port to serve on")
	serveCmd.Flags().String("host", "localhost", "Host to bind to")
}

func runServe(cmd *cobra.Command, args []string) error {
	env, err := loadEnvironment(cmd, true)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(env.config, env.render, env.logger, env.metrics)
	fmt.Fprintf(cmd.OutOrStdout(), "Preview server at http://%s\n", env.config.Server.Address())
	return srv.Start(ctx)
}
