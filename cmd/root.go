// Package cmd provides the bbcode command-line interface.
//
// Configuration is read with the following precedence, highest first:
//
//  1. Command-line flags (--log-level, serve --port, ...)
//  2. BBCODE_ prefixed environment variables (BBCODE_SERVER_PORT,
//     BBCODE_PARSER_MAX_DEPTH, ...)
//  3. The configuration file: --config, else BBCODE_CONFIG_FILE, else
//     .bbcode.yml in the current directory
//  4. Built-in defaults
package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/bbcode/internal/config"
	"github.com/conneroisu/bbcode/internal/logging"
	"github.com/conneroisu/bbcode/internal/monitoring"
	"github.com/conneroisu/bbcode/internal/services"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "bbcode",
	Short: "Render BBCode documents to HTML",
	Long: `bbcode renders BBCode markup to HTML. Documents that are not well formed
are passed through unchanged instead of being half rendered.

Quick Start:
  bbcode init --example          Write a config, a tag file and a sample document
  bbcode render post.bb          Render a document to stdout
  bbcode check docs/             Report documents that would fall back
  bbcode serve                   Live preview of the watched documents`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil && !isSilent(err) {
		fmt.Fprintln(rootCmd.ErrOrStderr(), "Error:", err)
	}
	return err
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .bbcode.yml, can also use BBCODE_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
}

// flagBindings maps configuration keys to the command flags that override
// them.
var flagBindings = []struct {
	key  string
	cmd  *cobra.Command
	flag string
}{
	{"log.level", rootCmd, "log-level"},
	{"log.format", rootCmd, "log-format"},
	{"server.port", serveCmd, "port"},
	{"server.host", serveCmd, "host"},
	{"watch.output_dir", watchCmd, "output"},
	{"watch.debounce", watchCmd, "debounce"},
}

func bindFlags() {
	for _, b := range flagBindings {
		flag := b.cmd.PersistentFlags().Lookup(b.flag)
		if flag == nil {
			flag = b.cmd.Flags().Lookup(b.flag)
		}
		_ = viper.BindPFlag(b.key, flag)
	}
}

// initConfig points viper at the configuration file and the environment.
func initConfig() {
	bindFlags()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv(config.EnvPrefix + "_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(strings.TrimSuffix(services.ConfigFileName, ".yml"))
	}

	viper.SetEnvPrefix(config.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// A missing default file is fine; defaults apply.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	} else if !errors.As(err, new(viper.ConfigFileNotFoundError)) {
		fmt.Fprintln(os.Stderr, "Cannot read config file:", err)
	}
}

// environment is what every command needs: the loaded configuration, a
// logger built from it and the render service.
type environment struct {
	config  *config.Config
	logger  logging.Logger
	render  *services.RenderService
	metrics *monitoring.Metrics
}

func loadEnvironment(cmd *cobra.Command, withMetrics bool) (*environment, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	logger := logging.New(&logging.Config{
		Level:  level,
		Format: cfg.Log.Format,
		Output: cmd.ErrOrStderr(),
	})

	var metrics *monitoring.Metrics
	if withMetrics {
		metrics = monitoring.NewMetrics(nil)
	}

	render, err := services.NewRenderService(cfg, logger, metrics)
	if err != nil {
		return nil, err
	}
	return &environment{config: cfg, logger: logger, render: render, metrics: metrics}, nil
}

// silentError carries an exit status for a failure the command has already
// reported.
type silentError struct {
	msg string
}

func (e *silentError) Error() string { return e.msg }

func isSilent(err error) bool {
	var silent *silentError
	return errors.As(err, &silent)
}
