// Package config provides configuration management for the bbcode tools
// using Viper for loading from files, environment variables and command-line
// flags.
//
// Settings are read from .bbcode.yml (or the file named by --config or
// BBCODE_CONFIG_FILE) and may be overridden by BBCODE_ prefixed environment
// variables, e.g. BBCODE_SERVER_PORT=9000 or BBCODE_PARSER_MAX_DEPTH=64.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/conneroisu/bbcode/pkg/bbcode"
)

// EnvPrefix is the prefix for environment overrides.
const EnvPrefix = "BBCODE"

type Config struct {
	Parser ParserConfig `mapstructure:"parser" yaml:"parser"`
	Tags   TagsConfig   `mapstructure:"tags" yaml:"tags"`
	Server ServerConfig `mapstructure:"server" yaml:"server"`
	Watch  WatchConfig  `mapstructure:"watch" yaml:"watch"`
	Log    LogConfig    `mapstructure:"log" yaml:"log"`
}

type ParserConfig struct {
	MaxDepth         int    `mapstructure:"max_depth" yaml:"max_depth"`
	LineBreak        string `mapstructure:"line_break" yaml:"line_break"`
	StripTags        bool   `mapstructure:"strip_tags" yaml:"strip_tags"`
	InsertLineBreaks bool   `mapstructure:"insert_line_breaks" yaml:"insert_line_breaks"`
	EscapeOutput     bool   `mapstructure:"escape_output" yaml:"escape_output"`
	Sanitize         bool   `mapstructure:"sanitize" yaml:"sanitize"`
}

type TagsConfig struct {
	Files           []string `mapstructure:"files" yaml:"files"`
	DisableDefaults bool     `mapstructure:"disable_defaults" yaml:"disable_defaults"`
}

type ServerConfig struct {
	Host           string   `mapstructure:"host" yaml:"host"`
	Port           int      `mapstructure:"port" yaml:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

type WatchConfig struct {
	Paths      []string      `mapstructure:"paths" yaml:"paths"`
	Extensions []string      `mapstructure:"extensions" yaml:"extensions"`
	Ignore     []string      `mapstructure:"ignore" yaml:"ignore"`
	OutputDir  string        `mapstructure:"output_dir" yaml:"output_dir"`
	Debounce   time.Duration `mapstructure:"debounce" yaml:"debounce"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("parser.max_depth", bbcode.DefaultMaxDepth)
	v.SetDefault("parser.line_break", bbcode.DefaultLineBreak)
	v.SetDefault("parser.strip_tags", false)
	v.SetDefault("parser.insert_line_breaks", true)
	v.SetDefault("parser.escape_output", true)
	v.SetDefault("parser.sanitize", false)

	v.SetDefault("tags.files", []string{})
	v.SetDefault("tags.disable_defaults", false)

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{})

	v.SetDefault("watch.paths", []string{"."})
	v.SetDefault("watch.extensions", []string{".bb", ".bbcode"})
	v.SetDefault("watch.ignore", []string{".git", "node_modules"})
	v.SetDefault("watch.output_dir", "")
	v.SetDefault("watch.debounce", 300*time.Millisecond)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads the configuration held by the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads and validates the configuration held by v.
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Lists set through the environment arrive as one comma separated string.
	config.Tags.Files = splitList(config.Tags.Files)
	config.Server.AllowedOrigins = splitList(config.Server.AllowedOrigins)
	config.Watch.Paths = splitList(config.Watch.Paths)
	config.Watch.Extensions = normalizeExtensions(splitList(config.Watch.Extensions))
	config.Watch.Ignore = splitList(config.Watch.Ignore)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &config, nil
}

func splitList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func normalizeExtensions(exts []string) []string {
	for i, ext := range exts {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts[i] = ext
	}
	return exts
}

// ParserOptions translates the parser section into parser construction
// options.
func (c ParserConfig) ParserOptions() []bbcode.Option {
	return []bbcode.Option{
		bbcode.WithMaxDepth(c.MaxDepth),
		bbcode.WithLineBreak(c.LineBreak),
	}
}

// RenderOptions translates the parser section into per-call render options.
func (c ParserConfig) RenderOptions() []bbcode.RenderOption {
	return []bbcode.RenderOption{
		bbcode.WithStripTags(c.StripTags),
		bbcode.WithInsertLineBreak(c.InsertLineBreaks),
		bbcode.WithEscapeOutput(c.EscapeOutput),
	}
}

// Address returns host:port.
func (c ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
