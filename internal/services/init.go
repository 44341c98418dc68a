package services

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/bbcode/internal/config"
	"github.com/conneroisu/bbcode/internal/errors"
	"github.com/conneroisu/bbcode/internal/tagconfig"
)

// Files written by Init, relative to the project directory.
const (
	ConfigFileName  = ".bbcode.yml"
	TagsFileName    = "tags.yml"
	DocsDirName     = "docs"
	WelcomeFileName = "welcome.bb"
)

// InitService scaffolds a directory for the bbcode tools.
type InitService struct{}

// NewInitService creates a new initialization service
func NewInitService() *InitService {
	return &InitService{}
}

// InitOptions controls Init.
type InitOptions struct {
	Dir     string
	Force   bool
	Example bool
}

// Init writes a default configuration and, with Example, a tag definition
// file plus a sample document. Existing files are only replaced with Force.
// It returns the paths it wrote.
func (s *InitService) Init(opts InitOptions) ([]string, error) {
	if opts.Dir == "" {
		opts.Dir = "."
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, errors.FileError("write", opts.Dir, err)
	}

	cfg, err := config.LoadFrom(viper.New())
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, errors.ErrCodeInternalError, "default configuration is invalid")
	}
	cfg.Watch.Paths = []string{DocsDirName}
	cfg.Watch.OutputDir = "public"

	var written []string
	write := func(name string, data []byte) error {
		path := filepath.Join(opts.Dir, name)
		if _, err := os.Stat(path); err == nil && !opts.Force {
			return errors.NewValidationError(errors.ErrCodeValidationFailed,
				fmt.Sprintf("%s already exists, use --force to overwrite", path)).WithLocation(path, 0, 0)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return errors.FileError("write", path, err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return errors.FileError("write", path, err)
		}
		written = append(written, path)
		return nil
	}

	if opts.Example {
		cfg.Tags.Files = []string{TagsFileName}
		tags, err := encodeYAML(exampleTags())
		if err != nil {
			return nil, err
		}
		if err := write(TagsFileName, tags); err != nil {
			return written, err
		}
		if err := write(filepath.Join(DocsDirName, WelcomeFileName), []byte(welcomeDocument)); err != nil {
			return written, err
		}
	} else if _, err := os.Stat(filepath.Join(opts.Dir, TagsFileName)); err == nil {
		// Keep loading a tag file from an earlier example init.
		cfg.Tags.Files = []string{TagsFileName}
	}

	data, err := encodeYAML(cfg)
	if err != nil {
		return written, err
	}
	if err := write(ConfigFileName, data); err != nil {
		return written, err
	}
	return written, nil
}

func encodeYAML(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return nil, errors.NewInternalError(errors.ErrCodeInternalError, "cannot encode YAML", err)
	}
	if err := enc.Close(); err != nil {
		return nil, errors.NewInternalError(errors.ErrCodeInternalError, "cannot encode YAML", err)
	}
	return buf.Bytes(), nil
}

func exampleTags() tagconfig.File {
	return tagconfig.File{Tags: []tagconfig.Definition{
		{
			Name:               "quote",
			Description:        `quoted reply, optionally attributed with [quote author="name"]`,
			SuppressLineBreaks: true,
			Template:           `<blockquote>{{with .Attrs.author}}<cite>{{escape .}}</cite>{{end}}{{.Content}}</blockquote>`,
		},
		{
			Name:        "color",
			Description: `colored text, [color="red"]`,
			Template:    `<span style="color:{{attr "color"}}">{{.Content}}</span>`,
		},
		{
			Name:        "s",
			Description: "strike-through",
			Template:    `<s>{{.Content}}</s>`,
		},
	}}
}

const welcomeDocument = `[b]Welcome![/b]

This document is rendered by [i]bbcode[/i]. Try editing it while
[code]bbcode serve[/code] is running.

[quote author="the docs"]Tags come from [url="https://example.com"]tags.yml[/url].[/quote]
[color="green"]Have fun.[/color]
`
