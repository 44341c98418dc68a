// Package services holds the operations shared by the command line, the
// watcher and the preview server: rendering documents, discovering them on
// disk and writing rendered output.
package services

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/conneroisu/bbcode/internal/config"
	"github.com/conneroisu/bbcode/internal/errors"
	"github.com/conneroisu/bbcode/internal/logging"
	"github.com/conneroisu/bbcode/internal/monitoring"
	"github.com/conneroisu/bbcode/internal/sanitize"
	"github.com/conneroisu/bbcode/internal/tagconfig"
	"github.com/conneroisu/bbcode/internal/validation"
	"github.com/conneroisu/bbcode/pkg/bbcode"
	"github.com/conneroisu/bbcode/pkg/tagset"
)

// NewRegistry builds the tag registry described by cfg: the default tags,
// unless disabled, extended by every configured tag file.
func NewRegistry(cfg config.TagsConfig) (*bbcode.Registry, error) {
	base := tagset.Default()
	if cfg.DisableDefaults {
		base = bbcode.MustRegistry()
	}
	if len(cfg.Files) == 0 {
		return base, nil
	}
	return tagconfig.Load(base, cfg.Files...)
}

// Document is one rendered document.
type Document struct {
	Name     string          `json:"name"`
	HTML     string          `json:"html"`
	Valid    bool            `json:"valid"`
	Problem  *bbcode.Problem `json:"problem,omitempty"`
	Duration time.Duration   `json:"duration"`
}

// RenderService renders documents with one parser and one set of default
// render options. It is safe for concurrent use.
type RenderService struct {
	parser      *bbcode.Parser
	options     []bbcode.RenderOption
	sanitize    bool
	watch       config.WatchConfig
	logger      logging.Logger
	metrics     *monitoring.Metrics
	diagnostics *errors.Collector
}

// NewRenderService builds the registry and parser described by cfg. metrics
// may be nil.
func NewRenderService(cfg *config.Config, logger logging.Logger, metrics *monitoring.Metrics) (*RenderService, error) {
	registry, err := NewRegistry(cfg.Tags)
	if err != nil {
		return nil, err
	}
	return &RenderService{
		parser:      bbcode.New(registry, cfg.Parser.ParserOptions()...),
		options:     cfg.Parser.RenderOptions(),
		sanitize:    cfg.Parser.Sanitize,
		watch:       cfg.Watch,
		logger:      logger.WithComponent("render"),
		metrics:     metrics,
		diagnostics: errors.NewCollector(),
	}, nil
}

// Parser returns the underlying parser.
func (s *RenderService) Parser() *bbcode.Parser {
	return s.parser
}

// Diagnostics returns the problems found by the most recent render of each
// document.
func (s *RenderService) Diagnostics() *errors.Collector {
	return s.diagnostics
}

// Render renders content under name. opts are applied after the configured
// render options, so they win. source labels the caller in metrics. An empty
// name renders without recording diagnostics.
func (s *RenderService) Render(ctx context.Context, source, name, content string, opts ...bbcode.RenderOption) Document {
	start := time.Now()

	all := make([]bbcode.RenderOption, 0, len(s.options)+len(opts))
	all = append(all, s.options...)
	all = append(all, opts...)
	result := s.parser.Parse(content, all...)

	// A fallback is the caller's own input and is never rewritten.
	out := result.Output
	if s.sanitize && result.Valid {
		out = sanitize.HTML(out)
	}

	doc := Document{
		Name:     name,
		HTML:     out,
		Valid:    result.Valid,
		Problem:  result.Problem,
		Duration: time.Since(start),
	}

	if name != "" {
		s.diagnostics.Reset(name)
	}
	kind := ""
	if result.Problem != nil {
		kind = result.Problem.Kind.String()
		d := errors.FromProblem(name, content, result.Problem)
		if name != "" {
			s.diagnostics.Add(d)
		}
		s.logger.Warn(ctx, errors.NewMarkupError(d.Message).WithLocation(name, d.Line, d.Column),
			"Document rendered as plain input",
			"document", name,
			"kind", kind)
	} else {
		s.logger.Debug(ctx, "Document rendered", "document", name, "duration", doc.Duration)
		if name != "" {
			s.checkMarkup(name, out)
		}
	}
	s.metrics.RecordRender(source, len(content), result.Valid, kind, doc.Duration)

	return doc
}

// checkMarkup records a warning for every element a tag generator left
// unbalanced. The document itself parsed fine, so there is no position to
// report beyond the start of the file.
func (s *RenderService) checkMarkup(name, out string) {
	for _, issue := range validation.CheckMarkup(out) {
		s.diagnostics.Add(errors.Diagnostic{
			File:     name,
			Line:     1,
			Column:   1,
			Severity: errors.SeverityWarning,
			Kind:     "markup",
			Message:  "rendered output is not well formed: " + issue.String(),
		})
	}
}

// RenderFile reads and renders the file at path.
func (s *RenderService) RenderFile(ctx context.Context, source, path string, opts ...bbcode.RenderOption) (Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Document{}, errors.FileError("read", path, err)
	}
	return s.Render(ctx, source, path, string(content), opts...), nil
}

// Check renders every file and records its diagnostics, returning the number
// of documents that fell back to their raw input.
func (s *RenderService) Check(ctx context.Context, paths []string) (int, error) {
	fallbacks := 0
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return fallbacks, err
		}
		doc, err := s.RenderFile(ctx, "check", path)
		if err != nil {
			return fallbacks, err
		}
		if !doc.Valid {
			fallbacks++
		}
	}
	return fallbacks, nil
}

// Summary is a one-line description of a render, used in log output.
func (d Document) Summary() string {
	if d.Valid {
		return fmt.Sprintf("%s: rendered in %s", d.Name, d.Duration.Round(time.Microsecond))
	}
	return fmt.Sprintf("%s: kept as plain input (%s)", d.Name, d.Problem)
}
