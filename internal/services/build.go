package services

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/conneroisu/bbcode/internal/errors"
	"github.com/conneroisu/bbcode/internal/logging"
	"github.com/conneroisu/bbcode/internal/validation"
	"github.com/conneroisu/bbcode/pkg/bbcode"
)

// OutputExtension replaces the document extension in built files.
const OutputExtension = ".html"

// Discover expands paths into the document files they contain. Files named
// directly are kept whatever their extension; directories are walked for
// files with a watched extension, skipping ignored names.
func (s *RenderService) Discover(paths []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string

	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, errors.FileError("read", root, err)
		}
		if !info.IsDir() {
			if !seen[root] {
				seen[root] = true
				files = append(files, root)
			}
			continue
		}

		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			rel, _ := filepath.Rel(root, path)
			if rel != "." && s.Ignored(rel) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() || !s.Watched(path) || seen[path] {
				return nil
			}
			seen[path] = true
			files = append(files, path)
			return nil
		})
		if err != nil {
			return nil, errors.FileError("read", root, err)
		}
	}

	sort.Strings(files)
	return files, nil
}

// Watched reports whether path has one of the configured document
// extensions.
func (s *RenderService) Watched(path string) bool {
	return validation.ValidateFileExtension(path, s.watch.Extensions) == nil
}

// Ignored reports whether any element of path matches an ignore pattern.
func (s *RenderService) Ignored(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		for _, pattern := range s.watch.Ignore {
			if ok, _ := filepath.Match(pattern, part); ok {
				return true
			}
		}
	}
	return false
}

// OutputPath maps a document found under root to its rendered file under
// outDir, keeping the relative layout.
func OutputPath(root, file, outDir string) string {
	rel := filepath.Base(file)
	if info, err := os.Stat(root); err == nil && info.IsDir() {
		if r, err := filepath.Rel(root, file); err == nil {
			rel = r
		}
	}
	return filepath.Join(outDir, strings.TrimSuffix(rel, filepath.Ext(rel))+OutputExtension)
}

// BuildOptions controls Build.
type BuildOptions struct {
	Inputs    []string
	OutputDir string
	Clean     bool
}

// BuildResult summarizes a Build run.
type BuildResult struct {
	Duration  time.Duration
	Documents int
	Fallbacks int
	Written   []string
}

// Build renders every document under opts.Inputs into opts.OutputDir. A
// document that falls back is still written, as its escaped raw input, so the
// output tree always mirrors the input tree.
func (s *RenderService) Build(ctx context.Context, opts BuildOptions) (*BuildResult, error) {
	op := logging.StartOperation(ctx, s.logger, "build", "output", opts.OutputDir)
	result := &BuildResult{}

	err := s.build(ctx, opts, result)
	result.Duration = op.Finish(ctx, err, "documents", result.Documents, "fallbacks", result.Fallbacks)
	return result, err
}

func (s *RenderService) build(ctx context.Context, opts BuildOptions, result *BuildResult) error {
	if opts.OutputDir == "" {
		return errors.NewValidationError(errors.ErrCodeValidationFailed, "output directory is required")
	}
	if opts.Clean {
		if err := os.RemoveAll(opts.OutputDir); err != nil {
			return errors.FileError("write", opts.OutputDir, err)
		}
	}

	for _, root := range opts.Inputs {
		files, err := s.Discover([]string{root})
		if err != nil {
			return err
		}
		for _, file := range files {
			if err := ctx.Err(); err != nil {
				return err
			}
			out, err := s.WriteDocument(ctx, root, file, opts.OutputDir)
			if err != nil {
				return err
			}
			result.Documents++
			if !out.Valid {
				result.Fallbacks++
			}
			result.Written = append(result.Written, OutputPath(root, file, opts.OutputDir))
		}
	}
	return nil
}

// WriteDocument renders file and writes it under outDir.
func (s *RenderService) WriteDocument(ctx context.Context, root, file, outDir string) (Document, error) {
	doc, err := s.RenderFile(ctx, "build", file)
	if err != nil {
		return doc, err
	}

	body := doc.HTML
	if !doc.Valid {
		body = "<pre>" + bbcode.EscapeHTML(body) + "</pre>\n"
	}

	target := OutputPath(root, file, outDir)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return doc, errors.FileError("write", target, err)
	}
	if err := os.WriteFile(target, []byte(body), 0o644); err != nil {
		return doc, errors.FileError("write", target, err)
	}
	return doc, nil
}
