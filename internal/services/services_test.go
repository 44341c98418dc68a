package services

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/bbcode/internal/config"
	"github.com/conneroisu/bbcode/internal/errors"
	"github.com/conneroisu/bbcode/internal/logging"
	"github.com/conneroisu/bbcode/internal/monitoring"
	"github.com/conneroisu/bbcode/pkg/bbcode"
)

func createTestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.LoadFrom(viper.New())
	require.NoError(t, err)
	return cfg
}

func newTestService(t *testing.T, cfg *config.Config) *RenderService {
	t.Helper()
	svc, err := NewRenderService(cfg, logging.NewNop(), nil)
	require.NoError(t, err)
	return svc
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestNewRegistry(t *testing.T) {
	dir := t.TempDir()
	tags := filepath.Join(dir, "tags.yml")
	writeFile(t, tags, "tags:\n  - name: quote\n    template: '<blockquote>{{.Content}}</blockquote>'\n")

	t.Run("defaults", func(t *testing.T) {
		reg, err := NewRegistry(config.TagsConfig{})
		require.NoError(t, err)
		assert.True(t, reg.Has("b"))
		assert.False(t, reg.Has("quote"))
	})

	t.Run("defaults extended by files", func(t *testing.T) {
		reg, err := NewRegistry(config.TagsConfig{Files: []string{tags}})
		require.NoError(t, err)
		assert.True(t, reg.Has("b"))
		assert.True(t, reg.Has("quote"))
	})

	t.Run("defaults disabled", func(t *testing.T) {
		reg, err := NewRegistry(config.TagsConfig{Files: []string{tags}, DisableDefaults: true})
		require.NoError(t, err)
		assert.Equal(t, []string{"quote"}, reg.Names())
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := NewRegistry(config.TagsConfig{Files: []string{filepath.Join(dir, "nope.yml")}})
		assert.Error(t, err)
	})
}

func TestRenderService_Render(t *testing.T) {
	metrics := monitoring.NewMetrics(prometheus.NewRegistry())
	svc, err := NewRenderService(createTestConfig(t), logging.NewNop(), metrics)
	require.NoError(t, err)
	ctx := context.Background()

	doc := svc.Render(ctx, "test", "a.bb", "[b]x[/b]")
	assert.True(t, doc.Valid)
	assert.Equal(t, "<b>x</b>", doc.HTML)
	assert.Nil(t, doc.Problem)
	assert.Empty(t, svc.Diagnostics().ByFile("a.bb"))

	doc = svc.Render(ctx, "test", "a.bb", "line\n[b]x")
	assert.False(t, doc.Valid)
	assert.Equal(t, "line\n[b]x", doc.HTML)
	require.NotNil(t, doc.Problem)
	assert.Equal(t, bbcode.ProblemUnclosedTag, doc.Problem.Kind)

	diags := svc.Diagnostics().ByFile("a.bb")
	require.Len(t, diags, 1)
	assert.Equal(t, 2, diags[0].Line)
	assert.Equal(t, 1, diags[0].Column)
	assert.Equal(t, errors.SeverityError, diags[0].Severity)

	// A clean re-render clears the document's diagnostics.
	svc.Render(ctx, "test", "a.bb", "fixed")
	assert.Empty(t, svc.Diagnostics().ByFile("a.bb"))

	n, err := testutil.GatherAndCount(metrics.Registry(), "bbcode_documents_rendered_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n, "valid and fallback series")
}

func TestRenderService_RenderOverrides(t *testing.T) {
	svc := newTestService(t, createTestConfig(t))
	ctx := context.Background()

	doc := svc.Render(ctx, "test", "a", "[b]x[/b]\n<y>", bbcode.WithStripTags(true), bbcode.WithInsertLineBreak(false))
	assert.Equal(t, "x\n&lt;y&gt;", doc.HTML)
}

func TestRenderService_ConfiguredOptions(t *testing.T) {
	cfg := createTestConfig(t)
	cfg.Parser.EscapeOutput = false
	cfg.Parser.LineBreak = "<br />"
	svc := newTestService(t, cfg)

	doc := svc.Render(context.Background(), "test", "a", "<i>\n[b]x[/b]")
	assert.Equal(t, "<i><br /><b>x</b>", doc.HTML)
}

func TestRenderService_Sanitize(t *testing.T) {
	cfg := createTestConfig(t)
	cfg.Parser.EscapeOutput = false
	cfg.Parser.Sanitize = true
	svc := newTestService(t, cfg)
	ctx := context.Background()

	doc := svc.Render(ctx, "test", "a", "[b]x<script>alert(1)</script>[/b]")
	assert.True(t, doc.Valid)
	assert.Equal(t, "<b>x</b>", doc.HTML)

	// Fallbacks are returned untouched.
	doc = svc.Render(ctx, "test", "a", "[b]<script>")
	assert.False(t, doc.Valid)
	assert.Equal(t, "[b]<script>", doc.HTML)
}

func TestRenderService_MarkupWarnings(t *testing.T) {
	cfg := createTestConfig(t)
	cfg.Parser.EscapeOutput = false
	svc := newTestService(t, cfg)

	doc := svc.Render(context.Background(), "test", "a.bb", "<div>[b]x[/b]")
	require.True(t, doc.Valid)

	diags := svc.Diagnostics().ByFile("a.bb")
	require.Len(t, diags, 1)
	assert.Equal(t, errors.SeverityWarning, diags[0].Severity)
	assert.Equal(t, "markup", diags[0].Kind)
	assert.Contains(t, diags[0].Message, "<div>: never closed")
	assert.False(t, svc.Diagnostics().HasErrors())
}

func TestRenderService_RenderFile(t *testing.T) {
	svc := newTestService(t, createTestConfig(t))
	dir := t.TempDir()
	path := filepath.Join(dir, "a.bb")
	writeFile(t, path, "[i]hi[/i]")

	doc, err := svc.RenderFile(context.Background(), "test", path)
	require.NoError(t, err)
	assert.Equal(t, "<i>hi</i>", doc.HTML)
	assert.Equal(t, path, doc.Name)

	_, err = svc.RenderFile(context.Background(), "test", filepath.Join(dir, "missing.bb"))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeFileNotFound))
}

func TestRenderService_Check(t *testing.T) {
	svc := newTestService(t, createTestConfig(t))
	dir := t.TempDir()
	good := filepath.Join(dir, "good.bb")
	bad := filepath.Join(dir, "bad.bb")
	writeFile(t, good, "[b]ok[/b]")
	writeFile(t, bad, "[b]oops[/i]")

	fallbacks, err := svc.Check(context.Background(), []string{good, bad})
	require.NoError(t, err)
	assert.Equal(t, 1, fallbacks)
	assert.True(t, svc.Diagnostics().HasErrors())
	require.Len(t, svc.Diagnostics().All(), 1)
	assert.Equal(t, bad, svc.Diagnostics().All()[0].File)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = svc.Check(ctx, []string{good})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRenderService_Discover(t *testing.T) {
	svc := newTestService(t, createTestConfig(t))
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.bb"), "")
	writeFile(t, filepath.Join(dir, "sub", "b.BBCODE"), "")
	writeFile(t, filepath.Join(dir, "sub", "c.txt"), "")
	writeFile(t, filepath.Join(dir, "node_modules", "d.bb"), "")
	writeFile(t, filepath.Join(dir, ".git", "e.bb"), "")
	explicit := filepath.Join(dir, "notes.txt")
	writeFile(t, explicit, "")

	files, err := svc.Discover([]string{dir, explicit})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.bb"),
		explicit,
		filepath.Join(dir, "sub", "b.BBCODE"),
	}, files)

	_, err = svc.Discover([]string{filepath.Join(dir, "missing")})
	assert.Error(t, err)
}

func TestOutputPath(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "docs"), 0o755))

	assert.Equal(t,
		filepath.Join("out", "guide", "intro.html"),
		OutputPath(filepath.Join(dir, "docs"), filepath.Join(dir, "docs", "guide", "intro.bb"), "out"))
	assert.Equal(t,
		filepath.Join("out", "single.html"),
		OutputPath(filepath.Join(dir, "single.bb"), filepath.Join(dir, "single.bb"), "out"))
}

func TestRenderService_Build(t *testing.T) {
	svc := newTestService(t, createTestConfig(t))
	dir := t.TempDir()
	docs := filepath.Join(dir, "docs")
	out := filepath.Join(dir, "public")
	writeFile(t, filepath.Join(docs, "a.bb"), "[b]a[/b]")
	writeFile(t, filepath.Join(docs, "nested", "b.bb"), "[b]<b>")
	writeFile(t, filepath.Join(out, "stale.html"), "old")

	result, err := svc.Build(context.Background(), BuildOptions{Inputs: []string{docs}, OutputDir: out, Clean: true})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Documents)
	assert.Equal(t, 1, result.Fallbacks)
	assert.Len(t, result.Written, 2)

	a, err := os.ReadFile(filepath.Join(out, "a.html"))
	require.NoError(t, err)
	assert.Equal(t, "<b>a</b>", string(a))

	b, err := os.ReadFile(filepath.Join(out, "nested", "b.html"))
	require.NoError(t, err)
	assert.Equal(t, "<pre>[b]&lt;b&gt;</pre>\n", string(b))

	assert.NoFileExists(t, filepath.Join(out, "stale.html"))

	_, err = svc.Build(context.Background(), BuildOptions{Inputs: []string{docs}})
	assert.Error(t, err)
}

func TestDocument_Summary(t *testing.T) {
	svc := newTestService(t, createTestConfig(t))
	doc := svc.Render(context.Background(), "test", "a.bb", "[b]")
	assert.Contains(t, doc.Summary(), "a.bb: kept as plain input")
	assert.Contains(t, doc.Summary(), "[b]")
}

func TestRenderService_LogsFallbacks(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(&logging.Config{Level: logging.LevelDebug, Format: "json", Output: &buf})
	svc, err := NewRenderService(createTestConfig(t), logger, nil)
	require.NoError(t, err)

	svc.Render(context.Background(), "test", "doc.bb", "[i]x")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "doc.bb", entry["document"])
	assert.Equal(t, "render", entry["component"])
}
