package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/bbcode/internal/config"
	"github.com/conneroisu/bbcode/internal/logging"
	"github.com/conneroisu/bbcode/internal/monitoring"
	"github.com/conneroisu/bbcode/internal/services"
	"github.com/conneroisu/bbcode/internal/watcher"
	"github.com/conneroisu/bbcode/pkg/bbcode"
)

type testEnv struct {
	dir     string
	server  *PreviewServer
	metrics *monitoring.Metrics
	handler http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dir := t.TempDir()
	writeDoc(t, filepath.Join(dir, "intro.bb"), "[b]hello[/b]")
	writeDoc(t, filepath.Join(dir, "guides", "broken.bb"), "[b]never closed")
	writeDoc(t, filepath.Join(dir, "notes.txt"), "not a document")

	cfg, err := config.LoadFrom(viper.New())
	require.NoError(t, err)
	cfg.Watch.Paths = []string{dir}
	cfg.Server.AllowedOrigins = []string{"http://allowed.example"}

	metrics := monitoring.NewMetrics(prometheus.NewRegistry())
	render, err := services.NewRenderService(cfg, logging.NewNop(), metrics)
	require.NoError(t, err)

	s := New(cfg, render, logging.NewNop(), metrics)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })

	return &testEnv{dir: dir, server: s, metrics: metrics, handler: s.Handler()}
}

func writeDoc(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func (e *testEnv) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func TestAPIRender(t *testing.T) {
	env := newTestEnv(t)

	t.Run("valid", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/render", `{"content":"[b]x[/b]"}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

		var resp RenderResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.Valid)
		assert.Equal(t, "<b>x</b>", resp.HTML)
		assert.Nil(t, resp.Problem)
	})

	t.Run("fallback returns the input", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/render", `{"content":"a\n[b]x[/i]"}`)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp RenderResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.False(t, resp.Valid)
		assert.Equal(t, "a\n[b]x[/i]", resp.HTML)
		require.NotNil(t, resp.Problem)
		assert.Equal(t, 2, resp.Problem.Line)
		assert.Equal(t, bbcode.ProblemMismatchedEndTag.String(), resp.Problem.Kind)
	})

	t.Run("options override defaults", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/render", `{"content":"[b]x[/b]","strip_tags":true}`)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp RenderResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "x", resp.HTML)
	})

	t.Run("unknown field", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/render", `{"content":"x","bogus":1}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("too large", func(t *testing.T) {
		body := `{"content":"` + strings.Repeat("a", MaxRequestBytes) + `"}`
		rec := env.do(t, http.MethodPost, "/api/render", body)
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})

	t.Run("wrong method", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/render", "")
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})

	t.Run("api renders leave diagnostics alone", func(t *testing.T) {
		assert.Zero(t, env.server.render.Diagnostics().Len())
	})
}

func TestRenderPath(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/render/[i]hi[/i]", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "<i>hi</i>", rec.Body.String())
	assert.Equal(t, "true", rec.Header().Get("X-BBCode-Valid"))

	rec = env.do(t, http.MethodGet, "/render/%3Cx%3E[b]", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "false", rec.Header().Get("X-BBCode-Valid"))
	assert.Equal(t, "&lt;x&gt;[b]", rec.Body.String())
}

func TestIndexPage(t *testing.T) {
	env := newTestEnv(t)
	// Rendering the broken document records its diagnostic.
	env.do(t, http.MethodGet, "/doc/guides/broken.bb", "")

	rec := env.do(t, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `<a href="/doc/intro.bb">intro.bb</a>`)
	assert.Contains(t, body, `<li class="fallback"><a href="/doc/guides/broken.bb">`)
	assert.NotContains(t, body, "notes.txt")
	assert.Contains(t, body, "<code>[url]</code>")

	rec = env.do(t, http.MethodGet, "/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDocumentPage(t *testing.T) {
	env := newTestEnv(t)

	t.Run("valid", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/doc/intro.bb", "")
		require.Equal(t, http.StatusOK, rec.Code)
		body := rec.Body.String()
		assert.Contains(t, body, "<b>hello</b>")
		assert.Contains(t, body, `data-target="intro.bb"`)
	})

	t.Run("fallback is escaped", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/doc/guides/broken.bb", "")
		require.Equal(t, http.StatusOK, rec.Code)
		body := rec.Body.String()
		assert.Contains(t, body, "[b]never closed")
		assert.NotContains(t, body, "<b>never")
	})

	tests := []struct {
		name string
		path string
	}{
		{name: "missing", path: "/doc/nope.bb"},
		{name: "unwatched extension", path: "/doc/notes.txt"},
		{name: "traversal", path: "/doc/../../etc/passwd.bb"},
		{name: "encoded traversal", path: "/doc/%2e%2e/secret.bb"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, tt.path, "")
			assert.NotEqual(t, http.StatusOK, rec.Code)
		})
	}

	t.Run("not found suggests close names", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/doc/intr.bb", "")
		require.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Body.String(), `<a href="/doc/intro.bb">intro.bb</a>`)
	})
}

func TestSuggest(t *testing.T) {
	docs := []DocumentRef{{Name: "intro.bb"}, {Name: "guides/setup.bb"}, {Name: "guides/install.bb"}}

	assert.Equal(t, []string{"intro.bb"}, suggest("intr", docs))
	assert.Empty(t, suggest("zzz", docs))
	assert.Empty(t, suggest("x", nil))
}

func TestDiagnosticsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	broken := filepath.Join(env.dir, "guides", "broken.bb")
	_, err := env.server.render.RenderFile(context.Background(), "test", broken)
	require.NoError(t, err)

	rec := env.do(t, http.MethodGet, "/api/diagnostics", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp diagnosticsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
	assert.True(t, resp.HasErrors)
	require.Len(t, resp.Diagnostics, 1)
	assert.Equal(t, broken, resp.Diagnostics[0].File)

	rec = env.do(t, http.MethodGet, "/api/diagnostics?file=elsewhere.bb", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Zero(t, resp.Count)
}

func TestTagsEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/tags", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var tags []tagResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tags))
	names := make([]string, 0, len(tags))
	for _, tag := range tags {
		names = append(names, tag.Name)
		if tag.Name == "code" {
			assert.True(t, tag.NoNesting)
		}
	}
	assert.Equal(t, env.server.render.Parser().Registry().Names(), names)
}

func TestDocumentsEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/documents", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var docs []DocumentRef
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &docs))
	assert.Equal(t, []DocumentRef{
		{Name: "guides/broken.bb", Path: filepath.Join(env.dir, "guides", "broken.bb")},
		{Name: "intro.bb", Path: filepath.Join(env.dir, "intro.bb")},
	}, docs)
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var health monitoring.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, monitoring.HealthStatusHealthy, health.Status)

	env.do(t, http.MethodPost, "/api/render", `{"content":"[b]x[/b]"}`)

	rec = env.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "bbcode_documents_rendered_total")
	assert.Contains(t, rec.Body.String(), `route="POST /api/render"`)
}

func TestDocumentName(t *testing.T) {
	env := newTestEnv(t)

	assert.Equal(t, "guides/broken.bb", env.server.documentName(filepath.Join(env.dir, "guides", "broken.bb")))
	assert.Equal(t, "/elsewhere/x.bb", env.server.documentName("/elsewhere/x.bb"))
}

func TestHandleChanges(t *testing.T) {
	env := newTestEnv(t)
	broken := filepath.Join(env.dir, "guides", "broken.bb")
	ctx := context.Background()

	err := env.server.handleChanges(ctx, []watcher.ChangeEvent{{Type: watcher.EventTypeModified, Path: broken}})
	require.NoError(t, err)
	assert.Len(t, env.server.render.Diagnostics().ByFile(broken), 1)
	expected := `
# HELP bbcode_watch_events_total File change batches handled by the watcher, by operation.
# TYPE bbcode_watch_events_total counter
bbcode_watch_events_total{op="modified"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(env.metrics.Registry(), strings.NewReader(expected), "bbcode_watch_events_total"))

	err = env.server.handleChanges(ctx, []watcher.ChangeEvent{{Type: watcher.EventTypeDeleted, Path: broken}})
	require.NoError(t, err)
	assert.Empty(t, env.server.render.Diagnostics().ByFile(broken))
}

func TestServeAndShutdown(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())

	srv := httptest.NewUnstartedServer(nil)
	ln := srv.Listener
	errc := make(chan error, 1)
	go func() { errc <- env.server.Serve(ctx, ln) }()

	url := "http://" + ln.Addr().String() + "/health"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestWebsocketOrigin(t *testing.T) {
	env := newTestEnv(t)
	ts := httptest.NewServer(env.handler)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, resp, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: http.Header{"Origin": []string{"http://evil.example"}},
	})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: http.Header{"Origin": []string{"http://allowed.example"}},
	})
	require.NoError(t, err)
	conn.Close(websocket.StatusNormalClosure, "")
}

func TestFragment(t *testing.T) {
	env := newTestEnv(t)

	var sb strings.Builder
	require.NoError(t, env.server.Fragment("[u]x[/u]").Render(context.Background(), &sb))
	assert.Equal(t, "<u>x</u>", sb.String())

	sb.Reset()
	require.NoError(t, env.server.Fragment("<[u]").Render(context.Background(), &sb))
	assert.Equal(t, "&lt;[u]", sb.String())
}

func TestSecurityHeaders(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)

	csp := rec.Header().Get("Content-Security-Policy")
	require.NotEmpty(t, csp)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	// The reload script carries the nonce the policy allows.
	start := strings.Index(csp, "'nonce-") + len("'nonce-")
	nonce := csp[start : start+strings.Index(csp[start:], "'")]
	assert.Contains(t, rec.Body.String(), `<script nonce="`+nonce+`">`)
}
