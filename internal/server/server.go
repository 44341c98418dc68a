// Package server implements the live preview server: a JSON render API,
// HTML pages for the watched documents and a websocket that tells open
// pages to reload when a document changes.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	securejoin "github.com/cyphar/filepath-securejoin"

	"github.com/conneroisu/bbcode/internal/config"
	bberrors "github.com/conneroisu/bbcode/internal/errors"
	"github.com/conneroisu/bbcode/internal/logging"
	"github.com/conneroisu/bbcode/internal/monitoring"
	"github.com/conneroisu/bbcode/internal/server/middleware"
	"github.com/conneroisu/bbcode/internal/services"
	"github.com/conneroisu/bbcode/internal/validation"
	"github.com/conneroisu/bbcode/internal/watcher"
)

// MaxRequestBytes bounds the body of a render request.
const MaxRequestBytes = 1 << 20

// PreviewServer serves rendered documents with live reload.
type PreviewServer struct {
	config  *config.Config
	render  *services.RenderService
	logger  logging.Logger
	metrics *monitoring.Metrics
	health  *monitoring.HealthMonitor
	hub     *Hub
	limiter *middleware.RateLimiter

	serverMu   sync.Mutex
	httpServer *http.Server
	watcher    *watcher.FileWatcher

	shutdownOnce sync.Once
}

// New creates a preview server. metrics may be nil, in which case /metrics
// is not served.
func New(cfg *config.Config, render *services.RenderService, logger logging.Logger, metrics *monitoring.Metrics) *PreviewServer {
	logger = logger.WithComponent("server")

	health := monitoring.NewHealthMonitor(logger)
	health.RegisterCheck(monitoring.PathsHealthChecker(cfg.Watch.Paths))
	health.RegisterCheck(monitoring.TagSetHealthChecker(render.Parser().Registry()))
	health.RegisterCheck(monitoring.GoroutineHealthChecker(10000))

	return &PreviewServer{
		config:  cfg,
		render:  render,
		logger:  logger,
		metrics: metrics,
		health:  health,
		hub:     NewHub(logger, metrics),
		limiter: middleware.NewRateLimiter(middleware.RateLimit{RequestsPerMinute: 600, BurstLimit: 60}),
	}
}

// Handler returns the complete HTTP handler, middleware included.
func (s *PreviewServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("POST /api/render", s.limiter.Handler(http.HandlerFunc(s.handleAPIRender)))
	mux.HandleFunc("GET /api/diagnostics", s.handleDiagnostics)
	mux.HandleFunc("GET /api/tags", s.handleTags)
	mux.HandleFunc("GET /api/documents", s.handleDocuments)
	mux.HandleFunc("GET /render/{text...}", s.handleRenderPath)
	mux.HandleFunc("GET /doc/{name...}", s.handleDocument)
	mux.HandleFunc("GET /ws", s.hub.Handler(s.checkOrigin))
	mux.HandleFunc("GET /health", s.health.HTTPHandler())
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}
	mux.HandleFunc("GET /{$}", s.handleIndex)

	return middleware.Chain(mux,
		middleware.RequestID,
		middleware.Security(middleware.DefaultSecurityPolicy(s.logger)),
		middleware.Observe(s.logger, s.metrics),
	)
}

// Start watches the configured document paths and serves until ctx is done
// or the listener fails.
func (s *PreviewServer) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Server.Address())
	if err != nil {
		return bberrors.NewIOError(bberrors.ErrCodeInternalError, "cannot listen on "+s.config.Server.Address(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *PreviewServer) Serve(ctx context.Context, ln net.Listener) error {
	if err := s.startWatcher(ctx); err != nil {
		s.logger.Warn(ctx, err, "Live reload disabled")
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	s.serverMu.Lock()
	s.httpServer = srv
	s.serverMu.Unlock()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(shutdownCtx, err, "Shutdown failed")
		}
	}()

	s.logger.Info(ctx, "Preview server listening", "address", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return bberrors.NewIOError(bberrors.ErrCodeInternalError, "server stopped", err)
	}
	return nil
}

func (s *PreviewServer) startWatcher(ctx context.Context) error {
	fw, err := watcher.NewFileWatcher(s.config.Watch.Debounce, s.logger)
	if err != nil {
		return err
	}
	fw.AddFilter(watcher.ExtensionFilter(s.config.Watch.Extensions))
	fw.AddFilter(watcher.NoEditorFilter)
	fw.SetIgnore(s.config.Watch.Ignore)
	fw.AddHandler(s.handleChanges)

	for _, path := range s.config.Watch.Paths {
		if err := fw.AddRecursive(path); err != nil {
			s.logger.Warn(ctx, err, "Cannot watch path", "path", path)
		}
	}
	fw.Start(ctx)

	s.serverMu.Lock()
	s.watcher = fw
	s.serverMu.Unlock()
	return nil
}

// handleChanges re-renders changed documents, refreshing their diagnostics,
// and tells the browsers showing them to reload.
func (s *PreviewServer) handleChanges(ctx context.Context, events []watcher.ChangeEvent) error {
	for _, event := range events {
		s.metrics.RecordWatchEvent(event.Type.String())

		if event.Type == watcher.EventTypeDeleted || event.Type == watcher.EventTypeRenamed {
			s.render.Diagnostics().Reset(event.Path)
		} else if _, err := s.render.RenderFile(ctx, "watch", event.Path); err != nil {
			s.logger.Warn(ctx, err, "Cannot render changed document", "path", event.Path)
		}

		s.hub.Broadcast(UpdateMessage{
			Type:   "reload",
			Target: s.documentName(event.Path),
		})
	}
	return nil
}

// Shutdown stops the watcher, disconnects websocket clients and drains the
// HTTP server. It is safe to call more than once.
func (s *PreviewServer) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.logger.Info(ctx, "Shutting down preview server")

		s.serverMu.Lock()
		fw, srv := s.watcher, s.httpServer
		s.serverMu.Unlock()

		if fw != nil {
			if werr := fw.Stop(); werr != nil {
				s.logger.Warn(ctx, werr, "Cannot stop watcher")
			}
		}
		s.limiter.Stop()
		s.hub.Close()
		if srv != nil {
			err = srv.Shutdown(ctx)
		}
	})
	return err
}

// DocumentRef names a document served under /doc/.
type DocumentRef struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// Documents lists the watched documents by their served names.
func (s *PreviewServer) Documents() ([]DocumentRef, error) {
	var refs []DocumentRef
	for _, root := range s.config.Watch.Paths {
		files, err := s.render.Discover([]string{root})
		if err != nil {
			return nil, err
		}
		for _, file := range files {
			refs = append(refs, DocumentRef{Name: relativeName(root, file), Path: file})
		}
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Name < refs[j].Name })
	return refs, nil
}

// resolveDocument maps a served name back to a file under one of the
// watched roots.
func (s *PreviewServer) resolveDocument(name string) (string, bool) {
	if validation.ValidateDocumentName(name) != nil || !s.render.Watched(name) || s.render.Ignored(name) {
		return "", false
	}
	for _, root := range s.config.Watch.Paths {
		info, err := os.Stat(root)
		if err != nil {
			continue
		}
		candidate := root
		if info.IsDir() {
			// Symlinks below root are resolved without leaving it.
			candidate, err = securejoin.SecureJoin(root, filepath.FromSlash(name))
			if err != nil {
				continue
			}
		} else if filepath.Base(root) != name {
			continue
		}
		if fi, err := os.Stat(candidate); err == nil && fi.Mode().IsRegular() {
			return candidate, true
		}
	}
	return "", false
}

func (s *PreviewServer) documentName(path string) string {
	for _, root := range s.config.Watch.Paths {
		if name := relativeName(root, path); name != ".." && !strings.HasPrefix(name, "../") && !filepath.IsAbs(name) {
			return name
		}
	}
	return filepath.ToSlash(path)
}

func relativeName(root, file string) string {
	if info, err := os.Stat(root); err == nil && !info.IsDir() {
		return filepath.Base(file)
	}
	rel, err := filepath.Rel(root, file)
	if err != nil {
		return filepath.ToSlash(file)
	}
	return filepath.ToSlash(rel)
}
