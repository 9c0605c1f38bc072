package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/voyagen/folio/api"
	"github.com/voyagen/folio/internal/arena"
	"github.com/voyagen/folio/internal/config"
	"github.com/voyagen/folio/internal/fetcher"
	"github.com/voyagen/folio/internal/models"
	"github.com/voyagen/folio/internal/sanity"
	"github.com/voyagen/folio/internal/service"
	"github.com/voyagen/folio/internal/shuffle"
	"github.com/voyagen/folio/internal/store"
)

// CMS is the read side of the content store.
type CMS interface {
	ListMedia(ctx context.Context) ([]models.Media, error)
	GetMedia(ctx context.Context, slug string) (*models.Media, error)
	ListLogs(ctx context.Context) ([]models.Log, error)
	GetLog(ctx context.Context, slug string) (*models.Log, error)
	ImageURLFor(ref string) (string, error)
}

// Deps are the services the API is built on. Store and Syncer are nil
// when no database is configured and Search is nil without an embeddings
// key; their routes then answer 503.
type Deps struct {
	Arena  arena.API
	CMS    CMS
	Seed   *shuffle.Seed
	Store  store.Store
	Syncer *service.Syncer
	Search *service.Searcher
}

// Server holds dependencies for the HTTP API.
type Server struct {
	cfg    *config.Config
	deps   Deps
	logger *slog.Logger
	mux    *http.ServeMux
}

// New creates a Server and registers routes. logger may be nil.
func New(cfg *config.Config, deps Deps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Seed == nil {
		deps.Seed = shuffle.NewSeed()
	}
	srv := &Server{cfg: cfg, deps: deps, logger: logger, mux: http.NewServeMux()}
	srv.routes()
	return srv
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /api/health", s.handleHealth)

	// Are.na
	s.mux.HandleFunc("GET /api/arena/channels/{id}", s.handleGetChannel)
	s.mux.HandleFunc("GET /api/arena/channels/{id}/contents", s.handleGetChannelContents)
	s.mux.HandleFunc("GET /api/arena/channels/{id}/all", s.handleGetAllChannelContents)
	s.mux.HandleFunc("GET /api/arena/blocks/{id}", s.handleGetBlock)
	s.mux.HandleFunc("GET /api/arena/search/channels", s.handleSearchChannels)
	s.mux.HandleFunc("GET /api/arena/users/{slug}", s.handleGetUser)
	s.mux.HandleFunc("GET /api/arena/users/{slug}/channels", s.handleGetUserChannels)

	// CMS
	s.mux.HandleFunc("GET /api/media", s.handleListMedia)
	s.mux.HandleFunc("GET /api/media/{slug}", s.handleGetMedia)
	s.mux.HandleFunc("GET /api/logs", s.handleListLogs)
	s.mux.HandleFunc("GET /api/logs/{slug}", s.handleGetLog)
	s.mux.HandleFunc("POST /api/shuffle", s.handleReshuffle)

	// URL builders
	s.mux.HandleFunc("GET /api/images/srcset", s.handleImageSrcset)
	s.mux.HandleFunc("GET /api/mux/{playbackId}", s.handleMuxURLs)

	// Snapshots
	s.mux.HandleFunc("GET /api/snapshots", s.handleListSnapshots)
	s.mux.HandleFunc("GET /api/snapshots/search", s.handleSearchSnapshots)
	s.mux.HandleFunc("POST /api/snapshots/{slug}", s.handleCreateSnapshot)
	s.mux.HandleFunc("GET /api/snapshots/{slug}", s.handleGetSnapshot)
	s.mux.HandleFunc("DELETE /api/snapshots/{slug}", s.handleDeleteSnapshot)

	// Docs
	s.mux.HandleFunc("GET /api/docs", handleSwaggerUI)
	s.mux.HandleFunc("GET /api/docs/openapi.yaml", handleOpenAPISpec)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Handler returns the server wrapped in its CORS and logging middleware.
func (s *Server) Handler() http.Handler {
	return withCORS(withLogging(s.logger, s))
}

// ListenAndServe starts the HTTP server on the configured port.
// It blocks until the server is shut down or ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := ":" + s.cfg.ServerPort
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 5 * time.Minute, // full drains of large channels
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("server shutdown", "error", err)
		}
	}()

	s.logger.Info("listening", "addr", addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("ListenAndServe: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"snapshots": s.deps.Store != nil,
		"search":    s.deps.Search != nil,
		"cache":     s.cfg.CacheEnabled(),
	})
}

// --- middleware ---

// withCORS adds CORS headers to every response and handles preflight OPTIONS requests.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// withLogging logs each request with method, path, status and duration.
func withLogging(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		level := slog.LevelInfo
		switch {
		case sw.status >= 500:
			level = slog.LevelError
		case sw.status >= 400:
			level = slog.LevelWarn
		}
		attrs := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration", formatDuration(time.Since(start)),
		}
		if r.URL.RawQuery != "" {
			attrs = append(attrs, "query", r.URL.RawQuery)
		}
		logger.Log(r.Context(), level, "request", attrs...)
	})
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return fmt.Sprintf("%dus", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	default:
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
}

// --- helpers ---

// APIError is the standard error envelope for all error responses.
type APIError struct {
	Status int    `json:"status"`
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// parseID extracts a path parameter by name and parses it as int64.
func parseID(r *http.Request, param string) (int64, error) {
	v := r.PathValue(param)
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %s", param, v)
	}
	return id, nil
}

// queryInt parses an optional positive integer query parameter. Absent
// parameters yield 0.
func queryInt(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid %s: %s", name, v)
	}
	return n, nil
}

// queryFloat parses an optional non-negative float query parameter.
func queryFloat(r *http.Request, name string) (float64, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 || math.IsNaN(f) {
		return 0, fmt.Errorf("invalid %s: %s", name, v)
	}
	return f, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("writeJSON", "error", err)
	}
}

func writeNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

func writeErr(w http.ResponseWriter, status int, err error) {
	if status >= 500 {
		slog.Error("request failed", "status", status, "error", err)
	}
	writeJSON(w, status, APIError{
		Status: status,
		Error:  http.StatusText(status),
		Detail: err.Error(),
	})
}

// writeUpstreamErr maps a failure from Are.na, the CMS or the store:
// missing resources are 404, anything else upstream is 502.
func writeUpstreamErr(w http.ResponseWriter, err error, what string) {
	switch {
	case fetcher.IsNotFound(err), errors.Is(err, sanity.ErrNotFound), errors.Is(err, store.ErrNotFound):
		writeErr(w, http.StatusNotFound, fmt.Errorf("%s not found", what))
	default:
		writeErr(w, http.StatusBadGateway, fmt.Errorf("%s: %w", what, err))
	}
}

// --- docs handlers ---

func handleOpenAPISpec(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(api.OpenAPISpec)
}

func handleSwaggerUI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprint(w, swaggerUIHTML)
}

const swaggerUIHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>Folio API Docs</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
  <style>html{box-sizing:border-box;overflow-y:scroll}*,*:before,*:after{box-sizing:inherit}body{margin:0;background:#fafafa}</style>
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    SwaggerUIBundle({
      url: "/api/docs/openapi.yaml",
      dom_id: "#swagger-ui",
      presets: [SwaggerUIBundle.presets.apis, SwaggerUIBundle.SwaggerUIStandalonePreset],
      layout: "BaseLayout",
    });
  </script>
</body>
</html>`
