// Package dashboard serves the chat server statistics page and its JSON API.
package dashboard

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"io/fs"
	"net"
	"net/http"
	"strings"
	"time"

	"ChatDash/pkg/logger"
	"ChatDash/pkg/ratelimit"
	"ChatDash/pkg/stats"
)

//go:embed web
var webFS embed.FS

// SnapshotSource supplies the snapshot served by /api/stats.
// Both *stats.Sampler and *store.RedisStore satisfy it.
type SnapshotSource interface {
	Latest(ctx context.Context) (stats.Snapshot, error)
}

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type pageData struct {
	RefreshMs int64
	Snapshot  stats.Snapshot
}

// Option configures a Server.
type Option func(*Server)

// WithLimiter rate-limits the /api routes.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(s *Server) { s.limiter = l }
}

// WithMetricsHandler mounts h on /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithRefresh sets how often the page polls /api/stats.
func WithRefresh(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.refresh = d
		}
	}
}

// WithClock overrides time.Now for the health payload.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// Server is the dashboard HTTP server.
type Server struct {
	addr    string
	source  SnapshotSource
	limiter *ratelimit.Limiter
	metrics http.Handler
	log     logger.Logger
	refresh time.Duration
	now     func() time.Time
	page    *template.Template
	static  fs.FS
}

// NewServer creates a dashboard server reading snapshots from source.
func NewServer(addr string, source SnapshotSource, opts ...Option) (*Server, error) {
	page, err := template.ParseFS(webFS, "web/index.html")
	if err != nil {
		return nil, err
	}
	static, err := fs.Sub(webFS, "web/static")
	if err != nil {
		return nil, err
	}
	s := &Server{
		addr:    addr,
		source:  source,
		log:     logger.Noop(),
		refresh: stats.DefaultInterval,
		now:     time.Now,
		page:    page,
		static:  static,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("GET /api/stats", s.statsHandler)
	api.HandleFunc("GET /api/health", s.healthHandler)

	var apiHandler http.Handler = api
	if s.limiter != nil {
		apiHandler = s.limiter.Middleware(api)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.indexHandler)
	mux.Handle("GET /static/", http.StripPrefix("/static/", filesOnly(http.FileServer(http.FS(s.static)))))
	mux.Handle("/api/", apiHandler)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}
	return mux
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("dashboard listening on %s", ln.Addr())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) indexHandler(w http.ResponseWriter, r *http.Request) {
	snap, err := s.source.Latest(r.Context())
	if err != nil {
		snap = stats.InitialSnapshot()
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	data := pageData{RefreshMs: s.refresh.Milliseconds(), Snapshot: snap}
	if err := s.page.Execute(w, data); err != nil {
		s.log.Error("render page: %v", err)
	}
}

func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	snap, err := s.source.Latest(r.Context())
	if err != nil {
		s.log.Warn("snapshot unavailable: %v", err)
		writeJSON(w, s.log, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, s.log, http.StatusOK, snap)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.log, http.StatusOK, healthResponse{
		Status:    "healthy",
		Timestamp: s.now().Format(time.RFC3339),
	})
}

func writeJSON(w http.ResponseWriter, log logger.Logger, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error("failed to write response: %v", err)
	}
}

// filesOnly answers 404 for directory paths so the asset tree is never listed.
func filesOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
