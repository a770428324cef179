// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crossweb Contributors

// Package webview is a browser stand-in for the native webview control. It
// serves the web directory, relays wire frames over a websocket and
// evaluates host scripts in every connected page.
package webview

import (
	"context"
	_ "embed"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"slices"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/crossweb-dev/crossweb/internal/ipc"
	cwerr "github.com/crossweb-dev/crossweb/pkg/errors"
	"github.com/crossweb-dev/crossweb/pkg/health"
)

// Well-known paths.
const (
	PathShim   = "/__crossweb/shim.js"
	PathSocket = "/__crossweb/ws"
	PathStatus = "/__crossweb/status"
)

// EventConnected is notified to plugins when a page connects.
const EventConnected = "webview.connected"

//go:embed shim.js
var shimJS string

// Config holds dev server configuration.
type Config struct {
	ListenAddr   string
	WebDir       string
	CORSOrigins  []string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Name         string
	Version      string
	// Gatherer backs /metrics; nil uses the default registry.
	Gatherer prometheus.Gatherer
}

// Status is the body of the status endpoint.
type Status struct {
	Name        string `json:"name" doc:"Application name"`
	Version     string `json:"version,omitempty" doc:"Application version"`
	Clients     int    `json:"clients" doc:"Connected pages"`
	QueueLen    int    `json:"queue_len" doc:"Frames waiting for the host loop"`
	QueueCap    int    `json:"queue_cap" doc:"IPC queue capacity"`
	Generation  uint64 `json:"generation" doc:"Bound module generation"`
	ReloadState string `json:"reload_state,omitempty" doc:"Reload manager state"`
	LastError   string `json:"last_error,omitempty" doc:"Most recent reload error"`

	Reload *health.Metrics `json:"reload,omitempty" doc:"Reload outcome history"`
}

// Server is the dev webview. It implements ipc.Webview.
type Server struct {
	router   chi.Router
	api      huma.API
	cfg      Config
	bridge   *ipc.Bridge
	hub      *hub
	upgrader websocket.Upgrader
	logger   *slog.Logger

	onConnect func(clients int)
	status    func(*Status)
}

var _ ipc.Webview = (*Server)(nil)

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithConnectHook runs after a page connects and received the bridge.
func WithConnectHook(fn func(clients int)) Option {
	return func(s *Server) { s.onConnect = fn }
}

// WithStatus lets the caller fill in runtime fields of the status body.
func WithStatus(fn func(*Status)) Option {
	return func(s *Server) { s.status = fn }
}

// New creates a Server with chi router, huma API, health endpoint, and CORS.
func New(cfg Config, bridge *ipc.Bridge, opts ...Option) (*Server, error) {
	if cfg.ListenAddr == "" {
		return nil, cwerr.New(cwerr.CodeServerStartFailure, "listen address is required")
	}
	if bridge == nil {
		return nil, cwerr.New(cwerr.CodeServerStartFailure, "bridge is required")
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 60 * time.Second
	}
	if cfg.Name == "" {
		cfg.Name = "crossweb"
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		cfg:    cfg,
		bridge: bridge,
		hub:    newHub(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.upgrader = websocket.Upgrader{CheckOrigin: s.checkOrigin}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware(cfg.CORSOrigins))

	humaConfig := huma.DefaultConfig("Crossweb Dev Webview", versionOr(cfg.Version))
	humaConfig.Info.Description = "Development transport for crossweb applications"
	api := humachi.New(r, humaConfig)

	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Tags:        []string{"system"},
	}, func(_ context.Context, _ *struct{}) (*HealthResponse, error) {
		return &HealthResponse{Body: HealthBody{Status: "ok"}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "status",
		Method:      http.MethodGet,
		Path:        PathStatus,
		Summary:     "Runtime status",
		Tags:        []string{"system"},
	}, s.handleStatus)

	r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	r.Get(PathShim, serveShim)
	r.Get(PathSocket, s.handleSocket)
	r.NotFound(newStaticHandler(cfg.WebDir, s.logger).ServeHTTP)

	s.router = r
	s.api = api
	return s, nil
}

// Handler returns the underlying http.Handler for testing.
func (s *Server) Handler() http.Handler {
	return s.router
}

// API returns the huma API for registering additional operations.
func (s *Server) API() huma.API {
	return s.api
}

// Clients returns the number of connected pages.
func (s *Server) Clients() int { return s.hub.len() }

// Eval sends script to every connected page.
func (s *Server) Eval(script string) error {
	return s.hub.broadcast(script)
}

// Start runs the HTTP server and blocks until the context is cancelled,
// then performs graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return cwerr.Wrap(err, cwerr.CodeServerStartFailure, "listening", cwerr.Field("addr", s.cfg.ListenAddr))
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	s.logger.Info("dev webview listening", "addr", ln.Addr().String(), "web_dir", s.cfg.WebDir)

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.hub.closeAll()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return cwerr.Wrap(err, cwerr.CodeServerShutdownFailure, "shutting down")
	}

	return <-errCh
}

func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := newClient(conn)
	n := s.hub.add(c)
	defer s.hub.remove(c)
	go c.writePump(s.logger)

	c.enqueue(ipc.BridgeScript())
	s.logger.Debug("page connected", "clients", n, "remote", r.RemoteAddr)
	if s.onConnect != nil {
		s.onConnect(n)
	}

	c.readPump(s.logger, readLimit(s.bridge.Codec().Limits()), func(frame string) {
		s.bridge.HandleMessage(frame)
	})
	s.logger.Debug("page disconnected", "remote", r.RemoteAddr)
}

// checkOrigin accepts same-host pages and configured CORS origins.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if u.Host == r.Host {
		return true
	}
	return slices.Contains(s.cfg.CORSOrigins, origin) || slices.Contains(s.cfg.CORSOrigins, "*")
}

type statusOutput struct {
	Body Status
}

func (s *Server) handleStatus(_ context.Context, _ *struct{}) (*statusOutput, error) {
	out := &statusOutput{}
	out.Body = Status{
		Name:     s.cfg.Name,
		Version:  s.cfg.Version,
		Clients:  s.hub.len(),
		QueueLen: s.bridge.Queue().Len(),
		QueueCap: s.bridge.Queue().Cap(),
	}
	if s.status != nil {
		s.status(&out.Body)
	}
	return out, nil
}

func serveShim(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write([]byte(shimJS))
}

// HealthBody is the JSON body of the health endpoint response.
type HealthBody struct {
	Status string `json:"status" example:"ok" doc:"Health status"`
}

// HealthResponse wraps the health check response.
type HealthResponse struct {
	Body HealthBody
}

func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173"}
	}

	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	})
}

func versionOr(v string) string {
	if v == "" {
		return "dev"
	}
	return v
}
