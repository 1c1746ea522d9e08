// Package server serves stored graphs over HTTP.
//
// Every stored graph is reachable as a static widget page, as a live page
// whose engine is driven from the server over a websocket, and as JSON:
//
//	GET    /healthz
//	GET    /api/graphs
//	GET    /api/graphs/{name}
//	PUT    /api/graphs/{name}
//	DELETE /api/graphs/{name}
//	GET    /graphs/{name}          live page
//	GET    /graphs/{name}/static   static page
//	GET    /graphs/{name}/ws       live session
//	GET    /graphs/{name}/export/{format}  static diagram (json, dot, svg, png, pdf)
//	GET    /bundle.js              engine bundle
//
// Errors are returned as JSON objects with the code and message of the
// underlying errors.Error; the status follows errors.HTTPStatus.
package server

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/matzehuels/nvlviz/pkg/engine"
	"github.com/matzehuels/nvlviz/pkg/pipeline"
	"github.com/matzehuels/nvlviz/pkg/store"
)

// BundlePath is where the server publishes the engine bundle.
const BundlePath = "/bundle.js"

// Options configures a Server.
type Options struct {
	// Bundle is the engine bundle served at BundlePath. Pages reference it
	// there unless BundleURL is set.
	Bundle []byte
	// BundleURL points pages at an external bundle instead.
	BundleURL string

	// Config is the engine configuration for every page and session.
	Config engine.Config
	// DisableTooltip renders pages without the hover tooltip.
	DisableTooltip bool
	// MaxAllowedNodes caps the graphs the server renders.
	MaxAllowedNodes int
	// SessionTimeout bounds how long the server waits for a page to
	// acknowledge a command.
	SessionTimeout time.Duration
	// Runner renders exports; its cache is shared between requests. Nil
	// renders without caching.
	Runner *pipeline.Runner

	Logger *log.Logger
}

// Server routes requests to the graph store.
type Server struct {
	store    store.Store
	opts     Options
	logger   *log.Logger
	router   chi.Router
	upgrader websocket.Upgrader
}

// New returns a server for st.
func New(st store.Store, opts Options) *Server {
	s := &Server{
		store:  st,
		opts:   opts,
		logger: opts.Logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
	if s.logger == nil {
		s.logger = log.New(io.Discard)
	}
	if s.opts.Runner == nil {
		s.opts.Runner = pipeline.NewRunner(nil, nil, s.logger)
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get(BundlePath, s.handleBundle)

	r.Route("/api/graphs", func(r chi.Router) {
		r.Get("/", s.handleList)
		r.Get("/{name}", s.handleGet)
		r.Put("/{name}", s.handlePut)
		r.Delete("/{name}", s.handleDelete)
	})

	r.Route("/graphs/{name}", func(r chi.Router) {
		r.Get("/", s.handleLivePage)
		r.Get("/static", s.handleStaticPage)
		r.Get("/ws", s.handleSession)
		r.Get("/export/{format}", s.handleExport)
	})
	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.logger.Info("serving", "addr", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start).Round(time.Millisecond),
			"request_id", middleware.GetReqID(r.Context()))
	})
}
