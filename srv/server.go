// Package srv exposes the book compiler over HTTP: books are submitted as
// JSON, compiled one at a time and downloaded once ready.
package srv

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/opd-ai/bookmaker/bookcompiler"
	"github.com/opd-ai/bookmaker/config"
)

// Server is the bookmaker HTTP service.
type Server struct {
	router   chi.Router
	jobs     *JobManager
	metrics  *Metrics
	cfg      config.ServerConfig
	logger   zerolog.Logger
	upgrader websocket.Upgrader
}

// New builds the service. opts configure every compiler the worker creates.
func New(cfg config.ServerConfig, opts []bookcompiler.Option, logger zerolog.Logger) (*Server, error) {
	metrics := NewMetrics()
	jobs, err := NewJobManager(cfg.OutputDir, cfg.QueueSize, cfg.ResultTTL, opts, logger, metrics)
	if err != nil {
		return nil, err
	}

	s := &Server{
		router:  chi.NewRouter(),
		jobs:    jobs,
		metrics: metrics,
		cfg:     cfg,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
	s.setupRoutes()
	return s, nil
}

// Jobs returns the job manager.
func (s *Server) Jobs() *JobManager {
	return s.jobs
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(hlog.NewHandler(s.logger))
	s.router.Use(requestIDLogger)
	s.router.Use(accessLog)
	s.router.Use(middleware.Recoverer)

	s.router.Get("/healthz", s.handleHealthCheck)
	s.router.Handle("/metrics", s.metrics.Handler())

	s.router.Route("/books", func(r chi.Router) {
		if s.cfg.RateLimit > 0 {
			r.With(httprate.LimitByIP(s.cfg.RateLimit, time.Minute)).Post("/", s.handleCreateBook)
		} else {
			r.Post("/", s.handleCreateBook)
		}
		r.Get("/{id}", s.handleGetBook)
		r.Get("/{id}/pdf", s.handleDownload)
	})
	s.router.Get("/ws/{id}", s.handleWebSocket)
}

// requestIDLogger adds chi's request ID to the request logger.
func requestIDLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			zerolog.Ctx(r.Context()).UpdateContext(func(c zerolog.Context) zerolog.Context {
				return c.Str("request_id", id)
			})
		}
		next.ServeHTTP(w, r)
	})
}

var accessLog = hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
	hlog.FromRequest(r).Info().
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Str("remote", r.RemoteAddr).
		Int("status", status).
		Int("size", size).
		Dur("duration", duration).
		Msg("request")
})

// Run starts the worker and serves HTTP (or HTTPS when a certificate is
// configured) until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	workerCtx, stopWorker := context.WithCancel(ctx)
	defer stopWorker()
	go s.jobs.Run(workerCtx)

	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.cfg.Addr).Bool("tls", s.cfg.TLSCert != "").Msg("server starting")
		if s.cfg.TLSCert != "" {
			errCh <- ListenAndServeTLS(srv, s.cfg.TLSCert, s.cfg.TLSKey)
		} else {
			errCh <- srv.ListenAndServe()
		}
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info().Msg("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
