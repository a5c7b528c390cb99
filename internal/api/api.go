// Package api exposes the interview service over HTTP.
//
// It provides RESTful endpoints for starting sessions from resume uploads,
// submitting answers, controlling the question timer, resuming or discarding
// unfinished sessions, and the reviewer dashboard listing.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/BTreeMap/Crisp/internal/session"
	"github.com/BTreeMap/Crisp/internal/store"
)

// DefaultAddr is the listen address unless configured otherwise.
const DefaultAddr = ":8080"

// DefaultShutdownTimeout bounds graceful shutdown on SIGINT/SIGTERM.
const DefaultShutdownTimeout = 10 * time.Second

// DefaultMaxUploadBytes caps resume upload size.
const DefaultMaxUploadBytes = 10 << 20 // 10 MiB

// Opts holds server configuration.
type Opts struct {
	Addr           string
	AllowedOrigins []string
	MaxUploadBytes int64
}

// Option configures the API server.
type Option func(*Opts)

// WithAddr overrides the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithAllowedOrigins sets the CORS allowlist for browser clients.
func WithAllowedOrigins(origins []string) Option {
	return func(o *Opts) { o.AllowedOrigins = origins }
}

// WithMaxUploadBytes overrides the resume upload size cap.
func WithMaxUploadBytes(n int64) Option {
	return func(o *Opts) { o.MaxUploadBytes = n }
}

// Server wires the interview engine and store into HTTP handlers.
type Server struct {
	engine    *session.Engine
	store     store.Store
	maxUpload int64
}

// NewServer creates an API server over the given engine and store.
func NewServer(engine *session.Engine, st store.Store, maxUpload int64) *Server {
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUploadBytes
	}
	return &Server{engine: engine, store: st, maxUpload: maxUpload}
}

// Router builds the chi router with all routes mounted.
func (s *Server) Router(allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   allowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	r.Get("/health", s.healthHandler)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/state", s.stateHandler)
		r.Put("/tab", s.setTabHandler)

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", s.startSessionHandler)
			r.Get("/unfinished", s.unfinishedHandler)
			r.Route("/{id}", func(r chi.Router) {
				r.Post("/answer", s.answerHandler)
				r.Post("/pause", s.pauseHandler)
				r.Post("/resume", s.resumeHandler)
				r.Post("/end", s.endHandler)
				r.Post("/resume-session", s.resumeSessionHandler)
				r.Post("/discard", s.discardHandler)
			})
		})

		r.Route("/candidates", func(r chi.Router) {
			r.Get("/", s.listCandidatesHandler)
			r.Get("/{id}", s.getCandidateHandler)
		})
	})
	return r
}

// RunOpts bundles everything Run needs beyond the server itself.
type RunOpts struct {
	Opts
	Engine *session.Engine
	Store  store.Store
}

// Run starts the HTTP server and blocks until SIGINT/SIGTERM, then shuts
// down gracefully.
func Run(opts RunOpts) error {
	if opts.Addr == "" {
		opts.Addr = DefaultAddr
	}
	srv := NewServer(opts.Engine, opts.Store, opts.MaxUploadBytes)
	httpSrv := &http.Server{
		Addr:    opts.Addr,
		Handler: srv.Router(opts.AllowedOrigins),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server.Run: listening", "addr", opts.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-sigCh:
		slog.Info("Server.Run: shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}
