package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/urfave/negroni"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/logger"
)

// Route paths.
const (
	PathHealth   = "/healthz"
	PathIngest   = "/v1/ai/rag-ingest"
	PathAnswer   = "/v1/ai/rag-answer"
	PathEnvCheck = "/v1/ai/env-check"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 10 * time.Second

	// maxBodyBytes bounds request bodies, ingest text included.
	maxBodyBytes = 10 << 20
)

// Server serves the HTTP API.
type Server struct {
	ports   *Ports
	debug   bool
	router  *mux.Router
	handler http.Handler
}

// Option configures a Server.
type Option func(*Server)

// WithDebugEndpoints exposes the env-check route.
func WithDebugEndpoints(enabled bool) Option {
	return func(s *Server) {
		s.debug = enabled
	}
}

// NewServer creates a server over ports.
func NewServer(ports *Ports, opts ...Option) (*Server, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("validating ports: %w", err)
	}

	s := &Server{ports: ports, router: mux.NewRouter()}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	s.handler = s.middleware(s.router)
	return s, nil
}

func (s *Server) routes() {
	s.router.HandleFunc(PathHealth, s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc(PathIngest, s.handleIngest).Methods(http.MethodPost)
	s.router.HandleFunc(PathAnswer, s.handleAnswer).Methods(http.MethodPost)
	s.router.HandleFunc(PathEnvCheck, s.handleEnvCheck).Methods(http.MethodGet)
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeCodedError(w, domain.CodeNotFound, "Route not found")
	})
}

func (s *Server) middleware(h http.Handler) http.Handler {
	recovery := negroni.NewRecovery()
	recovery.Logger = log.New(logger.Writer(), "[http] ", 0)
	recovery.PrintStack = false

	access := negroni.NewLogger()
	access.ALogger = log.New(logger.Writer(), "[http] ", 0)

	n := negroni.New()
	n.Use(recovery)
	n.Use(requestIDMiddleware())
	n.Use(access)
	n.UseHandler(h)
	return n
}

// Handler returns the root handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown: %v", err)
		}
	}()

	logger.Info("http server listening on %s", addr)
	err := httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
