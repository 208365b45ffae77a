package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/michaelhelvey/crabbot/internal/audit"
	"github.com/michaelhelvey/crabbot/internal/interactions"
	"github.com/michaelhelvey/crabbot/internal/platform/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// Dependencies holds all injected dependencies for the server.
type Dependencies struct {
	// Verifier gates POST /interactions. The route is not mounted when nil.
	Verifier           interactions.Verifier
	InteractionHandler *interactions.Handler
	Audit              audit.Logger
	MaxBodyBytes       int64
	Logger             *slog.Logger
	// ServiceName names the otelhttp server spans.
	ServiceName string
}

type Server struct {
	httpServer *http.Server
	handler    http.Handler
	logger     *slog.Logger
}

func New(addr string, deps Dependencies) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if deps.Logger != nil {
		r.Use(middleware.Logging(deps.Logger))
	}
	r.Use(chimiddleware.Recoverer)

	// Public routes
	r.Get("/healthz", handleHealth)
	r.Get("/health", handleHealthText)

	if deps.Verifier != nil {
		interactionHandler := deps.InteractionHandler
		if interactionHandler == nil {
			interactionHandler = interactions.NewHandler(deps.Audit, logger)
		}
		gate := interactions.Gate(deps.Verifier,
			interactions.WithMaxBodyBytes(deps.MaxBodyBytes),
			interactions.WithAuditLogger(deps.Audit),
			interactions.WithLogger(logger),
		)
		r.With(gate).Post("/interactions", interactionHandler.HandleInteraction)
	}

	serviceName := deps.ServiceName
	if serviceName == "" {
		serviceName = "crabbot"
	}
	handler := otelhttp.NewHandler(r, serviceName)

	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		handler: handler,
		logger:  logger,
	}
}

// Handler returns the full middleware-wrapped handler chain (for testing).
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	lc := net.ListenConfig{}
	listener, err := lc.Listen(ctx, "tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.httpServer.Addr, err)
	}

	s.logger.Info("server starting", "addr", listener.Addr().String())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func handleHealthText(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("OK"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
