// Package api exposes the HTTP surface of the flow automation backend: flow
// CRUD and execution, the provider webhook, AI settings and observability, and
// instance lifecycle management.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jrdesigniub9/novoitm2/internal/ai"
	"github.com/jrdesigniub9/novoitm2/internal/flow"
	"github.com/jrdesigniub9/novoitm2/internal/messaging"
	"github.com/jrdesigniub9/novoitm2/internal/models"
	"github.com/jrdesigniub9/novoitm2/internal/store"
	"github.com/jrdesigniub9/novoitm2/internal/whatsapp"
)

// Defaults for the API server.
const (
	DefaultAddr = ":8080"
	// DefaultRequestTimeout bounds request handling and background pipeline work.
	DefaultRequestTimeout = 30 * time.Second
	// DefaultShutdownTimeout bounds graceful shutdown.
	DefaultShutdownTimeout = 10 * time.Second
	// DefaultPairingTimeout bounds instance connection, leaving the user time
	// to scan the QR code.
	DefaultPairingTimeout = 3 * time.Minute
)

// Opts holds configuration options for the API server.
type Opts struct {
	Addr string
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// Server wires the store, messaging transport, flow engine, and AI responder
// behind the HTTP API.
type Server struct {
	st         store.Store
	msgService messaging.Service
	engine     *flow.Engine
	router     *flow.Router
	responder  *ai.Responder
	waManager  *whatsapp.Manager

	addr       string
	httpServer *http.Server
}

// NewServer assembles a server from its collaborators. waManager may be nil
// when the transport has no instance lifecycle (Twilio).
func NewServer(st store.Store, msgService messaging.Service, engine *flow.Engine, router *flow.Router, responder *ai.Responder, waManager *whatsapp.Manager, opts ...Option) *Server {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}

	return &Server{
		st:         st,
		msgService: msgService,
		engine:     engine,
		router:     router,
		responder:  responder,
		waManager:  waManager,
		addr:       cfg.Addr,
	}
}

// Handler builds the route table. Exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/flows", s.flowsHandler)
	mux.HandleFunc("/flows/", s.flowByIDHandler)
	mux.HandleFunc("/executions/", s.executionHandler)
	mux.HandleFunc("/webhook", s.webhookHandler)
	mux.HandleFunc("/ai/settings", s.aiSettingsHandler)
	mux.HandleFunc("/ai/sessions", s.aiSessionsHandler)
	mux.HandleFunc("/ai/responses", s.aiResponsesHandler)
	mux.HandleFunc("/ai/test", s.aiTestHandler)
	mux.HandleFunc("/evolution/instances", s.instancesHandler)
	mux.HandleFunc("/evolution/instances/", s.instanceByNameHandler)
	mux.HandleFunc("/health", s.healthHandler)
	return mux
}

// Run starts the event loops and serves HTTP until the context is canceled.
func (s *Server) Run(ctx context.Context) error {
	if err := s.msgService.Start(ctx); err != nil {
		return fmt.Errorf("failed to start messaging service: %w", err)
	}

	go s.consumeMessages(ctx)
	go s.consumeStatusUpdates(ctx)

	s.httpServer = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  DefaultRequestTimeout,
		WriteTimeout: DefaultRequestTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server listening", "addr", s.addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	slog.Info("API server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("API server shutdown failed", "error", err)
	}
	if err := s.msgService.Stop(); err != nil {
		slog.Error("Messaging service stop failed", "error", err)
	}
	return nil
}

// consumeMessages feeds normalized provider events into the flow router and
// the AI responder. Each message is dispatched on its own goroutine so a slow
// flow (delay nodes) never stalls the inbound stream.
func (s *Server) consumeMessages(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-s.msgService.Messages():
			if !ok {
				return
			}
			go s.dispatchInbound(ctx, msg)
		}
	}
}

// dispatchInbound routes one inbound message to flows and the AI pipeline.
func (s *Server) dispatchInbound(ctx context.Context, msg models.InboundMessage) {
	runCtx, cancel := context.WithTimeout(ctx, DefaultRequestTimeout)
	s.router.HandleInbound(runCtx, msg)
	cancel()

	go func() {
		aiCtx, cancel := context.WithTimeout(context.Background(), DefaultRequestTimeout)
		defer cancel()
		s.responder.HandleInbound(aiCtx, msg)
	}()
}

// contextWithTimeout returns a fresh background context bounded by the
// default request timeout, for work detached from an HTTP request.
func contextWithTimeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), DefaultRequestTimeout)
}

// consumeStatusUpdates mirrors instance QR codes and connection states into
// the store.
func (s *Server) consumeStatusUpdates(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-s.msgService.StatusUpdates():
			if !ok {
				return
			}
			s.applyStatusUpdate(update)
		}
	}
}
