// Package server exposes the converter, the chat responder and the sales
// dashboard over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/electwix/tsql2snow/internal/analytics"
	"github.com/electwix/tsql2snow/internal/cache"
	"github.com/electwix/tsql2snow/internal/config"
	"github.com/electwix/tsql2snow/internal/logging"
	"github.com/electwix/tsql2snow/internal/rewrite"
)

const shutdownTimeout = 5 * time.Second

// Options wires a Server.
type Options struct {
	Plan      config.ServerPlan
	Converter *rewrite.Converter
	// Store backs the /analytics endpoints; nil makes them return 503.
	Store  *analytics.Store
	Seed   analytics.SeedOptions
	Logger logging.Logger
}

// Server is the HTTP front end.
type Server struct {
	plan      config.ServerPlan
	converter *rewrite.Converter
	cache     *cache.MemoryCache[ConvertResponse]
	store     *analytics.Store
	seed      analytics.SeedOptions
	logger    logging.Logger
	handler   http.Handler
}

// New builds a Server and its routes.
func New(opts Options) *Server {
	s := &Server{
		plan:      opts.Plan,
		converter: opts.Converter,
		store:     opts.Store,
		seed:      opts.Seed,
		logger:    opts.Logger,
	}
	if s.converter == nil {
		s.converter = rewrite.New(rewrite.DefaultOptions())
	}
	if s.logger == nil {
		s.logger = logging.NewNopLogger()
	}
	if s.plan.MaxBodyBytes <= 0 {
		s.plan.MaxBodyBytes = 1 << 20
	}
	s.cache = cache.NewMemoryCache[ConvertResponse](cache.WithMaxEntries(s.plan.CacheEntries))
	s.handler = s.routes()
	return s
}

// Handler returns the root handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /convert", s.handleConvert)
	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("POST /chat/", s.handleChat)
	mux.HandleFunc("GET /analytics/meta", s.handleAnalyticsMeta)
	mux.HandleFunc("POST /analytics/run", s.handleAnalyticsRun)
	mux.HandleFunc("POST /analytics/reload_samples", s.handleAnalyticsReload)
	mux.HandleFunc("GET /health", s.handleHealth)

	for pattern, name := range pages {
		mux.Handle("GET "+pattern, s.page(name))
	}
	mux.Handle("GET /static/", s.staticFiles())

	return s.withRequestID(s.withLogging(withCORS(mux)))
}

// ListenAndServe listens on the configured address and serves until ctx is
// canceled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.plan.Address)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.plan.Address, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is canceled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadTimeout:       s.plan.ReadTimeout,
		ReadHeaderTimeout: s.plan.ReadTimeout,
		WriteTimeout:      s.plan.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.logger.Info("http server started", "address", ln.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Info("http server stopped")
	return nil
}
