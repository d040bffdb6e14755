// Package server is the reference acdc API: it serves schemas, keeps one
// analysis document in memory, imports models, validates paths and runs
// evaluations whose progress is pushed to websocket subscribers.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/matthewbaird/acdc/internal/clock"
	"github.com/matthewbaird/acdc/internal/config"
	"github.com/matthewbaird/acdc/internal/eventbus"
	"github.com/matthewbaird/acdc/internal/metrics"
)

// APIPrefix is the path every API route lives under.
const APIPrefix = "/acdc/api"

// Config holds server configuration.
type Config struct {
	config.Server

	// Registry receives the server metrics and is exposed on /metrics.
	// Nil disables both.
	Registry *prometheus.Registry
	// Clock paces evaluations. Nil means the real clock.
	Clock clock.Clock
}

// Server wires the API handlers to their state.
type Server struct {
	cfg      Config
	store    *Store
	schemas  *SchemaStore
	bus      *eventbus.Bus
	eval     *Evaluator
	metrics  *metrics.Server
	gatherer prometheus.Gatherer

	done      chan struct{}
	closeOnce sync.Once
}

// New builds a server from cfg.
func New(cfg Config) (*Server, error) {
	if cfg.MaxUpload <= 0 {
		cfg.MaxUpload = 20 << 20
	}
	if cfg.EvalStep <= 0 {
		cfg.EvalStep = 200 * time.Millisecond
	}
	if cfg.Root == "" {
		cfg.Root = "."
	}
	schemas, err := NewSchemaStore(cfg.SchemaDir)
	if err != nil {
		return nil, fmt.Errorf("loading schemas: %w", err)
	}

	s := &Server{
		cfg:     cfg,
		store:   NewStore(cfg.Root),
		schemas: schemas,
		done:    make(chan struct{}),
	}
	if cfg.Registry != nil {
		s.metrics = metrics.NewServer(cfg.Registry)
		s.gatherer = cfg.Registry
	}
	s.bus = eventbus.New(s.metrics)
	s.eval = NewEvaluator(s.bus, cfg.Clock, cfg.EvalStep, s.metrics)
	return s, nil
}

// Handler returns the HTTP handler with all routes registered.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(Recovery, Logging(s.metrics))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route(APIPrefix, func(r chi.Router) {
		r.Get("/schemas", s.listSchemas)
		r.Get("/schemas/{name}", s.getSchema)

		r.Get("/analysis", s.getAnalysis)
		r.Put("/analysis", s.putAnalysis)
		r.Delete("/analysis", s.resetAnalysis)
		r.Post("/conditions", s.updateConditions)

		r.Post("/model", s.importModel)
		r.Post("/validate-path", s.validatePath)

		r.Post("/evaluate", s.startEvaluation)
		r.Delete("/evaluate", s.cancelEvaluation)
		r.Get("/evaluate", s.streamStatus)
	})
	return r
}

// Close cancels any running evaluation and ends open status streams.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.eval.Close()
	})
}

// Run starts the HTTP server and the schema watcher, and shuts both down
// when ctx is cancelled.
func Run(ctx context.Context, cfg Config) error {
	s, err := New(cfg)
	if err != nil {
		return err
	}
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.schemas.Watch(gctx)
	})
	g.Go(func() error {
		log.Printf("server: listening on %s (schemas: %v)", addr, s.schemas.Names())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
