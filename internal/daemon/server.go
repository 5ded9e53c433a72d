// Package daemon hosts the HTTP server wiring the query pipeline together.
package daemon

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"go.uber.org/zap"

	"github.com/courselens/courselens/internal/agent"
	"github.com/courselens/courselens/internal/config"
	"github.com/courselens/courselens/internal/ingest"
	"github.com/courselens/courselens/internal/llm/configbuilder"
	"github.com/courselens/courselens/internal/observability"
	"github.com/courselens/courselens/internal/rpc/query"
	toolrpc "github.com/courselens/courselens/internal/rpc/tools"
	"github.com/courselens/courselens/internal/session"
	"github.com/courselens/courselens/internal/store"
	"github.com/courselens/courselens/internal/tools"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server hosts the query endpoints plus health and metrics.
type Server struct {
	cfg     *config.Config
	logger  *zap.Logger
	runner  *query.Runner
	metrics *observability.Metrics
	tools   *tools.Registry
	store   store.CourseStore
}

// NewServer constructs a daemon instance: providers, store, tools, and the
// query runner, all from config.
func NewServer(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Server, error) {
	registry, err := configbuilder.BuildRegistryFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("build registry: %w", err)
	}

	embedder := buildEmbedder(cfg.Store.Embedding)

	var courseStore store.CourseStore
	switch strings.ToLower(strings.TrimSpace(cfg.Store.Backend)) {
	case "postgres":
		pg, err := store.NewPostgresStore(ctx, cfg.Store.DSN, embedder)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		courseStore = pg
	default:
		courseStore = store.NewMemoryStore(embedder)
	}

	if cfg.Ingest.DocsDir != "" {
		loader := ingest.NewLoader(courseStore, ingest.NewChunker(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap), logger)
		added, err := loader.LoadDirectory(ctx, cfg.Ingest.DocsDir, false)
		if err != nil {
			logger.Warn("startup ingest skipped", zap.String("dir", cfg.Ingest.DocsDir), zap.Error(err))
		} else if added > 0 {
			logger.Info("startup ingest complete", zap.Int("courses_added", added))
		}
	}

	toolRegistry := tools.NewRegistry()
	if err := toolRegistry.Register(tools.NewSearchTool(courseStore, cfg.Store.SearchLimit)); err != nil {
		return nil, err
	}
	if err := toolRegistry.Register(tools.NewOutlineTool(courseStore)); err != nil {
		return nil, err
	}

	metrics := observability.NewMetrics()
	generator := agent.New(registry, cfg.Agent, logger, metrics)
	runner := &query.Runner{
		Generator: generator,
		Sessions:  session.NewManager(cfg.Sessions.MaxHistory),
		Tools:     toolRegistry,
		Store:     courseStore,
		Metrics:   metrics,
		Logger:    logger,
	}

	return &Server{cfg: cfg, logger: logger, runner: runner, metrics: metrics, tools: toolRegistry, store: courseStore}, nil
}

func buildEmbedder(cfg config.EmbeddingConfig) store.Embedder {
	if strings.ToLower(strings.TrimSpace(cfg.Provider)) != "openai" {
		return nil
	}
	return store.NewOpenAIEmbedder(cfg.BaseURL, cfg.APIKey, cfg.Model)
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/metrics", s.metricsHandler)
	mux.Handle("/tools/schemas", toolrpc.SchemaHandler{Registry: s.tools})
	mux.Handle("/api/courses", query.CoursesHandler{Runner: s.runner})
	mux.Handle("/api/sessions/clear", query.ClearSessionHandler{Runner: s.runner})

	switch strings.ToLower(strings.TrimSpace(s.cfg.Server.Transport)) {
	case "ndjson":
		mux.Handle("/api/query", query.NewHandler(s.runner, s.metrics))
	default:
		path, handler := query.NewConnectHandler(s.runner, s.metrics)
		mux.Handle(path, handler)
		// keep the NDJSON path available alongside Connect
		mux.Handle("/api/query", query.NewHandler(s.runner, s.metrics))
	}

	handler := http.Handler(mux)
	if strings.ToLower(strings.TrimSpace(s.cfg.Server.Transport)) != "ndjson" {
		handler = h2c.NewHandler(handler, &http2.Server{})
	}

	server := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting courselens daemon", zap.String("addr", s.cfg.Server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down courselens daemon")
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) metricsHandler(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.Server.MetricsEnabled {
		http.NotFound(w, r)
		return
	}

	promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}).ServeHTTP(w, r)
}
