// Copyright (C) 2025 Redline Systems (engineering@redlinehq.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package reviser provides the manuscript revision service for Redline.
//
// This package contains the main service type that coordinates all
// components: HTTP routing, the LLM proposal engine, the patch engine,
// document stores, the knowledge base, the run archive, and observability
// infrastructure.
//
// # Usage
//
//	cfg := reviser.Config{Port: 12310}
//	svc, err := reviser.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(svc.Run())
package reviser

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/redlinehq/redline/services/llm"
	"github.com/redlinehq/redline/services/reviser/archive"
	"github.com/redlinehq/redline/services/reviser/kb"
	"github.com/redlinehq/redline/services/reviser/observability"
	"github.com/redlinehq/redline/services/reviser/proposal"
	"github.com/redlinehq/redline/services/reviser/routes"
	"github.com/redlinehq/redline/services/reviser/store"
	"github.com/redlinehq/redline/services/reviser/style"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Service defines the contract for the reviser service.
//
// # Description
//
// Service abstracts the reviser lifecycle, enabling testing and
// alternative implementations. Only the essential lifecycle methods are
// exposed.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use. Run() blocks and should
// only be called once per instance.
type Service interface {
	// Run starts the HTTP server and blocks until shutdown or error.
	Run() error

	// Router returns the underlying Gin engine for testing. Callers must
	// not modify the router.
	Router() *gin.Engine
}

// =============================================================================
// Configuration
// =============================================================================

// Config holds reviser configuration options.
//
// # Description
//
// Config centralizes all configuration for the reviser service. Values can
// be populated from environment variables, config files, or
// programmatically for testing. All fields are optional; New() applies
// defaults for zero values.
type Config struct {
	// Port is the HTTP server port. Default: 12310
	Port int

	// LLMBackend selects the LLM provider.
	// Valid values: "openai", "ollama". Default: "openai"
	LLMBackend string

	// WeaviateURL is the knowledge base URL. If empty, the knowledge base
	// is disabled: document ingestion routes are not served and
	// consistency checks skip the related-document search.
	// Example: "http://localhost:8080"
	WeaviateURL string

	// OTelEndpoint is the OpenTelemetry collector endpoint. If empty,
	// tracing is disabled.
	OTelEndpoint string

	// EnableMetrics enables Prometheus metrics. Default: true
	EnableMetrics bool

	// GinMode sets the Gin framework mode.
	// Valid values: "debug", "release", "test"
	// Default: uses GIN_MODE env var or "debug"
	GinMode string

	// DocumentRoot confines plain-path document references to one
	// directory. Empty means unconfined path access.
	DocumentRoot string

	// EnableGCS turns on the gs:// document store. Implied by a non-empty
	// GCSKeyPath.
	EnableGCS bool

	// GCSKeyPath is an optional service account key for the gs:// store.
	// Empty uses ambient credentials.
	GCSKeyPath string

	// ArchivePath is the directory for the persistent run archive. Empty
	// keeps runs in memory only.
	ArchivePath string

	// StyleGuidePath points to a style guide appended to revision prompts.
	// The file is watched and reloaded on change. Empty disables it.
	StyleGuidePath string

	// LLMRequestsPerMinute throttles proposal engine calls. Default: 30
	LLMRequestsPerMinute int

	// PatchWorkers bounds the consistency check fan-out. Default: 8
	PatchWorkers int
}

// =============================================================================
// Implementation
// =============================================================================

// service implements Service for production use.
//
// # Thread Safety
//
// Thread-safe after construction. All fields are read-only after New()
// returns.
type service struct {
	config        Config
	router        *gin.Engine
	llmClient     llm.LLMClient
	engine        *proposal.Engine
	docs          *store.Resolver
	kbStore       *kb.Store
	archiveStore  *archive.Store
	styleWatcher  *style.Watcher
	tracerCleanup func(context.Context)
}

// =============================================================================
// Constructor
// =============================================================================

// New creates a reviser Service with the given configuration.
//
// # Description
//
// New initializes all components in dependency order:
//  1. Applies default configuration for missing values
//  2. Initializes OpenTelemetry tracing (disabled without an endpoint)
//  3. Initializes Prometheus metrics
//  4. Connects the knowledge base if a Weaviate URL is configured
//  5. Creates the LLM client and proposal engine
//  6. Builds the composite document store
//  7. Opens the run archive
//  8. Starts the style guide watcher
//  9. Sets up HTTP routes
//
// A missing knowledge base is not fatal; the service runs in lightweight
// mode without document ingestion or related-document search.
//
// # Inputs
//
//   - cfg: Service configuration. Zero values use defaults.
//
// # Outputs
//
//   - Service: Ready-to-run reviser service
//   - error: Non-nil if initialization fails
func New(cfg Config) (Service, error) {
	s := &service{
		config: applyConfigDefaults(cfg),
	}

	cleanupTracer, err := s.initTracer()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}
	s.tracerCleanup = cleanupTracer

	if s.config.EnableMetrics {
		observability.InitMetrics()
		slog.Info("Initialized Prometheus metrics")
	}

	// Knowledge base is optional.
	if err := s.initKnowledgeBase(); err != nil {
		slog.Warn("Knowledge base initialization failed, running in lightweight mode",
			"error", err)
	}

	if err := s.initLLMClient(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize LLM client: %w", err)
	}

	if err := s.initDocumentStores(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize document stores: %w", err)
	}

	if err := s.initArchive(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize run archive: %w", err)
	}

	if err := s.initStyleWatcher(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize style guide watcher: %w", err)
	}

	s.engine = proposal.NewEngine(s.llmClient, &proposal.EngineOptions{
		RequestsPerMinute: s.config.LLMRequestsPerMinute,
		Style:             s.styleWatcher,
	})

	s.initRouter()

	return s, nil
}

// =============================================================================
// Service Interface Methods
// =============================================================================

// Run starts the HTTP server and blocks until shutdown or error. Cleanup
// is automatic on return.
func (s *service) Run() error {
	defer s.cleanup()

	addr := fmt.Sprintf(":%d", s.config.Port)
	slog.Info("Starting reviser server", "port", s.config.Port)

	return s.router.Run(addr)
}

// Router returns the underlying Gin engine for testing.
func (s *service) Router() *gin.Engine {
	return s.router
}

// =============================================================================
// Private Initialization Methods
// =============================================================================

// applyConfigDefaults fills in missing configuration values.
func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = 12310
	}
	if cfg.LLMBackend == "" {
		cfg.LLMBackend = "openai"
	}
	if cfg.LLMRequestsPerMinute == 0 {
		cfg.LLMRequestsPerMinute = 30
	}
	if cfg.PatchWorkers == 0 {
		cfg.PatchWorkers = 8
	}
	if cfg.GCSKeyPath != "" {
		cfg.EnableGCS = true
	}
	// Metrics stay on unless a future config surface needs to turn them off.
	cfg.EnableMetrics = true

	return cfg
}

// initTracer initializes OpenTelemetry distributed tracing.
//
// Without a configured endpoint the tracer provider stays at the global
// no-op default and spans cost nothing.
func (s *service) initTracer() (func(context.Context), error) {
	if s.config.OTelEndpoint == "" {
		slog.Info("OTel endpoint not configured, tracing disabled")
		return func(context.Context) {}, nil
	}

	ctx := context.Background()

	conn, err := grpc.NewClient(s.config.OTelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("reviser-service")))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))

	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	cleanup := func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}

	return cleanup, nil
}

// initKnowledgeBase connects to Weaviate and ensures the chunk schema.
//
// Returns nil without connecting when no URL is configured; the routes
// layer and the check pipeline both tolerate a nil knowledge base.
func (s *service) initKnowledgeBase() error {
	if s.config.WeaviateURL == "" {
		slog.Info("Weaviate URL not configured, knowledge base disabled")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	kbStore, err := kb.New(ctx, s.config.WeaviateURL)
	if err != nil {
		return err
	}
	if err := kbStore.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure knowledge base schema: %w", err)
	}

	s.kbStore = kbStore
	return nil
}

// initLLMClient initializes the LLM provider client.
func (s *service) initLLMClient() error {
	client, err := llm.NewBackend(s.config.LLMBackend)
	if err != nil {
		return err
	}
	s.llmClient = client
	slog.Info("LLM backend initialized", "backend", s.config.LLMBackend)
	return nil
}

// initDocumentStores builds the composite resolver for file, http(s), and
// optional gs:// document references.
func (s *service) initDocumentStores() error {
	var gcs *store.GCSStore
	if s.config.EnableGCS {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		g, err := store.NewGCSStore(ctx, s.config.GCSKeyPath)
		if err != nil {
			return fmt.Errorf("create GCS store: %w", err)
		}
		gcs = g
		slog.Info("GCS document store enabled")
	}

	s.docs = store.NewResolver(store.NewFileStore(s.config.DocumentRoot), store.NewHTTPStore(nil), gcs)
	return nil
}

// initArchive opens the run archive, persistent when a path is configured.
func (s *service) initArchive() error {
	if s.config.ArchivePath == "" {
		arch, err := archive.OpenInMemory()
		if err != nil {
			return err
		}
		s.archiveStore = arch
		slog.Warn("Archive path not configured, runs will not survive restarts")
		return nil
	}

	arch, err := archive.Open(s.config.ArchivePath, slog.Default())
	if err != nil {
		return err
	}
	s.archiveStore = arch
	slog.Info("Run archive opened", "path", s.config.ArchivePath)
	return nil
}

// initStyleWatcher loads the style guide and watches it for edits.
func (s *service) initStyleWatcher() error {
	watcher, err := style.NewWatcher(s.config.StyleGuidePath, nil)
	if err != nil {
		return err
	}
	if err := watcher.Start(context.Background()); err != nil {
		return err
	}
	s.styleWatcher = watcher

	if s.config.StyleGuidePath != "" {
		slog.Info("Style guide watcher started", "path", s.config.StyleGuidePath)
	}
	return nil
}

// initRouter sets up the Gin HTTP router with all routes.
func (s *service) initRouter() {
	if s.config.GinMode != "" {
		gin.SetMode(s.config.GinMode)
	}

	s.router = gin.Default()
	s.router.Use(otelgin.Middleware("reviser-service"))

	routes.SetupRoutes(s.router, s.docs, s.kbStore, s.engine, s.archiveStore, s.config.PatchWorkers)
}

// cleanup releases all resources held by the service. Called when Run()
// exits or on initialization failure.
func (s *service) cleanup() {
	if s.styleWatcher != nil {
		s.styleWatcher.Stop()
	}

	if s.archiveStore != nil {
		if err := s.archiveStore.Close(); err != nil {
			slog.Warn("Archive close error", "error", err)
		}
	}

	if s.tracerCleanup != nil {
		s.tracerCleanup(context.Background())
	}
}

// =============================================================================
// Compile-time Interface Compliance
// =============================================================================

var _ Service = (*service)(nil)
