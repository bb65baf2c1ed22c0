// Copyright (C) 2026 Copperline AI (oss@copperline.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package chat assembles the grounded chat service: configuration,
// telemetry, upstream clients, the pipeline, and the HTTP surface.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	openai "github.com/sashabaranov/go-openai"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"github.com/copperline-ai/copperline/pkg/tokens"
	"github.com/copperline-ai/copperline/services/chat/handlers"
	"github.com/copperline-ai/copperline/services/chat/observability"
	"github.com/copperline-ai/copperline/services/chat/pipeline"
	"github.com/copperline-ai/copperline/services/chat/routes"
	"github.com/copperline-ai/copperline/services/chat/search"
	"github.com/copperline-ai/copperline/services/chat/store"
	"github.com/copperline-ai/copperline/services/chat/taxonomy"
)

// serviceName identifies this service in traces and logs.
const serviceName = "copperline-chat"

// Config holds everything the chat service needs to start.
type Config struct {
	// Port is the HTTP listen port.
	Port string `validate:"required,numeric"`

	// GinMode is debug, release, or test.
	GinMode string `validate:"omitempty,oneof=debug release test"`

	// OpenAIAPIKey authenticates completion and embedding calls.
	OpenAIAPIKey string `validate:"required"`

	// OpenAIBaseURL points the client at a compatible gateway.
	// Empty means the public API.
	OpenAIBaseURL string `validate:"omitempty,url"`

	// ChatModel is the deployment used for both pipeline calls.
	ChatModel string `validate:"required"`

	// EmbeddingModel is the text embedding deployment.
	EmbeddingModel string `validate:"required"`

	// SearchURL and SearchIndex locate the document index.
	SearchURL   string `validate:"required,url"`
	SearchIndex string `validate:"required"`
	SearchKey   string

	// VisionEndpoint and VisionKey configure image embeddings.
	// Optional; image retrieval fails cleanly without them.
	VisionEndpoint string `validate:"omitempty,url"`
	VisionKey      string

	// WeaviateURL locates the conversation store. Empty disables
	// conversation logging.
	WeaviateURL string `validate:"omitempty,url"`

	// OTLPEndpoint receives traces over gRPC. Empty disables tracing.
	OTLPEndpoint string

	// TaxonomyPath overrides the embedded retrieval taxonomy.
	TaxonomyPath string

	Logger *slog.Logger
}

// applyConfigDefaults fills in the blanks a deployment may omit.
func applyConfigDefaults(cfg *Config) {
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.GinMode == "" {
		cfg.GinMode = gin.ReleaseMode
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = "gpt-35-turbo"
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = "text-embedding-ada-002"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
}

// Service is the running chat service.
type Service interface {
	// Run serves HTTP until the listener fails.
	Run() error

	// Router exposes the gin engine for tests.
	Router() *gin.Engine

	// Close flushes telemetry and releases clients.
	Close() error
}

type service struct {
	cfg      Config
	router   *gin.Engine
	logger   *slog.Logger
	shutdown func(context.Context) error
}

var _ Service = (*service)(nil)

// New assembles the chat service from config.
func New(cfg Config) (Service, error) {
	applyConfigDefaults(&cfg)
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid chat service config: %w", err)
	}
	logger := cfg.Logger

	shutdown, err := initTracer(cfg.OTLPEndpoint, logger)
	if err != nil {
		return nil, err
	}
	metrics := observability.Init(prometheus.DefaultRegisterer)

	tax, err := loadTaxonomy(cfg.TaxonomyPath)
	if err != nil {
		return nil, err
	}

	openaiClient := newOpenAIClient(cfg)
	turnStore := initTurnStore(cfg, logger)

	orchestrator, err := pipeline.New(pipeline.Config{
		Completer: openaiClient,
		Searcher: search.NewRetriever(
			search.NewIndexClient(cfg.SearchURL, cfg.SearchIndex, cfg.SearchKey),
			search.RetrieverOptions{},
		),
		Vectorizer: search.NewEmbedder(search.EmbedderConfig{
			Client:         openaiClient,
			EmbeddingModel: cfg.EmbeddingModel,
			VisionEndpoint: cfg.VisionEndpoint,
			VisionKey:      cfg.VisionKey,
		}),
		Filters:    search.NewFilterBuilder(tax),
		Store:      turnStore,
		Counter:    tokens.NewCounter(cfg.ChatModel),
		Taxonomy:   tax,
		Model:      cfg.ChatModel,
		TokenLimit: tokens.LimitForModel(cfg.ChatModel),
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	routes.SetupRoutes(router, handlers.NewChatHandler(orchestrator, metrics, logger), logger)

	logger.Info("chat service assembled",
		"port", cfg.Port,
		"model", cfg.ChatModel,
		"index", cfg.SearchIndex,
		"conversation_store", cfg.WeaviateURL != "",
		"tracing", cfg.OTLPEndpoint != "")

	return &service{
		cfg:      cfg,
		router:   router,
		logger:   logger,
		shutdown: shutdown,
	}, nil
}

func (s *service) Run() error {
	return s.router.Run(":" + s.cfg.Port)
}

func (s *service) Router() *gin.Engine {
	return s.router
}

func (s *service) Close() error {
	if s.shutdown == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.shutdown(ctx)
}

func loadTaxonomy(path string) (*taxonomy.Taxonomy, error) {
	if path == "" {
		return taxonomy.Default()
	}
	return taxonomy.LoadFile(path)
}

func newOpenAIClient(cfg Config) *openai.Client {
	clientCfg := openai.DefaultConfig(cfg.OpenAIAPIKey)
	if cfg.OpenAIBaseURL != "" {
		clientCfg.BaseURL = cfg.OpenAIBaseURL
	}
	return openai.NewClientWithConfig(clientCfg)
}

// initTurnStore connects the conversation store. Conversation logging
// is best effort, so a store that cannot be reached downgrades to a
// no-op with a logged warning instead of failing startup.
func initTurnStore(cfg Config, logger *slog.Logger) pipeline.TurnStore {
	if cfg.WeaviateURL == "" {
		return store.NopStore{}
	}
	parsed, err := url.Parse(cfg.WeaviateURL)
	if err != nil || parsed.Host == "" {
		logger.Warn("unusable weaviate url, conversation logging disabled",
			"url", cfg.WeaviateURL, "error", err)
		return store.NopStore{}
	}
	client, err := weaviate.NewClient(weaviate.Config{
		Host:   parsed.Host,
		Scheme: parsed.Scheme,
	})
	if err != nil {
		logger.Warn("weaviate client init failed, conversation logging disabled",
			"error", err)
		return store.NopStore{}
	}

	ws := store.NewWeaviateStore(client, logger)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := ws.EnsureSchema(ctx); err != nil {
		logger.Warn("conversation store schema check failed, conversation logging disabled",
			"error", err)
		return store.NopStore{}
	}
	return ws
}

// initTracer wires OTLP trace export. An empty endpoint leaves the
// default no-op tracer in place.
func initTracer(endpoint string, logger *slog.Logger) (func(context.Context) error, error) {
	if endpoint == "" {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String(serviceName)))
	if err != nil {
		return nil, fmt.Errorf("build trace resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)
	logger.Info("trace export enabled", "endpoint", endpoint)
	return provider.Shutdown, nil
}
