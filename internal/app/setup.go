package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/core/tracing"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/lectern/lectern/db"
	"github.com/lectern/lectern/internal/chat"
	"github.com/lectern/lectern/internal/config"
	"github.com/lectern/lectern/internal/course"
	"github.com/lectern/lectern/internal/index"
	"github.com/lectern/lectern/internal/ingest"
	"github.com/lectern/lectern/internal/session"
	"github.com/lectern/lectern/internal/tools"
)

// Setup creates and initializes the application. Returns an App with
// embedded cleanup; call Close to release.
func Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, retErr error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	a := &App{Config: cfg, Logger: logger}

	// On error, release everything already initialized.
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	// Tracing first so Genkit's TracerProvider is ready at Init.
	a.otelCleanup = provideOtelShutdown(ctx, cfg, logger)

	pool, dbCleanup, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.dbCleanup = dbCleanup
	a.DBPool = pool

	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	if g == nil {
		return nil, errors.New("initializing genkit with gemini provider")
	}
	a.Genkit = g

	embedder := googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found", cfg.EmbedderModel)
	}
	a.Embedder = embedder

	idx, err := index.NewStore(pool, embedder, cfg.ResolveThreshold, logger)
	if err != nil {
		return nil, fmt.Errorf("creating semantic index: %w", err)
	}
	a.Index = idx

	a.Sessions = session.NewStore(cfg.MaxHistory)

	if err := provideAssistant(a, g, idx); err != nil {
		return nil, err
	}

	pipeline := course.NewPipeline(course.NewChunker(cfg.ChunkSize, cfg.ChunkOverlap), logger)
	ingestor, err := ingest.New(pipeline, idx, logger)
	if err != nil {
		return nil, fmt.Errorf("creating ingestor: %w", err)
	}
	a.Ingestor = ingestor

	return a, nil
}

// provideAssistant builds the tool registry, generator and assistant.
func provideAssistant(a *App, g *genkit.Genkit, idx *index.Store) error {
	cfg := a.Config

	search, err := tools.NewSearchTool(idx, cfg.MaxResults, a.Logger)
	if err != nil {
		return fmt.Errorf("creating search tool: %w", err)
	}
	outline, err := tools.NewOutlineTool(idx, a.Logger)
	if err != nil {
		return fmt.Errorf("creating outline tool: %w", err)
	}

	registry, err := tools.NewRegistry(g, a.Logger, search, outline)
	if err != nil {
		return fmt.Errorf("registering tools: %w", err)
	}
	a.Registry = registry

	gen, err := chat.NewGenerator(chat.GeneratorConfig{
		Genkit:    g,
		Registry:  registry,
		Logger:    a.Logger,
		ModelName: "googleai/" + cfg.ModelName,
		MaxTokens: cfg.MaxTokens,
	})
	if err != nil {
		return fmt.Errorf("creating generator: %w", err)
	}

	assistant, err := chat.NewAssistant(chat.AssistantConfig{
		Generator:    gen,
		SessionStore: a.Sessions,
		Logger:       a.Logger,
	})
	if err != nil {
		return fmt.Errorf("creating assistant: %w", err)
	}
	a.Assistant = assistant

	a.Logger.Info("assistant initialized",
		"model", cfg.ModelName,
		"tools", registry.Names())
	return nil
}

// provideOtelShutdown exports Genkit traces over OTLP HTTP when an
// endpoint is configured. Returns a shutdown func; a no-op when
// tracing is disabled.
func provideOtelShutdown(ctx context.Context, cfg *config.Config, logger *slog.Logger) func() {
	if cfg.OTLPEndpoint == "" {
		return func() {}
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(cfg.OTLPEndpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		logger.Warn("creating OTLP exporter, tracing disabled", "error", err)
		return func() {}
	}

	processor := sdktrace.NewBatchSpanProcessor(exporter)
	tracing.TracerProvider().RegisterSpanProcessor(processor)
	logger.Debug("OTLP tracing enabled", "endpoint", cfg.OTLPEndpoint)

	shutdown := tracing.TracerProvider().Shutdown
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("shutting down tracer provider", "error", err)
		}
	}
}

// provideDBPool runs migrations and opens the connection pool.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, func(), error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, nil, fmt.Errorf("parsing connection config: %w", err)
	}
	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, pool.Close, nil
}
