package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/kirillkom/jeonse-legal-assistant/internal/config"
	"github.com/kirillkom/jeonse-legal-assistant/internal/core/domain"
	"github.com/kirillkom/jeonse-legal-assistant/internal/core/ports"
	"github.com/kirillkom/jeonse-legal-assistant/internal/core/usecase"
	"github.com/kirillkom/jeonse-legal-assistant/internal/infrastructure/cache"
	"github.com/kirillkom/jeonse-legal-assistant/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/jeonse-legal-assistant/internal/infrastructure/llm/openai"
	"github.com/kirillkom/jeonse-legal-assistant/internal/infrastructure/queue/nats"
	"github.com/kirillkom/jeonse-legal-assistant/internal/infrastructure/repository/memory"
	"github.com/kirillkom/jeonse-legal-assistant/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/jeonse-legal-assistant/internal/infrastructure/resilience"
	"github.com/kirillkom/jeonse-legal-assistant/internal/infrastructure/vector/qdrant"
	"github.com/kirillkom/jeonse-legal-assistant/internal/observability/metrics"
)

const (
	legalStoreName = "legal"
	newsStoreName  = "news"
	probeTimeout   = 15 * time.Second // per store
)

type App struct {
	Config     config.Config
	Logger     *slog.Logger
	Vocabulary domain.Vocabulary
	Metrics    *metrics.HTTPServerMetrics

	Retriever ports.LegalRetriever
	Chat      ports.LegalChatService
	Health    ports.StoreHealth

	closeFn func()
}

// New wires the retrieval pipeline, the chat use case and their backends.
// Postgres and NATS are optional: empty DSN/URL selects in-memory sessions and
// disables the event bus.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	vocab, err := config.LoadVocabulary(cfg.VocabularyPath)
	if err != nil {
		return nil, fmt.Errorf("load vocabulary: %w", err)
	}

	m := metrics.NewHTTPServerMetrics("api")
	executor := resilience.NewExecutor(cfg.Resilience,
		resilience.WithLogger(logger),
		resilience.WithStateListener(func(operation string, _, to gobreaker.State) {
			m.RecordBreakerTransition(operation, to.String())
		}),
	)

	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	sessions, err := openSessionStore(ctx, cfg, m, &closers)
	if err != nil {
		closeAll()
		return nil, err
	}

	publishers := fanoutPublisher{m}
	if strings.TrimSpace(cfg.NATSURL) != "" {
		bus, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			ResilienceExecutor: executor,
			Logger:             logger,
		})
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("init event bus: %w", err)
		}
		closers = append(closers, bus.Close)
		publishers = append(publishers, bus)
	} else {
		logger.Info("event_bus_disabled")
	}

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, ollama.WithExecutor(executor))
	generator := ollama.NewGenerator(ollamaClient)

	embeddingCache, err := cache.NewLRU[string, []float32]("query_embeddings", cfg.EmbeddingCacheSize,
		cache.WithClone[string](cache.CloneVector),
		cache.WithRecorder[string, []float32](m),
	)
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("init embedding cache: %w", err)
	}
	embeddings := usecase.NewEmbeddingProvider(ollama.NewEmbedder(ollamaClient), cfg.EmbedDimensions, embeddingCache, logger)

	termCache, err := cache.NewLRU[string, string]("term_conversions", cfg.TermCacheSize,
		cache.WithRecorder[string, string](m),
	)
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("init term cache: %w", err)
	}
	normalizer := usecase.NewTermNormalizer(vocab, rewriteCompleter(cfg, generator, executor, logger), termCache, logger)

	legalStore, newsStore := openStores(ctx, cfg, executor, embeddings, logger)

	orchestrator := usecase.NewRetrievalOrchestrator(
		normalizer,
		usecase.NewQueryExpander(vocab),
		legalStore,
		newsStore,
		usecase.NewHybridRetriever(legalStore, cfg.Retrieval, logger),
		usecase.NewRelevanceScorer(embeddings, cfg.Retrieval.NeutralScore, logger),
		publishers,
		cfg.Retrieval,
		logger,
	)
	chat := usecase.NewLegalChatUseCase(orchestrator, generator, sessions, cfg.MaxChatHistory, logger)

	return &App{
		Config:     cfg,
		Logger:     logger,
		Vocabulary: vocab,
		Metrics:    m,
		Retriever:  orchestrator,
		Chat:       chat,
		Health:     usecase.NewStoreHealthReporter(legalStore, newsStore),
		closeFn:    closeAll,
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

func openSessionStore(
	ctx context.Context,
	cfg config.Config,
	recorder cache.LookupRecorder,
	closers *[]func(),
) (ports.SessionStore, error) {
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		store, err := memory.NewSessionStore(cfg.MaxMemorySessions, recorder)
		if err != nil {
			return nil, fmt.Errorf("memory session store: %w", err)
		}
		return store, nil
	}
	db, err := openPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}
	*closers = append(*closers, func() { _ = db.Close() })
	return postgres.NewSessionRepository(db), nil
}

func openPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := postgres.OpenDB(dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return db, nil
}

// openStores connects both collections and logs their size and a smoke
// search. An unreachable collection yields an unavailable store.
func openStores(
	ctx context.Context,
	cfg config.Config,
	executor *resilience.Executor,
	embeddings *usecase.EmbeddingProvider,
	logger *slog.Logger,
) (*usecase.DocumentStore, *usecase.DocumentStore) {
	legal := openStore(ctx, legalStoreName,
		qdrant.New(cfg.QdrantURL, cfg.LegalCollection, qdrant.WithExecutor(executor)),
		embeddings, cfg.SmokeQuery, probeTimeout, logger)
	news := openStore(ctx, newsStoreName,
		qdrant.New(cfg.QdrantURL, cfg.NewsCollection, qdrant.WithExecutor(executor)),
		embeddings, cfg.SmokeQuery, probeTimeout, logger)
	return legal, news
}

// openStore connects and probes one collection under its own deadline.
func openStore(
	ctx context.Context,
	name string,
	index ports.VectorIndex,
	embeddings *usecase.EmbeddingProvider,
	smokeQuery string,
	timeout time.Duration,
	logger *slog.Logger,
) *usecase.DocumentStore {
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	store := usecase.NewDocumentStore(probeCtx, name, index, embeddings, logger)
	store.Probe(probeCtx, smokeQuery)
	return store
}

func rewriteCompleter(
	cfg config.Config,
	generator *ollama.Generator,
	executor *resilience.Executor,
	logger *slog.Logger,
) ports.Completer {
	switch strings.ToLower(strings.TrimSpace(cfg.RewriteProvider)) {
	case "none", "rules":
		logger.Info("query_rewrite_provider", "provider", "rules")
		return nil
	case "openai":
		if strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
			logger.Warn("query_rewrite_provider_fallback", "provider", "openai", "reason", "OPENAI_API_KEY is empty")
			return generator
		}
		logger.Info("query_rewrite_provider", "provider", "openai", "model", cfg.OpenAIModel)
		return openai.NewCompleter(openai.Config{
			APIKey:   cfg.OpenAIAPIKey,
			BaseURL:  cfg.OpenAIBaseURL,
			Model:    cfg.OpenAIModel,
			Executor: executor,
		})
	default:
		logger.Info("query_rewrite_provider", "provider", "ollama", "model", cfg.OllamaGenModel)
		return generator
	}
}

// fanoutPublisher delivers each event to every publisher and joins failures.
type fanoutPublisher []ports.RetrievalEventPublisher

func (f fanoutPublisher) PublishRetrieval(ctx context.Context, event domain.RetrievalEvent) error {
	var errs []error
	for _, p := range f {
		if err := p.PublishRetrieval(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
