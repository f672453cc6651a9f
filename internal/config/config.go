package config

import (
	"os"
	"strconv"
	"time"

	"github.com/kirillkom/jeonse-legal-assistant/internal/core/domain"
	"github.com/kirillkom/jeonse-legal-assistant/internal/infrastructure/resilience"
)

type Config struct {
	APIPort  string
	LogLevel string

	APIRateLimitRPS   float64
	APIRateLimitBurst int
	APIMaxInFlight    int
	APIMaxConnections int
	APIRequestTimeout time.Duration

	PostgresDSN string

	NATSURL     string
	NATSSubject string

	OllamaURL        string
	OllamaGenModel   string
	OllamaEmbedModel string
	EmbedDimensions  int

	RewriteProvider string
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	OpenAIModel     string

	QdrantURL       string
	LegalCollection string
	NewsCollection  string
	SmokeQuery      string

	VocabularyPath string

	Retrieval domain.RetrievalPolicy

	MaxChatHistory     int
	MaxMemorySessions  int
	TermCacheSize      int
	EmbeddingCacheSize int
	Resilience         resilience.Policy
	WorkerMetricsPort  string
	WorkerAuditTimeout time.Duration
}

func Load() Config {
	return Config{
		APIPort:  mustEnv("API_PORT", "8080"),
		LogLevel: mustEnv("LOG_LEVEL", "info"),

		APIRateLimitRPS:   mustEnvFloat("API_RATE_LIMIT_RPS", 20),
		APIRateLimitBurst: mustEnvInt("API_RATE_LIMIT_BURST", 40),
		APIMaxInFlight:    mustEnvInt("API_MAX_IN_FLIGHT", 32),
		APIMaxConnections: mustEnvInt("API_MAX_CONNECTIONS", 256),
		APIRequestTimeout: mustEnvDuration("API_REQUEST_TIMEOUT", 90*time.Second),

		// Empty disables Postgres; sessions then live in process memory.
		PostgresDSN: mustEnv("POSTGRES_DSN", ""),

		// Empty disables the retrieval event bus.
		NATSURL:     mustEnv("NATS_URL", ""),
		NATSSubject: mustEnv("NATS_SUBJECT", "legal.retrieval.events"),

		OllamaURL:        mustEnv("OLLAMA_URL", "http://localhost:11434"),
		OllamaGenModel:   mustEnv("OLLAMA_GEN_MODEL", "llama3.1:8b"),
		OllamaEmbedModel: mustEnv("OLLAMA_EMBED_MODEL", "jhgan/ko-sroberta-multitask"),
		EmbedDimensions:  mustEnvInt("EMBED_DIMENSIONS", 768),

		RewriteProvider: mustEnv("REWRITE_PROVIDER", "ollama"),
		OpenAIAPIKey:    mustEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:   mustEnv("OPENAI_BASE_URL", ""),
		OpenAIModel:     mustEnv("OPENAI_MODEL", "gpt-4o"),

		QdrantURL:       mustEnv("QDRANT_URL", "http://localhost:6333"),
		LegalCollection: mustEnv("LEGAL_COLLECTION", "legal_db"),
		NewsCollection:  mustEnv("NEWS_COLLECTION", "jeonse_fraud_embedding"),
		SmokeQuery:      mustEnv("STORE_SMOKE_QUERY", "전세"),

		VocabularyPath: mustEnv("VOCABULARY_PATH", ""),

		Retrieval: domain.RetrievalPolicy{
			LegalThreshold:  mustEnvFloat("LEGAL_SIMILARITY_THRESHOLD", 0.7),
			NewsThreshold:   mustEnvFloat("NEWS_SIMILARITY_THRESHOLD", 0.6),
			MinRelevantDocs: mustEnvInt("MIN_RELEVANT_DOCS", 3),
			LegalTopK:       mustEnvInt("LEGAL_TOP_K", 5),
			NewsTopK:        mustEnvInt("NEWS_TOP_K", 4),
			LexicalTopK:     mustEnvInt("LEXICAL_TOP_K", 8),
			VectorWeight:    mustEnvFloat("HYBRID_VECTOR_WEIGHT", 0.65),
			LexicalWeight:   mustEnvFloat("HYBRID_LEXICAL_WEIGHT", 0.35),
			ReorderAbove:    mustEnvInt("REORDER_ABOVE", 5),
			MaxLegalDocs:    mustEnvInt("MERGE_MAX_LEGAL", 8),
			MaxNewsDocs:     mustEnvInt("MERGE_MAX_NEWS", 3),
			NeutralScore:    mustEnvFloat("NEUTRAL_SCORE", 0.65),
		}.WithDefaults(),

		MaxChatHistory:     mustEnvInt("MAX_CHAT_HISTORY", 20),
		MaxMemorySessions:  mustEnvInt("MAX_MEMORY_SESSIONS", 1024),
		TermCacheSize:      mustEnvInt("TERM_CACHE_SIZE", 1024),
		EmbeddingCacheSize: mustEnvInt("EMBEDDING_CACHE_SIZE", 1024),

		Resilience: resilience.Policy{
			RetryMaxAttempts:        mustEnvInt("RESILIENCE_RETRY_MAX_ATTEMPTS", 3),
			RetryInitialBackoff:     mustEnvDuration("RESILIENCE_RETRY_INITIAL_BACKOFF", 100*time.Millisecond),
			RetryMaxBackoff:         mustEnvDuration("RESILIENCE_RETRY_MAX_BACKOFF", 400*time.Millisecond),
			RetryMultiplier:         mustEnvFloat("RESILIENCE_RETRY_MULTIPLIER", 2),
			BreakerEnabled:          mustEnvBool("RESILIENCE_BREAKER_ENABLED", true),
			BreakerMinRequests:      uint32(mustEnvInt("RESILIENCE_BREAKER_MIN_REQUESTS", 10)),
			BreakerFailureRatio:     mustEnvFloat("RESILIENCE_BREAKER_FAILURE_RATIO", 0.5),
			BreakerOpenTimeout:      mustEnvDuration("RESILIENCE_BREAKER_OPEN_TIMEOUT", 30*time.Second),
			BreakerHalfOpenMaxCalls: uint32(mustEnvInt("RESILIENCE_BREAKER_HALF_OPEN_MAX_CALLS", 2)),
		},

		WorkerMetricsPort:  mustEnv("WORKER_METRICS_PORT", "9090"),
		WorkerAuditTimeout: mustEnvDuration("WORKER_AUDIT_TIMEOUT", 5*time.Second),
	}
}

func mustEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func mustEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func mustEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
