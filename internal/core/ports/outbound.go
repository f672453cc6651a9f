package ports

import (
	"context"

	"github.com/kirillkom/jeonse-legal-assistant/internal/core/domain"
)

// Embedder builds vectors for documents and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex is one persisted collection of the vector store backend.
type VectorIndex interface {
	Search(ctx context.Context, queryVector []float32, limit int) ([]domain.Document, error)
	ScrollAll(ctx context.Context) ([]domain.Document, error)
	Count(ctx context.Context) (int, error)
	// VectorSize probes the collection and returns its configured dimensionality.
	VectorSize(ctx context.Context) (int, error)
}

// Completer is a single-turn prompt-in/text-out language model.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// AnswerGenerator composes the final conversational answer.
type AnswerGenerator interface {
	GenerateAnswer(ctx context.Context, question string, history []domain.SessionTurn, contextText string) (string, error)
}

// Cache is a bounded key/value cache safe for concurrent use.
type Cache[K comparable, V any] interface {
	Get(key K) (V, bool)
	Add(key K, value V)
	Len() int
}

// SessionStore keeps bounded per-session chat history.
type SessionStore interface {
	AppendTurns(ctx context.Context, sessionID string, turns []domain.SessionTurn, keep int) error
	RecentTurns(ctx context.Context, sessionID string, limit int) ([]domain.SessionTurn, error)
	ClearSession(ctx context.Context, sessionID string) error
}

// RetrievalEventPublisher emits retrieval observability events.
type RetrievalEventPublisher interface {
	PublishRetrieval(ctx context.Context, event domain.RetrievalEvent) error
}

// RetrievalAuditStore persists retrieval events.
type RetrievalAuditStore interface {
	SaveRetrievalEvent(ctx context.Context, event domain.RetrievalEvent) error
}
