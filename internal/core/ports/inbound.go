package ports

import (
	"context"

	"github.com/kirillkom/jeonse-legal-assistant/internal/core/domain"
)

// LegalRetriever is the single retrieval entry point exposed by the core.
type LegalRetriever interface {
	Retrieve(ctx context.Context, query string) domain.RetrievalResult
}

// LegalChatService answers a question within a session.
type LegalChatService interface {
	Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatAnswer, error)
	History(ctx context.Context, sessionID string) ([]domain.SessionTurn, error)
	ClearHistory(ctx context.Context, sessionID string) error
}

// StoreHealth reports whether the legal and news stores are reachable.
type StoreHealth interface {
	Availability() map[string]bool
}
