package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/jeonse-legal-assistant/internal/core/domain"
	"github.com/kirillkom/jeonse-legal-assistant/internal/core/ports"
)

const (
	defaultMaxChatHistory = 20
	contextSnippetRunes   = 500
	noContextText         = "관련 자료를 찾을 수 없습니다."
)

// LegalChatUseCase answers a question with retrieved context and keeps a
// bounded per-session history.
type LegalChatUseCase struct {
	retriever  ports.LegalRetriever
	generator  ports.AnswerGenerator
	sessions   ports.SessionStore
	maxHistory int
	logger     *slog.Logger
}

func NewLegalChatUseCase(
	retriever ports.LegalRetriever,
	generator ports.AnswerGenerator,
	sessions ports.SessionStore,
	maxHistory int,
	logger *slog.Logger,
) *LegalChatUseCase {
	if maxHistory <= 0 {
		maxHistory = defaultMaxChatHistory
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LegalChatUseCase{
		retriever:  retriever,
		generator:  generator,
		sessions:   sessions,
		maxHistory: maxHistory,
		logger:     logger,
	}
}

func (uc *LegalChatUseCase) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatAnswer, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "chat", fmt.Errorf("question is required"))
	}
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	history, err := uc.sessions.RecentTurns(ctx, sessionID, uc.maxHistory)
	if err != nil {
		return nil, fmt.Errorf("load session history: %w", err)
	}

	result := uc.retriever.Retrieve(ctx, question)
	answer, err := uc.generator.GenerateAnswer(ctx, question, history, FormatDocuments(result.Documents))
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	now := time.Now().UTC()
	turns := []domain.SessionTurn{
		{SessionID: sessionID, Role: domain.RoleUser, Content: question, CreatedAt: now},
		{SessionID: sessionID, Role: domain.RoleAssistant, Content: answer, CreatedAt: now},
	}
	if err := uc.sessions.AppendTurns(ctx, sessionID, turns, uc.maxHistory); err != nil {
		uc.logger.Warn("session_append_failed", "session_id", sessionID, "error", err)
	}

	return &domain.ChatAnswer{
		SessionID:  sessionID,
		Answer:     answer,
		Provenance: result.Provenance,
		Sources:    result.Documents,
	}, nil
}

func (uc *LegalChatUseCase) History(ctx context.Context, sessionID string) ([]domain.SessionTurn, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "history", fmt.Errorf("session_id is required"))
	}
	turns, err := uc.sessions.RecentTurns(ctx, sessionID, uc.maxHistory)
	if err != nil {
		return nil, fmt.Errorf("load session history: %w", err)
	}
	return turns, nil
}

func (uc *LegalChatUseCase) ClearHistory(ctx context.Context, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return domain.WrapError(domain.ErrInvalidInput, "clear history", fmt.Errorf("session_id is required"))
	}
	if err := uc.sessions.ClearSession(ctx, sessionID); err != nil {
		return fmt.Errorf("clear session history: %w", err)
	}
	return nil
}

// FormatDocuments renders retrieved documents as numbered context snippets.
func FormatDocuments(docs []domain.Document) string {
	if len(docs) == 0 {
		return noContextText
	}
	parts := make([]string, 0, len(docs))
	for i, doc := range docs {
		parts = append(parts, fmt.Sprintf("[%d] %s...", i+1, truncateRunes(doc.Content, contextSnippetRunes)))
	}
	return strings.Join(parts, "\n\n")
}
