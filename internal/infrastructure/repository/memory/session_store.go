// Package memory holds process-local repositories used when no database is
// configured.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/kirillkom/jeonse-legal-assistant/internal/core/domain"
	"github.com/kirillkom/jeonse-legal-assistant/internal/infrastructure/cache"
)

const sessionCacheName = "sessions"

// SessionStore keeps chat history for at most maxSessions sessions; the least
// recently used session is dropped first.
type SessionStore struct {
	mu       sync.Mutex
	sessions *cache.LRU[string, []domain.SessionTurn]
}

func NewSessionStore(maxSessions int, recorder cache.LookupRecorder) (*SessionStore, error) {
	sessions, err := cache.NewLRU(sessionCacheName, maxSessions,
		cache.WithClone[string, []domain.SessionTurn](slices.Clone[[]domain.SessionTurn]),
		cache.WithRecorder[string, []domain.SessionTurn](recorder),
	)
	if err != nil {
		return nil, err
	}
	return &SessionStore{sessions: sessions}, nil
}

func (s *SessionStore) AppendTurns(_ context.Context, sessionID string, turns []domain.SessionTurn, keep int) error {
	if len(turns) == 0 {
		return nil
	}
	now := time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	history, _ := s.sessions.Get(sessionID)
	for _, turn := range turns {
		turn.SessionID = sessionID
		if turn.CreatedAt.IsZero() {
			turn.CreatedAt = now
		}
		history = append(history, turn)
	}
	if keep > 0 && len(history) > keep {
		history = history[len(history)-keep:]
	}
	s.sessions.Add(sessionID, history)
	return nil
}

func (s *SessionStore) RecentTurns(_ context.Context, sessionID string, limit int) ([]domain.SessionTurn, error) {
	if limit <= 0 {
		return nil, nil
	}
	s.mu.Lock()
	history, _ := s.sessions.Get(sessionID)
	s.mu.Unlock()
	if len(history) > limit {
		history = history[len(history)-limit:]
	}
	return history, nil
}

func (s *SessionStore) ClearSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	s.sessions.Remove(sessionID)
	s.mu.Unlock()
	return nil
}

func (s *SessionStore) Len() int {
	return s.sessions.Len()
}
