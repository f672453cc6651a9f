package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/kirillkom/jeonse-legal-assistant/internal/core/domain"
)

type SessionRepository struct {
	db *sql.DB
}

func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// AppendTurns inserts the turns and drops everything older than the newest
// keep turns of the session. keep <= 0 disables trimming.
func (r *SessionRepository) AppendTurns(ctx context.Context, sessionID string, turns []domain.SessionTurn, keep int) error {
	if len(turns) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC()
	for _, turn := range turns {
		createdAt := turn.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO session_turns (session_id, role, content, created_at)
VALUES ($1,$2,$3,$4)
`, sessionID, turn.Role, turn.Content, createdAt); err != nil {
			return fmt.Errorf("append session turn: %w", err)
		}
	}

	if keep > 0 {
		if _, err := tx.ExecContext(ctx, `
DELETE FROM session_turns
WHERE session_id = $1 AND id NOT IN (
	SELECT id FROM session_turns WHERE session_id = $1 ORDER BY id DESC LIMIT $2
)
`, sessionID, keep); err != nil {
			return fmt.Errorf("trim session turns: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append tx: %w", err)
	}
	return nil
}

func (r *SessionRepository) RecentTurns(ctx context.Context, sessionID string, limit int) ([]domain.SessionTurn, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT session_id, role, content, created_at
FROM session_turns
WHERE session_id = $1
ORDER BY id DESC
LIMIT $2
`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent turns: %w", err)
	}
	defer rows.Close()

	out := make([]domain.SessionTurn, 0, limit)
	for rows.Next() {
		var turn domain.SessionTurn
		if err := rows.Scan(&turn.SessionID, &turn.Role, &turn.Content, &turn.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan session turn: %w", err)
		}
		out = append(out, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session turns: %w", err)
	}

	// Returned in descending order from SQL; reverse to keep chronological order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (r *SessionRepository) ClearSession(ctx context.Context, sessionID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM session_turns WHERE session_id = $1`, sessionID); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
