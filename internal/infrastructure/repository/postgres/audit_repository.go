package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/kirillkom/jeonse-legal-assistant/internal/core/domain"
)

type RetrievalAuditRepository struct {
	db *sql.DB
}

func NewRetrievalAuditRepository(db *sql.DB) *RetrievalAuditRepository {
	return &RetrievalAuditRepository{db: db}
}

// SaveRetrievalEvent is idempotent by event id so redelivered messages are
// absorbed.
func (r *RetrievalAuditRepository) SaveRetrievalEvent(ctx context.Context, event domain.RetrievalEvent) error {
	if event.ID == "" {
		return domain.WrapError(domain.ErrInvalidInput, "save retrieval event", fmt.Errorf("event id is required"))
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO retrieval_audit (
	id, query, normalized_query, conversion_method, provenance,
	legal_score, news_score, legal_count, news_count, document_count,
	hybrid_used, news_searched, error_message, duration_ms, created_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
ON CONFLICT (id) DO NOTHING
`,
		event.ID,
		event.Query,
		event.NormalizedQuery,
		string(event.ConversionMethod),
		string(event.Provenance),
		event.LegalScore,
		event.NewsScore,
		event.LegalCount,
		event.NewsCount,
		event.DocumentCount,
		event.HybridUsed,
		event.NewsSearched,
		nullableString(event.Error),
		event.DurationMS,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save retrieval event: %w", err)
	}
	return nil
}
