package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/jeonse-legal-assistant/internal/core/domain"
	"github.com/kirillkom/jeonse-legal-assistant/internal/core/ports"
)

const eventPublishTimeout = 2 * time.Second

type queryNormalizer interface {
	Convert(ctx context.Context, query string) (string, domain.ConversionMethod)
}

type documentSearcher interface {
	Name() string
	Search(ctx context.Context, query string, k int) ([]domain.Document, error)
}

type hybridSearcher interface {
	Search(ctx context.Context, query string) ([]domain.Document, error)
}

type documentScorer interface {
	Score(ctx context.Context, query string, docs []domain.Document) float64
}

// RetrievalOrchestrator runs the conditional legal/news retrieval pipeline.
// Retrieve never returns an error and never panics; failures surface as the
// error provenance with an empty document list.
type RetrievalOrchestrator struct {
	normalizer queryNormalizer
	expander   *QueryExpander
	legal      documentSearcher
	news       documentSearcher
	hybrid     hybridSearcher
	scorer     documentScorer
	publisher  ports.RetrievalEventPublisher
	policy     domain.RetrievalPolicy
	logger     *slog.Logger
}

// NewRetrievalOrchestrator wires the pipeline. hybrid and publisher may be nil.
func NewRetrievalOrchestrator(
	normalizer queryNormalizer,
	expander *QueryExpander,
	legal documentSearcher,
	news documentSearcher,
	hybrid hybridSearcher,
	scorer documentScorer,
	publisher ports.RetrievalEventPublisher,
	policy domain.RetrievalPolicy,
	logger *slog.Logger,
) *RetrievalOrchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &RetrievalOrchestrator{
		normalizer: normalizer,
		expander:   expander,
		legal:      legal,
		news:       news,
		hybrid:     hybrid,
		scorer:     scorer,
		publisher:  publisher,
		policy:     policy.WithDefaults(),
		logger:     logger,
	}
}

func (o *RetrievalOrchestrator) Policy() domain.RetrievalPolicy {
	return o.policy
}

func (o *RetrievalOrchestrator) Retrieve(ctx context.Context, query string) (result domain.RetrievalResult) {
	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			result = failedRetrieval(result, fmt.Errorf("retrieval panic: %v", r))
		}
		o.report(ctx, result, time.Since(started))
	}()

	result.OriginalQuery = query
	if err := o.run(ctx, query, &result); err != nil {
		return failedRetrieval(result, err)
	}
	return result
}

func (o *RetrievalOrchestrator) run(ctx context.Context, query string, result *domain.RetrievalResult) error {
	normalized, method := o.normalizer.Convert(ctx, query)
	result.NormalizedQuery = normalized
	result.ConversionMethod = method
	if err := ctx.Err(); err != nil {
		return err
	}

	legalDocs, legalErr := o.searchLegal(ctx, o.expander.ExpandLegal(normalized), result)
	if err := ctx.Err(); err != nil {
		return err
	}
	legalDocs = trimDocuments(legalDocs, o.policy.MaxLegalDocs)
	if len(legalDocs) > 0 {
		result.LegalScore = o.scorer.Score(ctx, normalized, legalDocs)
	}
	if len(legalDocs) > o.policy.ReorderAbove {
		legalDocs = longContextReorder(legalDocs)
	}

	if legalErr == nil &&
		result.LegalScore >= o.policy.LegalThreshold &&
		len(legalDocs) >= o.policy.MinRelevantDocs {
		o.logger.Info("news_search_skipped", "legal_score", result.LegalScore, "legal_count", len(legalDocs))
		result.Documents = legalDocs
		result.LegalCount = len(legalDocs)
		result.Provenance = domain.ProvenanceLegalOnly
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	newsQuery := o.expander.EnhanceNews(normalized)
	result.NewsSearched = true
	newsDocs, newsErr := o.news.Search(ctx, newsQuery, o.policy.NewsTopK)
	if newsErr != nil {
		o.logger.Warn("news_search_failed", "store", o.news.Name(), "error", newsErr)
		newsDocs = nil
	} else if len(newsDocs) > 0 {
		result.NewsScore = o.scorer.Score(ctx, newsQuery, newsDocs)
	}
	if legalErr != nil && newsErr != nil {
		return errors.Join(legalErr, newsErr)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	merged := make([]domain.Document, 0, len(legalDocs)+o.policy.MaxNewsDocs)
	merged = append(merged, legalDocs...)
	result.LegalCount = len(legalDocs)
	if len(newsDocs) > 0 && result.NewsScore >= o.policy.NewsThreshold {
		news := trimDocuments(newsDocs, o.policy.MaxNewsDocs)
		merged = append(merged, news...)
		result.NewsCount = len(news)
	}

	result.Documents = merged
	switch {
	case result.NewsCount > 0:
		result.Provenance = domain.ProvenanceLegalAndNews
	case result.LegalCount > 0:
		result.Provenance = domain.ProvenanceLegalOnly
	default:
		result.Provenance = domain.ProvenanceNoResults
	}
	return nil
}

// searchLegal runs the vector search and escalates to the hybrid retriever
// when too few documents come back. The hybrid set replaces the vector set
// only when it is strictly larger.
func (o *RetrievalOrchestrator) searchLegal(ctx context.Context, query string, result *domain.RetrievalResult) ([]domain.Document, error) {
	docs, err := o.legal.Search(ctx, query, o.policy.LegalTopK)
	if err != nil {
		o.logger.Warn("legal_search_failed", "store", o.legal.Name(), "error", err)
		docs = nil
	}

	if len(docs) < o.policy.MinRelevantDocs && o.hybrid != nil && ctx.Err() == nil {
		hybridDocs, hybridErr := o.hybrid.Search(ctx, query)
		switch {
		case hybridErr != nil:
			o.logger.Warn("hybrid_search_unavailable", "error", hybridErr)
		case len(hybridDocs) > len(docs):
			docs = hybridDocs
			result.HybridUsed = true
			err = nil
		}
	}

	o.logger.Info("legal_search_completed",
		"query", query,
		"documents", len(docs),
		"hybrid", result.HybridUsed,
	)
	return docs, err
}

func failedRetrieval(result domain.RetrievalResult, err error) domain.RetrievalResult {
	result.Documents = []domain.Document{}
	result.Provenance = domain.ProvenanceError
	result.LegalCount = 0
	result.NewsCount = 0
	result.Error = err.Error()
	return result
}

func (o *RetrievalOrchestrator) report(ctx context.Context, result domain.RetrievalResult, elapsed time.Duration) {
	attrs := []any{
		"provenance", result.Provenance,
		"conversion_method", result.ConversionMethod,
		"legal_score", result.LegalScore,
		"news_score", result.NewsScore,
		"legal_count", result.LegalCount,
		"news_count", result.NewsCount,
		"hybrid_used", result.HybridUsed,
		"news_searched", result.NewsSearched,
		"duration_ms", elapsed.Milliseconds(),
	}
	if result.Provenance == domain.ProvenanceError {
		o.logger.Error("retrieval_failed", append(attrs, "error", result.Error)...)
	} else {
		o.logger.Info("retrieval_completed", attrs...)
	}

	if o.publisher == nil {
		return
	}
	event := domain.RetrievalEvent{
		ID:               uuid.NewString(),
		Query:            result.OriginalQuery,
		NormalizedQuery:  result.NormalizedQuery,
		ConversionMethod: result.ConversionMethod,
		Provenance:       result.Provenance,
		LegalScore:       result.LegalScore,
		NewsScore:        result.NewsScore,
		LegalCount:       result.LegalCount,
		NewsCount:        result.NewsCount,
		DocumentCount:    len(result.Documents),
		HybridUsed:       result.HybridUsed,
		NewsSearched:     result.NewsSearched,
		Error:            result.Error,
		DurationMS:       float64(elapsed.Microseconds()) / 1000,
		CreatedAt:        time.Now().UTC(),
	}
	publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), eventPublishTimeout)
	defer cancel()
	if err := o.publisher.PublishRetrieval(publishCtx, event); err != nil {
		o.logger.Warn("retrieval_event_publish_failed", "event_id", event.ID, "error", err)
	}
}
