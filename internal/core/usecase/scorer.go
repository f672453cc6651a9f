package usecase

import (
	"context"
	"log/slog"
	"math"

	"github.com/kirillkom/jeonse-legal-assistant/internal/core/domain"
)

const (
	scoreMaxDocuments = 5
	scoreMaxRunes     = 1500
)

// RelevanceScorer estimates how well a result set answers a query as the best
// cosine similarity between the query and the leading documents.
type RelevanceScorer struct {
	embeddings *EmbeddingProvider
	neutral    float64
	logger     *slog.Logger
}

func NewRelevanceScorer(embeddings *EmbeddingProvider, neutral float64, logger *slog.Logger) *RelevanceScorer {
	if logger == nil {
		logger = slog.Default()
	}
	if neutral <= 0 || neutral > 1 {
		neutral = domain.DefaultRetrievalPolicy().NeutralScore
	}
	return &RelevanceScorer{embeddings: embeddings, neutral: neutral, logger: logger}
}

// Score is always within [0,1]. An empty set scores 0; when vectors cannot be
// produced or their sizes disagree the neutral score is returned.
func (s *RelevanceScorer) Score(ctx context.Context, query string, docs []domain.Document) float64 {
	if len(docs) == 0 {
		return 0
	}

	queryVector, err := s.embeddings.EmbedQuery(ctx, query)
	if err != nil {
		s.logger.Warn("relevance_score_neutral", "reason", "query_embedding_failed", "error", err)
		return s.neutral
	}

	head := trimDocuments(docs, scoreMaxDocuments)
	texts := make([]string, 0, len(head))
	for _, doc := range head {
		texts = append(texts, truncateRunes(doc.Content, scoreMaxRunes))
	}
	docVectors, err := s.embeddings.EmbedDocuments(ctx, texts)
	if err != nil {
		s.logger.Warn("relevance_score_neutral", "reason", "document_embedding_failed", "error", err)
		return s.neutral
	}

	best := 0.0
	for _, vector := range docVectors {
		if len(vector) != len(queryVector) {
			s.logger.Warn("relevance_score_neutral",
				"reason", "dimension_mismatch",
				"query_dim", len(queryVector),
				"document_dim", len(vector),
			)
			return s.neutral
		}
		if sim := cosineSimilarity(queryVector, vector); sim > best {
			best = sim
		}
	}
	return clampUnit(best)
}

// cosineSimilarity expects equal lengths; a zero-norm vector yields 0.
func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func clampUnit(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == limit {
			return s[:i]
		}
		count++
	}
	return s
}
