package usecase

import (
	"sort"
	"strings"

	"github.com/kirillkom/jeonse-legal-assistant/internal/core/domain"
)

const defaultRRFConstant = 60

type fusedCandidate struct {
	doc   domain.Document
	score float64
	order int
}

// fuseWeightedRRF merges ranked lists with weighted reciprocal rank fusion:
// each list contributes weight/(rank+1+rrfK) per document. Documents are
// deduplicated by content and the first occurrence is kept.
func fuseWeightedRRF(lists [][]domain.Document, weights []float64, rrfK int) []domain.Document {
	if rrfK <= 0 {
		rrfK = defaultRRFConstant
	}

	acc := make(map[string]*fusedCandidate)
	for li, docs := range lists {
		weight := 1.0
		if li < len(weights) {
			weight = weights[li]
		}
		for rank, doc := range docs {
			key := fusionKey(doc)
			candidate, ok := acc[key]
			if !ok {
				candidate = &fusedCandidate{doc: doc, order: len(acc)}
				acc[key] = candidate
			} else {
				candidate.doc = preferRicherDocument(candidate.doc, doc)
			}
			candidate.score += weight / float64(rank+1+rrfK)
		}
	}

	ranked := make([]*fusedCandidate, 0, len(acc))
	for _, c := range acc {
		ranked = append(ranked, c)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].order < ranked[j].order
	})

	out := make([]domain.Document, 0, len(ranked))
	for _, c := range ranked {
		out = append(out, c.doc.WithScore(c.score))
	}
	return out
}

func trimDocuments(docs []domain.Document, limit int) []domain.Document {
	if limit <= 0 || len(docs) <= limit {
		return docs
	}
	return docs[:limit]
}

func fusionKey(doc domain.Document) string {
	return strings.TrimSpace(doc.Content)
}

func preferRicherDocument(current, candidate domain.Document) domain.Document {
	if current.ID == "" && candidate.ID != "" {
		current.ID = candidate.ID
	}
	if len(current.Metadata) == 0 && len(candidate.Metadata) > 0 {
		current.Metadata = candidate.Metadata
	}
	return current
}
