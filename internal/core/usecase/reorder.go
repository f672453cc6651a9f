package usecase

import "github.com/kirillkom/jeonse-legal-assistant/internal/core/domain"

// longContextReorder places the most relevant documents at both ends of the
// sequence and the least relevant in the middle. Input must be ordered by
// relevance, best first.
func longContextReorder(docs []domain.Document) []domain.Document {
	out := make([]domain.Document, 0, len(docs))
	for step, i := 0, len(docs)-1; i >= 0; step, i = step+1, i-1 {
		if step%2 == 1 {
			out = append(out, docs[i])
			continue
		}
		out = append([]domain.Document{docs[i]}, out...)
	}
	return out
}
