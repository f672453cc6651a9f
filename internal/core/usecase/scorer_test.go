package usecase

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/kirillkom/jeonse-legal-assistant/internal/core/domain"
)

func TestRelevanceScorerReturnsMaxCosine(t *testing.T) {
	embedder := &embedderFake{vectors: map[string][]float32{
		"q":    {1, 0},
		"near": {0.8, 0.6},
		"far":  {0, 1},
	}}
	s := NewRelevanceScorer(newTestEmbeddings(embedder, 2), 0.65, nil)

	got := s.Score(context.Background(), "q", []domain.Document{{Content: "far"}, {Content: "near"}})
	if math.Abs(got-0.8) > 1e-6 {
		t.Fatalf("expected max cosine 0.8, got %f", got)
	}
}

func TestRelevanceScorerEmptyDocuments(t *testing.T) {
	s := NewRelevanceScorer(newTestEmbeddings(&embedderFake{fallback: []float32{1}}, 1), 0.65, nil)
	if got := s.Score(context.Background(), "q", nil); got != 0 {
		t.Fatalf("expected 0 for empty set, got %f", got)
	}
}

func TestRelevanceScorerDimensionMismatchIsNeutral(t *testing.T) {
	embedder := &embedderFake{vectors: map[string][]float32{
		"q":   {1, 0, 0},
		"doc": {1, 0},
	}}
	s := NewRelevanceScorer(newTestEmbeddings(embedder, 0), 0.65, nil)

	if got := s.Score(context.Background(), "q", []domain.Document{{Content: "doc"}}); got != 0.65 {
		t.Fatalf("expected exactly 0.65, got %f", got)
	}
}

func TestRelevanceScorerEmbeddingFailureIsNeutral(t *testing.T) {
	embedder := &embedderFake{queryErr: errors.New("offline")}
	s := NewRelevanceScorer(newTestEmbeddings(embedder, 2), 0.65, nil)

	if got := s.Score(context.Background(), "q", []domain.Document{{Content: "doc"}}); got != 0.65 {
		t.Fatalf("expected neutral score, got %f", got)
	}
}

func TestRelevanceScorerClampsToUnitInterval(t *testing.T) {
	embedder := &embedderFake{vectors: map[string][]float32{
		"q":        {1, 0},
		"opposite": {-1, 0},
		"zero":     {0, 0},
	}}
	s := NewRelevanceScorer(newTestEmbeddings(embedder, 2), 0.65, nil)

	got := s.Score(context.Background(), "q", []domain.Document{{Content: "opposite"}, {Content: "zero"}})
	if got < 0 || got > 1 {
		t.Fatalf("score out of bounds: %f", got)
	}
	if got != 0 {
		t.Fatalf("expected 0 for opposite and zero vectors, got %f", got)
	}
}

func TestRelevanceScorerLimitsEmbeddedDocuments(t *testing.T) {
	embedder := &embedderFake{fallback: []float32{1, 1}}
	s := NewRelevanceScorer(newTestEmbeddings(embedder, 2), 0.65, nil)

	docs := make([]domain.Document, 0, 7)
	for i := 0; i < 7; i++ {
		docs = append(docs, domain.Document{Content: strings.Repeat("가", 2000)})
	}
	s.Score(context.Background(), "q", docs)

	if len(embedder.embedded) != scoreMaxDocuments {
		t.Fatalf("expected %d documents embedded, got %d", scoreMaxDocuments, len(embedder.embedded))
	}
	for _, text := range embedder.embedded {
		if n := utf8.RuneCountInString(text); n != scoreMaxRunes {
			t.Fatalf("expected documents truncated to %d runes, got %d", scoreMaxRunes, n)
		}
	}
}

func TestTruncateRunes(t *testing.T) {
	if got := truncateRunes("전세사기", 2); got != "전세" {
		t.Fatalf("unexpected truncation %q", got)
	}
	if got := truncateRunes("abc", 10); got != "abc" {
		t.Fatalf("unexpected truncation %q", got)
	}
}
