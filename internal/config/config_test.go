package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/jeonse-legal-assistant/internal/core/domain"
)

func TestLoadIncludesRetrievalDefaults(t *testing.T) {
	t.Setenv("LEGAL_SIMILARITY_THRESHOLD", "")
	t.Setenv("NEWS_SIMILARITY_THRESHOLD", "")
	t.Setenv("MERGE_MAX_LEGAL", "")
	t.Setenv("LEGAL_COLLECTION", "")
	t.Setenv("NEWS_COLLECTION", "")

	cfg := Load()
	if cfg.Retrieval != domain.DefaultRetrievalPolicy() {
		t.Fatalf("expected default retrieval policy, got %+v", cfg.Retrieval)
	}
	if cfg.LegalCollection != "legal_db" {
		t.Fatalf("expected default legal collection legal_db, got %q", cfg.LegalCollection)
	}
	if cfg.NewsCollection != "jeonse_fraud_embedding" {
		t.Fatalf("expected default news collection, got %q", cfg.NewsCollection)
	}
	if cfg.MaxChatHistory != 20 {
		t.Fatalf("expected default chat history 20, got %d", cfg.MaxChatHistory)
	}
	if cfg.MaxMemorySessions != 1024 {
		t.Fatalf("expected default memory session cap 1024, got %d", cfg.MaxMemorySessions)
	}
}

func TestLoadParsesRetrievalOverrides(t *testing.T) {
	t.Setenv("LEGAL_SIMILARITY_THRESHOLD", "0.8")
	t.Setenv("NEWS_TOP_K", "6")
	t.Setenv("HYBRID_VECTOR_WEIGHT", "0.5")
	t.Setenv("HYBRID_LEXICAL_WEIGHT", "0.5")
	t.Setenv("API_REQUEST_TIMEOUT", "15s")
	t.Setenv("RESILIENCE_BREAKER_ENABLED", "false")

	cfg := Load()
	if cfg.Retrieval.LegalThreshold != 0.8 {
		t.Fatalf("expected legal threshold 0.8, got %f", cfg.Retrieval.LegalThreshold)
	}
	if cfg.Retrieval.NewsTopK != 6 {
		t.Fatalf("expected news top k 6, got %d", cfg.Retrieval.NewsTopK)
	}
	if cfg.Retrieval.VectorWeight != 0.5 || cfg.Retrieval.LexicalWeight != 0.5 {
		t.Fatalf("expected weights 0.5/0.5, got %f/%f", cfg.Retrieval.VectorWeight, cfg.Retrieval.LexicalWeight)
	}
	if cfg.APIRequestTimeout != 15*time.Second {
		t.Fatalf("expected request timeout 15s, got %s", cfg.APIRequestTimeout)
	}
	if cfg.Resilience.BreakerEnabled {
		t.Fatalf("expected breaker disabled")
	}
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("NEUTRAL_SCORE", "high")
	t.Setenv("API_REQUEST_TIMEOUT", "-1s")
	t.Setenv("MIN_RELEVANT_DOCS", "three")

	cfg := Load()
	if cfg.Retrieval.NeutralScore != 0.65 {
		t.Fatalf("expected neutral score fallback 0.65, got %f", cfg.Retrieval.NeutralScore)
	}
	if cfg.APIRequestTimeout != 90*time.Second {
		t.Fatalf("expected timeout fallback, got %s", cfg.APIRequestTimeout)
	}
	if cfg.Retrieval.MinRelevantDocs != 3 {
		t.Fatalf("expected min relevant docs fallback 3, got %d", cfg.Retrieval.MinRelevantDocs)
	}
}

func TestLoadVocabularyDefault(t *testing.T) {
	vocab, err := LoadVocabulary("")
	if err != nil {
		t.Fatalf("load default vocabulary: %v", err)
	}
	if vocab.MaxExpansionTerms != 3 {
		t.Fatalf("expected max expansion terms 3, got %d", vocab.MaxExpansionTerms)
	}
	if vocab.NewsQualifier != "전세사기" {
		t.Fatalf("unexpected news qualifier %q", vocab.NewsQualifier)
	}
	if len(vocab.ExampleQuestions) != 5 {
		t.Fatalf("expected 5 example questions, got %d", len(vocab.ExampleQuestions))
	}

	// 계약서 must be listed before 계약 so the longer phrase wins.
	idxOf := func(from string) int {
		for i, m := range vocab.TermMappings {
			if m.From == from {
				return i
			}
		}
		return -1
	}
	if idxOf("계약서") < 0 || idxOf("계약서") > idxOf("계약") {
		t.Fatalf("expected 계약서 mapping before 계약")
	}
	if idxOf("집 나가라") < 0 {
		t.Fatalf("expected multi-word mapping to be parsed")
	}
}

func TestLoadVocabularyFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vocab.yaml")
	content := strings.Join([]string{
		"legal_indicators: [임대인]",
		"term_mappings:",
		"  - { from: 집주인, to: 임대인 }",
		"news_triggers: [전세]",
		"news_qualifier: 전세사기",
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write vocabulary: %v", err)
	}

	vocab, err := LoadVocabulary(path)
	if err != nil {
		t.Fatalf("load vocabulary: %v", err)
	}
	if len(vocab.TermMappings) != 1 || vocab.TermMappings[0].To != "임대인" {
		t.Fatalf("unexpected mappings: %+v", vocab.TermMappings)
	}
	if vocab.MaxExpansionTerms != 3 {
		t.Fatalf("expected default expansion cap, got %d", vocab.MaxExpansionTerms)
	}
}

func TestParseVocabularyRejectsInvalid(t *testing.T) {
	_, err := ParseVocabulary([]byte("term_mappings:\n  - { from: 집주인, to: 임대인 }\n"))
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for missing indicators, got %v", err)
	}
	_, err = ParseVocabulary([]byte("legal_indicators: [a\n"))
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for malformed yaml, got %v", err)
	}
}
