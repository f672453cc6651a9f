package domain

import "time"

// Provenance classifies where the documents of a retrieval result came from.
type Provenance string

const (
	ProvenanceLegalOnly    Provenance = "legal_only"
	ProvenanceLegalAndNews Provenance = "legal_and_news"
	ProvenanceNoResults    Provenance = "no_results"
	ProvenanceError        Provenance = "error"
)

// ConversionMethod reports how a user query was turned into legal phrasing.
type ConversionMethod string

const (
	ConversionNone   ConversionMethod = "no_conversion"
	ConversionCached ConversionMethod = "cached"
	ConversionRules  ConversionMethod = "rule_based"
	ConversionLM     ConversionMethod = "gpt_converted"
	ConversionError  ConversionMethod = "error"
)

// RetrievalResult is the final, presentation-ordered output of the pipeline.
type RetrievalResult struct {
	Documents        []Document       `json:"documents"`
	Provenance       Provenance       `json:"provenance"`
	LegalScore       float64          `json:"legal_score"`
	NewsScore        float64          `json:"news_score"`
	OriginalQuery    string           `json:"original_query"`
	NormalizedQuery  string           `json:"normalized_query"`
	ConversionMethod ConversionMethod `json:"conversion_method"`
	HybridUsed       bool             `json:"hybrid_used"`
	NewsSearched     bool             `json:"news_searched"`
	LegalCount       int              `json:"legal_count"`
	NewsCount        int              `json:"news_count"`
	Error            string           `json:"error,omitempty"`
}

// RetrievalEvent is the structured observability record emitted per retrieval.
type RetrievalEvent struct {
	ID               string           `json:"id"`
	Query            string           `json:"query"`
	NormalizedQuery  string           `json:"normalized_query"`
	ConversionMethod ConversionMethod `json:"conversion_method"`
	Provenance       Provenance       `json:"provenance"`
	LegalScore       float64          `json:"legal_score"`
	NewsScore        float64          `json:"news_score"`
	LegalCount       int              `json:"legal_count"`
	NewsCount        int              `json:"news_count"`
	DocumentCount    int              `json:"document_count"`
	HybridUsed       bool             `json:"hybrid_used"`
	NewsSearched     bool             `json:"news_searched"`
	Error            string           `json:"error,omitempty"`
	DurationMS       float64          `json:"duration_ms"`
	CreatedAt        time.Time        `json:"created_at"`
}
