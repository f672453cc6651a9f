package domain

import (
	"fmt"
	"strings"
)

// TermMapping rewrites one colloquial phrase into its legal form.
type TermMapping struct {
	From string `yaml:"from" json:"from"`
	To   string `yaml:"to" json:"to"`
}

// ExpansionRule appends Terms to the legal search query when any trigger occurs.
type ExpansionRule struct {
	Triggers []string `yaml:"triggers" json:"triggers"`
	Terms    []string `yaml:"terms" json:"terms"`
}

// Vocabulary is the configurable term data used by query normalization,
// legal query expansion and news query enhancement. Slice order is significant.
type Vocabulary struct {
	LegalIndicators   []string        `yaml:"legal_indicators" json:"legal_indicators"`
	TermMappings      []TermMapping   `yaml:"term_mappings" json:"term_mappings"`
	ExpansionRules    []ExpansionRule `yaml:"expansion_rules" json:"expansion_rules"`
	MaxExpansionTerms int             `yaml:"max_expansion_terms" json:"max_expansion_terms"`
	NewsTriggers      []string        `yaml:"news_triggers" json:"news_triggers"`
	NewsQualifier     string          `yaml:"news_qualifier" json:"news_qualifier"`
	ExampleQuestions  []string        `yaml:"example_questions" json:"example_questions"`
}

func (v Vocabulary) Validate() error {
	if len(v.LegalIndicators) == 0 {
		return WrapError(ErrInvalidInput, "validate vocabulary", fmt.Errorf("legal_indicators is empty"))
	}
	for i, m := range v.TermMappings {
		if strings.TrimSpace(m.From) == "" || strings.TrimSpace(m.To) == "" {
			return WrapError(ErrInvalidInput, "validate vocabulary", fmt.Errorf("term_mappings[%d] has empty side", i))
		}
	}
	for i, r := range v.ExpansionRules {
		if len(r.Triggers) == 0 || len(r.Terms) == 0 {
			return WrapError(ErrInvalidInput, "validate vocabulary", fmt.Errorf("expansion_rules[%d] needs triggers and terms", i))
		}
	}
	if v.MaxExpansionTerms < 0 {
		return WrapError(ErrInvalidInput, "validate vocabulary", fmt.Errorf("max_expansion_terms must not be negative"))
	}
	return nil
}

// ContainsAny reports whether text contains at least one of the terms as a substring.
func ContainsAny(text string, terms []string) bool {
	for _, term := range terms {
		if term != "" && strings.Contains(text, term) {
			return true
		}
	}
	return false
}
