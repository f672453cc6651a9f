package usecase

import (
	"strings"

	"github.com/kirillkom/jeonse-legal-assistant/internal/core/domain"
)

const defaultMaxExpansionTerms = 3

// QueryExpander derives store-specific search queries. Expanded text is used
// for searching only and never for scoring.
type QueryExpander struct {
	rules         []domain.ExpansionRule
	maxTerms      int
	newsTriggers  []string
	newsQualifier string
}

func NewQueryExpander(vocab domain.Vocabulary) *QueryExpander {
	maxTerms := vocab.MaxExpansionTerms
	if maxTerms <= 0 {
		maxTerms = defaultMaxExpansionTerms
	}
	return &QueryExpander{
		rules:         vocab.ExpansionRules,
		maxTerms:      maxTerms,
		newsTriggers:  vocab.NewsTriggers,
		newsQualifier: strings.TrimSpace(vocab.NewsQualifier),
	}
}

// ExpandLegal appends up to maxTerms synonyms from matching rules, in rule
// order, skipping duplicates and terms the query already contains.
func (e *QueryExpander) ExpandLegal(query string) string {
	terms := e.LegalTerms(query)
	if len(terms) == 0 {
		return query
	}
	return query + " " + strings.Join(terms, " ")
}

func (e *QueryExpander) LegalTerms(query string) []string {
	seen := make(map[string]struct{})
	terms := make([]string, 0, e.maxTerms)
	for _, rule := range e.rules {
		if !domain.ContainsAny(query, rule.Triggers) {
			continue
		}
		for _, term := range rule.Terms {
			if len(terms) == e.maxTerms {
				return terms
			}
			if _, dup := seen[term]; dup || strings.Contains(query, term) {
				continue
			}
			seen[term] = struct{}{}
			terms = append(terms, term)
		}
	}
	return terms
}

// EnhanceNews appends the news qualifier when the query touches a news trigger.
func (e *QueryExpander) EnhanceNews(query string) string {
	if e.newsQualifier == "" || !domain.ContainsAny(query, e.newsTriggers) {
		return query
	}
	return query + " " + e.newsQualifier
}
