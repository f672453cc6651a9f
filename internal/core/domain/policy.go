package domain

// RetrievalPolicy holds the thresholds, depths and caps of the retrieval
// pipeline. Zero values are replaced by defaults when the orchestrator is built.
type RetrievalPolicy struct {
	LegalThreshold  float64
	NewsThreshold   float64
	MinRelevantDocs int
	LegalTopK       int
	NewsTopK        int
	LexicalTopK     int
	VectorWeight    float64
	LexicalWeight   float64
	ReorderAbove    int
	MaxLegalDocs    int
	MaxNewsDocs     int
	NeutralScore    float64
}

func DefaultRetrievalPolicy() RetrievalPolicy {
	return RetrievalPolicy{
		LegalThreshold:  0.7,
		NewsThreshold:   0.6,
		MinRelevantDocs: 3,
		LegalTopK:       5,
		NewsTopK:        4,
		LexicalTopK:     8,
		VectorWeight:    0.65,
		LexicalWeight:   0.35,
		ReorderAbove:    5,
		MaxLegalDocs:    8,
		MaxNewsDocs:     3,
		NeutralScore:    0.65,
	}
}

// WithDefaults fills every non-positive field from DefaultRetrievalPolicy.
func (p RetrievalPolicy) WithDefaults() RetrievalPolicy {
	d := DefaultRetrievalPolicy()
	if p.LegalThreshold <= 0 {
		p.LegalThreshold = d.LegalThreshold
	}
	if p.NewsThreshold <= 0 {
		p.NewsThreshold = d.NewsThreshold
	}
	if p.MinRelevantDocs <= 0 {
		p.MinRelevantDocs = d.MinRelevantDocs
	}
	if p.LegalTopK <= 0 {
		p.LegalTopK = d.LegalTopK
	}
	if p.NewsTopK <= 0 {
		p.NewsTopK = d.NewsTopK
	}
	if p.LexicalTopK <= 0 {
		p.LexicalTopK = d.LexicalTopK
	}
	if p.VectorWeight <= 0 && p.LexicalWeight <= 0 {
		p.VectorWeight, p.LexicalWeight = d.VectorWeight, d.LexicalWeight
	}
	if p.ReorderAbove <= 0 {
		p.ReorderAbove = d.ReorderAbove
	}
	if p.MaxLegalDocs <= 0 {
		p.MaxLegalDocs = d.MaxLegalDocs
	}
	if p.MaxNewsDocs <= 0 {
		p.MaxNewsDocs = d.MaxNewsDocs
	}
	if p.NeutralScore <= 0 || p.NeutralScore > 1 {
		p.NeutralScore = d.NeutralScore
	}
	return p
}
