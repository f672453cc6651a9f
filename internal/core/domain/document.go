package domain

import "maps"

// Document is a retrieved legal text or news article. Metadata is cloned when
// the document is built and is treated as read-only afterwards.
type Document struct {
	ID       string         `json:"id,omitempty"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Score    float64        `json:"score,omitempty"`
}

func NewDocument(id, content string, metadata map[string]any) Document {
	return Document{
		ID:       id,
		Content:  content,
		Metadata: maps.Clone(metadata),
	}
}

// MetaString returns a metadata value rendered as a string, or "" when absent.
func (d Document) MetaString(key string) string {
	v, ok := d.Metadata[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmtAny(v)
}

// WithScore returns a copy carrying a new score. Metadata is shared, never written.
func (d Document) WithScore(score float64) Document {
	d.Score = score
	return d
}
