package domain

import "time"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type SessionTurn struct {
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type ChatRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Question  string `json:"question"`
}

type ChatAnswer struct {
	SessionID  string     `json:"session_id"`
	Answer     string     `json:"answer"`
	Provenance Provenance `json:"provenance"`
	Sources    []Document `json:"sources"`
}
