package model

import "time"

// DefaultLanguage is assigned to sessions created without a language tag.
const DefaultLanguage = "javascript"

// Session represents a shared collaborative code buffer.
type Session struct {
	ID        string    `json:"id"`
	Language  string    `json:"language"`
	Code      string    `json:"code"`
	CreatedAt time.Time `json:"createdAt"`
}

// CreateSessionRequest represents a request to create a new session.
// Both fields are optional; an empty language falls back to DefaultLanguage.
type CreateSessionRequest struct {
	Language string `json:"language"`
	Code     string `json:"code"`
}

// SessionPatch carries the fields an update may merge into a session.
// Nil fields are left untouched; last write wins.
type SessionPatch struct {
	Language *string
	Code     *string
}
