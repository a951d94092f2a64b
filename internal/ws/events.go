package ws

import (
	"encoding/json"

	"github.com/collab-code-share/backend/internal/model"
)

// EventType identifies a realtime protocol event.
type EventType string

const (
	// Client -> Server event types
	EventJoinSession  EventType = "join-session"
	EventCodeChange   EventType = "code-change" // also relayed server -> others
	EventCursorChange EventType = "cursor-change"

	// Server -> Client event types
	EventSessionInit     EventType = "session-init"
	EventUserJoined      EventType = "user-joined"
	EventUserLeft        EventType = "user-left"
	EventExecutionResult EventType = "execution-result"
	EventError           EventType = "error"
)

// Event is the wire format for all realtime protocol events. Fields
// not used by a given event type are omitted from the payload, except
// code: an empty buffer is a legitimate value and is always carried
// explicitly.
type Event struct {
	Type      EventType              `json:"type"`
	SessionID string                 `json:"sessionId,omitempty"`
	Language  string                 `json:"language,omitempty"`
	Code      string                 `json:"code"`
	UserID    string                 `json:"userId,omitempty"`
	Cursor    json.RawMessage        `json:"cursor,omitempty"`
	Color     string                 `json:"color,omitempty"`
	Result    *model.ExecutionResult `json:"result,omitempty"`
	Error     string                 `json:"error,omitempty"`
}
