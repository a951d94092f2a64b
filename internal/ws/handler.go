package ws

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/collab-code-share/backend/internal/model"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 1 << 20
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// SetCheckOrigin sets a custom origin checker for the WebSocket upgrader.
func SetCheckOrigin(fn func(r *http.Request) bool) {
	upgrader.CheckOrigin = fn
}

// SessionStore is the registry surface the relay needs: snapshot reads
// on join and buffer writes on code changes.
type SessionStore interface {
	Get(id string) (model.Session, error)
	Update(id string, patch model.SessionPatch) (model.Session, error)
}

// Handler routes realtime protocol events between connected
// participants and the session store.
type Handler struct {
	hub   *Hub
	store SessionStore
}

// NewHandler creates a Handler broadcasting through hub.
func NewHandler(hub *Hub, store SessionStore) *Handler {
	return &Handler{
		hub:   hub,
		store: store,
	}
}

// Hub returns the hub this handler broadcasts through.
func (h *Handler) Hub() *Hub {
	return h.hub
}

// HandleConnection upgrades the HTTP request and starts the read and
// write pumps for the new participant.
func (h *Handler) HandleConnection(w http.ResponseWriter, r *http.Request) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	client := NewClient(uuid.NewString(), conn)

	go h.writePump(client)
	go h.readPump(client)

	return nil
}

// BroadcastExecutionResult fans an execution outcome out to every
// member of the session's room, requester included.
func (h *Handler) BroadcastExecutionResult(sessionID, language string, result *model.ExecutionResult) {
	h.hub.Broadcast(sessionID, &Event{
		Type:      EventExecutionResult,
		SessionID: sessionID,
		Language:  language,
		Result:    result,
	})
}

// HandleEvent processes one inbound event from a client.
func (h *Handler) HandleEvent(client *Client, ev *Event) {
	switch ev.Type {
	case EventJoinSession:
		h.handleJoin(client, ev)
	case EventCodeChange:
		h.handleCodeChange(client, ev)
	case EventCursorChange:
		h.handleCursorChange(client, ev)
	}
}

// handleJoin subscribes the client to a session's room. The joiner
// gets the authoritative buffer snapshot; everyone else in the room
// gets a presence notice.
func (h *Handler) handleJoin(client *Client, ev *Event) {
	if ev.SessionID == "" {
		return
	}

	session, err := h.store.Get(ev.SessionID)
	if err != nil {
		h.sendError(client, "session not found")
		return
	}

	room := h.hub.Join(client, session.ID)

	h.sendEvent(client, &Event{
		Type:     EventSessionInit,
		Language: session.Language,
		Code:     session.Code,
	})
	room.BroadcastExcept(client, &Event{
		Type:   EventUserJoined,
		UserID: client.ID(),
	})
}

// handleCodeChange accepts a full replacement buffer, stores it, and
// relays it verbatim to the other room members. Last write wins:
// concurrent changes within one propagation window overwrite each
// other with no merge.
func (h *Handler) handleCodeChange(client *Client, ev *Event) {
	if ev.SessionID == "" {
		return
	}

	code := ev.Code
	if _, err := h.store.Update(ev.SessionID, model.SessionPatch{Code: &code}); err != nil {
		h.sendError(client, "session not found")
		return
	}

	room := h.hub.Get(ev.SessionID)
	if room == nil {
		return
	}
	room.BroadcastExcept(client, &Event{
		Type: EventCodeChange,
		Code: code,
	})
}

// handleCursorChange relays a cursor position to the other room
// members, attributed to the sender. Positions are ephemeral and
// never stored.
func (h *Handler) handleCursorChange(client *Client, ev *Event) {
	if ev.SessionID == "" {
		return
	}

	room := h.hub.Get(ev.SessionID)
	if room == nil {
		return
	}
	room.BroadcastExcept(client, &Event{
		Type:   EventCursorChange,
		UserID: client.ID(),
		Cursor: ev.Cursor,
		Color:  ev.Color,
	})
}

// handleDisconnect removes the client from its room and notifies the
// remaining members.
func (h *Handler) handleDisconnect(client *Client) {
	room := h.hub.Leave(client)
	if room == nil {
		return
	}
	room.Broadcast(&Event{
		Type:   EventUserLeft,
		UserID: client.ID(),
	})
}

func (h *Handler) sendEvent(client *Client, ev *Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Printf("Failed to marshal %s event: %v", ev.Type, err)
		return
	}
	client.Send(data)
}

func (h *Handler) sendError(client *Client, message string) {
	h.sendEvent(client, &Event{
		Type:  EventError,
		Error: message,
	})
}

// readPump pumps events from the WebSocket connection into the handler.
func (h *Handler) readPump(client *Client) {
	defer func() {
		h.handleDisconnect(client)
		client.Close()
		client.Conn().Close()
	}()

	client.Conn().SetReadLimit(maxMessageSize)
	client.Conn().SetReadDeadline(time.Now().Add(pongWait))
	client.Conn().SetPongHandler(func(string) error {
		client.Conn().SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := client.Conn().ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		var ev Event
		if err := json.Unmarshal(message, &ev); err != nil {
			h.sendError(client, "malformed event")
			continue
		}

		h.HandleEvent(client, &ev)
	}
}

// writePump pumps queued messages to the WebSocket connection.
func (h *Handler) writePump(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.Conn().Close()
	}()

	for {
		select {
		case message, ok := <-client.SendChan():
			client.Conn().SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				client.Conn().WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// One WebSocket frame per event so receivers can parse each
			// payload independently.
			if err := client.Conn().WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

			n := len(client.SendChan())
			for i := 0; i < n; i++ {
				queued := <-client.SendChan()
				client.Conn().SetWriteDeadline(time.Now().Add(writeWait))
				if err := client.Conn().WriteMessage(websocket.TextMessage, queued); err != nil {
					return
				}
			}
		case <-ticker.C:
			client.Conn().SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Conn().WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
