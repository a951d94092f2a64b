// Package ws provides the room-scoped realtime relay between
// collaboration participants.
package ws

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
)

// Client represents one participant connection.
type Client struct {
	id   string
	conn *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	room   *Room
	closed bool
}

// NewClient creates a client for an upgraded connection. The id
// attributes this connection in presence and cursor events.
func NewClient(id string, conn *websocket.Conn) *Client {
	return &Client{
		id:   id,
		conn: conn,
		send: make(chan []byte, 256),
	}
}

// ID returns the connection's identity.
func (c *Client) ID() string {
	return c.id
}

// Conn returns the underlying WebSocket connection.
func (c *Client) Conn() *websocket.Conn {
	return c.conn
}

// SendChan returns the channel drained by the write pump.
func (c *Client) SendChan() <-chan []byte {
	return c.send
}

// Send queues data for delivery. A client that cannot keep up is
// closed rather than allowed to block the broadcasting goroutine.
func (c *Client) Send(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	select {
	case c.send <- data:
	default:
		c.closeLocked()
	}
}

// Close closes the client's send channel.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

func (c *Client) closeLocked() {
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// Room returns the room this client currently belongs to, or nil.
func (c *Client) Room() *Room {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room
}

func (c *Client) setRoom(r *Room) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.room = r
}

// Room is the set of live connections subscribed to one session, used
// to scope broadcasts.
type Room struct {
	sessionID string
	clients   map[*Client]bool
	mu        sync.RWMutex
}

// NewRoom creates an empty room for the given session.
func NewRoom(sessionID string) *Room {
	return &Room{
		sessionID: sessionID,
		clients:   make(map[*Client]bool),
	}
}

// SessionID returns the session this room belongs to.
func (r *Room) SessionID() string {
	return r.sessionID
}

// Register adds a client to the room.
func (r *Room) Register(client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[client] = true
}

// Unregister removes a client and reports how many members remain.
func (r *Room) Unregister(client *Client) int {
	r.mu.Lock()
	delete(r.clients, client)
	remaining := len(r.clients)
	r.mu.Unlock()
	return remaining
}

// MemberCount returns the number of connected members.
func (r *Room) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// Broadcast delivers an event to every member of the room.
func (r *Room) Broadcast(ev *Event) error {
	return r.broadcast(ev, nil)
}

// BroadcastExcept delivers an event to every member except sender.
func (r *Room) BroadcastExcept(sender *Client, ev *Event) error {
	return r.broadcast(ev, sender)
}

func (r *Room) broadcast(ev *Event, skip *Client) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for client := range r.clients {
		if client == skip {
			continue
		}
		client.Send(data)
	}
	return nil
}

// Close disconnects every member and empties the room.
func (r *Room) Close() {
	r.mu.Lock()
	clients := make([]*Client, 0, len(r.clients))
	for client := range r.clients {
		clients = append(clients, client)
	}
	r.clients = make(map[*Client]bool)
	r.mu.Unlock()

	for _, client := range clients {
		client.Close()
	}
}

// Hub tracks the rooms of all active sessions. An empty room is
// dropped on last disconnect; the underlying session is untouched.
type Hub struct {
	rooms map[string]*Room
	mu    sync.RWMutex
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{
		rooms: make(map[string]*Room),
	}
}

// GetOrCreate returns the room for a session, creating it if needed.
func (h *Hub) GetOrCreate(sessionID string) *Room {
	h.mu.Lock()
	defer h.mu.Unlock()

	if room, ok := h.rooms[sessionID]; ok {
		return room
	}

	room := NewRoom(sessionID)
	h.rooms[sessionID] = room
	return room
}

// Get returns the room for a session, or nil if nobody is connected.
func (h *Hub) Get(sessionID string) *Room {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rooms[sessionID]
}

// Leave removes the client from its room, drops the room when it was
// the last member, and returns the room the client left, or nil.
func (h *Hub) Leave(client *Client) *Room {
	room := client.Room()
	if room == nil {
		return nil
	}
	client.setRoom(nil)

	if remaining := room.Unregister(client); remaining == 0 {
		h.mu.Lock()
		// Re-check under the hub lock: a concurrent join may have
		// re-populated the room since Unregister.
		if h.rooms[room.sessionID] == room && room.MemberCount() == 0 {
			delete(h.rooms, room.sessionID)
		}
		h.mu.Unlock()
	}
	return room
}

// Join subscribes the client to the session's room, leaving any room
// it was previously in.
func (h *Hub) Join(client *Client, sessionID string) *Room {
	h.Leave(client)
	room := h.GetOrCreate(sessionID)
	room.Register(client)
	client.setRoom(room)
	return room
}

// Broadcast delivers an event to every member of the session's room.
// Events for sessions with no connected members are dropped.
func (h *Hub) Broadcast(sessionID string, ev *Event) {
	room := h.Get(sessionID)
	if room == nil {
		return
	}
	room.Broadcast(ev)
}

// Close disconnects every client in every room.
func (h *Hub) Close() {
	h.mu.Lock()
	rooms := make([]*Room, 0, len(h.rooms))
	for _, room := range h.rooms {
		rooms = append(rooms, room)
	}
	h.rooms = make(map[string]*Room)
	h.mu.Unlock()

	for _, room := range rooms {
		room.Close()
	}
}
