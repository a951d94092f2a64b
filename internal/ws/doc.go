// Package ws provides WebSocket connection handling and room-scoped
// event routing for collaboration sessions.
//
// The package implements:
//   - Client: one participant connection with a buffered send channel
//   - Room: the set of connections subscribed to a session
//   - Hub: registry of rooms across all active sessions
//   - Handler: event routing (join, code, cursor) and the pumps
//
// Delivery guarantees are intentionally weak: within one room, events
// reach a receiver in the server's processing order; broadcasts to a
// disconnected client are dropped; concurrent full-buffer edits are
// last-write-wins with no conflict resolution.
package ws
