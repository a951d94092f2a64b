// Package agent bridges a local editor buffer to the realtime protocol
// without feedback loops.
package agent

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/collab-code-share/backend/internal/buffer"
	"github.com/collab-code-share/backend/internal/ws"
)

// EchoGuardWindow is how long after applying a remote edit the agent
// suppresses re-broadcasting local changes. A remote apply makes the
// editor fire a change event of its own; without the guard that change
// would be echoed back as if the participant had typed it. The guard
// is a heuristic: a genuine local edit inside the window is suppressed
// too.
const EchoGuardWindow = 100 * time.Millisecond

// logCapacity bounds the agent's execution output log.
const logCapacity = 256

// Emitter sends protocol events toward the server.
type Emitter interface {
	Emit(ev *ws.Event) error
}

// Agent tracks one participant's view of a session: the local buffer,
// the echo guard, and the append-only execution output log.
type Agent struct {
	sessionID string
	emitter   Emitter
	log       *buffer.LogBuffer
	color     string

	now func() time.Time

	mu              sync.Mutex
	language        string
	code            string
	lastRemoteApply time.Time

	// Optional notification callbacks.
	onApply    func(code string)
	onPresence func(userID string, joined bool)
	onError    func(message string)
}

// New creates an agent for the given session.
func New(sessionID string, emitter Emitter) *Agent {
	return &Agent{
		sessionID: sessionID,
		emitter:   emitter,
		log:       buffer.NewLogBuffer(logCapacity),
		color:     fmt.Sprintf("#%06x", rand.Intn(0x1000000)),
		now:       time.Now,
	}
}

// SetClock overrides the time source. Intended for tests.
func (a *Agent) SetClock(now func() time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.now = now
}

// SetOnApply registers a callback invoked whenever a remote buffer is
// applied locally.
func (a *Agent) SetOnApply(fn func(code string)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onApply = fn
}

// SetOnPresence registers a callback for user-joined and user-left
// notices.
func (a *Agent) SetOnPresence(fn func(userID string, joined bool)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onPresence = fn
}

// SetOnError registers a callback for server error events.
func (a *Agent) SetOnError(fn func(message string)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onError = fn
}

// Join subscribes to the session's room.
func (a *Agent) Join() error {
	return a.emitter.Emit(&ws.Event{
		Type:      ws.EventJoinSession,
		SessionID: a.sessionID,
	})
}

// Code returns the current local buffer.
func (a *Agent) Code() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.code
}

// Language returns the session's language tag.
func (a *Agent) Language() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.language
}

// Log returns the execution output log, oldest entry first.
func (a *Agent) Log() []string {
	return a.log.Entries()
}

// LocalEdit records a local buffer change and forwards it as a
// full-buffer code-change, unless the edit lands inside the echo guard
// window after a remote apply. It reports whether the edit was
// broadcast.
func (a *Agent) LocalEdit(code string) (bool, error) {
	a.mu.Lock()
	a.code = code
	suppressed := a.now().Sub(a.lastRemoteApply) < EchoGuardWindow
	a.mu.Unlock()

	if suppressed {
		return false, nil
	}

	err := a.emitter.Emit(&ws.Event{
		Type:      ws.EventCodeChange,
		SessionID: a.sessionID,
		Code:      code,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// MoveCursor relays the local cursor position to the other
// participants. Positions are ephemeral; nothing is kept locally.
func (a *Agent) MoveCursor(cursor json.RawMessage) error {
	return a.emitter.Emit(&ws.Event{
		Type:      ws.EventCursorChange,
		SessionID: a.sessionID,
		Cursor:    cursor,
		Color:     a.color,
	})
}

// HandleEvent processes a server-to-client event.
//
// Execution output is appended only here, from the room fanout. The
// synchronous response of a run request is never used for output, so
// the log cannot double up when both arrive.
func (a *Agent) HandleEvent(ev *ws.Event) {
	switch ev.Type {
	case ws.EventSessionInit:
		a.applyRemote(ev.Language, ev.Code)
	case ws.EventCodeChange:
		a.applyRemote("", ev.Code)
	case ws.EventUserJoined:
		a.notifyPresence(ev.UserID, true)
	case ws.EventUserLeft:
		a.notifyPresence(ev.UserID, false)
	case ws.EventExecutionResult:
		a.appendResult(ev)
	case ws.EventError:
		a.mu.Lock()
		onError := a.onError
		a.mu.Unlock()
		if onError != nil {
			onError(ev.Error)
		}
	}
}

// applyRemote installs a remote buffer and arms the echo guard.
func (a *Agent) applyRemote(language, code string) {
	a.mu.Lock()
	if language != "" {
		a.language = language
	}
	a.code = code
	a.lastRemoteApply = a.now()
	onApply := a.onApply
	a.mu.Unlock()

	if onApply != nil {
		onApply(code)
	}
}

func (a *Agent) notifyPresence(userID string, joined bool) {
	a.mu.Lock()
	onPresence := a.onPresence
	a.mu.Unlock()
	if onPresence != nil {
		onPresence(userID, joined)
	}
}

// appendResult renders an execution outcome into the log: stdout,
// then compiler output, then stderr, skipping empty sections.
func (a *Agent) appendResult(ev *ws.Event) {
	if ev.Result == nil {
		return
	}
	if ev.Result.Stdout != "" {
		a.log.Append(ev.Result.Stdout)
	}
	if ev.Result.CompileOutput != "" {
		a.log.Append(ev.Result.CompileOutput)
	}
	if ev.Result.Stderr != "" {
		a.log.Append(ev.Result.Stderr)
	}
}
