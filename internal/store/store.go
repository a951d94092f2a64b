// Package store provides the in-memory registry of collaboration sessions.
package store

import (
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/collab-code-share/backend/internal/model"
)

const (
	// DefaultTTL bounds how long an idle session is kept. Reads and
	// writes both reset the clock, so an active session never expires.
	DefaultTTL = 24 * time.Hour

	// idLength is the length of generated session codes. Codes are meant
	// to be pasted into invite links, so they stay short.
	idLength = 6

	idCharset = "0123456789abcdefghijklmnopqrstuvwxyz"

	// maxIDAttempts bounds the collision retry loop. With 36^6 possible
	// codes a collision is already negligible at realistic session counts.
	maxIDAttempts = 5
)

// Store is a concurrency-safe registry of sessions with an idle TTL.
// Sessions are last-write-wins: Update replaces fields wholesale with
// no versioning or merge of concurrent edits.
type Store struct {
	sessions *ttlcache.Cache[string, model.Session]
	mu       sync.Mutex

	now   func() time.Time
	newID func() (string, error)
}

// New creates a Store whose sessions expire after ttl of inactivity.
// A non-positive ttl falls back to DefaultTTL.
func New(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	cache := ttlcache.New(
		ttlcache.WithTTL[string, model.Session](ttl),
	)
	go cache.Start()

	return &Store{
		sessions: cache,
		now:      time.Now,
		newID:    generateID,
	}
}

// SetClock overrides the time source. Intended for tests.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// SetIDSource overrides the session id generator. Intended for tests.
func (s *Store) SetIDSource(newID func() (string, error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.newID = newID
}

// Create registers a new session and returns it. An empty language is
// defaulted rather than rejected.
func (s *Store) Create(req model.CreateSessionRequest) (model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	language := req.Language
	if language == "" {
		language = model.DefaultLanguage
	}

	var id string
	for attempt := 0; ; attempt++ {
		candidate, err := s.newID()
		if err != nil {
			return model.Session{}, fmt.Errorf("failed to generate session id: %w", err)
		}
		if !s.sessions.Has(candidate) {
			id = candidate
			break
		}
		if attempt+1 >= maxIDAttempts {
			return model.Session{}, fmt.Errorf("failed to generate unique session id after %d attempts", maxIDAttempts)
		}
	}

	session := model.Session{
		ID:        id,
		Language:  language,
		Code:      req.Code,
		CreatedAt: s.now(),
	}
	s.sessions.Set(id, session, ttlcache.DefaultTTL)

	return session, nil
}

// Get returns the session with the given id. The lookup counts as
// activity and resets the idle TTL.
func (s *Store) Get(id string) (model.Session, error) {
	item := s.sessions.Get(id)
	if item == nil {
		return model.Session{}, model.ErrSessionNotFound
	}
	return item.Value(), nil
}

// Update merges the patch into the stored session and returns the
// result. The read-modify-write is serialized so concurrent updates
// cannot interleave partial writes; whichever update runs last wins.
func (s *Store) Update(id string, patch model.SessionPatch) (model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.sessions.Get(id)
	if item == nil {
		return model.Session{}, model.ErrSessionNotFound
	}

	session := item.Value()
	if patch.Language != nil {
		session.Language = *patch.Language
	}
	if patch.Code != nil {
		session.Code = *patch.Code
	}
	s.sessions.Set(id, session, ttlcache.DefaultTTL)

	return session, nil
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	return s.sessions.Len()
}

// Close stops the background expiry loop.
func (s *Store) Close() {
	s.sessions.Stop()
}

// generateID draws a short random session code, matching the shape of
// codes users share in invite links.
func generateID() (string, error) {
	buf := make([]byte, idLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = idCharset[int(b)%len(idCharset)]
	}
	return string(buf), nil
}
