package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collab-code-share/backend/internal/model"
)

func TestCreateAndGet(t *testing.T) {
	s := New(DefaultTTL)
	defer s.Close()

	created, err := s.Create(model.CreateSessionRequest{Language: "python", Code: "print(1)"})
	require.NoError(t, err)
	assert.Len(t, created.ID, 6)
	assert.Equal(t, "python", created.Language)
	assert.Equal(t, "print(1)", created.Code)

	got, err := s.Get(created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)
}

func TestCreateDefaults(t *testing.T) {
	s := New(DefaultTTL)
	defer s.Close()

	created, err := s.Create(model.CreateSessionRequest{})
	require.NoError(t, err)
	assert.Equal(t, model.DefaultLanguage, created.Language)
	assert.Equal(t, "", created.Code)
}

func TestCreateUsesInjectedClock(t *testing.T) {
	s := New(DefaultTTL)
	defer s.Close()

	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return fixed })

	created, err := s.Create(model.CreateSessionRequest{})
	require.NoError(t, err)
	assert.Equal(t, fixed, created.CreatedAt)
}

func TestCreateRetriesOnIDCollision(t *testing.T) {
	s := New(DefaultTTL)
	defer s.Close()

	ids := []string{"aaaaaa", "aaaaaa", "bbbbbb"}
	s.SetIDSource(func() (string, error) {
		id := ids[0]
		if len(ids) > 1 {
			ids = ids[1:]
		}
		return id, nil
	})

	first, err := s.Create(model.CreateSessionRequest{})
	require.NoError(t, err)
	assert.Equal(t, "aaaaaa", first.ID)

	// Second create draws "aaaaaa" again and must retry to "bbbbbb".
	second, err := s.Create(model.CreateSessionRequest{})
	require.NoError(t, err)
	assert.Equal(t, "bbbbbb", second.ID)
}

func TestGetUnknownSession(t *testing.T) {
	s := New(DefaultTTL)
	defer s.Close()

	_, err := s.Get("nosuch")
	assert.ErrorIs(t, err, model.ErrSessionNotFound)
}

func TestUpdateCode(t *testing.T) {
	s := New(DefaultTTL)
	defer s.Close()

	created, err := s.Create(model.CreateSessionRequest{Language: "javascript"})
	require.NoError(t, err)

	code := "console.log('hi')"
	updated, err := s.Update(created.ID, model.SessionPatch{Code: &code})
	require.NoError(t, err)
	assert.Equal(t, code, updated.Code)
	assert.Equal(t, "javascript", updated.Language)

	got, err := s.Get(created.ID)
	require.NoError(t, err)
	assert.Equal(t, code, got.Code)
}

func TestUpdateUnknownSessionMutatesNothing(t *testing.T) {
	s := New(DefaultTTL)
	defer s.Close()

	code := "x"
	_, err := s.Update("nosuch", model.SessionPatch{Code: &code})
	assert.ErrorIs(t, err, model.ErrSessionNotFound)
	assert.Equal(t, 0, s.Len())
}

func TestIdleSessionExpires(t *testing.T) {
	s := New(50 * time.Millisecond)
	defer s.Close()

	created, err := s.Create(model.CreateSessionRequest{})
	require.NoError(t, err)

	// Watch Len rather than polling Get: a lookup counts as activity
	// and would keep resetting the idle clock.
	assert.Eventually(t, func() bool {
		return s.Len() == 0
	}, time.Second, 20*time.Millisecond)

	_, err = s.Get(created.ID)
	assert.ErrorIs(t, err, model.ErrSessionNotFound)
}

func TestConcurrentUpdatesSerialize(t *testing.T) {
	s := New(DefaultTTL)
	defer s.Close()

	created, err := s.Create(model.CreateSessionRequest{})
	require.NoError(t, err)

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func(n int) {
			defer func() { done <- struct{}{} }()
			code := string(rune('a' + n))
			for j := 0; j < 100; j++ {
				s.Update(created.ID, model.SessionPatch{Code: &code})
			}
		}(i)
	}
	for i := 0; i < 8; i++ {
		<-done
	}

	got, err := s.Get(created.ID)
	require.NoError(t, err)
	// The final buffer must be one of the written values, never a torn write.
	assert.Len(t, got.Code, 1)
	assert.GreaterOrEqual(t, got.Code[0], byte('a'))
	assert.LessOrEqual(t, got.Code[0], byte('h'))
}
