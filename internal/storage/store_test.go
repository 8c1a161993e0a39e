package storage

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rrens/tnt-ai/internal/domain"
	"github.com/Rrens/tnt-ai/internal/security"
)

type fakeKV struct {
	mu      sync.Mutex
	items   map[string]string
	getErr  error
	setErr  error
	setCall int
}

func newFakeKV() *fakeKV {
	return &fakeKV{items: make(map[string]string)}
}

func (f *fakeKV) GetItem(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return "", f.getErr
	}
	v, ok := f.items[key]
	if !ok {
		return "", domain.ErrKeyNotFound
	}
	return v, nil
}

func (f *fakeKV) SetItem(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setCall++
	if f.setErr != nil {
		return f.setErr
	}
	f.items[key] = value
	return nil
}

func (f *fakeKV) RemoveItem(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, key)
	return nil
}

func (f *fakeKV) Close() error { return nil }

func session(id string, updatedAt int64) *domain.Session {
	return &domain.Session{
		ID:        id,
		Title:     "Chat " + id,
		Messages:  []domain.Message{},
		CreatedAt: updatedAt,
		UpdatedAt: updatedAt,
	}
}

func ids(sessions []domain.Session) []string {
	out := make([]string, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.ID)
	}
	return out
}

func TestSessionStore_EmptyStore(t *testing.T) {
	store := NewSessionStore(newFakeKV())
	ctx := context.Background()

	sessions := store.GetSessions(ctx)
	assert.NotNil(t, sessions)
	assert.Empty(t, sessions)
	assert.Equal(t, "", store.GetActiveSessionID(ctx))
}

func TestSessionStore_SaveUpsertsAtFront(t *testing.T) {
	store := NewSessionStore(newFakeKV())
	ctx := context.Background()

	store.SaveSession(ctx, session("a", 1))
	store.SaveSession(ctx, session("b", 2))
	assert.Equal(t, []string{"b", "a"}, ids(store.GetSessions(ctx)))

	// Replacing keeps the position.
	updated := session("a", 3)
	updated.Title = "renamed"
	store.SaveSession(ctx, updated)

	sessions := store.GetSessions(ctx)
	require.Len(t, sessions, 2)
	assert.Equal(t, []string{"b", "a"}, ids(sessions))
	assert.Equal(t, "renamed", sessions[1].Title)
	assert.Equal(t, int64(3), sessions[1].UpdatedAt)
}

func TestSessionStore_SaveIsIsolatedFromCaller(t *testing.T) {
	store := NewSessionStore(newFakeKV())
	ctx := context.Background()

	s := session("a", 1)
	store.SaveSession(ctx, s)
	s.Title = "mutated after save"

	got, ok := store.GetSession(ctx, "a")
	require.True(t, ok)
	assert.Equal(t, "Chat a", got.Title)
}

func TestSessionStore_DeleteIsIdempotent(t *testing.T) {
	kv := newFakeKV()
	store := NewSessionStore(kv)
	ctx := context.Background()

	store.SaveSession(ctx, session("a", 1))
	store.SaveSession(ctx, session("b", 2))

	store.DeleteSession(ctx, "a")
	assert.Equal(t, []string{"b"}, ids(store.GetSessions(ctx)))

	writes := kv.setCall
	store.DeleteSession(ctx, "a")
	store.DeleteSession(ctx, "missing")
	assert.Equal(t, []string{"b"}, ids(store.GetSessions(ctx)))
	assert.Equal(t, writes, kv.setCall, "deleting an unknown id must not rewrite the collection")
}

func TestSessionStore_ActivePointer(t *testing.T) {
	store := NewSessionStore(newFakeKV())
	ctx := context.Background()

	store.SetActiveSessionID(ctx, "session_1")
	assert.Equal(t, "session_1", store.GetActiveSessionID(ctx))

	store.SetActiveSessionID(ctx, "session_2")
	assert.Equal(t, "session_2", store.GetActiveSessionID(ctx))
}

func TestSessionStore_CorruptPayloadReadsAsEmpty(t *testing.T) {
	kv := newFakeKV()
	kv.items[SessionsKey] = "{not json"
	store := NewSessionStore(kv)

	sessions := store.GetSessions(context.Background())
	assert.NotNil(t, sessions)
	assert.Empty(t, sessions)
}

func TestSessionStore_ReadsLegacyArray(t *testing.T) {
	kv := newFakeKV()
	kv.items[SessionsKey] = `[{"id":"old","title":"Chat 1/1/2024","messages":null,"createdAt":1,"updatedAt":1}]`
	store := NewSessionStore(kv)
	ctx := context.Background()

	sessions := store.GetSessions(ctx)
	require.Len(t, sessions, 1)
	assert.Equal(t, "old", sessions[0].ID)
	assert.NotNil(t, sessions[0].Messages)

	// The next write upgrades to the envelope.
	store.SaveSession(ctx, session("new", 2))

	var env envelope
	require.NoError(t, json.Unmarshal([]byte(kv.items[SessionsKey]), &env))
	assert.Equal(t, envelopeVersion, env.Version)
	assert.Equal(t, []string{"new", "old"}, ids(env.Sessions))
}

func TestSessionStore_WireFormat(t *testing.T) {
	kv := newFakeKV()
	store := NewSessionStore(kv)
	ctx := context.Background()

	s := session("session_1", 100)
	s.Messages = append(s.Messages, domain.Message{
		ID:               "msg_1",
		Type:             domain.TypeUser,
		AudioURI:         "/tmp/a.wav",
		Transcript:       "hello",
		Translation:      "merhaba",
		DetectedLanguage: "en",
		TargetLanguage:   "Turkish",
		Timestamp:        100,
	})
	store.SaveSession(ctx, s)

	var raw map[string]any
	require.NoError(t, json.Unmarshal([]byte(kv.items[SessionsKey]), &raw))
	list := raw["sessions"].([]any)
	require.Len(t, list, 1)

	first := list[0].(map[string]any)
	for _, field := range []string{"id", "title", "messages", "createdAt", "updatedAt"} {
		assert.Contains(t, first, field)
	}
	msg := first["messages"].([]any)[0].(map[string]any)
	for _, field := range []string{"id", "type", "audioUri", "transcript", "translation", "detectedLanguage", "targetLanguage", "timestamp"} {
		assert.Contains(t, msg, field)
	}
}

func TestSessionStore_FailuresAreSwallowed(t *testing.T) {
	kv := newFakeKV()
	store := NewSessionStore(kv)
	ctx := context.Background()

	store.SaveSession(ctx, session("a", 1))

	kv.getErr = errors.New("disk unavailable")
	assert.Empty(t, store.GetSessions(ctx))
	assert.Equal(t, "", store.GetActiveSessionID(ctx))
	_, ok := store.GetSession(ctx, "a")
	assert.False(t, ok)

	kv.getErr = nil
	kv.setErr = errors.New("quota exceeded")
	assert.NotPanics(t, func() {
		store.SaveSession(ctx, session("b", 2))
		store.SetActiveSessionID(ctx, "b")
	})

	// The failed write left the previous state intact.
	kv.setErr = nil
	assert.Equal(t, []string{"a"}, ids(store.GetSessions(ctx)))
}

func TestSessionStore_ClearAll(t *testing.T) {
	kv := newFakeKV()
	store := NewSessionStore(kv)
	ctx := context.Background()

	store.SaveSession(ctx, session("a", 1))
	store.SetActiveSessionID(ctx, "a")

	store.ClearAll(ctx)

	assert.Empty(t, store.GetSessions(ctx))
	assert.Equal(t, "", store.GetActiveSessionID(ctx))
	assert.Empty(t, kv.items)
}

func TestSessionStore_RepairPending(t *testing.T) {
	store := NewSessionStore(newFakeKV())
	ctx := context.Background()

	s := session("a", 1)
	s.Messages = []domain.Message{
		domain.NewPendingMessage("/tmp/1.wav", "English", time.UnixMilli(1)),
		{ID: "msg_done", Type: domain.TypeUser, Transcript: "hi", Translation: "hi", DetectedLanguage: "en", TargetLanguage: "English", Timestamp: 1},
	}
	store.SaveSession(ctx, s)

	repaired := store.RepairPending(ctx, "interrupted", time.UnixMilli(50))
	assert.Equal(t, 1, repaired)

	got, ok := store.GetSession(ctx, "a")
	require.True(t, ok)
	assert.Equal(t, domain.StatusErrored, got.Messages[0].Status())
	assert.Equal(t, "interrupted", got.Messages[0].Error)
	assert.Equal(t, s.Messages[0].ID, got.Messages[0].ID)
	assert.Equal(t, domain.StatusCompleted, got.Messages[1].Status())
	assert.Equal(t, int64(50), got.UpdatedAt)

	assert.Equal(t, 0, store.RepairPending(ctx, "interrupted", time.UnixMilli(60)))
}

func TestSessionStore_ConcurrentSavesKeepEverySession(t *testing.T) {
	store := NewSessionStore(newFakeKV())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			store.SaveSession(ctx, session(string(rune('a'+n)), int64(n)))
		}(i)
	}
	wg.Wait()

	assert.Len(t, store.GetSessions(ctx), 20)
}

func TestSessionStore_Encrypted(t *testing.T) {
	kv := newFakeKV()
	enc, err := security.NewEncryptor([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	store := NewSessionStore(kv, WithCipher(enc))
	ctx := context.Background()

	store.SaveSession(ctx, session("secret", 1))

	assert.NotContains(t, kv.items[SessionsKey], "secret")
	assert.Equal(t, []string{"secret"}, ids(store.GetSessions(ctx)))

	// A store with the wrong key reads nothing rather than failing.
	other, err := security.NewEncryptor([]byte("fedcba9876543210fedcba9876543210"))
	require.NoError(t, err)
	assert.Empty(t, NewSessionStore(kv, WithCipher(other)).GetSessions(ctx))
}
