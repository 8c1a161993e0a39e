// Package storage persists the chat session collection and the active-session
// pointer on top of a key-value primitive. Every operation degrades gracefully:
// failures are logged, reads fall back to empty results and writes are best effort.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Rrens/tnt-ai/internal/domain"
)

const (
	// SessionsKey holds the JSON-encoded session collection.
	SessionsKey = "@tnt_ai_sessions"

	// ActiveSessionKey holds the active session id as a plain string.
	ActiveSessionKey = "@tnt_ai_active_session"

	envelopeVersion = 1
)

// Cipher encrypts the session payload at rest.
type Cipher interface {
	EncryptString(plaintext string) (string, error)
	DecryptString(ciphertext string) (string, error)
}

type envelope struct {
	Version  int              `json:"version"`
	Sessions []domain.Session `json:"sessions"`
}

// SessionStore is the durable session store. Read-modify-write cycles are
// serialized so concurrent saves never lose each other's updates.
type SessionStore struct {
	kv     domain.KVStore
	cipher Cipher
	mu     sync.Mutex
}

// Option configures a SessionStore.
type Option func(*SessionStore)

// WithCipher encrypts the session collection before it reaches the KV store.
func WithCipher(c Cipher) Option {
	return func(s *SessionStore) {
		s.cipher = c
	}
}

// NewSessionStore creates a session store over kv.
func NewSessionStore(kv domain.KVStore, opts ...Option) *SessionStore {
	s := &SessionStore{kv: kv}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetSessions returns the stored sessions, newest first. Missing or corrupt
// data yields an empty slice.
func (s *SessionStore) GetSessions(ctx context.Context) []domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, err := s.load(ctx)
	if err != nil {
		log.Error().Err(err).Msg("error loading sessions")
		return []domain.Session{}
	}
	return sessions
}

// GetSession returns the stored session with id, if any.
func (s *SessionStore) GetSession(ctx context.Context, id string) (*domain.Session, bool) {
	for _, session := range s.GetSessions(ctx) {
		if session.ID == id {
			found := session
			return &found, true
		}
	}
	return nil, false
}

// SaveSession upserts by id: replaced in place when present, otherwise
// inserted at the front.
func (s *SessionStore) SaveSession(ctx context.Context, session *domain.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, err := s.load(ctx)
	if err != nil {
		// Unreadable data is treated as no data, matching GetSessions.
		log.Warn().Err(err).Msg("discarding unreadable session data")
		sessions = []domain.Session{}
	}

	replaced := false
	for i := range sessions {
		if sessions[i].ID == session.ID {
			sessions[i] = *session.Clone()
			replaced = true
			break
		}
	}
	if !replaced {
		sessions = append([]domain.Session{*session.Clone()}, sessions...)
	}

	if err := s.write(ctx, sessions); err != nil {
		log.Error().Err(err).Str("session_id", session.ID).Msg("error saving session")
	}
}

// DeleteSession removes the session with id. Deleting an unknown id is a no-op.
func (s *SessionStore) DeleteSession(ctx context.Context, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, err := s.load(ctx)
	if err != nil {
		log.Error().Err(err).Str("session_id", id).Msg("error deleting session")
		return
	}

	filtered := sessions[:0]
	for _, session := range sessions {
		if session.ID != id {
			filtered = append(filtered, session)
		}
	}
	if len(filtered) == len(sessions) {
		return
	}

	if err := s.write(ctx, filtered); err != nil {
		log.Error().Err(err).Str("session_id", id).Msg("error deleting session")
	}
}

// ClearAll removes every session and the active pointer.
func (s *SessionStore) ClearAll(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.RemoveItem(ctx, SessionsKey); err != nil {
		log.Error().Err(err).Msg("error clearing sessions")
	}
	if err := s.kv.RemoveItem(ctx, ActiveSessionKey); err != nil {
		log.Error().Err(err).Msg("error clearing active session")
	}
}

// GetActiveSessionID returns the active session id, or "" when absent.
func (s *SessionStore) GetActiveSessionID(ctx context.Context) string {
	id, err := s.kv.GetItem(ctx, ActiveSessionKey)
	if err != nil {
		if !errors.Is(err, domain.ErrKeyNotFound) {
			log.Error().Err(err).Msg("error getting active session")
		}
		return ""
	}
	return id
}

// SetActiveSessionID persists the active session pointer.
func (s *SessionStore) SetActiveSessionID(ctx context.Context, id string) {
	if err := s.kv.SetItem(ctx, ActiveSessionKey, id); err != nil {
		log.Error().Err(err).Str("session_id", id).Msg("error setting active session")
	}
}

// RepairPending settles messages left loading by a previous process: they can
// never receive a result, so each becomes an errored message with description.
// It returns the number of repaired messages.
func (s *SessionStore) RepairPending(ctx context.Context, description string, now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, err := s.load(ctx)
	if err != nil {
		log.Error().Err(err).Msg("error loading sessions for repair")
		return 0
	}

	repaired := 0
	for i := range sessions {
		for j := range sessions[i].Messages {
			m := &sessions[i].Messages[j]
			if !m.IsLoading {
				continue
			}
			m.IsLoading = false
			m.Transcript = ""
			m.Translation = ""
			m.Error = description
			sessions[i].Touch(now)
			repaired++
		}
	}

	if repaired == 0 {
		return 0
	}
	if err := s.write(ctx, sessions); err != nil {
		log.Error().Err(err).Msg("error saving repaired sessions")
		return 0
	}

	log.Warn().Int("messages", repaired).Msg("settled messages interrupted by a previous shutdown")
	return repaired
}

func (s *SessionStore) load(ctx context.Context) ([]domain.Session, error) {
	raw, err := s.kv.GetItem(ctx, SessionsKey)
	if errors.Is(err, domain.ErrKeyNotFound) {
		return []domain.Session{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", SessionsKey, err)
	}
	if raw == "" {
		return []domain.Session{}, nil
	}

	if s.cipher != nil {
		raw, err = s.cipher.DecryptString(raw)
		if err != nil {
			return nil, fmt.Errorf("decrypt sessions: %w", err)
		}
	}

	return decode([]byte(raw))
}

func (s *SessionStore) write(ctx context.Context, sessions []domain.Session) error {
	data, err := json.Marshal(envelope{Version: envelopeVersion, Sessions: sessions})
	if err != nil {
		return fmt.Errorf("marshal sessions: %w", err)
	}

	payload := string(data)
	if s.cipher != nil {
		payload, err = s.cipher.EncryptString(payload)
		if err != nil {
			return fmt.Errorf("encrypt sessions: %w", err)
		}
	}

	return s.kv.SetItem(ctx, SessionsKey, payload)
}

// decode accepts the versioned envelope and the legacy bare array.
func decode(data []byte) ([]domain.Session, error) {
	trimmed := bytes.TrimSpace(data)

	if len(trimmed) > 0 && trimmed[0] == '[' {
		var sessions []domain.Session
		if err := json.Unmarshal(trimmed, &sessions); err != nil {
			return nil, fmt.Errorf("parse legacy sessions: %w", err)
		}
		return normalize(sessions), nil
	}

	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, fmt.Errorf("parse sessions: %w", err)
	}
	if env.Version > envelopeVersion {
		log.Warn().Int("version", env.Version).Msg("session data written by a newer version")
	}
	return normalize(env.Sessions), nil
}

func normalize(sessions []domain.Session) []domain.Session {
	if sessions == nil {
		return []domain.Session{}
	}
	for i := range sessions {
		if sessions[i].Messages == nil {
			sessions[i].Messages = []domain.Message{}
		}
	}
	return sessions
}
