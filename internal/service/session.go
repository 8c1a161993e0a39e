package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Rrens/tnt-ai/internal/domain"
	"github.com/Rrens/tnt-ai/internal/metrics"
	"github.com/Rrens/tnt-ai/internal/transcribe"
)

const (
	// InterruptedDescription settles messages whose request could not finish.
	InterruptedDescription = "Request was interrupted before a result arrived"

	defaultFailureDescription = "Failed to process audio"
)

// Transcriber is the backend operation the controller drives.
type Transcriber interface {
	TranscribeAndTranslate(ctx context.Context, audioHandle, targetLanguage string) (*transcribe.Result, error)
	HealthCheck(ctx context.Context) bool
}

// AudioChecker is implemented by transcribers that can reject an unusable
// recording before a pending message is created for it.
type AudioChecker interface {
	CheckAudio(audioHandle string) error
}

// SessionStore is the durable store the controller persists through.
// Its methods never fail; persistence errors are handled inside the store.
type SessionStore interface {
	GetSessions(ctx context.Context) []domain.Session
	GetSession(ctx context.Context, id string) (*domain.Session, bool)
	SaveSession(ctx context.Context, session *domain.Session)
	DeleteSession(ctx context.Context, id string)
	ClearAll(ctx context.Context)
	GetActiveSessionID(ctx context.Context) string
	SetActiveSessionID(ctx context.Context, id string)
	RepairPending(ctx context.Context, description string, now time.Time) int
}

// Options configures a SessionService.
type Options struct {
	Languages       []string
	DefaultLanguage string
	// RequireOnline rejects recordings while the last health probe reported offline.
	RequireOnline bool
	Metrics       *metrics.Metrics
	Now           func() time.Time
}

// SessionService owns the active session and the lifecycle of every message:
// pending, then completed or errored.
type SessionService struct {
	store       SessionStore
	transcriber Transcriber
	metrics     *metrics.Metrics

	languages       []string
	defaultLanguage string
	requireOnline   bool
	now             func() time.Time

	// baseCtx outlives callers: a request keeps running after the caller returns
	// and stops only on Close.
	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu     sync.Mutex
	active *domain.Session
	busy   map[string]string // session id -> in-flight message id
	online bool
	probed bool
	closed bool
}

// NewSessionService creates a new session service. Call Init before use.
func NewSessionService(store SessionStore, transcriber Transcriber, opts Options) *SessionService {
	languages := opts.Languages
	if len(languages) == 0 {
		languages = []string{transcribe.DefaultTargetLanguage}
	}
	defaultLanguage := opts.DefaultLanguage
	if defaultLanguage == "" {
		defaultLanguage = languages[0]
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &SessionService{
		store:           store,
		transcriber:     transcriber,
		metrics:         opts.Metrics,
		languages:       languages,
		defaultLanguage: defaultLanguage,
		requireOnline:   opts.RequireOnline,
		now:             now,
		baseCtx:         ctx,
		cancel:          cancel,
		busy:            make(map[string]string),
	}
}

// Init settles messages left pending by a previous process, then loads the
// active session, creating one when the pointer is absent or dangling.
func (s *SessionService) Init(ctx context.Context) *domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.store.RepairPending(ctx, InterruptedDescription, s.now())

	id := s.store.GetActiveSessionID(ctx)
	if id != "" {
		if session, ok := s.store.GetSession(ctx, id); ok {
			s.active = session
			log.Info().Str("session_id", id).Int("messages", len(session.Messages)).Msg("restored active session")
			return s.active.Clone()
		}
		log.Warn().Str("session_id", id).Msg("active session no longer exists, creating a new one")
	}

	return s.createLocked(ctx).Clone()
}

// Active returns a snapshot of the active session.
func (s *SessionService) Active(ctx context.Context) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active == nil {
		return nil, ErrNoActiveSession
	}
	return s.active.Clone(), nil
}

// Sessions returns every stored session, newest first.
func (s *SessionService) Sessions(ctx context.Context) []domain.Session {
	return s.store.GetSessions(ctx)
}

// Session returns one stored session.
func (s *SessionService) Session(ctx context.Context, id string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active != nil && s.active.ID == id {
		return s.active.Clone(), nil
	}
	session, ok := s.store.GetSession(ctx, id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// NewSession creates an empty session and makes it active.
func (s *SessionService) NewSession(ctx context.Context) *domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.createLocked(ctx).Clone()
}

// SelectSession moves the active pointer. The session content is untouched.
func (s *SessionService) SelectSession(ctx context.Context, id string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active != nil && s.active.ID == id {
		return s.active.Clone(), nil
	}

	session, ok := s.store.GetSession(ctx, id)
	if !ok {
		return nil, ErrSessionNotFound
	}

	s.active = session
	s.store.SetActiveSessionID(ctx, id)
	log.Info().Str("session_id", id).Msg("selected session")
	return s.active.Clone(), nil
}

// DeleteSession removes a session. Deleting the active session activates a
// fresh one. Unknown ids are a no-op. It returns the active session afterwards.
func (s *SessionService) DeleteSession(ctx context.Context, id string) *domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.store.DeleteSession(ctx, id)
	log.Info().Str("session_id", id).Msg("deleted session")

	if s.active == nil || s.active.ID == id {
		return s.createLocked(ctx).Clone()
	}
	return s.active.Clone()
}

// RenameSession sets a user-chosen title. Later transcripts leave it alone.
func (s *SessionService) RenameSession(ctx context.Context, id, title string) (*domain.Session, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrEmptyTitle
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.lookupLocked(ctx, id)
	if !ok {
		return nil, ErrSessionNotFound
	}

	session.Title = title
	session.TitleEdited = true
	session.Touch(s.now())
	s.store.SaveSession(ctx, session)

	return session.Clone(), nil
}

// ClearAll removes every session and starts over with a fresh active one.
// Requests still in flight settle into nothing.
func (s *SessionService) ClearAll(ctx context.Context) *domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.store.ClearAll(ctx)
	log.Warn().Msg("cleared all sessions")
	return s.createLocked(ctx).Clone()
}

// Languages returns the supported target languages and the default.
func (s *SessionService) Languages() ([]string, string) {
	out := make([]string, len(s.languages))
	copy(out, s.languages)
	return out, s.defaultLanguage
}

// CheckBackend probes the backend and remembers the answer.
func (s *SessionService) CheckBackend(ctx context.Context) bool {
	online := s.transcriber.HealthCheck(ctx)

	s.mu.Lock()
	s.online = online
	s.probed = true
	s.mu.Unlock()

	return online
}

// BackendStatus reports the last probe result and whether a probe ran at all.
func (s *SessionService) BackendStatus() (online, probed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online, s.probed
}

// Busy reports whether the session has a request in flight.
func (s *SessionService) Busy(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.busy[sessionID]
	return ok
}

// Close stops in-flight requests and waits until each has settled.
func (s *SessionService) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}

func (s *SessionService) createLocked(ctx context.Context) *domain.Session {
	session := domain.NewSession(s.now())
	s.store.SaveSession(ctx, session)
	s.store.SetActiveSessionID(ctx, session.ID)
	s.active = session

	log.Info().Str("session_id", session.ID).Msg("created session")
	return session
}

// lookupLocked returns the live session for id: the in-memory active session
// when it matches, otherwise the stored copy.
func (s *SessionService) lookupLocked(ctx context.Context, id string) (*domain.Session, bool) {
	if s.active != nil && s.active.ID == id {
		return s.active, true
	}
	return s.store.GetSession(ctx, id)
}

func (s *SessionService) resolveLanguage(lang string) (string, error) {
	lang = strings.TrimSpace(lang)
	if lang == "" {
		return s.defaultLanguage, nil
	}
	for _, supported := range s.languages {
		if strings.EqualFold(supported, lang) {
			return supported, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedLanguage, lang)
}

// describeFailure is the text shown in an errored message.
func describeFailure(err error) string {
	if errors.Is(err, context.Canceled) {
		return InterruptedDescription
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return defaultFailureDescription
}
