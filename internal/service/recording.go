package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Rrens/tnt-ai/internal/domain"
	"github.com/Rrens/tnt-ai/internal/transcribe"
)

// Submit appends a pending message for audioHandle to the active session and
// starts the backend request in the background. The returned message is the
// pending one; its settled form replaces it in the session under the same id
// on success, or is swapped for an errored message on failure.
func (s *SessionService) Submit(ctx context.Context, audioHandle, targetLanguage string) (*domain.Message, error) {
	pending, _, err := s.start(ctx, audioHandle, targetLanguage)
	if err != nil {
		return nil, err
	}
	return pending, nil
}

// Record is Submit followed by waiting for the message to settle. Backend
// failures are not returned as errors: they come back as an errored message.
// If ctx ends first the request keeps running and ctx.Err() is returned.
func (s *SessionService) Record(ctx context.Context, audioHandle, targetLanguage string) (*domain.Message, error) {
	_, done, err := s.start(ctx, audioHandle, targetLanguage)
	if err != nil {
		return nil, err
	}

	select {
	case settled := <-done:
		return settled, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// start validates the request, appends the pending message and launches the
// backend call. Every rejection happens before any network traffic.
func (s *SessionService) start(ctx context.Context, audioHandle, targetLanguage string) (*domain.Message, <-chan *domain.Message, error) {
	if strings.TrimSpace(audioHandle) == "" {
		return nil, nil, fmt.Errorf("%w: empty handle", transcribe.ErrInvalidAudio)
	}
	if checker, ok := s.transcriber.(AudioChecker); ok {
		if err := checker.CheckAudio(audioHandle); err != nil {
			return nil, nil, err
		}
	}
	lang, err := s.resolveLanguage(targetLanguage)
	if err != nil {
		return nil, nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.active == nil {
		return nil, nil, ErrNoActiveSession
	}
	if s.requireOnline && s.probed && !s.online {
		return nil, nil, ErrBackendOffline
	}

	session := s.active
	if inFlight, ok := s.busy[session.ID]; ok {
		log.Warn().
			Str("session_id", session.ID).
			Str("in_flight_message_id", inFlight).
			Msg("rejected recording while another is being processed")
		return nil, nil, ErrBusy
	}

	now := s.now()
	pending := domain.NewPendingMessage(audioHandle, lang, now)
	session.Messages = append(session.Messages, pending)
	session.Touch(now)
	s.store.SaveSession(ctx, session)
	s.busy[session.ID] = pending.ID

	log.Info().
		Str("session_id", session.ID).
		Str("message_id", pending.ID).
		Str("target_lang", lang).
		Msg("recording submitted")

	done := make(chan *domain.Message, 1)
	s.wg.Add(1)
	go s.process(session.ID, pending, done)

	return &pending, done, nil
}

func (s *SessionService) process(sessionID string, pending domain.Message, done chan<- *domain.Message) {
	defer s.wg.Done()

	start := time.Now()
	result, err := s.transcriber.TranscribeAndTranslate(s.baseCtx, pending.AudioURI, pending.TargetLanguage)

	logger := log.With().
		Str("session_id", sessionID).
		Str("message_id", pending.ID).
		Int64("elapsed_ms", time.Since(start).Milliseconds()).
		Logger()
	if err != nil {
		logger.Error().Err(err).Str("category", transcribe.Category(err)).Msg("recording failed")
	} else {
		logger.Info().Msg("recording transcribed")
	}

	// baseCtx may already be canceled here; the outcome is persisted regardless.
	done <- s.settle(context.Background(), sessionID, pending, result, err)
}

// settle applies the outcome to the session as it is now, not as it was when
// the request started.
func (s *SessionService) settle(ctx context.Context, sessionID string, pending domain.Message, result *transcribe.Result, callErr error) *domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.busy[sessionID] == pending.ID {
		delete(s.busy, sessionID)
	}

	now := s.now()
	var settled domain.Message
	if callErr == nil {
		settled = pending.Complete(result.Transcript, result.Translation, result.DetectedLanguage)
	} else {
		settled = domain.NewErrorMessage(pending.TargetLanguage, describeFailure(callErr), now)
	}
	s.metrics.MessageSettled(string(settled.Status()))

	session, ok := s.lookupLocked(ctx, sessionID)
	if !ok {
		log.Warn().
			Str("session_id", sessionID).
			Str("message_id", pending.ID).
			Msg("session removed while its recording was processing, dropping result")
		return &settled
	}

	idx := session.MessageIndex(pending.ID)
	if idx < 0 || !session.Messages[idx].IsLoading {
		log.Warn().
			Str("session_id", sessionID).
			Str("message_id", pending.ID).
			Msg("pending message no longer present, dropping result")
		return &settled
	}

	if callErr == nil {
		session.ApplyTranscriptTitle(pending.ID, settled.Transcript)
		session.Messages[idx] = settled
	} else {
		kept := make([]domain.Message, 0, len(session.Messages))
		for _, m := range session.Messages {
			if m.ID != pending.ID {
				kept = append(kept, m)
			}
		}
		session.Messages = append(kept, settled)
	}

	session.Touch(now)
	s.store.SaveSession(ctx, session)

	return &settled
}
