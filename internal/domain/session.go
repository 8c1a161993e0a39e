package domain

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// TitleMaxRunes is how much of the first transcript becomes the session title.
const TitleMaxRunes = 30

// Session represents a chat-like conversation thread holding voice messages.
// Timestamps are epoch milliseconds.
type Session struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Messages    []Message `json:"messages"`
	CreatedAt   int64     `json:"createdAt"`
	UpdatedAt   int64     `json:"updatedAt"`
	TitleEdited bool      `json:"titleEdited,omitempty"`
}

// NewSession returns an empty session with a date-derived default title.
func NewSession(now time.Time) *Session {
	ms := now.UnixMilli()
	return &Session{
		ID:        "session_" + uuid.NewString(),
		Title:     DefaultTitle(now),
		Messages:  []Message{},
		CreatedAt: ms,
		UpdatedAt: ms,
	}
}

// DefaultTitle is the label given to a session before any transcript arrives.
func DefaultTitle(now time.Time) string {
	return fmt.Sprintf("Chat %s", now.Format("1/2/2006"))
}

// TitleFromTranscript derives a session title from the leading text of a transcript.
func TitleFromTranscript(transcript string) string {
	if utf8.RuneCountInString(transcript) <= TitleMaxRunes {
		return transcript
	}
	runes := []rune(transcript)
	return string(runes[:TitleMaxRunes]) + "..."
}

// Clone returns a deep copy so callers never share the message slice.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Messages = make([]Message, len(s.Messages))
	copy(c.Messages, s.Messages)
	return &c
}

// Touch bumps UpdatedAt.
func (s *Session) Touch(now time.Time) {
	s.UpdatedAt = now.UnixMilli()
}

// MessageIndex returns the position of the message with id, or -1.
func (s *Session) MessageIndex(id string) int {
	for i := range s.Messages {
		if s.Messages[i].ID == id {
			return i
		}
	}
	return -1
}

// HasPending reports whether any message is still awaiting a result.
func (s *Session) HasPending() bool {
	for i := range s.Messages {
		if s.Messages[i].IsLoading {
			return true
		}
	}
	return false
}

// hasCompleted reports whether a message other than skipID already carries a transcript.
func (s *Session) hasCompleted(skipID string) bool {
	for i := range s.Messages {
		m := &s.Messages[i]
		if m.ID != skipID && m.Status() == StatusCompleted && m.Transcript != "" {
			return true
		}
	}
	return false
}

// ApplyTranscriptTitle sets the title from the first completed transcript,
// unless the user renamed the session.
func (s *Session) ApplyTranscriptTitle(messageID, transcript string) {
	if s.TitleEdited || transcript == "" || s.hasCompleted(messageID) {
		return
	}
	s.Title = TitleFromTranscript(transcript)
}
