package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTitleFromTranscript(t *testing.T) {
	tests := []struct {
		name       string
		transcript string
		want       string
	}{
		{"short", "Hello world", "Hello world"},
		{"exactly max", strings.Repeat("a", TitleMaxRunes), strings.Repeat("a", TitleMaxRunes)},
		{"long", "The quick brown fox jumps over the lazy dog", "The quick brown fox jumps over..."},
		{"multibyte", strings.Repeat("ü", 40), strings.Repeat("ü", 30) + "..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TitleFromTranscript(tt.transcript))
		})
	}
}

func TestNewSession(t *testing.T) {
	now := time.Date(2026, 3, 7, 10, 0, 0, 0, time.UTC)
	s := NewSession(now)

	assert.True(t, strings.HasPrefix(s.ID, "session_"))
	assert.Equal(t, "Chat 3/7/2026", s.Title)
	assert.Empty(t, s.Messages)
	assert.Equal(t, now.UnixMilli(), s.CreatedAt)
	assert.Equal(t, s.CreatedAt, s.UpdatedAt)
}

func TestSession_ApplyTranscriptTitle(t *testing.T) {
	now := time.Now()

	t.Run("first transcript sets title", func(t *testing.T) {
		s := NewSession(now)
		m := NewPendingMessage("file:///a.wav", "Turkish", now).Complete("Hello world", "Merhaba dünya", "en")
		s.Messages = append(s.Messages, m)

		s.ApplyTranscriptTitle(m.ID, m.Transcript)
		assert.Equal(t, "Hello world", s.Title)
	})

	t.Run("later transcripts keep title", func(t *testing.T) {
		s := NewSession(now)
		first := NewPendingMessage("a", "English", now).Complete("first words", "x", "en")
		second := NewPendingMessage("b", "English", now).Complete("second words", "y", "en")
		s.Messages = append(s.Messages, first, second)
		s.Title = "first words"

		s.ApplyTranscriptTitle(second.ID, second.Transcript)
		assert.Equal(t, "first words", s.Title)
	})

	t.Run("renamed session keeps title", func(t *testing.T) {
		s := NewSession(now)
		s.Title = "Groceries"
		s.TitleEdited = true
		m := NewPendingMessage("a", "English", now).Complete("milk and eggs", "x", "en")
		s.Messages = append(s.Messages, m)

		s.ApplyTranscriptTitle(m.ID, m.Transcript)
		assert.Equal(t, "Groceries", s.Title)
	})

	t.Run("empty transcript keeps title", func(t *testing.T) {
		s := NewSession(now)
		original := s.Title
		s.ApplyTranscriptTitle("msg_x", "")
		assert.Equal(t, original, s.Title)
	})
}

func TestMessage_Status(t *testing.T) {
	now := time.Now()
	pending := NewPendingMessage("a", "English", now)
	assert.Equal(t, StatusPending, pending.Status())

	done := pending.Complete("hi", "salam", "")
	assert.Equal(t, StatusCompleted, done.Status())
	assert.Equal(t, pending.ID, done.ID)
	assert.Equal(t, UnknownLanguage, done.DetectedLanguage)
	assert.False(t, done.IsLoading)

	failed := NewErrorMessage("English", "boom", now)
	assert.Equal(t, StatusErrored, failed.Status())
	assert.Empty(t, failed.Transcript)
}

func TestSession_Clone(t *testing.T) {
	s := NewSession(time.Now())
	s.Messages = append(s.Messages, NewPendingMessage("a", "English", time.Now()))

	c := s.Clone()
	c.Messages[0].IsLoading = false

	assert.True(t, s.Messages[0].IsLoading)
}
