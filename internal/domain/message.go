package domain

import (
	"time"

	"github.com/google/uuid"
)

// MessageType represents the sender of a message
type MessageType string

const (
	TypeUser      MessageType = "user"
	TypeAssistant MessageType = "assistant"
)

// UnknownLanguage is reported when the backend does not detect a source language.
const UnknownLanguage = "unknown"

// MessageStatus is derived from the message fields, it is never stored.
type MessageStatus string

const (
	StatusPending   MessageStatus = "pending"
	StatusCompleted MessageStatus = "completed"
	StatusErrored   MessageStatus = "errored"
)

// Message is one voice interaction: submitted audio, its transcript and translation.
type Message struct {
	ID               string      `json:"id"`
	Type             MessageType `json:"type"`
	AudioURI         string      `json:"audioUri,omitempty"`
	Transcript       string      `json:"transcript,omitempty"`
	Translation      string      `json:"translation,omitempty"`
	DetectedLanguage string      `json:"detectedLanguage,omitempty"`
	TargetLanguage   string      `json:"targetLanguage"`
	Timestamp        int64       `json:"timestamp"`
	IsLoading        bool        `json:"isLoading,omitempty"`
	Error            string      `json:"error,omitempty"`
}

// NewPendingMessage creates a user message awaiting a backend result.
func NewPendingMessage(audioURI, targetLanguage string, now time.Time) Message {
	return Message{
		ID:             "msg_" + uuid.NewString(),
		Type:           TypeUser,
		AudioURI:       audioURI,
		TargetLanguage: targetLanguage,
		Timestamp:      now.UnixMilli(),
		IsLoading:      true,
	}
}

// NewErrorMessage creates a settled message carrying only a failure description.
func NewErrorMessage(targetLanguage, description string, now time.Time) Message {
	return Message{
		ID:             "msg_" + uuid.NewString(),
		Type:           TypeUser,
		TargetLanguage: targetLanguage,
		Timestamp:      now.UnixMilli(),
		Error:          description,
	}
}

// Status reports where the message is in its lifecycle.
func (m Message) Status() MessageStatus {
	switch {
	case m.IsLoading:
		return StatusPending
	case m.Error != "":
		return StatusErrored
	default:
		return StatusCompleted
	}
}

// Complete merges a successful result into the message, keeping its id.
func (m Message) Complete(transcript, translation, detectedLanguage string) Message {
	if detectedLanguage == "" {
		detectedLanguage = UnknownLanguage
	}
	m.Transcript = transcript
	m.Translation = translation
	m.DetectedLanguage = detectedLanguage
	m.IsLoading = false
	m.Error = ""
	return m
}
