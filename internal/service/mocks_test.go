package service

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/Rrens/tnt-ai/internal/transcribe"
)

// MockTranscriber mocks the Transcriber interface
type MockTranscriber struct {
	mock.Mock
}

func (m *MockTranscriber) TranscribeAndTranslate(ctx context.Context, audioHandle, targetLanguage string) (*transcribe.Result, error) {
	args := m.Called(ctx, audioHandle, targetLanguage)
	var result *transcribe.Result
	if v := args.Get(0); v != nil {
		result = v.(*transcribe.Result)
	}
	return result, args.Error(1)
}

func (m *MockTranscriber) HealthCheck(ctx context.Context) bool {
	args := m.Called(ctx)
	return args.Bool(0)
}

// fakeClock advances one second per reading.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}
