// Package audio stores uploaded recordings on disk. The absolute path of a
// saved file is the audio handle passed to the transcription client.
package audio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrUnsupportedFormat is returned for a file extension that is not audio.
	ErrUnsupportedFormat = errors.New("unsupported audio format")

	// ErrTooLarge is returned when a recording exceeds the configured limit.
	ErrTooLarge = errors.New("recording too large")

	// ErrEmpty is returned for a zero-byte recording.
	ErrEmpty = errors.New("recording is empty")
)

var allowedExts = map[string]bool{
	".wav":  true,
	".m4a":  true,
	".mp3":  true,
	".aac":  true,
	".ogg":  true,
	".webm": true,
	".3gp":  true,
}

// Recording is a saved upload.
type Recording struct {
	Handle       string `json:"handle"`
	OriginalName string `json:"original_name"`
	Size         int64  `json:"size"`
}

// Sink writes recordings into a directory.
type Sink struct {
	dir      string
	maxBytes int64
}

// NewSink creates the recordings directory if needed.
func NewSink(dir string, maxBytes int64) (*Sink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create recordings dir: %w", err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve recordings dir: %w", err)
	}
	return &Sink{dir: abs, maxBytes: maxBytes}, nil
}

// Dir returns the absolute recordings directory.
func (s *Sink) Dir() string {
	return s.dir
}

// Save copies src into a uniquely named file. A missing extension is saved as .wav.
func (s *Sink) Save(src io.Reader, originalName string) (*Recording, error) {
	ext := strings.ToLower(filepath.Ext(originalName))
	if ext == "" {
		ext = ".wav"
	}
	if !allowedExts[ext] {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}

	destPath := filepath.Join(s.dir, uuid.NewString()+ext)
	dst, err := os.Create(destPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create recording: %w", err)
	}

	limited := src
	if s.maxBytes > 0 {
		// One extra byte tells an exact-limit file apart from an oversized one.
		limited = io.LimitReader(src, s.maxBytes+1)
	}

	n, err := io.Copy(dst, limited)
	closeErr := dst.Close()

	switch {
	case err != nil:
		err = fmt.Errorf("failed to save recording: %w", err)
	case closeErr != nil:
		err = fmt.Errorf("failed to save recording: %w", closeErr)
	case n == 0:
		err = ErrEmpty
	case s.maxBytes > 0 && n > s.maxBytes:
		err = fmt.Errorf("%w: limit is %d bytes", ErrTooLarge, s.maxBytes)
	}
	if err != nil {
		os.Remove(destPath) // cleanup on error
		return nil, err
	}

	return &Recording{Handle: destPath, OriginalName: originalName, Size: n}, nil
}

// Remove deletes a recording saved by this sink. Handles outside the
// recordings directory are ignored.
func (s *Sink) Remove(handle string) error {
	path := filepath.Clean(strings.TrimPrefix(handle, "file://"))
	if filepath.Dir(path) != s.dir {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove recording: %w", err)
	}
	return nil
}
