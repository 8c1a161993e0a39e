package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Rrens/tnt-ai/internal/domain"
	"github.com/Rrens/tnt-ai/internal/metrics"
)

const (
	// DefaultRequestTimeout bounds a single transcription attempt.
	DefaultRequestTimeout = 180 * time.Second

	// DefaultHealthTimeout bounds the liveness probe.
	DefaultHealthTimeout = 5 * time.Second

	// DefaultMaxRetries is the number of retries after the first attempt.
	DefaultMaxRetries = 3

	// DefaultRetryWait is the initial backoff, doubled on every retry.
	DefaultRetryWait = 1 * time.Second

	// DefaultTargetLanguage is used when the caller passes no language.
	DefaultTargetLanguage = "English"

	transcribePath = "/v1/transcribe_translate"
	healthPath     = "/docs"
	uploadName     = "recording.wav"
	uploadType     = "audio/wav"
	maxErrorBody   = 4 << 10
)

// Result is a successful transcription and translation.
type Result struct {
	Transcript       string `json:"transcript"`
	Translation      string `json:"translation"`
	DetectedLanguage string `json:"detectedLanguage"`
}

// Config holds Client settings. Zero durations fall back to the defaults above.
type Config struct {
	BaseURL        string
	APIKey         string
	RequestTimeout time.Duration
	HealthTimeout  time.Duration
	// MaxRetries is the number of retries after the first attempt. Zero
	// disables retrying; a negative value uses DefaultMaxRetries.
	MaxRetries     int
	RetryWait      time.Duration
	// RetryClientErrors retries 4xx answers like any other failure.
	RetryClientErrors bool
	HTTPClient        *http.Client
	Metrics           *metrics.Metrics
}

// Client calls the speech backend.
type Client struct {
	http              *http.Client
	baseURL           string
	apiKey            string
	requestTimeout    time.Duration
	healthTimeout     time.Duration
	maxRetries        int
	retryWait         time.Duration
	retryClientErrors bool
	metrics           *metrics.Metrics
}

// NewClient creates a new Client with the given configuration.
func NewClient(cfg Config) *Client {
	c := &Client{
		http:              cfg.HTTPClient,
		baseURL:           strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:            cfg.APIKey,
		requestTimeout:    cfg.RequestTimeout,
		healthTimeout:     cfg.HealthTimeout,
		maxRetries:        cfg.MaxRetries,
		retryWait:         cfg.RetryWait,
		retryClientErrors: cfg.RetryClientErrors,
		metrics:           cfg.Metrics,
	}

	// Per-attempt deadlines come from contexts, so the transport itself has no timeout.
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.requestTimeout <= 0 {
		c.requestTimeout = DefaultRequestTimeout
	}
	if c.healthTimeout <= 0 {
		c.healthTimeout = DefaultHealthTimeout
	}
	if c.maxRetries < 0 {
		c.maxRetries = DefaultMaxRetries
	}
	if c.retryWait <= 0 {
		c.retryWait = DefaultRetryWait
	}

	return c
}

// BaseURL returns the backend address the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

type backendResponse struct {
	Transcript  string `json:"transcript"`
	Translation string `json:"translation"`
	SourceLang  string `json:"source_lang"`
	Lang        string `json:"lang"`
}

// TranscribeAndTranslate uploads the recording behind audioHandle and returns
// its transcript and translation. Failed attempts are retried with exponential
// backoff; after the last attempt the final error is returned as a
// *NetworkError, *TimeoutError or *APIError.
func (c *Client) TranscribeAndTranslate(ctx context.Context, audioHandle, targetLanguage string) (*Result, error) {
	audio, err := readAudio(audioHandle)
	if err != nil {
		return nil, err
	}
	if targetLanguage == "" {
		targetLanguage = DefaultTargetLanguage
	}

	body, contentType, err := buildMultipart(audio, targetLanguage)
	if err != nil {
		return nil, err
	}

	logger := log.With().
		Str("url", c.baseURL+transcribePath).
		Str("target_lang", targetLanguage).
		Int("audio_bytes", len(audio)).
		Logger()

	start := time.Now()
	attempts := c.maxRetries + 1
	wait := c.retryWait

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		attemptStart := time.Now()
		result, err := c.attempt(ctx, body, contentType)
		if err == nil {
			logger.Info().
				Int("attempt", attempt).
				Int64("elapsed_ms", time.Since(attemptStart).Milliseconds()).
				Str("detected_lang", result.DetectedLanguage).
				Msg("transcription completed")
			c.metrics.TranscriptionAttempt("success")
			c.metrics.TranscriptionResult("success", time.Since(start))
			return result, nil
		}

		// The caller gave up: stop at once and report their cancellation.
		if ctx.Err() != nil {
			c.metrics.TranscriptionResult("canceled", time.Since(start))
			return nil, ctx.Err()
		}

		lastErr = err
		c.metrics.TranscriptionAttempt(Category(err))

		if attempt == attempts || !c.shouldRetry(err) {
			break
		}

		logger.Warn().
			Err(err).
			Int("attempt", attempt).
			Int("max_attempts", attempts).
			Dur("retry_in", wait).
			Msg("transcription attempt failed, retrying")

		select {
		case <-ctx.Done():
			c.metrics.TranscriptionResult("canceled", time.Since(start))
			return nil, ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
	}

	logger.Error().Err(lastErr).Str("category", Category(lastErr)).Msg("transcription failed")
	c.metrics.TranscriptionResult(Category(lastErr), time.Since(start))
	return nil, lastErr
}

// attempt performs one bounded request. The deadline stops waiting only; the
// backend may keep processing the upload.
func (c *Client) attempt(ctx context.Context, body []byte, contentType string) (*Result, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, c.baseURL+transcribePath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, c.classify(attemptCtx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		text, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if readErr != nil && attemptCtx.Err() != nil {
			return nil, c.classify(attemptCtx, readErr)
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(text))}
	}

	var payload backendResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		if attemptCtx.Err() != nil {
			return nil, c.classify(attemptCtx, err)
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Body: "invalid response body: " + err.Error()}
	}

	detected := payload.SourceLang
	if detected == "" {
		detected = payload.Lang
	}
	if detected == "" {
		detected = domain.UnknownLanguage
	}

	return &Result{
		Transcript:       payload.Transcript,
		Translation:      payload.Translation,
		DetectedLanguage: detected,
	}, nil
}

// classify separates timeouts from unreachable-network failures.
func (c *Client) classify(attemptCtx context.Context, err error) error {
	if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Timeout: c.requestTimeout}
	}
	return &NetworkError{BaseURL: c.baseURL, Err: err}
}

func (c *Client) shouldRetry(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.IsClientError() && !c.retryClientErrors {
		return apiErr.StatusCode == http.StatusRequestTimeout || apiErr.StatusCode == http.StatusTooManyRequests
	}
	return true
}

// HealthCheck probes the backend once. Every failure mode reports false.
func (c *Client) HealthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.healthTimeout)
	defer cancel()

	url := c.baseURL + healthPath
	online := false
	defer func() { c.metrics.HealthProbe(online) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		log.Error().Err(err).Str("url", url).Msg("backend health check failed")
		return false
	}
	req.Header.Set("Accept", "text/html")
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			log.Warn().Str("url", url).Dur("timeout", c.healthTimeout).Msg("backend health check timed out")
		} else {
			log.Warn().Err(err).Str("url", url).Msg("cannot reach backend")
		}
		return false
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	online = resp.StatusCode >= 200 && resp.StatusCode < 300
	log.Info().Str("url", url).Int("status", resp.StatusCode).Bool("online", online).Msg("backend health check")
	return online
}

func (c *Client) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
}

// readAudio resolves an audio handle (a path or file:// URI) to its bytes.
// CheckAudio reports whether handle names a non-empty recording file,
// without reading or sending it.
func (c *Client) CheckAudio(handle string) error {
	path, err := audioPath(handle)
	if err != nil {
		return err
	}
	info, err := os.Stat(path)
	switch {
	case err != nil:
		return fmt.Errorf("%w: %v", ErrInvalidAudio, err)
	case info.IsDir():
		return fmt.Errorf("%w: %s is a directory", ErrInvalidAudio, path)
	case info.Size() == 0:
		return fmt.Errorf("%w: recording is empty", ErrInvalidAudio)
	}
	return nil
}

func audioPath(handle string) (string, error) {
	path := strings.TrimSpace(handle)
	if path == "" {
		return "", fmt.Errorf("%w: empty handle", ErrInvalidAudio)
	}
	return strings.TrimPrefix(path, "file://"), nil
}

func readAudio(handle string) ([]byte, error) {
	path, err := audioPath(handle)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAudio, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: recording is empty", ErrInvalidAudio)
	}
	return data, nil
}

func buildMultipart(audio []byte, targetLanguage string) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, uploadName))
	header.Set("Content-Type", uploadType)

	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("create file part: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return nil, "", fmt.Errorf("write audio: %w", err)
	}
	if err := w.WriteField("target_lang", targetLanguage); err != nil {
		return nil, "", fmt.Errorf("write target_lang: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart body: %w", err)
	}

	return buf.Bytes(), w.FormDataContentType(), nil
}
