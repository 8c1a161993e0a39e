package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rrens/tnt-ai/internal/audio"
	"github.com/Rrens/tnt-ai/internal/config"
	"github.com/Rrens/tnt-ai/internal/metrics"
	"github.com/Rrens/tnt-ai/internal/repository/memory"
	"github.com/Rrens/tnt-ai/internal/repository/redis"
	"github.com/Rrens/tnt-ai/internal/security"
	"github.com/Rrens/tnt-ai/internal/service"
	"github.com/Rrens/tnt-ai/internal/storage"
	"github.com/Rrens/tnt-ai/internal/transcribe"
)

// waitMarginForTest mirrors how early a blocking upload gives up.
const waitMarginForTest = 2 * time.Second

// stubTranscriber answers every request with the same result, optionally
// holding it until release is closed.
type stubTranscriber struct {
	mu      sync.Mutex
	calls   int
	online  bool
	release chan struct{}
}

func (s *stubTranscriber) TranscribeAndTranslate(ctx context.Context, audioHandle, targetLanguage string) (*transcribe.Result, error) {
	s.mu.Lock()
	s.calls++
	release := s.release
	s.mu.Unlock()

	if release != nil {
		<-release
	}
	return &transcribe.Result{Transcript: "Hello world", Translation: "Merhaba dünya", DetectedLanguage: "en"}, nil
}

func (s *stubTranscriber) HealthCheck(ctx context.Context) bool {
	return s.online
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   any             `json:"error"`
}

type testServer struct {
	handler     http.Handler
	deps        Deps
	sessions    *service.SessionService
	transcriber *stubTranscriber
	sink        *audio.Sink
}

func testConfig() *config.Config {
	return &config.Config{
		Server:  config.ServerConfig{MiddlewareTimeout: 10 * time.Second},
		Audio:   config.AudioConfig{MaxUploadBytes: 1 << 20},
		Metrics: config.MetricsConfig{Enabled: true, Path: "/metrics"},
	}
}

func newTestServer(t *testing.T, mutate func(*Deps)) *testServer {
	t.Helper()

	transcriber := &stubTranscriber{online: true}
	sessions := service.NewSessionService(storage.NewSessionStore(memory.New()), transcriber, service.Options{
		Languages:       []string{"English", "Turkish"},
		DefaultLanguage: "English",
	})
	t.Cleanup(sessions.Close)
	sessions.Init(context.Background())

	sink, err := audio.NewSink(t.TempDir(), 1<<20)
	require.NoError(t, err)

	deps := Deps{
		Sessions:   sessions,
		Auth:       service.NewAuthService(nil, ""),
		Sink:       sink,
		KV:         memory.New(),
		Metrics:    metrics.New(),
		BackendURL: "http://backend.test",
	}
	if mutate != nil {
		mutate(&deps)
	}

	return &testServer{
		handler:     NewRouter(testConfig(), deps),
		deps:        deps,
		sessions:    sessions,
		transcriber: transcriber,
		sink:        sink,
	}
}

func (s *testServer) do(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func uploadRequest(t *testing.T, path, filename, lang string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	if lang != "" {
		require.NoError(t, mw.WriteField("target_lang", lang))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, nil)

	rec, env := srv.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
	assert.JSONEq(t, `{"status":"ok"}`, string(env.Data))

	rec, _ = srv.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, env = srv.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/backend/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"online":true,"base_url":"http://backend.test"}`, string(env.Data))

	rec, env = srv.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/languages", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"languages":["English","Turkish"],"default":"English"}`, string(env.Data))
}

func TestRecordingUpload_Wait(t *testing.T) {
	srv := newTestServer(t, nil)

	rec, env := srv.do(t, uploadRequest(t, "/api/v1/recordings?wait=true", "clip.wav", "Turkish", []byte("RIFF....WAVE")))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var data struct {
		Message struct {
			ID               string `json:"id"`
			Transcript       string `json:"transcript"`
			Translation      string `json:"translation"`
			DetectedLanguage string `json:"detectedLanguage"`
			TargetLanguage   string `json:"targetLanguage"`
			IsLoading        bool   `json:"isLoading"`
		} `json:"message"`
		Recording audio.Recording `json:"recording"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))

	assert.Equal(t, "Hello world", data.Message.Transcript)
	assert.Equal(t, "Merhaba dünya", data.Message.Translation)
	assert.Equal(t, "en", data.Message.DetectedLanguage)
	assert.Equal(t, "Turkish", data.Message.TargetLanguage)
	assert.False(t, data.Message.IsLoading)
	assert.Equal(t, "clip.wav", data.Recording.OriginalName)

	rec, env = srv.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/sessions/active", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"title":"Hello world"`)
}

// headerCounter records every WriteHeader call, which a plain recorder hides.
type headerCounter struct {
	*httptest.ResponseRecorder
	statuses []int
}

func (h *headerCounter) WriteHeader(code int) {
	h.statuses = append(h.statuses, code)
	h.ResponseRecorder.WriteHeader(code)
}

func TestRecordingUpload_WaitFallsBackBeforeDeadline(t *testing.T) {
	srv := newTestServer(t, nil)
	release := make(chan struct{})
	defer close(release)
	srv.transcriber.release = release

	cfg := testConfig()
	cfg.Server.MiddlewareTimeout = waitMarginForTest + 300*time.Millisecond
	h := NewRouter(cfg, srv.deps)

	w := &headerCounter{ResponseRecorder: httptest.NewRecorder()}
	h.ServeHTTP(w, uploadRequest(t, "/api/v1/recordings?wait=true", "slow.wav", "", []byte("RIFF....WAVE")))

	assert.Equal(t, []int{http.StatusAccepted}, w.statuses)
	assert.Contains(t, w.Body.String(), `"recording"`)
	active, err := srv.sessions.Active(context.Background())
	require.NoError(t, err)
	assert.True(t, srv.sessions.Busy(active.ID))
}

func TestRecordingUpload_BusyIsConflict(t *testing.T) {
	srv := newTestServer(t, nil)
	release := make(chan struct{})
	srv.transcriber.release = release

	rec, env := srv.do(t, uploadRequest(t, "/api/v1/recordings", "a.wav", "", []byte("first")))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.Contains(t, string(env.Data), `"isLoading":true`)

	rec, _ = srv.do(t, uploadRequest(t, "/api/v1/recordings", "b.wav", "", []byte("second")))
	assert.Equal(t, http.StatusConflict, rec.Code)

	close(release)

	active, err := srv.sessions.Active(context.Background())
	require.NoError(t, err)
	require.Eventually(t, func() bool { return !srv.sessions.Busy(active.ID) }, 2*time.Second, 5*time.Millisecond)

	entries, err := os.ReadDir(srv.sink.Dir())
	require.NoError(t, err)
	assert.Len(t, entries, 1, "the rejected upload is removed")
}

func TestRecordingUpload_Rejections(t *testing.T) {
	srv := newTestServer(t, nil)

	rec, _ := srv.do(t, uploadRequest(t, "/api/v1/recordings", "notes.txt", "", []byte("x")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = srv.do(t, uploadRequest(t, "/api/v1/recordings", "a.wav", "", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = srv.do(t, uploadRequest(t, "/api/v1/recordings", "a.wav", "Klingon", []byte("x")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = srv.do(t, uploadRequest(t, "/api/v1/recordings", "a.wav", "", bytes.Repeat([]byte("x"), 1<<20+1)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	entries, err := os.ReadDir(srv.sink.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Zero(t, srv.transcriber.calls)
}

func TestSessionRoutes(t *testing.T) {
	srv := newTestServer(t, nil)
	ctx := context.Background()
	first, err := srv.sessions.Active(ctx)
	require.NoError(t, err)

	rec, env := srv.do(t, httptest.NewRequest(http.MethodPost, "/api/v1/sessions", nil))
	require.Equal(t, http.StatusCreated, rec.Code)
	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))

	rec, env = srv.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/sessions", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list []struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list, 2)
	assert.Equal(t, created.ID, list[0].ID)

	rec, _ = srv.do(t, httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+first.ID+"/select", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	active, _ := srv.sessions.Active(ctx)
	assert.Equal(t, first.ID, active.ID)

	rename := httptest.NewRequest(http.MethodPatch, "/api/v1/sessions/"+first.ID, strings.NewReader(`{"title":"Market day"}`))
	rec, env = srv.do(t, rename)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"title":"Market day"`)

	rename = httptest.NewRequest(http.MethodPatch, "/api/v1/sessions/"+first.ID, strings.NewReader(`{"title":""}`))
	rec, _ = srv.do(t, rename)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = srv.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/sessions/session_missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = srv.do(t, httptest.NewRequest(http.MethodPost, "/api/v1/sessions/session_missing/select", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, env = srv.do(t, httptest.NewRequest(http.MethodDelete, "/api/v1/sessions/"+first.ID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, string(env.Data), first.ID)

	rec, env = srv.do(t, httptest.NewRequest(http.MethodDelete, "/api/v1/sessions", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, srv.sessions.Sessions(ctx), 1)
}

func TestAuthRequired(t *testing.T) {
	hash, err := security.HashPairingCode("246810")
	require.NoError(t, err)
	jwtManager := security.NewJWTManager("router-test-secret", time.Minute, time.Hour)

	srv := newTestServer(t, func(d *Deps) {
		d.JWT = jwtManager
		d.Auth = service.NewAuthService(jwtManager, hash)
	})

	rec, _ := srv.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/sessions", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = srv.do(t, httptest.NewRequest(http.MethodPost, "/api/v1/auth/pair", strings.NewReader(`{"code":"999999","device_name":"phone"}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = srv.do(t, httptest.NewRequest(http.MethodPost, "/api/v1/auth/pair", strings.NewReader(`{"code":"246810"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env := srv.do(t, httptest.NewRequest(http.MethodPost, "/api/v1/auth/pair", strings.NewReader(`{"code":"246810","device_name":"phone"}`)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var tokens service.TokenPair
	require.NoError(t, json.Unmarshal(env.Data, &tokens))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions", nil)
	req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
	rec, _ = srv.do(t, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
	rec, env = srv.do(t, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"device_name":"phone"`)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/sessions", nil)
	req.Header.Set("Authorization", "Bearer "+tokens.RefreshToken)
	rec, _ = srv.do(t, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = srv.do(t, httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", strings.NewReader(`{"refresh_token":"`+tokens.RefreshToken+`"}`)))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPairingDisabled(t *testing.T) {
	srv := newTestServer(t, nil)

	rec, _ := srv.do(t, httptest.NewRequest(http.MethodPost, "/api/v1/auth/pair", strings.NewReader(`{"code":"246810","device_name":"phone"}`)))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRecordingRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.Wrap(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}), "tnt:")
	t.Cleanup(func() { client.Close() })

	srv := newTestServer(t, func(d *Deps) {
		d.RateLimiter = redis.NewRateLimiter(client, 1, 0)
	})

	rec, _ := srv.do(t, uploadRequest(t, "/api/v1/recordings?wait=true", "a.wav", "", []byte("one")))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec, _ = srv.do(t, uploadRequest(t, "/api/v1/recordings?wait=true", "b.wav", "", []byte("two")))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)

	srv.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	rec := httptest.NewRecorder()
	srv.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/api/v1/health")
}
