package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Rrens/tnt-ai/internal/api/response"
	"github.com/Rrens/tnt-ai/internal/audio"
	"github.com/Rrens/tnt-ai/internal/service"
)

const (
	// multipartOverhead leaves room for the form fields and part headers.
	multipartOverhead = 1 << 20

	// waitMargin ends a ?wait=true upload before the request deadline so the
	// 202 fallback is written by this handler, not the timeout middleware.
	waitMargin = 2 * time.Second
)

// RecordingHandler accepts recorded audio and feeds it to the active session.
type RecordingHandler struct {
	sessions *service.SessionService
	sink     *audio.Sink
	maxBytes int64
}

// NewRecordingHandler creates a new recording handler
func NewRecordingHandler(sessions *service.SessionService, sink *audio.Sink, maxBytes int64) *RecordingHandler {
	return &RecordingHandler{sessions: sessions, sink: sink, maxBytes: maxBytes}
}

// Upload saves the multipart "file" part and submits it with the optional
// "target_lang" field. With ?wait=true the response carries the settled
// message; otherwise it returns 202 with the pending one.
func (h *RecordingHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+multipartOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, audio.ErrTooLarge)
			return
		}
		response.BadRequest(w, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		response.BadRequest(w, "no file uploaded")
		return
	}
	defer file.Close()

	rec, err := h.sink.Save(file, header.Filename)
	if err != nil {
		writeError(w, err)
		return
	}

	targetLang := r.FormValue("target_lang")
	wait, _ := strconv.ParseBool(r.URL.Query().Get("wait"))

	if !wait {
		pending, err := h.sessions.Submit(r.Context(), rec.Handle, targetLang)
		if err != nil {
			h.discard(rec)
			writeError(w, err)
			return
		}
		response.Accepted(w, map[string]any{
			"message":   pending,
			"recording": rec,
		})
		return
	}

	ctx, cancel := waitContext(r.Context())
	defer cancel()

	settled, err := h.sessions.Record(ctx, rec.Handle, targetLang)
	switch {
	case r.Context().Err() != nil:
		// Client went away or the server deadline passed; nothing useful to write.
		return
	case errors.Is(err, context.DeadlineExceeded):
		// The request keeps running; the client picks the result up from the session.
		response.Accepted(w, map[string]any{
			"recording": rec,
		})
	case err != nil:
		h.discard(rec)
		writeError(w, err)
	default:
		response.OK(w, map[string]any{
			"message":   settled,
			"recording": rec,
		})
	}
}

// waitContext bounds a blocking upload by the request deadline minus waitMargin.
func waitContext(parent context.Context) (context.Context, context.CancelFunc) {
	deadline, ok := parent.Deadline()
	if !ok {
		return context.WithCancel(parent)
	}
	return context.WithDeadline(parent, deadline.Add(-waitMargin))
}

// discard removes a saved recording that never entered a session.
func (h *RecordingHandler) discard(rec *audio.Recording) {
	if err := h.sink.Remove(rec.Handle); err != nil {
		log.Warn().Err(err).Str("handle", rec.Handle).Msg("failed to remove rejected recording")
	}
}
