package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Rrens/tnt-ai/internal/api/response"
	"github.com/Rrens/tnt-ai/internal/service"
)

// SessionHandler exposes session browsing and management.
type SessionHandler struct {
	sessions *service.SessionService
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessions *service.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// List returns all sessions, newest first
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	response.OK(w, h.sessions.Sessions(r.Context()))
}

// Create starts a new session and makes it active
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	response.Created(w, h.sessions.NewSession(r.Context()))
}

// Active returns the active session along with its busy flag
func (h *SessionHandler) Active(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.Active(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	response.OK(w, map[string]any{
		"session": session,
		"busy":    h.sessions.Busy(session.ID),
	})
}

// Get returns one session
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.Session(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, err)
		return
	}

	response.OK(w, session)
}

// Select makes a session active
func (h *SessionHandler) Select(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.SelectSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, err)
		return
	}

	response.OK(w, session)
}

// Rename sets a session title
func (h *SessionHandler) Rename(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Title string `json:"title" validate:"required,max=120"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if err := validate.Struct(input); err != nil {
		response.BadRequest(w, validationErrors(err))
		return
	}

	session, err := h.sessions.RenameSession(r.Context(), chi.URLParam(r, "sessionID"), input.Title)
	if err != nil {
		writeError(w, err)
		return
	}

	response.OK(w, session)
}

// Delete removes a session and returns the session that is active afterwards
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	active := h.sessions.DeleteSession(r.Context(), chi.URLParam(r, "sessionID"))

	response.OK(w, map[string]any{
		"active": active,
	})
}

// Clear removes every session
func (h *SessionHandler) Clear(w http.ResponseWriter, r *http.Request) {
	active := h.sessions.ClearAll(r.Context())

	response.OK(w, map[string]any{
		"active": active,
	})
}
