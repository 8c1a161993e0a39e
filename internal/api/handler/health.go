package handler

import (
	"context"
	"net/http"

	"github.com/Rrens/tnt-ai/internal/api/response"
	"github.com/Rrens/tnt-ai/internal/service"
)

// Pinger is implemented by KV drivers that hold a connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthCheck returns a simple health check response
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.OK(w, map[string]string{
		"status": "ok",
	})
}

// ReadyCheck reports whether the session storage is reachable.
// Drivers without a connection are always ready.
func ReadyCheck(store any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if p, ok := store.(Pinger); ok {
			if err := p.Ping(r.Context()); err != nil {
				response.Unavailable(w, "storage not ready")
				return
			}
		}

		response.OK(w, map[string]string{
			"status": "ready",
		})
	}
}

// BackendHealth probes the speech backend once and returns the answer.
func BackendHealth(sessions *service.SessionService, baseURL string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		online := sessions.CheckBackend(r.Context())

		response.OK(w, map[string]any{
			"online":   online,
			"base_url": baseURL,
		})
	}
}

// Languages lists the supported target languages.
func Languages(sessions *service.SessionService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		supported, def := sessions.Languages()

		response.OK(w, map[string]any{
			"languages": supported,
			"default":   def,
		})
	}
}
