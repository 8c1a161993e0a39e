package handler

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/Rrens/tnt-ai/internal/api/response"
	"github.com/Rrens/tnt-ai/internal/audio"
	"github.com/Rrens/tnt-ai/internal/service"
	"github.com/Rrens/tnt-ai/internal/transcribe"
)

var validate = validator.New()

// writeError maps service and audio errors onto status codes.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		response.NotFound(w, err.Error())
	case errors.Is(err, service.ErrBusy):
		response.Conflict(w, err.Error())
	case errors.Is(err, service.ErrBackendOffline):
		response.Unavailable(w, err.Error())
	case errors.Is(err, service.ErrNoActiveSession):
		response.Unavailable(w, err.Error())
	case errors.Is(err, service.ErrUnsupportedLanguage),
		errors.Is(err, service.ErrEmptyTitle),
		errors.Is(err, transcribe.ErrInvalidAudio),
		errors.Is(err, audio.ErrUnsupportedFormat),
		errors.Is(err, audio.ErrEmpty):
		response.BadRequest(w, err.Error())
	case errors.Is(err, audio.ErrTooLarge):
		response.TooLarge(w, err.Error())
	case errors.Is(err, service.ErrInvalidPairingCode):
		response.Unauthorized(w, err.Error())
	case errors.Is(err, service.ErrAuthDisabled):
		response.NotFound(w, err.Error())
	default:
		log.Error().Err(err).Msg("unhandled request error")
		response.InternalError(w, "internal error")
	}
}

// validationErrors flattens validator output into field -> message.
func validationErrors(err error) any {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	out := make(map[string]string, len(verrs))
	for _, e := range verrs {
		switch e.Tag() {
		case "required":
			out[e.Field()] = "field is required"
		case "min":
			out[e.Field()] = "must be at least " + e.Param() + " characters"
		case "max":
			out[e.Field()] = "must be at most " + e.Param() + " characters"
		default:
			out[e.Field()] = "validation failed on " + e.Tag()
		}
	}
	return out
}
