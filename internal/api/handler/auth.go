package handler

import (
	"encoding/json"
	"net/http"

	"github.com/Rrens/tnt-ai/internal/api/middleware"
	"github.com/Rrens/tnt-ai/internal/api/response"
	"github.com/Rrens/tnt-ai/internal/service"
)

// AuthHandler handles device pairing endpoints
type AuthHandler struct {
	authService *service.AuthService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// Pair exchanges the pairing code for a token pair
func (h *AuthHandler) Pair(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Code       string `json:"code" validate:"required,min=6"`
		DeviceName string `json:"device_name" validate:"required,max=64"`
	}

	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	if err := validate.Struct(input); err != nil {
		response.BadRequest(w, validationErrors(err))
		return
	}

	tokens, err := h.authService.Pair(r.Context(), input.Code, input.DeviceName)
	if err != nil {
		writeError(w, err)
		return
	}

	response.Created(w, tokens)
}

// Refresh handles token refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var input struct {
		RefreshToken string `json:"refresh_token" validate:"required"`
	}

	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	if err := validate.Struct(input); err != nil {
		response.BadRequest(w, validationErrors(err))
		return
	}

	tokens, err := h.authService.Refresh(r.Context(), input.RefreshToken)
	if err != nil {
		response.Unauthorized(w, err.Error())
		return
	}

	response.OK(w, tokens)
}

// Me returns the authenticated device
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := middleware.GetDeviceID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}
	name, _ := middleware.GetDeviceName(r.Context())

	response.OK(w, map[string]any{
		"device_id":   deviceID,
		"device_name": name,
	})
}
