package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Rrens/tnt-ai/internal/security"
)

// TokenPair is returned to a paired device.
type TokenPair struct {
	DeviceID     uuid.UUID `json:"device_id"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresIn    int64     `json:"expires_in"`
}

// AuthService pairs devices with the shared pairing code and issues tokens.
type AuthService struct {
	jwtManager      *security.JWTManager
	pairingCodeHash string
}

// NewAuthService creates a new auth service. A nil jwtManager disables pairing.
func NewAuthService(jwtManager *security.JWTManager, pairingCodeHash string) *AuthService {
	return &AuthService{
		jwtManager:      jwtManager,
		pairingCodeHash: pairingCodeHash,
	}
}

// Pair checks code and issues tokens for a new device id.
func (s *AuthService) Pair(ctx context.Context, code, deviceName string) (*TokenPair, error) {
	if s.jwtManager == nil {
		return nil, ErrAuthDisabled
	}
	if !security.CheckPairingCode(s.pairingCodeHash, strings.TrimSpace(code)) {
		log.Warn().Str("device_name", deviceName).Msg("pairing rejected")
		return nil, ErrInvalidPairingCode
	}

	deviceID := uuid.New()
	pair, err := s.issue(deviceID, deviceName)
	if err != nil {
		return nil, err
	}

	log.Info().Str("device_id", deviceID.String()).Str("device_name", deviceName).Msg("device paired")
	return pair, nil
}

// Refresh exchanges a refresh token for a new pair.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if s.jwtManager == nil {
		return nil, ErrAuthDisabled
	}
	claims, err := s.jwtManager.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("invalid refresh token: %w", err)
	}
	return s.issue(claims.DeviceID, claims.DeviceName)
}

func (s *AuthService) issue(deviceID uuid.UUID, deviceName string) (*TokenPair, error) {
	accessToken, refreshToken, expiresIn, err := s.jwtManager.GenerateTokenPair(deviceID, deviceName)
	if err != nil {
		return nil, fmt.Errorf("failed to generate tokens: %w", err)
	}
	return &TokenPair{
		DeviceID:     deviceID,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    expiresIn,
	}, nil
}
