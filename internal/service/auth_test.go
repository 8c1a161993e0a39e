package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rrens/tnt-ai/internal/security"
)

func newAuthService(t *testing.T) *AuthService {
	t.Helper()
	hash, err := security.HashPairingCode("482913")
	require.NoError(t, err)

	manager := security.NewJWTManager("test-secret-key-for-device-tokens", 15*time.Minute, 24*time.Hour)
	return NewAuthService(manager, hash)
}

func TestAuthService_Pair(t *testing.T) {
	svc := newAuthService(t)

	pair, err := svc.Pair(context.Background(), " 482913 ", "kitchen tablet")
	require.NoError(t, err)

	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.Equal(t, int64(15*60), pair.ExpiresIn)
	assert.NotEqual(t, uuid.Nil, pair.DeviceID)

	_, err = svc.Pair(context.Background(), "000000", "intruder")
	assert.ErrorIs(t, err, ErrInvalidPairingCode)
}

func TestAuthService_Refresh(t *testing.T) {
	svc := newAuthService(t)
	ctx := context.Background()

	pair, err := svc.Pair(ctx, "482913", "phone")
	require.NoError(t, err)

	refreshed, err := svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, pair.DeviceID, refreshed.DeviceID)

	_, err = svc.Refresh(ctx, pair.AccessToken)
	assert.Error(t, err, "an access token must not refresh")

	_, err = svc.Refresh(ctx, "garbage")
	assert.Error(t, err)
}

func TestAuthService_Disabled(t *testing.T) {
	svc := NewAuthService(nil, "")

	_, err := svc.Pair(context.Background(), "482913", "phone")
	assert.ErrorIs(t, err, ErrAuthDisabled)

	_, err = svc.Refresh(context.Background(), "token")
	assert.ErrorIs(t, err, ErrAuthDisabled)
}
