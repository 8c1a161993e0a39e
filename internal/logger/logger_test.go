package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rrens/tnt-ai/internal/config"
)

func TestSetup_Level(t *testing.T) {
	closer, err := Setup(config.LoggingConfig{Level: "warn", Format: "json"})
	require.NoError(t, err)
	defer closer.Close()

	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())
}

func TestSetup_InvalidLevelFallsBackToInfo(t *testing.T) {
	closer, err := Setup(config.LoggingConfig{Level: "chatty", Format: "json"})
	require.NoError(t, err)
	defer closer.Close()

	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}

func TestSetup_RotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "tnt.log")

	closer, err := Setup(config.LoggingConfig{Level: "info", Format: "json", File: path})
	require.NoError(t, err)

	log.Info().Str("component", "test").Msg("hello")
	require.NoError(t, closer.Close())

	matches, err := filepath.Glob(path + ".*")
	require.NoError(t, err)
	require.Len(t, matches, 1)

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), `"component":"test"`)
}
