// Package kvtest holds the behaviour every domain.KVStore driver must share.
package kvtest

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rrens/tnt-ai/internal/domain"
)

// Run exercises store. The store must start empty.
func Run(t *testing.T, store domain.KVStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("missing key", func(t *testing.T) {
		_, err := store.GetItem(ctx, "kvtest:missing")
		assert.ErrorIs(t, err, domain.ErrKeyNotFound)
	})

	t.Run("set and get", func(t *testing.T) {
		require.NoError(t, store.SetItem(ctx, "kvtest:a", "one"))
		got, err := store.GetItem(ctx, "kvtest:a")
		require.NoError(t, err)
		assert.Equal(t, "one", got)
	})

	t.Run("overwrite", func(t *testing.T) {
		require.NoError(t, store.SetItem(ctx, "kvtest:a", "two"))
		got, err := store.GetItem(ctx, "kvtest:a")
		require.NoError(t, err)
		assert.Equal(t, "two", got)
	})

	t.Run("empty value is stored", func(t *testing.T) {
		require.NoError(t, store.SetItem(ctx, "kvtest:empty", ""))
		got, err := store.GetItem(ctx, "kvtest:empty")
		require.NoError(t, err)
		assert.Equal(t, "", got)
	})

	t.Run("large value", func(t *testing.T) {
		big := strings.Repeat("x", 256<<10)
		require.NoError(t, store.SetItem(ctx, "kvtest:big", big))
		got, err := store.GetItem(ctx, "kvtest:big")
		require.NoError(t, err)
		assert.Len(t, got, len(big))
	})

	t.Run("remove", func(t *testing.T) {
		require.NoError(t, store.RemoveItem(ctx, "kvtest:a"))
		_, err := store.GetItem(ctx, "kvtest:a")
		assert.ErrorIs(t, err, domain.ErrKeyNotFound)

		// Removing twice is fine.
		require.NoError(t, store.RemoveItem(ctx, "kvtest:a"))
	})

	t.Run("keys are independent", func(t *testing.T) {
		require.NoError(t, store.SetItem(ctx, "@tnt_ai_sessions", `{"version":1,"sessions":[]}`))
		require.NoError(t, store.SetItem(ctx, "@tnt_ai_active_session", "session_1"))

		sessions, err := store.GetItem(ctx, "@tnt_ai_sessions")
		require.NoError(t, err)
		assert.Equal(t, `{"version":1,"sessions":[]}`, sessions)

		active, err := store.GetItem(ctx, "@tnt_ai_active_session")
		require.NoError(t, err)
		assert.Equal(t, "session_1", active)
	})
}
