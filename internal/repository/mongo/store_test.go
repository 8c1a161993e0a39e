package mongo

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Rrens/tnt-ai/internal/config"
	"github.com/Rrens/tnt-ai/internal/repository/kvtest"
)

func TestStore(t *testing.T) {
	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TEST_MONGO_URI not set")
	}
	ctx := context.Background()

	store, err := Connect(ctx, config.MongoConfig{
		URI:        uri,
		Database:   "tnt_test",
		Collection: fmt.Sprintf("kv_%d", time.Now().UnixNano()),
	})
	require.NoError(t, err)
	defer func() {
		_ = store.collection.Drop(ctx)
		store.Close()
	}()

	kvtest.Run(t, store)
}

func TestConnect_RequiresSettings(t *testing.T) {
	_, err := Connect(context.Background(), config.MongoConfig{URI: "mongodb://localhost:27017"})
	require.Error(t, err)
}
