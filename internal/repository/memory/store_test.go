package memory

import (
	"testing"

	"github.com/Rrens/tnt-ai/internal/repository/kvtest"
)

func TestStore(t *testing.T) {
	kvtest.Run(t, New())
}
