package publisher

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iplist/pkg/platform/sentinel"
)

func TestMemory(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	t.Run("absent then created", func(t *testing.T) {
		snap, err := m.Fetch(ctx, "streaming")
		require.NoError(t, err)
		assert.False(t, snap.Exists)

		_, err = m.Write(ctx, "streaming", []byte("v1"), "", "feat(streaming): add netflix.com")
		require.NoError(t, err)

		snap, err = m.Fetch(ctx, "streaming")
		require.NoError(t, err)
		assert.True(t, snap.Exists)
		assert.Equal(t, []byte("v1"), snap.Content)
		assert.NotEmpty(t, snap.Revision)
	})

	t.Run("stale revision conflicts", func(t *testing.T) {
		snap, err := m.Fetch(ctx, "streaming")
		require.NoError(t, err)

		_, err = m.Write(ctx, "streaming", []byte("v2"), snap.Revision, "fix(streaming): update hulu.com")
		require.NoError(t, err)

		_, err = m.Write(ctx, "streaming", []byte("v3"), snap.Revision, "fix(streaming): update max.com")
		assert.ErrorIs(t, err, sentinel.ErrConflict)
		assert.Equal(t, []byte("v2"), m.Content("streaming"))
	})

	t.Run("seed and list", func(t *testing.T) {
		m.Seed("ai", []byte("{}"))
		names, err := m.Categories(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"ai", "streaming"}, names)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := m.Fetch(cctx, "ai")
		assert.ErrorIs(t, err, context.Canceled)
	})
}
