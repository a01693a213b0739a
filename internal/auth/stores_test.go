package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type manualClock struct{ now time.Time }

func (c *manualClock) Now() time.Time { return c.now }

func TestMemoryAttemptStoreWindow(t *testing.T) {
	clk := &manualClock{now: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)}
	store := NewMemoryAttemptStore(clk.Now)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		n, err := store.RecordFailure(ctx, " Lan@Example.com ", 10*time.Minute)
		require.NoError(t, err)
		assert.Equal(t, int64(i), n)
		clk.now = clk.now.Add(time.Minute)
	}
	n, err := store.Failures(ctx, "lan@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	clk.now = clk.now.Add(7 * time.Minute)
	n, err = store.Failures(ctx, "lan@example.com")
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = store.RecordFailure(ctx, "lan@example.com", 10*time.Minute)
	require.NoError(t, err)
	require.NoError(t, store.Reset(ctx, "LAN@example.com"))
	n, _ = store.Failures(ctx, "lan@example.com")
	assert.Zero(t, n)
}

func TestMemoryTokenStoreIsSingleUse(t *testing.T) {
	clk := &manualClock{now: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)}
	store := NewMemoryTokenStore(clk.Now)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "tok", "u-1", time.Hour))
	userID, err := store.Consume(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, "u-1", userID)

	_, err = store.Consume(ctx, "tok")
	assert.ErrorIs(t, err, ErrTokenNotFound)

	require.NoError(t, store.Put(ctx, "late", "u-2", time.Minute))
	clk.now = clk.now.Add(time.Minute)
	_, err = store.Consume(ctx, "late")
	assert.ErrorIs(t, err, ErrTokenNotFound)
}
