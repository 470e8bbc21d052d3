package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache_SetGet(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "key", "value", time.Minute))

	got, err := c.Get(ctx, "key")
	require.NoError(t, err)
	assert.Equal(t, "value", got)
}

func TestMemoryCache_Miss(t *testing.T) {
	c := NewMemoryCache()

	_, err := c.Get(context.Background(), "absent")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryCache_Expiry(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "key", "value", time.Millisecond))
	time.Sleep(10 * time.Millisecond)

	_, err := c.Get(ctx, "key")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryCache_ZeroTTLNeverExpires(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "key", "value", 0))

	got, err := c.Get(ctx, "key")
	require.NoError(t, err)
	assert.Equal(t, "value", got)
}

func TestMemoryCache_Overwrite(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "key", "old", time.Minute))
	require.NoError(t, c.Set(ctx, "key", "new", time.Minute))

	got, err := c.Get(ctx, "key")
	require.NoError(t, err)
	assert.Equal(t, "new", got)
}

func TestMemoryCache_Delete(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "key", "value", time.Minute))
	require.NoError(t, c.Delete(ctx, "key"))

	_, err := c.Get(ctx, "key")
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting an absent key is a no-op.
	assert.NoError(t, c.Delete(ctx, "absent"))
}
