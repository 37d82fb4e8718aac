package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCompareCache(t *testing.T) (*CompareCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCompareCache(client, time.Minute), mr
}

type cachedView struct {
	Rows []string `json:"rows"`
}

func TestCompareCache_RoundTrip(t *testing.T) {
	cc, _ := newTestCompareCache(t)
	ctx := context.Background()

	promptID, baseID, compareID := uuid.New(), uuid.New(), uuid.New()
	stored := cachedView{Rows: []string{"a", "b"}}

	require.NoError(t, cc.Set(ctx, promptID, baseID, compareID, stored))

	var got cachedView
	require.NoError(t, cc.Get(ctx, promptID, baseID, compareID, &got))
	assert.Equal(t, stored, got)
}

func TestCompareCache_MissIsRedisNil(t *testing.T) {
	cc, _ := newTestCompareCache(t)

	var got cachedView
	err := cc.Get(context.Background(), uuid.New(), uuid.New(), uuid.New(), &got)
	assert.ErrorIs(t, err, redis.Nil)
}

func TestCompareCache_InvalidateOrphansCachedViews(t *testing.T) {
	cc, _ := newTestCompareCache(t)
	ctx := context.Background()

	promptID, baseID, compareID := uuid.New(), uuid.New(), uuid.New()
	require.NoError(t, cc.Set(ctx, promptID, baseID, compareID, cachedView{Rows: []string{"stale"}}))

	require.NoError(t, cc.Invalidate(ctx, promptID))

	// The bumped generation changes the key, so the old entry is unreachable.
	var got cachedView
	err := cc.Get(ctx, promptID, baseID, compareID, &got)
	assert.ErrorIs(t, err, redis.Nil)

	// A fresh Set under the new generation is served again.
	require.NoError(t, cc.Set(ctx, promptID, baseID, compareID, cachedView{Rows: []string{"fresh"}}))
	require.NoError(t, cc.Get(ctx, promptID, baseID, compareID, &got))
	assert.Equal(t, []string{"fresh"}, got.Rows)
}

func TestCompareCache_InvalidateScopedToPrompt(t *testing.T) {
	cc, _ := newTestCompareCache(t)
	ctx := context.Background()

	promptA, promptB := uuid.New(), uuid.New()
	baseID, compareID := uuid.New(), uuid.New()

	require.NoError(t, cc.Set(ctx, promptA, baseID, compareID, cachedView{Rows: []string{"a"}}))
	require.NoError(t, cc.Set(ctx, promptB, baseID, compareID, cachedView{Rows: []string{"b"}}))

	require.NoError(t, cc.Invalidate(ctx, promptA))

	var got cachedView
	assert.ErrorIs(t, cc.Get(ctx, promptA, baseID, compareID, &got), redis.Nil)
	require.NoError(t, cc.Get(ctx, promptB, baseID, compareID, &got))
	assert.Equal(t, []string{"b"}, got.Rows)
}

func TestCompareCache_EntriesExpire(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cc := NewCompareCache(client, time.Second)
	ctx := context.Background()

	promptID, baseID, compareID := uuid.New(), uuid.New(), uuid.New()
	require.NoError(t, cc.Set(ctx, promptID, baseID, compareID, cachedView{Rows: []string{"x"}}))

	mr.FastForward(2 * time.Second)

	var got cachedView
	assert.ErrorIs(t, cc.Get(ctx, promptID, baseID, compareID, &got), redis.Nil)
}
