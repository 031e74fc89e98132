package service

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newSaleState(t *testing.T) (*SaleStateService, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewSaleStateService(rdb, "cache:products", zap.NewNop()), mr
}

func TestSaleState_DefaultsToInactive(t *testing.T) {
	s, _ := newSaleState(t)
	assert.False(t, s.IsActive(context.Background()))
}

func TestSaleState_StartAndEnd(t *testing.T) {
	ctx := context.Background()
	s, mr := newSaleState(t)

	require.NoError(t, s.Start(ctx))
	assert.True(t, s.IsActive(ctx))
	v, err := mr.Get("sale:active")
	require.NoError(t, err)
	assert.Equal(t, "true", v)

	require.NoError(t, s.End(ctx))
	assert.False(t, s.IsActive(ctx))
}

func TestSaleState_ToggleFlushesProductCache(t *testing.T) {
	ctx := context.Background()
	s, mr := newSaleState(t)
	for _, k := range []string{"cache:products:a1", "cache:products:b2", "cache:products:c3"} {
		require.NoError(t, mr.Set(k, "cached"))
	}
	require.NoError(t, mr.Set("purchase:queue:seq", "5"))

	require.NoError(t, s.Start(ctx))

	assert.False(t, mr.Exists("cache:products:a1"))
	assert.False(t, mr.Exists("cache:products:b2"))
	assert.False(t, mr.Exists("cache:products:c3"))
	assert.True(t, mr.Exists("purchase:queue:seq"))
}

func TestSaleState_UnreachableRedisReadsFalse(t *testing.T) {
	s, mr := newSaleState(t)
	require.NoError(t, s.Start(context.Background()))
	mr.Close()

	assert.False(t, s.IsActive(context.Background()))
	assert.Error(t, s.End(context.Background()))
}
