package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stateStoreHarness lets the same contract run against every backend.
type stateStoreHarness struct {
	store   StateStore
	advance func(time.Duration)
}

func memoryHarness(t *testing.T) stateStoreHarness {
	clock := clockwork.NewFakeClock()
	return stateStoreHarness{
		store:   NewMemoryStateStore(clock),
		advance: clock.Advance,
	}
}

func redisHarness(t *testing.T) stateStoreHarness {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return stateStoreHarness{
		store:   NewRedisStateStore(client),
		advance: mr.FastForward,
	}
}

func TestStateStore_Contract(t *testing.T) {
	harnesses := map[string]func(*testing.T) stateStoreHarness{
		"memory": memoryHarness,
		"redis":  redisHarness,
	}

	for name, newHarness := range harnesses {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			t.Run("get absent", func(t *testing.T) {
				h := newHarness(t)
				v, err := h.store.Get(ctx, "missing")
				require.NoError(t, err)
				assert.Nil(t, v)

				ok, err := h.store.Exists(ctx, "missing")
				require.NoError(t, err)
				assert.False(t, ok)
			})

			t.Run("set replaces", func(t *testing.T) {
				h := newHarness(t)
				require.NoError(t, h.store.Set(ctx, "k", []byte(`{"v":1}`), 0))
				require.NoError(t, h.store.Set(ctx, "k", []byte(`{"v":2}`), 0))

				v, err := h.store.Get(ctx, "k")
				require.NoError(t, err)
				assert.Equal(t, `{"v":2}`, string(v))
			})

			t.Run("ttl expires", func(t *testing.T) {
				h := newHarness(t)
				require.NoError(t, h.store.Set(ctx, "k", []byte("x"), time.Minute))

				h.advance(30 * time.Second)
				ok, err := h.store.Exists(ctx, "k")
				require.NoError(t, err)
				assert.True(t, ok)

				h.advance(31 * time.Second)
				v, err := h.store.Get(ctx, "k")
				require.NoError(t, err)
				assert.Nil(t, v)
			})

			t.Run("no ttl persists", func(t *testing.T) {
				h := newHarness(t)
				require.NoError(t, h.store.Set(ctx, "k", []byte("x"), 0))
				h.advance(365 * 24 * time.Hour)

				ok, err := h.store.Exists(ctx, "k")
				require.NoError(t, err)
				assert.True(t, ok)
			})

			t.Run("delete", func(t *testing.T) {
				h := newHarness(t)
				require.NoError(t, h.store.Set(ctx, "k", []byte("x"), 0))
				require.NoError(t, h.store.Delete(ctx, "k"))
				require.NoError(t, h.store.Delete(ctx, "k"), "deleting an absent key is not an error")

				v, err := h.store.Get(ctx, "k")
				require.NoError(t, err)
				assert.Nil(t, v)
			})
		})
	}
}

func TestMemoryStateStore_CopiesValues(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStateStore(nil)

	buf := []byte("original")
	require.NoError(t, s.Set(ctx, "k", buf, 0))
	copy(buf, "mutated!")

	v, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "original", string(v))
}

func TestMemoryStateStore_PurgeExpired(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	s := NewMemoryStateStore(clock)

	require.NoError(t, s.Set(ctx, "short", []byte("x"), time.Second))
	require.NoError(t, s.Set(ctx, "long", []byte("x"), time.Hour))
	require.NoError(t, s.Set(ctx, "forever", []byte("x"), 0))
	clock.Advance(time.Minute)

	purger, ok := s.(Purger)
	require.True(t, ok)
	n, err := purger.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	for _, key := range []string{"long", "forever"} {
		ok, err := s.Exists(ctx, key)
		require.NoError(t, err)
		assert.True(t, ok, key)
	}
}

func TestRedisStateStore_NegativeTTLMeansNoExpiry(t *testing.T) {
	h := redisHarness(t)
	ctx := context.Background()

	require.NoError(t, h.store.Set(ctx, "k", []byte("x"), -time.Second))
	h.advance(time.Hour)

	ok, err := h.store.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
}
