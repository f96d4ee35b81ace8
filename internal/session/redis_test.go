package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/shopassist/internal/catalog"
)

func setupRedisStore(t *testing.T, opts ...RedisOption) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, opts...), mr
}

func TestRedisStore_LoadNotFound(t *testing.T) {
	store, _ := setupRedisStore(t)

	_, err := store.Load(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.Load(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidID)
}

func TestRedisStore_SaveAndLoad(t *testing.T) {
	store, mr := setupRedisStore(t, WithPrefix("test"))
	ctx := context.Background()

	st := NewState("sess-1", time.Now())
	st.AppendTurn(RoleUser, "show me jackets", time.Now())
	st.SetPage([]catalog.Product{{ID: "1", Title: "Leather Jacket"}, {ID: "2", Title: "Denim Jacket"}})
	ceiling := 80.0
	st.CacheResults("show me jackets", st.RecentProducts, SearchParams{PriceMax: &ceiling, Brand: "Acme"})
	st.PendingOrderNumber = "1001"
	require.NoError(t, store.Save(ctx, st))

	assert.True(t, mr.Exists("test:session:sess-1"))

	loaded, err := store.Load(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "show me jackets", loaded.CachedQuery)
	require.NotNil(t, loaded.CachedParams.PriceMax)
	assert.Equal(t, 80.0, *loaded.CachedParams.PriceMax)
	assert.Equal(t, "Acme", loaded.CachedParams.Brand)
	assert.Equal(t, "1001", loaded.PendingOrderNumber)
	require.Len(t, loaded.History, 1)
	p, ok := loaded.Numbered(2)
	require.True(t, ok)
	assert.Equal(t, "Denim Jacket", p.Title)
}

func TestRedisStore_TTL(t *testing.T) {
	store, mr := setupRedisStore(t, WithTTL(time.Minute))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, NewState("sess-ttl", time.Now())))
	assert.Equal(t, time.Minute, mr.TTL("shopassist:session:sess-ttl"))

	mr.FastForward(2 * time.Minute)
	_, err := store.Load(ctx, "sess-ttl")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_LoadOrCreateAndDelete(t *testing.T) {
	store, _ := setupRedisStore(t)
	ctx := context.Background()

	st, err := store.LoadOrCreate(ctx, "new")
	require.NoError(t, err)
	assert.Equal(t, "new", st.ID)

	require.NoError(t, store.Save(ctx, st))
	require.NoError(t, store.Delete(ctx, "new"))
	_, err = store.Load(ctx, "new")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_ConnectionError(t *testing.T) {
	store, mr := setupRedisStore(t)
	mr.Close()

	_, err := store.Load(context.Background(), "x")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}
