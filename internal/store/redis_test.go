package store

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/arbiterhq/arbiter/internal/objects"
)

func setupRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisStore(client, "arbiter"), mr
}

func TestRedisStore_Principal(t *testing.T) {
	s, mr := setupRedisStore(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("arbiter:tenant:acme:user:john@doe.com", `{"department":"engineering"}`))

	t.Run("known principal", func(t *testing.T) {
		attrs, found, err := s.Principal(ctx, "acme", "john@doe.com")
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, objects.Attributes{"department": "engineering"}, attrs)
	})

	t.Run("unknown principal", func(t *testing.T) {
		_, found, err := s.Principal(ctx, "acme", "ghost@doe.com")
		require.NoError(t, err)
		require.False(t, found)
	})

	t.Run("corrupt document", func(t *testing.T) {
		require.NoError(t, mr.Set("arbiter:tenant:acme:user:bad@doe.com", "not json"))

		_, _, err := s.Principal(ctx, "acme", "bad@doe.com")
		require.ErrorContains(t, err, "decode attribute document")
	})
}

func TestRedisStore_Resource(t *testing.T) {
	s, mr := setupRedisStore(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("arbiter:tenant:acme:resource:document:*", `{"classification":"internal"}`))
	require.NoError(t, mr.Set("arbiter:tenant:acme:resource:document:doc-1", `{"owners":["john@doe.com"]}`))

	t.Run("instance overlays type level", func(t *testing.T) {
		attrs, found, err := s.Resource(ctx, "acme", "document", "doc-1")
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, "internal", attrs["classification"])
		require.Equal(t, []any{"john@doe.com"}, attrs["owners"])
	})

	t.Run("unknown instance falls back to type level", func(t *testing.T) {
		attrs, found, err := s.Resource(ctx, "acme", "document", "doc-999")
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, objects.Attributes{"classification": "internal"}, attrs)
	})

	t.Run("instance without type level", func(t *testing.T) {
		require.NoError(t, mr.Set("arbiter:tenant:acme:resource:folder:f-1", `{"shared":true}`))

		attrs, found, err := s.Resource(ctx, "acme", "folder", "f-1")
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, objects.Attributes{"shared": true}, attrs)
	})

	t.Run("nothing stored", func(t *testing.T) {
		_, found, err := s.Resource(ctx, "acme", "project", "p-1")
		require.NoError(t, err)
		require.False(t, found)
	})
}
