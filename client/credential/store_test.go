package credential

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewRedisStore(rdb, "")
}

func TestStores(t *testing.T) {
	backends := map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store { return NewMemoryStore() },
		"file": func(t *testing.T) Store {
			return NewFileStore(filepath.Join(t.TempDir(), "nested", "credentials.json"))
		},
		"redis": func(t *testing.T) Store { return newRedisStore(t) },
	}

	for name, mk := range backends {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := mk(t)

			p, err := s.Get(ctx)
			require.NoError(t, err)
			require.Nil(t, p, "fresh store must be empty")

			require.NoError(t, s.Set(ctx, Pair{Access: "A1", Refresh: "R1"}))
			p, err = s.Get(ctx)
			require.NoError(t, err)
			require.Equal(t, &Pair{Access: "A1", Refresh: "R1"}, p)

			require.NoError(t, s.Set(ctx, Pair{Access: "A2", Refresh: "R1"}))
			p, err = s.Get(ctx)
			require.NoError(t, err)
			require.Equal(t, "A2", p.Access)
			require.Equal(t, "R1", p.Refresh)

			require.ErrorIs(t, s.Set(ctx, Pair{Refresh: "R9"}), ErrEmptyAccess)

			require.NoError(t, s.Clear(ctx))
			p, err = s.Get(ctx)
			require.NoError(t, err)
			require.Nil(t, p)

			// clearing twice is a no-op
			require.NoError(t, s.Clear(ctx))
		})
	}
}

func TestFileStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "credentials.json")

	require.NoError(t, NewFileStore(path).Set(ctx, Pair{Access: "A1", Refresh: "R1"}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	p, err := NewFileStore(path).Get(ctx)
	require.NoError(t, err)
	require.Equal(t, &Pair{Access: "A1", Refresh: "R1"}, p)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.JSONEq(t, `{"access_token":"A1","refresh_token":"R1"}`, string(raw))
}

func TestFileStore_MissingAccessMeansAbsent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"refresh_token":"R1"}`), 0o600))

	p, err := NewFileStore(path).Get(context.Background())
	require.NoError(t, err)
	require.Nil(t, p)
}

func TestFileStore_CorruptDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o600))

	_, err := NewFileStore(path).Get(context.Background())
	require.Error(t, err)
}

func TestRedisStore_SetWithoutRefreshDropsOldRefresh(t *testing.T) {
	ctx := context.Background()
	s := newRedisStore(t)

	require.NoError(t, s.Set(ctx, Pair{Access: "A1", Refresh: "R1"}))
	require.NoError(t, s.Set(ctx, Pair{Access: "A2"}))

	p, err := s.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, &Pair{Access: "A2"}, p)
}
