package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-pkgz/testutils/containers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_SQLite(t *testing.T) {
	t.Run("creates database successfully", func(t *testing.T) {
		st, err := New(filepath.Join(t.TempDir(), "test.db"))
		require.NoError(t, err)
		defer st.Close()
		assert.NotNil(t, st.db)
		assert.Equal(t, DBTypeSQLite, st.dbType)
	})

	t.Run("fails with invalid path", func(t *testing.T) {
		_, err := New("/nonexistent/dir/test.db")
		require.Error(t, err)
	})
}

func TestStore_SetGetDelete(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	t.Run("set and get value", func(t *testing.T) {
		require.NoError(t, st.Set(ctx, "client1/msm-theme", []byte("dark")))
		value, err := st.Get(ctx, "client1/msm-theme")
		require.NoError(t, err)
		assert.Equal(t, []byte("dark"), value)
	})

	t.Run("update existing key", func(t *testing.T) {
		require.NoError(t, st.Set(ctx, "client2/msm-theme", []byte("dark")))
		require.NoError(t, st.Set(ctx, "client2/msm-theme", []byte("light")))
		value, err := st.Get(ctx, "client2/msm-theme")
		require.NoError(t, err)
		assert.Equal(t, []byte("light"), value)
	})

	t.Run("get nonexistent key returns ErrNotFound", func(t *testing.T) {
		_, err := st.Get(ctx, "nonexistent")
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("delete existing key", func(t *testing.T) {
		require.NoError(t, st.Set(ctx, "todelete", []byte("dark")))
		require.NoError(t, st.Delete(ctx, "todelete"))
		_, err := st.Get(ctx, "todelete")
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("delete nonexistent key returns ErrNotFound", func(t *testing.T) {
		require.ErrorIs(t, st.Delete(ctx, "nonexistent"), ErrNotFound)
	})

	t.Run("canceled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		require.Error(t, st.Set(cctx, "k", []byte("dark")))
	})
}

func TestStore_List(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	before := time.Now().Add(-time.Minute)
	require.NoError(t, st.Set(ctx, "c1/msm-theme", []byte("dark")))
	require.NoError(t, st.Set(ctx, "c1/other", []byte("light")))
	require.NoError(t, st.Set(ctx, "c10/msm-theme", []byte("light")))
	require.NoError(t, st.Set(ctx, "c_x/msm-theme", []byte("dark")))

	t.Run("lists keys with prefix in order", func(t *testing.T) {
		res, err := st.List(ctx, "c1/")
		require.NoError(t, err)
		require.Len(t, res, 2)
		assert.Equal(t, "c1/msm-theme", res[0].Key)
		assert.Equal(t, "dark", res[0].Theme())
		assert.Equal(t, "c1/other", res[1].Key)
		assert.True(t, res[0].UpdatedAt.After(before), "updated_at %v", res[0].UpdatedAt)
	})

	t.Run("wildcards in prefix are literal", func(t *testing.T) {
		res, err := st.List(ctx, "c_")
		require.NoError(t, err)
		require.Len(t, res, 1)
		assert.Equal(t, "c_x/msm-theme", res[0].Key)

		res, err = st.List(ctx, "%")
		require.NoError(t, err)
		assert.Empty(t, res)
	})

	t.Run("empty prefix lists everything", func(t *testing.T) {
		res, err := st.List(ctx, "")
		require.NoError(t, err)
		assert.Len(t, res, 4)
	})

	t.Run("no match", func(t *testing.T) {
		res, err := st.List(ctx, "nobody/")
		require.NoError(t, err)
		assert.Empty(t, res)
	})
}

func TestLikePrefix(t *testing.T) {
	assert.Equal(t, "abc%", likePrefix("abc"))
	assert.Equal(t, `a\%b\_c\\%`, likePrefix(`a%b_c\`))
}

func TestStore_Closed(t *testing.T) {
	st, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, st.Close())

	_, err = st.Get(context.Background(), "key")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

// PostgreSQL tests using testcontainers

func TestStore_Postgres(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}
	ctx := context.Background()

	t.Log("starting postgres container...")
	pgContainer := containers.NewPostgresTestContainerWithDB(ctx, t, "themer_test")
	defer pgContainer.Close(ctx)

	st, err := New(pgContainer.ConnectionString())
	require.NoError(t, err)
	defer st.Close()

	assert.Equal(t, DBTypePostgres, st.dbType)

	t.Run("set and get value", func(t *testing.T) {
		require.NoError(t, st.Set(ctx, "pg/msm-theme", []byte("dark")))
		value, err := st.Get(ctx, "pg/msm-theme")
		require.NoError(t, err)
		assert.Equal(t, []byte("dark"), value)
	})

	t.Run("upsert", func(t *testing.T) {
		require.NoError(t, st.Set(ctx, "pg/msm-theme", []byte("light")))
		value, err := st.Get(ctx, "pg/msm-theme")
		require.NoError(t, err)
		assert.Equal(t, []byte("light"), value)
	})

	t.Run("missing key", func(t *testing.T) {
		_, err := st.Get(ctx, "nonexistent")
		require.ErrorIs(t, err, ErrNotFound)
		require.ErrorIs(t, st.Delete(ctx, "nonexistent"), ErrNotFound)
	})

	t.Run("list", func(t *testing.T) {
		require.NoError(t, st.Set(ctx, "pg/extra", []byte("dark")))
		require.NoError(t, st.Set(ctx, "pgx/msm-theme", []byte("dark")))
		res, err := st.List(ctx, "pg/")
		require.NoError(t, err)
		require.Len(t, res, 2)
		assert.Equal(t, "pg/extra", res[0].Key)
		assert.Equal(t, "pg/msm-theme", res[1].Key)
		assert.Equal(t, "light", res[1].Theme())
		assert.False(t, res[1].UpdatedAt.IsZero())
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, st.Delete(ctx, "pg/msm-theme"))
		_, err := st.Get(ctx, "pg/msm-theme")
		require.ErrorIs(t, err, ErrNotFound)
	})
}
