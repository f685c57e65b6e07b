package cursor

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileStoreMissingFileStartsEmpty(t *testing.T) {
	fs, err := NewFileStore(nil, filepath.Join(t.TempDir(), "does-not-exist.json"))
	require.NoError(t, err)

	urls, err := fs.List(context.Background())
	require.NoError(t, err)
	require.Empty(t, urls)

	_, ok, err := fs.Load(context.Background(), "https://log.example/")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestFileStoreAdvanceAndLoad(t *testing.T) {
	fs, err := NewFileStore(nil, filepath.Join(t.TempDir(), "cursor.json"))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, fs.Advance(ctx, "https://log.example/", 100))

	idx, ok, err := fs.Load(ctx, "https://log.example/")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(100), idx)
}

func TestFileStoreFlushAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cursor.json")
	ctx := context.Background()

	fs, err := NewFileStore(nil, path)
	require.NoError(t, err)
	require.NoError(t, fs.Advance(ctx, "https://a.example/", 5))
	require.NoError(t, fs.Advance(ctx, "https://b.example/", 9))
	require.NoError(t, fs.Flush(ctx))

	reloaded, err := NewFileStore(nil, path)
	require.NoError(t, err)

	idxA, ok, err := reloaded.Load(ctx, "https://a.example/")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(5), idxA)

	idxB, ok, err := reloaded.Load(ctx, "https://b.example/")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(9), idxB)

	urls, err := reloaded.List(ctx)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"https://a.example/", "https://b.example/"}, urls)
}

func TestFileStoreAutoFlushesEveryHundredAdvances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cursor.json")
	ctx := context.Background()

	fs, err := NewFileStore(nil, path)
	require.NoError(t, err)

	for i := 0; i < flushInterval; i++ {
		require.NoError(t, fs.Advance(ctx, "https://log.example/", int64(i)))
	}

	reloaded, err := NewFileStore(nil, path)
	require.NoError(t, err)

	idx, ok, err := reloaded.Load(ctx, "https://log.example/")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(flushInterval-1), idx)
}
