package artifact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeAged(t *testing.T, dir, name string, age time.Duration) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("img"), 0o644))
	mod := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(path, mod, mod))
	return path
}

func TestGarbageCollectDisabledPolicy(t *testing.T) {
	store := NewStore(t.TempDir())
	writeAged(t, store.Root(), "a.jpg", 100*24*time.Hour)

	result, err := store.GarbageCollect(context.Background(), RetentionConfig{})
	require.NoError(t, err)
	require.Zero(t, result.Removed)

	_, err = os.Stat(filepath.Join(store.Root(), "a.jpg"))
	require.NoError(t, err)
}

func TestGarbageCollectByAge(t *testing.T) {
	store := NewStore(t.TempDir())
	old := writeAged(t, store.Root(), "old.jpg", 10*24*time.Hour)
	fresh := writeAged(t, store.Root(), "fresh.jpg", time.Hour)

	result, err := store.GarbageCollect(context.Background(), RetentionConfig{MaxAgeDays: 7})
	require.NoError(t, err)
	require.Equal(t, 1, result.Removed)
	require.Equal(t, int64(3), result.BytesFreed)
	require.Empty(t, result.Errors)

	_, err = os.Stat(old)
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(fresh)
	require.NoError(t, err)
}

func TestGarbageCollectByCount(t *testing.T) {
	store := NewStore(t.TempDir())
	for i := 0; i < 5; i++ {
		writeAged(t, store.Root(), fmt.Sprintf("task-%d.jpg", i), time.Duration(5-i)*time.Hour)
	}

	result, err := store.GarbageCollect(context.Background(), RetentionConfig{MaxArtifacts: 2})
	require.NoError(t, err)
	require.Equal(t, 3, result.Removed)

	// The two newest survive.
	_, err = os.Stat(filepath.Join(store.Root(), "task-4.jpg"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(store.Root(), "task-3.jpg"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(store.Root(), "task-0.jpg"))
	require.True(t, os.IsNotExist(err))
}

func TestGarbageCollectIgnoresNonArtifacts(t *testing.T) {
	store := NewStore(t.TempDir())
	other := filepath.Join(store.Root(), "notes.txt")
	require.NoError(t, os.WriteFile(other, []byte("keep"), 0o644))
	writeAged(t, store.Root(), "img.jpg", 30*24*time.Hour)

	result, err := store.GarbageCollect(context.Background(), RetentionConfig{MaxAgeDays: 1})
	require.NoError(t, err)
	require.Equal(t, 1, result.Removed)

	_, err = os.Stat(other)
	require.NoError(t, err)
}

func TestGarbageCollectMissingDir(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "does-not-exist"))
	result, err := store.GarbageCollect(context.Background(), RetentionConfig{MaxAgeDays: 1})
	require.NoError(t, err)
	require.Zero(t, result.Removed)
}

func TestGarbageCollectRemovesLockfiles(t *testing.T) {
	store := NewStore(t.TempDir())
	path := writeAged(t, store.Root(), "task.jpg", 10*24*time.Hour)
	require.NoError(t, os.WriteFile(path+".lock", nil, 0o644))

	_, err := store.GarbageCollect(context.Background(), RetentionConfig{MaxAgeDays: 1})
	require.NoError(t, err)

	_, err = os.Stat(path + ".lock")
	require.True(t, os.IsNotExist(err))
}

func TestRetentionConfigIsEnabled(t *testing.T) {
	require.False(t, RetentionConfig{}.IsEnabled())
	require.True(t, RetentionConfig{MaxAgeDays: 1}.IsEnabled())
	require.True(t, RetentionConfig{MaxArtifacts: 10}.IsEnabled())
}
