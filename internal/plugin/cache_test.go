package plugin

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCacheFreshAfterSave(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFakePlugin(t, dir, "csv", `{"name":"csv","role":"format","modes":["read"],"matches":["\\.csv$"]}`)

	cachePath := filepath.Join(t.TempDir(), "registry.json")
	cache := NewCache(cachePath)

	reg, _ := BuildCached(context.Background(), []string{dir}, NewScanner(), cache)
	_, ok := reg.Get("csv")
	require.True(t, ok)

	current := Stamp([]string{dir}, NewScanner())
	_, fresh := cache.Fresh(current)
	require.True(t, fresh)
}

func TestCacheStaleAfterPluginModified(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFakePlugin(t, dir, "csv", `{"name":"csv","role":"format","modes":["read"],"matches":["\\.csv$"]}`)

	cachePath := filepath.Join(t.TempDir(), "registry.json")
	cache := NewCache(cachePath)

	BuildCached(context.Background(), []string{dir}, NewScanner(), cache)

	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(path, future, future))

	current := Stamp([]string{dir}, NewScanner())
	_, fresh := cache.Fresh(current)
	require.False(t, fresh)
}

func TestCacheMissingFileIsStale(t *testing.T) {
	t.Parallel()

	cache := NewCache(filepath.Join(t.TempDir(), "nonexistent.json"))
	_, fresh := cache.Fresh(nil)
	require.False(t, fresh)
}

func TestBuildCachedReusesSnapshotDescriptors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFakePlugin(t, dir, "csv", `{"name":"csv","role":"format","modes":["read"],"matches":["\\.csv$"]}`)

	cachePath := filepath.Join(t.TempDir(), "registry.json")
	cache := NewCache(cachePath)

	scanner := NewScanner()
	calls := 0
	scanner.Runner = func(ctx context.Context, path string, args ...string) ([]byte, error) {
		calls++
		return []byte(`{"name":"csv","role":"format","modes":["read"],"matches":["\\.csv$"]}`), nil
	}

	BuildCached(context.Background(), []string{dir}, scanner, cache)
	firstCalls := calls

	BuildCached(context.Background(), []string{dir}, scanner, cache)
	require.Equal(t, firstCalls, calls, "second BuildCached should reuse the snapshot without re-invoking plugins")
}
