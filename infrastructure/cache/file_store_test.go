package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"skip-analyzer/domain/cache"
	"skip-analyzer/domain/interval"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sample = []interval.Formatted{
	{Start: "00:12", End: "01:30"},
	{Start: "05:00", End: "06:10"},
}

var sourceModTime = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func entryOf(intervals []interval.Formatted) cache.Entry {
	return cache.Entry{Intervals: intervals, ModTime: sourceModTime}
}

func TestFileStore_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	videoPath := filepath.Join(dir, "ep01.mkv")
	store := NewFileStore(WithDirectory(dir))
	ctx := context.Background()

	entry, err := store.Get(ctx, videoPath)
	require.NoError(t, err)
	assert.Nil(t, entry, "missing artifact is a miss")

	require.NoError(t, store.Put(ctx, videoPath, entryOf(sample)))

	data, err := os.ReadFile(videoPath + ".analysis.json")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"start":"00:12","end":"01:30"},{"start":"05:00","end":"06:10"}]`, string(data))

	entry, err = store.Get(ctx, videoPath)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, sample, entry.Intervals)
	assert.True(t, sourceModTime.Equal(entry.ModTime), "ModTime = %v, want %v", entry.ModTime, sourceModTime)
}

func TestFileStore_StampsSourceModTime(t *testing.T) {
	dir := t.TempDir()
	videoPath := filepath.Join(dir, "ep01.mkv")
	store := NewFileStore()
	ctx := context.Background()

	// the video was touched while its analysis was running
	observed := time.Now().Add(-time.Hour).Truncate(time.Second)
	touched := observed.Add(30 * time.Minute)
	require.NoError(t, store.Put(ctx, videoPath, cache.Entry{Intervals: sample, ModTime: observed}))

	info, err := os.Stat(ArtifactPath(videoPath))
	require.NoError(t, err)
	assert.True(t, observed.Equal(info.ModTime()), "artifact mtime = %v, want %v", info.ModTime(), observed)

	entry, err := store.Get(ctx, videoPath)
	require.NoError(t, err)
	assert.False(t, cache.MTimePolicy{}.Valid(entry, touched), "result computed before the edit must be stale")
	assert.True(t, cache.MTimePolicy{}.Valid(entry, observed))
}

func TestFileStore_ZeroModTimeKeepsWriteTime(t *testing.T) {
	dir := t.TempDir()
	videoPath := filepath.Join(dir, "ep01.mkv")
	store := NewFileStore()

	require.NoError(t, store.Put(context.Background(), videoPath, cache.Entry{Intervals: sample}))

	entry, err := store.Get(context.Background(), videoPath)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), entry.ModTime, time.Minute)
}

func TestFileStore_EmptyAnalysis(t *testing.T) {
	dir := t.TempDir()
	videoPath := filepath.Join(dir, "short.mp4")
	store := NewFileStore()

	require.NoError(t, store.Put(context.Background(), videoPath, entryOf(nil)))

	data, err := os.ReadFile(ArtifactPath(videoPath))
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))

	entry, err := store.Get(context.Background(), videoPath)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.NotNil(t, entry.Intervals)
	assert.Empty(t, entry.Intervals)
}

func TestFileStore_Malformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "truncated", body: `[{"start":"00:12"`},
		{name: "null", body: `null`},
		{name: "object", body: `{"start":"00:12","end":"01:30"}`},
		{name: "bad timestamp", body: `[{"start":"12s","end":"01:30"}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			videoPath := filepath.Join(dir, "ep01.mkv")
			require.NoError(t, os.WriteFile(ArtifactPath(videoPath), []byte(tt.body), 0o644))

			_, err := NewFileStore().Get(context.Background(), videoPath)

			assert.ErrorIs(t, err, cache.ErrMalformedArtifact)
		})
	}
}

func TestFileStore_PutOverwritesAtomically(t *testing.T) {
	dir := t.TempDir()
	videoPath := filepath.Join(dir, "ep01.mkv")
	store := NewFileStore()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, videoPath, entryOf(sample)))
	require.NoError(t, store.Put(ctx, videoPath, entryOf(sample[:1])))

	entry, err := store.Get(ctx, videoPath)
	require.NoError(t, err)
	assert.Equal(t, sample[:1], entry.Intervals)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temporary files left behind")
}

func TestFileStore_FailedRenameKeepsOldArtifact(t *testing.T) {
	dir := t.TempDir()
	videoPath := filepath.Join(dir, "ep01.mkv")
	store := NewFileStore()
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, videoPath, entryOf(sample)))

	renameFunc = func(string, string) error { return errors.New("disk full") }
	t.Cleanup(func() { renameFunc = os.Rename })

	err := store.Put(ctx, videoPath, entryOf(nil))
	require.Error(t, err)

	entry, err := store.Get(ctx, videoPath)
	require.NoError(t, err)
	assert.Equal(t, sample, entry.Intervals)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFileStore_Invalidate(t *testing.T) {
	dir := t.TempDir()
	videoPath := filepath.Join(dir, "ep01.mkv")
	store := NewFileStore()
	ctx := context.Background()

	err := store.Invalidate(ctx, videoPath)
	assert.ErrorIs(t, err, cache.ErrNotCached)

	require.NoError(t, store.Put(ctx, videoPath, entryOf(sample)))
	require.NoError(t, store.Invalidate(ctx, videoPath))

	_, err = os.Stat(ArtifactPath(videoPath))
	assert.True(t, os.IsNotExist(err))
}

func TestFileStore_InvalidateAll(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.mp4.analysis.json", "b.mkv.analysis.json", "a.mp4", "notes.json"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("[]"), 0o644))
	}
	// directories and nested artifacts are left alone
	require.NoError(t, os.Mkdir(filepath.Join(dir, "x.analysis.json"), 0o755))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nested", "c.mp4.analysis.json"), []byte("[]"), 0o644))

	removed, err := NewFileStore(WithDirectory(dir)).InvalidateAll(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	var left []string
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		left = append(left, e.Name())
	}
	assert.ElementsMatch(t, []string{"a.mp4", "notes.json", "x.analysis.json", "nested"}, left)
	assert.FileExists(t, filepath.Join(dir, "nested", "c.mp4.analysis.json"))
}

func TestFileStore_InvalidateAllMissingDirectory(t *testing.T) {
	store := NewFileStore(WithDirectory(filepath.Join(t.TempDir(), "gone")))

	_, err := store.InvalidateAll(context.Background())

	assert.Error(t, err)
}
