package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"skip-analyzer/domain/cache"
	"skip-analyzer/domain/interval"
)

// FileStore implements cache.Store with a JSON artifact next to each video
type FileStore struct {
	// dir is scanned by InvalidateAll
	dir string
}

// FileStoreOption is a functional option for configuring FileStore
type FileStoreOption func(*FileStore)

// WithDirectory sets the directory InvalidateAll sweeps
func WithDirectory(dir string) FileStoreOption {
	return func(s *FileStore) {
		s.dir = dir
	}
}

// NewFileStore creates a store writing <video>.analysis.json artifacts
func NewFileStore(opts ...FileStoreOption) *FileStore {
	s := &FileStore{dir: "."}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// ArtifactPath returns where the analysis of videoPath is stored
func ArtifactPath(videoPath string) string {
	return videoPath + cache.ArtifactSuffix
}

// Get implements cache.Store. The artifact's own mtime carries the video
// mtime the result was computed against.
func (s *FileStore) Get(ctx context.Context, videoPath string) (*cache.Entry, error) {
	path := ArtifactPath(videoPath)
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s is not a regular file", cache.ErrMalformedArtifact, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	intervals, err := decodeArtifact(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return &cache.Entry{Intervals: intervals, ModTime: info.ModTime()}, nil
}

// Put implements cache.Store
func (s *FileStore) Put(ctx context.Context, videoPath string, entry cache.Entry) error {
	data, err := encodeArtifact(entry.Intervals)
	if err != nil {
		return err
	}

	path := ArtifactPath(videoPath)
	if err := writeFileAtomic(filepath.Dir(path), filepath.Base(path), data, entry.ModTime); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// Invalidate implements cache.Store
func (s *FileStore) Invalidate(ctx context.Context, videoPath string) error {
	path := ArtifactPath(videoPath)
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", cache.ErrNotCached, path)
		}
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}
	return nil
}

// InvalidateAll implements cache.Store. Only the configured directory is
// swept; artifacts of videos elsewhere must be invalidated by path.
func (s *FileStore) InvalidateAll(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to list %s: %w", s.dir, err)
	}

	removed := 0
	var errs []error
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if !entry.Type().IsRegular() || !strings.HasSuffix(entry.Name(), cache.ArtifactSuffix) {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, fmt.Errorf("failed to remove %s: %w", path, err))
			continue
		}
		removed++
	}

	return removed, errors.Join(errs...)
}

// encodeArtifact renders the on-disk JSON array
func encodeArtifact(intervals []interval.Formatted) ([]byte, error) {
	if intervals == nil {
		intervals = []interval.Formatted{}
	}
	data, err := json.MarshalIndent(intervals, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode analysis: %w", err)
	}
	return append(data, '\n'), nil
}

// decodeArtifact parses and validates an artifact body
func decodeArtifact(data []byte) ([]interval.Formatted, error) {
	var intervals []interval.Formatted
	if err := json.Unmarshal(data, &intervals); err != nil {
		return nil, fmt.Errorf("%w: %v", cache.ErrMalformedArtifact, err)
	}
	if intervals == nil {
		// "null" is not an analysis
		if strings.TrimSpace(string(data)) != "[]" {
			return nil, fmt.Errorf("%w: not a JSON array", cache.ErrMalformedArtifact)
		}
		intervals = []interval.Formatted{}
	}
	if _, err := interval.Parse(intervals); err != nil {
		return nil, fmt.Errorf("%w: %v", cache.ErrMalformedArtifact, err)
	}
	return intervals, nil
}

// Ensure FileStore implements cache.Store
var _ cache.Store = (*FileStore)(nil)
