// Package cache defines where analysis results are persisted and when a
// persisted result may be served instead of recomputing it.
package cache

import (
	"context"
	"errors"
	"time"

	"skip-analyzer/domain/interval"
)

var (
	// ErrNotCached is returned by Invalidate when there is no artifact for the path
	ErrNotCached = errors.New("no cached analysis")

	// ErrMalformedArtifact is returned by Get when the artifact cannot be parsed
	ErrMalformedArtifact = errors.New("malformed analysis artifact")
)

// ArtifactSuffix is appended to a video path to name its analysis artifact
const ArtifactSuffix = ".analysis.json"

// Entry is a persisted analysis result
type Entry struct {
	// Intervals is the formatted result in start order
	Intervals []interval.Formatted

	// ModTime is the video modification time the result was computed against
	ModTime time.Time
}

// Store defines the key-value interface for analysis artifacts, keyed by video path
type Store interface {
	// Get returns the entry for videoPath, or nil when none exists
	Get(ctx context.Context, videoPath string) (*Entry, error)

	// Put overwrites the entry for videoPath. entry.ModTime must be the
	// video mtime observed before analysis started.
	Put(ctx context.Context, videoPath string, entry Entry) error

	// Invalidate removes the entry for videoPath, returning ErrNotCached if absent
	Invalidate(ctx context.Context, videoPath string) error

	// InvalidateAll removes every entry the store can discover and reports how many
	InvalidateAll(ctx context.Context) (int, error)
}

// Policy decides whether a stored entry may be served for a video
type Policy interface {
	Valid(entry *Entry, videoModTime time.Time) bool
}

// MTimePolicy accepts an entry computed against a video mtime no earlier than the current one
type MTimePolicy struct{}

// Valid implements Policy
func (MTimePolicy) Valid(entry *Entry, videoModTime time.Time) bool {
	if entry == nil {
		return false
	}
	return !entry.ModTime.Before(videoModTime)
}

// NopStore disables caching
type NopStore struct{}

func (NopStore) Get(ctx context.Context, videoPath string) (*Entry, error) { return nil, nil }

func (NopStore) Put(ctx context.Context, videoPath string, entry Entry) error { return nil }

func (NopStore) Invalidate(ctx context.Context, videoPath string) error { return ErrNotCached }

func (NopStore) InvalidateAll(ctx context.Context) (int, error) { return 0, nil }

// Ensure the implementations satisfy their interfaces
var (
	_ Store  = NopStore{}
	_ Policy = MTimePolicy{}
)
