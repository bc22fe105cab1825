package filesystem

import (
	"fmt"
	"os"
	"time"

	"skip-analyzer/domain/video"
)

// Checker implements video.FileChecker using the os package
type Checker struct{}

// NewChecker creates a new filesystem checker
func NewChecker() *Checker {
	return &Checker{}
}

// Exists returns true if a regular file exists at path
func (c *Checker) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// ModTime returns the file's modification time
func (c *Checker) ModTime(path string) (time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return time.Time{}, fmt.Errorf("%w: %s", video.ErrSourceNotFound, path)
		}
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

// Ensure Checker implements video.FileChecker
var _ video.FileChecker = (*Checker)(nil)
