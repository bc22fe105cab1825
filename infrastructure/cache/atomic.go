package cache

import (
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// renameFunc is swapped in tests to simulate a failed rename
var renameFunc = os.Rename

// writeFileAtomic writes name in dir through a temporary sibling and a
// rename, so readers see either the old or the new content. A non-zero
// mtime is stamped on the file before it becomes visible.
func writeFileAtomic(dir, name string, data []byte, mtime time.Time) error {
	tmp, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if !mtime.IsZero() {
		if err := os.Chtimes(tmpName, mtime, mtime); err != nil {
			return err
		}
	}

	if err := renameFunc(tmpName, filepath.Join(dir, name)); err != nil {
		return err
	}

	_ = syncDir(dir)
	return nil
}

// syncDir flushes the directory entry; unsupported on Windows
func syncDir(dir string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
