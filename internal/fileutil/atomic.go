// Package fileutil provides file helpers shared across the binaries.
package fileutil

import (
	"os"
	"path/filepath"
)

// WriteAtomic writes data to path via a temp file in the same directory
// followed by a rename. A reader of path never observes a partial
// write, and a crash mid-write leaves the previous file intact.
func WriteAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
