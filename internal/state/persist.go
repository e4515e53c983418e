// SPDX-License-Identifier: MPL-2.0

package state

import (
	"fmt"
	"os"
	"path/filepath"
)

// writeFileAtomic replaces path with data. The content goes to a temp file in
// the same directory first so the final os.Rename is a same-filesystem move and
// readers never observe a partially written record.
func writeFileAtomic(path string, data []byte, perm os.FileMode) (err error) {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, tempFilePattern)
	if err != nil {
		return fmt.Errorf("creating temp state file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			// Best-effort removal of partially written temp file.
			_ = os.Remove(tmpName)
		}
	}()

	if writeErr := func() (writeErr error) {
		defer func() {
			if closeErr := tmp.Close(); closeErr != nil && writeErr == nil {
				writeErr = closeErr
			}
		}()
		if _, writeErr = tmp.Write(data); writeErr != nil {
			return fmt.Errorf("writing temp state file: %w", writeErr)
		}
		if writeErr = tmp.Sync(); writeErr != nil {
			return fmt.Errorf("syncing temp state file: %w", writeErr)
		}
		return nil
	}(); writeErr != nil {
		return writeErr
	}

	if err = os.Chmod(tmpName, perm); err != nil {
		return fmt.Errorf("setting state file permissions: %w", err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replacing state file: %w", err)
	}

	syncDir(dir)
	return nil
}

// syncDir flushes the directory entry after a rename. Not every platform
// supports fsync on directories, so failures are ignored.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}
