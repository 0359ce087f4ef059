//go:build !linux && !darwin

package ledger

import (
	"os"
	"time"
)

// fileAccessTime falls back to modification time on platforms without a
// portable st_atime equivalent wired up. Rebuild ordering degrades to mtime
// ordering there instead of true last-access ordering.
func fileAccessTime(path string) (time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}
