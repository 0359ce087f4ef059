//go:build linux || darwin

package ledger

import (
	"time"

	"golang.org/x/sys/unix"
)

// fileAccessTime returns the file's last-access time from the platform stat
// structure, matching the original cache's rebuild path (which sorts by
// st_atime, not mtime).
func fileAccessTime(path string) (time.Time, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return time.Time{}, err
	}
	sec, nsec := accessTimespec(st)
	return time.Unix(sec, nsec), nil
}
