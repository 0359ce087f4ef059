//go:build darwin

package ledger

import "golang.org/x/sys/unix"

func accessTimespec(st unix.Stat_t) (sec int64, nsec int64) {
	return st.Atimespec.Sec, int64(st.Atimespec.Nsec)
}
