//go:build linux

package ledger

import "golang.org/x/sys/unix"

func accessTimespec(st unix.Stat_t) (sec int64, nsec int64) {
	return st.Atim.Sec, int64(st.Atim.Nsec)
}
