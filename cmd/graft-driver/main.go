// Command graft-driver ingests one or more graft DBs into a CernVM-FS
// repository catalog: it acquires the gateway write lease, reads and plans
// the changeset, applies it, commits the new root hash, and releases the
// lease.
package main

import (
	"os"

	"github.com/cvmfs-go/graft/cmd/graft-driver/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		commands.PrintErr("%v", err)
		os.Exit(1)
	}
}
