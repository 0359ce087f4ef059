// Package commands implements the graft-driver CLI: flag parsing and the
// acquire/read/plan/apply/commit/release orchestration.
package commands

import (
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	cfgFile string

	dbPathFlag              string
	repoNameFlag            string
	gatewayURLFlag          string
	stratum0URLFlag         string
	tempDirFlag             string
	leasePathFlag           string
	pathPrefixFlag          string
	keyFileFlag             string
	allowDeletionsFlag      bool
	allowAdditionsFlag      bool
	forceCancelLeaseFlag    bool
	createEmptyDBFlag       string
	createMissingNestedFlag bool
	checkCompletedGraftFlag bool
	priorityFlag            int64
	busyRetrySecondsFlag    int
	verboseFlag             bool
)

// rootCmd is the sole command graft-driver exposes; there is no subcommand
// tree, only a flag surface mirroring the original swissknife option set.
var rootCmd = &cobra.Command{
	Use:   "graft-driver",
	Short: "Ingest graft DBs into a CernVM-FS repository catalog",
	Long: `graft-driver reads one or more SQLite graft databases describing a
changeset (directories, files, symlinks, deletions), acquires an exclusive
write lease on the affected path from the repository gateway, applies the
changeset to the catalog, commits the new root hash, and releases the lease.

Use -n to instead create an empty graft DB with the canonical schema and
exit, without touching any repository.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runDriver,
}

// Execute parses flags and runs the driver. It is called by main.main.
func Execute() error {
	return rootCmd.Execute()
}

// GetRootCmd returns the root command for testing.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/cvmfs-graft/config.yaml)")

	flags.StringVarP(&dbPathFlag, "db", "D", "", "input graft DB file, or directory to scan for *.db")
	flags.StringVarP(&repoNameFlag, "repo", "N", "", "fully qualified repository name (required unless -n)")
	flags.StringVarP(&gatewayURLFlag, "gateway-url", "g", "", "repository gateway base URL")
	flags.StringVarP(&stratum0URLFlag, "stratum0-url", "w", "", "stratum-0 base URL")
	flags.StringVarP(&tempDirFlag, "temp-dir", "t", "", "temp directory (default: $TMPDIR)")
	flags.StringVarP(&leasePathFlag, "lease-path", "l", "", "lease path (default: longest common prefix of affected paths)")
	flags.StringVarP(&pathPrefixFlag, "prefix", "p", "", "additional path prefix applied to every entry read from the graft DBs")
	flags.StringVarP(&keyFileFlag, "keyfile", "s", "", "gateway key file (key_id and secret, whitespace separated)")
	flags.BoolVarP(&allowDeletionsFlag, "allow-deletions", "d", false, "allow deletions")
	flags.BoolVarP(&allowAdditionsFlag, "allow-additions", "a", false, "allow additions (implicit unless -d is given alone)")
	flags.BoolVarP(&forceCancelLeaseFlag, "force-cancel", "x", false, "force-cancel a stale lease before acquiring")
	flags.StringVarP(&createEmptyDBFlag, "new-db", "n", "", "create an empty graft DB with the canonical schema at this path, then exit")
	flags.BoolVarP(&createMissingNestedFlag, "create-nested", "z", false, "create missing nested catalogs encountered during apply")
	flags.BoolVarP(&checkCompletedGraftFlag, "completed-graft", "Z", false, "check/set the completed_graft property on the input graft DBs")
	flags.Int64VarP(&priorityFlag, "priority", "P", 0, "commit priority")
	flags.IntVarP(&busyRetrySecondsFlag, "retry-interval", "r", 0, "lease-busy retry interval in seconds (0 uses the configured default)")
	flags.BoolVarP(&verboseFlag, "verbose", "v", false, "verbose logging")
}

// busyRetryInterval resolves the -r flag to a time.Duration, falling back
// to cfg when unset.
func busyRetryInterval(fallback time.Duration) time.Duration {
	if busyRetrySecondsFlag <= 0 {
		return fallback
	}
	return time.Duration(busyRetrySecondsFlag) * time.Second
}

// PrintErr prints an error message to stderr.
func PrintErr(format string, args ...any) {
	rootCmd.PrintErrf(format+"\n", args...)
}

// Exit prints an error and exits with code 1.
func Exit(format string, args ...any) {
	PrintErr(format, args...)
	os.Exit(1)
}
