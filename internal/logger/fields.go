package logger

import "log/slog"

// Standard field keys for structured logging across the ingestion pipeline,
// the ACL codec, and the LRU ledger. Use these keys consistently so log
// aggregation and querying stays uniform across components.
const (
	// ========================================================================
	// Correlation
	// ========================================================================
	KeyTraceID   = "trace_id"   // gateway session token or other correlation id
	KeyComponent = "component"  // acting component: reader, planner, gateway, ledger
	KeyRepo      = "repo"       // fully qualified repository name
	KeyLeasePath = "lease_path" // path subtree under lease

	// ========================================================================
	// Graft ingestion
	// ========================================================================
	KeyGraftDB    = "graft_db"    // path of the graft database being read
	KeyPath       = "path"        // entity path within the changeset
	KeySize       = "size"        // byte size
	KeyMode       = "mode"        // POSIX mode bits
	KeyChunkCount = "chunk_count" // number of chunks decoded for a file
	KeyRowsTotal  = "rows_total"  // total rows to apply
	KeyRowsDone   = "rows_done"   // rows applied so far

	// ========================================================================
	// ACL codec
	// ========================================================================
	KeyACLEntries = "acl_entries" // number of ACL entries parsed
	KeyEquivMode  = "equiv_mode"  // whether the ACL reduced to mode bits

	// ========================================================================
	// LRU ledger
	// ========================================================================
	KeyHash       = "hash"        // content hash (hex sha1)
	KeyGauge      = "gauge"       // current cache byte total
	KeyPinned     = "pinned"      // current pinned byte total
	KeyLimit      = "limit"       // configured cache byte limit
	KeyAcSeq      = "acseq"       // access sequence number
	KeyEvictCount = "evict_count" // number of rows evicted in one cleanup

	// ========================================================================
	// Gateway lease client
	// ========================================================================
	KeyRevision   = "revision"    // catalog revision number
	KeyRootHash   = "root_hash"   // catalog root hash
	KeyRetryAfter = "retry_after" // seconds until next retry
	KeyAttempt    = "attempt"     // retry attempt number

	// ========================================================================
	// Operation metadata
	// ========================================================================
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
	KeyErrorCode  = "error_code"
)

// TraceID returns a slog.Attr for the correlation id.
func TraceID(id string) slog.Attr { return slog.String(KeyTraceID, id) }

// Component returns a slog.Attr for the acting component.
func Component(name string) slog.Attr { return slog.String(KeyComponent, name) }

// Repo returns a slog.Attr for the repository name.
func Repo(name string) slog.Attr { return slog.String(KeyRepo, name) }

// LeasePath returns a slog.Attr for the lease path.
func LeasePath(path string) slog.Attr { return slog.String(KeyLeasePath, path) }

// GraftDB returns a slog.Attr for a graft database path.
func GraftDB(path string) slog.Attr { return slog.String(KeyGraftDB, path) }

// Path returns a slog.Attr for an entity path.
func Path(p string) slog.Attr { return slog.String(KeyPath, p) }

// Size returns a slog.Attr for a byte size.
func Size(s uint64) slog.Attr { return slog.Uint64(KeySize, s) }

// Mode returns a slog.Attr for POSIX mode bits.
func Mode(m uint32) slog.Attr { return slog.Any(KeyMode, m) }

// ChunkCount returns a slog.Attr for a decoded chunk count.
func ChunkCount(n int) slog.Attr { return slog.Int(KeyChunkCount, n) }

// RowsTotal returns a slog.Attr for total rows in a progress report.
func RowsTotal(n int) slog.Attr { return slog.Int(KeyRowsTotal, n) }

// RowsDone returns a slog.Attr for rows applied so far.
func RowsDone(n int) slog.Attr { return slog.Int(KeyRowsDone, n) }

// ACLEntries returns a slog.Attr for a parsed ACL entry count.
func ACLEntries(n int) slog.Attr { return slog.Int(KeyACLEntries, n) }

// EquivMode returns a slog.Attr for the equivalent-to-mode flag.
func EquivMode(equiv bool) slog.Attr { return slog.Bool(KeyEquivMode, equiv) }

// Hash returns a slog.Attr for a content hash.
func Hash(h string) slog.Attr { return slog.String(KeyHash, h) }

// Gauge returns a slog.Attr for the current cache byte total.
func Gauge(n uint64) slog.Attr { return slog.Uint64(KeyGauge, n) }

// Pinned returns a slog.Attr for the current pinned byte total.
func Pinned(n uint64) slog.Attr { return slog.Uint64(KeyPinned, n) }

// Limit returns a slog.Attr for the configured cache byte limit.
func Limit(n uint64) slog.Attr { return slog.Uint64(KeyLimit, n) }

// AcSeq returns a slog.Attr for an access sequence number.
func AcSeq(n uint64) slog.Attr { return slog.Uint64(KeyAcSeq, n) }

// EvictCount returns a slog.Attr for the number of rows evicted.
func EvictCount(n int) slog.Attr { return slog.Int(KeyEvictCount, n) }

// Revision returns a slog.Attr for a catalog revision number.
func Revision(rev uint64) slog.Attr { return slog.Uint64(KeyRevision, rev) }

// RootHash returns a slog.Attr for a catalog root hash.
func RootHash(hash string) slog.Attr { return slog.String(KeyRootHash, hash) }

// RetryAfter returns a slog.Attr for a retry delay in seconds.
func RetryAfter(seconds int) slog.Attr { return slog.Int(KeyRetryAfter, seconds) }

// Attempt returns a slog.Attr for a retry attempt number.
func Attempt(n int) slog.Attr { return slog.Int(KeyAttempt, n) }

// DurationMs returns a slog.Attr for a duration in milliseconds.
func DurationMs(ms float64) slog.Attr { return slog.Float64(KeyDurationMs, ms) }

// Err returns a slog.Attr for an error.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// ErrorCode returns a slog.Attr for a numeric error code.
func ErrorCode(code int) slog.Attr { return slog.Int(KeyErrorCode, code) }
