package graftdb

import (
	"strings"

	graftsql "github.com/cvmfs-go/graft/internal/graftsql/errors"
)

// kInternalChunkSize and kExternalChunkSize are the fixed chunk sizes used
// when a graft file's content lives in the internal content store versus
// an external one. Graft DBs never carry per-chunk sizes; offsets and
// sizes are derived purely from these constants and the file's total size.
const (
	kInternalChunkSize = 6 * 1024 * 1024
	kExternalChunkSize = 24 * 1024 * 1024
)

func isHexSHA1(s string) bool {
	if len(s) != 40 {
		return false
	}
	for _, c := range s {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return false
		}
	}
	return true
}

// decodeChunks expands a comma-separated hash list into concrete chunks
// given the file's total size and whether it lives in internal storage.
func decodeChunks(hashesCSV string, size int64, internal bool) ([]Chunk, error) {
	chunkSize := int64(kExternalChunkSize)
	if internal {
		chunkSize = kInternalChunkSize
	}

	expected := int64(1)
	if size > 0 {
		expected = (size + chunkSize - 1) / chunkSize
	}

	var hashes []string
	if hashesCSV != "" {
		hashes = strings.Split(hashesCSV, ",")
	}
	if int64(len(hashes)) != expected {
		return nil, graftsql.Newf(graftsql.InputInvalid,
			"chunk count %d does not match expected %d for size %d", len(hashes), expected, size)
	}

	chunks := make([]Chunk, expected)
	for i, hash := range hashes {
		if !isHexSHA1(hash) {
			return nil, graftsql.Newf(graftsql.InputInvalid, "invalid sha1 hash %q", hash)
		}

		offset := int64(i) * chunkSize
		chunkLen := chunkSize
		if offset+chunkLen > size {
			chunkLen = size - offset
		}

		chunks[i] = Chunk{Hash: hash, Offset: offset, Len: chunkLen}
	}

	return chunks, nil
}
