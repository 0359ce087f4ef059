// Package manifest parses and writes the repository's signed root document
// (.cvmfspublished): a small set of single-byte-key records describing the
// current root catalog, its revision, and optional auxiliary hashes.
package manifest

import (
	"fmt"
	"strconv"
	"strings"

	graftsqlerrors "github.com/cvmfs-go/graft/internal/graftsql/errors"
)

// ChannelTag is one entry of the repeatable 'Z' record: a named update
// channel and the root catalog hash it currently points at.
type ChannelTag struct {
	Channel  byte
	RootHash string
}

// Manifest is the decoded content of a .cvmfspublished file, excluding its
// trailing signature block.
type Manifest struct {
	// Required fields.
	CatalogHash string // 'C': hex hash of the root catalog
	RootPathMD5 string // 'R': hex MD5 of the root path
	TTL         uint64 // 'D': catalog TTL in seconds
	Revision    uint64 // 'S': repository revision number

	// Optional fields.
	MicroCatalogHash string // 'L'
	RepositoryName   string // 'N'
	CertificateHash  string // 'X'
	HistoryHash      string // 'H'
	PublishTimestamp uint64 // 'T'

	Channels []ChannelTag // 'Z', repeatable
}

// Parse decodes the plain-text key/value portion of a .cvmfspublished
// document. Parsing stops at a line containing exactly "--", which marks
// the start of the detached signature; any bytes past it are ignored. The
// four required fields (C, R, D, S) must be present.
func Parse(data []byte) (*Manifest, error) {
	fields := make(map[byte]string)
	zValues := make([]string, 0)

	lines := strings.Split(string(data), "\n")
	for _, line := range lines {
		if line == "--" {
			break
		}
		if line == "" {
			continue
		}

		key := line[0]
		value := ""
		if len(line) > 1 {
			value = line[1:]
		}

		if key == 'Z' {
			zValues = append(zValues, value)
			continue
		}
		fields[key] = value
	}

	m := &Manifest{}

	catalogHash, ok := fields['C']
	if !ok {
		return nil, graftsqlerrors.New(graftsqlerrors.InputInvalid, "manifest missing required key 'C' (root catalog hash)")
	}
	m.CatalogHash = catalogHash

	rootPath, ok := fields['R']
	if !ok {
		return nil, graftsqlerrors.New(graftsqlerrors.InputInvalid, "manifest missing required key 'R' (root path MD5)")
	}
	m.RootPathMD5 = rootPath

	ttlStr, ok := fields['D']
	if !ok {
		return nil, graftsqlerrors.New(graftsqlerrors.InputInvalid, "manifest missing required key 'D' (TTL)")
	}
	ttl, err := strconv.ParseUint(ttlStr, 10, 64)
	if err != nil {
		return nil, graftsqlerrors.Wrap(graftsqlerrors.InputInvalid, err, "manifest key 'D' is not a valid integer")
	}
	m.TTL = ttl

	revStr, ok := fields['S']
	if !ok {
		return nil, graftsqlerrors.New(graftsqlerrors.InputInvalid, "manifest missing required key 'S' (revision)")
	}
	revision, err := strconv.ParseUint(revStr, 10, 64)
	if err != nil {
		return nil, graftsqlerrors.Wrap(graftsqlerrors.InputInvalid, err, "manifest key 'S' is not a valid integer")
	}
	m.Revision = revision

	m.MicroCatalogHash = fields['L']
	m.RepositoryName = fields['N']
	m.CertificateHash = fields['X']
	m.HistoryHash = fields['H']

	if tStr, ok := fields['T']; ok {
		ts, err := strconv.ParseUint(tStr, 10, 64)
		if err != nil {
			return nil, graftsqlerrors.Wrap(graftsqlerrors.InputInvalid, err, "manifest key 'T' is not a valid integer")
		}
		m.PublishTimestamp = ts
	}

	if len(zValues) > 0 {
		joined := strings.Join(zValues, "|")
		channels, err := parseChannels(joined)
		if err != nil {
			return nil, err
		}
		m.Channels = channels
	}

	return m, nil
}

// parseChannels splits a pipe-joined "Z" value into individual channel
// tags. Each element is at least 3 characters: a 2-hex-digit channel id
// followed by the hex root hash.
func parseChannels(joined string) ([]ChannelTag, error) {
	parts := strings.Split(joined, "|")
	channels := make([]ChannelTag, 0, len(parts))
	for _, part := range parts {
		if len(part) <= 2 {
			return nil, graftsqlerrors.Newf(graftsqlerrors.InputInvalid, "malformed channel tag %q", part)
		}
		channelByte, err := strconv.ParseUint(part[:2], 16, 8)
		if err != nil {
			return nil, graftsqlerrors.Wrap(graftsqlerrors.InputInvalid, err, "malformed channel id")
		}
		channels = append(channels, ChannelTag{
			Channel:  byte(channelByte),
			RootHash: part[2:],
		})
	}
	return channels, nil
}

// Encode renders the manifest back into its plain-text record form,
// suitable for signing and writing to .cvmfspublished. Optional fields are
// omitted from the output when empty/zero, matching the original decoder's
// tolerance for their absence.
func (m *Manifest) Encode() []byte {
	var b strings.Builder

	fmt.Fprintf(&b, "C%s\n", m.CatalogHash)
	fmt.Fprintf(&b, "R%s\n", m.RootPathMD5)
	fmt.Fprintf(&b, "D%d\n", m.TTL)
	fmt.Fprintf(&b, "S%d\n", m.Revision)

	if m.MicroCatalogHash != "" {
		fmt.Fprintf(&b, "L%s\n", m.MicroCatalogHash)
	}
	if m.RepositoryName != "" {
		fmt.Fprintf(&b, "N%s\n", m.RepositoryName)
	}
	if m.CertificateHash != "" {
		fmt.Fprintf(&b, "X%s\n", m.CertificateHash)
	}
	if m.HistoryHash != "" {
		fmt.Fprintf(&b, "H%s\n", m.HistoryHash)
	}
	if m.PublishTimestamp > 0 {
		fmt.Fprintf(&b, "T%d\n", m.PublishTimestamp)
	}

	for _, ch := range m.Channels {
		fmt.Fprintf(&b, "Z%02x%s\n", ch.Channel, ch.RootHash)
	}

	return []byte(b.String())
}
