package aclcodec

import (
	"encoding/binary"
	"sort"

	graftsql "github.com/cvmfs-go/graft/internal/graftsql/errors"
)

func newDecodeError(msg string) error {
	return graftsql.New(graftsql.InputInvalid, msg)
}

// sortEntries orders entries ascending by (Tag, ID), matching the libacl
// comparator used when the kernel canonicalizes an ACL before storing it.
func sortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Tag != entries[j].Tag {
			return entries[i].Tag < entries[j].Tag
		}
		return entries[i].ID < entries[j].ID
	})
}

// IsEquivalentToMode reports whether entries carry no qualified User or
// Group entry, in which case the ACL adds nothing beyond the file's
// ordinary owner/group/other mode bits and the kernel xattr should be
// absent rather than written.
func IsEquivalentToMode(entries []Entry) bool {
	for _, e := range entries {
		if e.Tag == TagUser || e.Tag == TagGroup {
			return false
		}
	}
	return true
}

// Encode validates entries and renders them into the binary
// system.posix_acl_access layout. If the ACL is equivalent to the file's
// mode bits (no qualified User/Group entries), it returns a nil slice and
// equiv=true: callers should omit the xattr entirely rather than write an
// empty value.
func Encode(entries []Entry) (data []byte, equiv bool, err error) {
	if err := Validate(entries); err != nil {
		return nil, false, err
	}

	if IsEquivalentToMode(entries) {
		return nil, true, nil
	}

	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sortEntries(sorted)

	buf := make([]byte, headerSize+entrySize*len(sorted))
	binary.LittleEndian.PutUint32(buf[0:4], version)

	off := headerSize
	for _, e := range sorted {
		binary.LittleEndian.PutUint16(buf[off:off+2], uint16(e.Tag))
		binary.LittleEndian.PutUint16(buf[off+2:off+4], uint16(e.Perm))
		binary.LittleEndian.PutUint32(buf[off+4:off+8], e.ID)
		off += entrySize
	}

	return buf, false, nil
}

// EncodeText parses, validates, and encodes a textual ACL in one step.
func EncodeText(text string) (data []byte, equiv bool, err error) {
	entries, err := Parse(text)
	if err != nil {
		return nil, false, err
	}
	return Encode(entries)
}

// Decode parses a binary system.posix_acl_access value back into entries,
// for round-trip testing and diagnostics. It does not re-validate builtin
// invariants; callers that need that should call Validate explicitly.
func Decode(data []byte) ([]Entry, error) {
	if len(data) < headerSize {
		return nil, newDecodeError("acl value shorter than header")
	}
	v := binary.LittleEndian.Uint32(data[0:4])
	if v != version {
		return nil, newDecodeError("unsupported acl version")
	}

	body := data[headerSize:]
	if len(body)%entrySize != 0 {
		return nil, newDecodeError("acl value length is not a multiple of entry size")
	}

	count := len(body) / entrySize
	entries := make([]Entry, count)
	for i := 0; i < count; i++ {
		off := i * entrySize
		tag := Tag(binary.LittleEndian.Uint16(body[off : off+2]))
		perm := Perm(binary.LittleEndian.Uint16(body[off+2 : off+4]))
		id := binary.LittleEndian.Uint32(body[off+4 : off+8])
		entries[i] = Entry{Tag: tag, Perm: perm, ID: id}
	}
	return entries, nil
}
