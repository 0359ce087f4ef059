// Package aclcodec converts textual POSIX.1e ACL specifications into the
// exact byte layout expected by the kernel xattr system.posix_acl_access,
// including libacl-compatible sort order and equivalence-to-mode detection.
//
// The wire format is the historical Linux "ext attr" ACL layout: a 4-byte
// little-endian version header followed by one 8-byte little-endian
// (tag, perm, id) triplet per entry, entries sorted ascending by (tag, id).
package aclcodec

// Tag identifies the kind of principal an ACL entry applies to.
type Tag uint16

// Tag values match the on-disk ACL_* constants used by the Linux xattr ACL
// format (acl/libacl.h), not an enum invented for this codec.
const (
	TagUserObj  Tag = 0x01
	TagUser     Tag = 0x02
	TagGroupObj Tag = 0x04
	TagGroup    Tag = 0x08
	TagMask     Tag = 0x10
	TagOther    Tag = 0x20
)

// Perm is a bitmask of read/write/execute bits.
type Perm uint16

const (
	PermRead    Perm = 0x4
	PermWrite   Perm = 0x2
	PermExecute Perm = 0x1
)

// UndefinedID is the sentinel id value for UserObj/GroupObj/Other/Mask
// entries, which carry no qualifier.
const UndefinedID uint32 = 0xFFFFFFFF

// version is the a_version field of the binary ACL header.
const version uint32 = 0x00000002

// entrySize is the encoded size, in bytes, of one ACL entry.
const entrySize = 8

// headerSize is the encoded size, in bytes, of the version header.
const headerSize = 4

// Entry is a single ACL entry: a tag, an optional qualifier id, and a
// permission mask.
type Entry struct {
	Tag  Tag
	ID   uint32
	Perm Perm
}

// Qualified reports whether the entry carries an explicit id (User or
// Group with a qualifier, as opposed to UserObj/GroupObj).
func (e Entry) Qualified() bool {
	return e.Tag == TagUser || e.Tag == TagGroup
}
