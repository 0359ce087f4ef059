package aclcodec

import (
	graftsql "github.com/cvmfs-go/graft/internal/graftsql/errors"
)

// Validate checks the builtin-entry invariants libacl enforces before
// accepting an ACL: exactly one UserObj, exactly one GroupObj, exactly one
// Other, at most one Mask, and a Mask entry whenever a qualified User or
// Group entry is present.
//
// Departing from the reference implementation, this codec also rejects
// duplicate ids among qualified User entries and duplicate ids among
// qualified Group entries, rather than silently accepting both and letting
// the kernel pick a winner.
func Validate(entries []Entry) error {
	var userObjCount, groupObjCount, otherCount, maskCount int
	var hasQualified bool

	seenUserIDs := make(map[uint32]bool)
	seenGroupIDs := make(map[uint32]bool)

	for _, e := range entries {
		switch e.Tag {
		case TagUserObj:
			userObjCount++
		case TagGroupObj:
			groupObjCount++
		case TagOther:
			otherCount++
		case TagMask:
			maskCount++
		case TagUser:
			hasQualified = true
			if seenUserIDs[e.ID] {
				return graftsql.Newf(graftsql.InputInvalid, "duplicate user entry for id %d", e.ID)
			}
			seenUserIDs[e.ID] = true
		case TagGroup:
			hasQualified = true
			if seenGroupIDs[e.ID] {
				return graftsql.Newf(graftsql.InputInvalid, "duplicate group entry for id %d", e.ID)
			}
			seenGroupIDs[e.ID] = true
		default:
			return graftsql.Newf(graftsql.InputInvalid, "unknown acl tag %d", e.Tag)
		}
	}

	if userObjCount != 1 {
		return graftsql.Newf(graftsql.InputInvalid, "acl must have exactly one user_obj entry, found %d", userObjCount)
	}
	if groupObjCount != 1 {
		return graftsql.Newf(graftsql.InputInvalid, "acl must have exactly one group_obj entry, found %d", groupObjCount)
	}
	if otherCount != 1 {
		return graftsql.Newf(graftsql.InputInvalid, "acl must have exactly one other entry, found %d", otherCount)
	}
	if maskCount > 1 {
		return graftsql.Newf(graftsql.InputInvalid, "acl must have at most one mask entry, found %d", maskCount)
	}
	if hasQualified && maskCount != 1 {
		return graftsql.New(graftsql.InputInvalid, "acl has qualified user/group entries but no mask entry")
	}

	return nil
}
