package aclcodec

import (
	"os/user"
	"strconv"
	"strings"

	graftsql "github.com/cvmfs-go/graft/internal/graftsql/errors"
)

// splitEntries breaks a textual ACL into individual entry strings. Entries
// are separated by commas or newlines; runs of separators (and the
// whitespace libacl tolerates between them) collapse rather than produce
// empty entries. A '#'-introduced comment is stripped from each entry, and
// leading and trailing whitespace is trimmed, before it is returned.
// Interior whitespace within a token is NOT
// trimmed — libacl's reference implementation never trims it either, and
// this codec intentionally preserves that behavior rather than "fixing" it.
func splitEntries(text string) []string {
	var entries []string
	pos := 0
	for pos <= len(text) {
		sep := strings.IndexAny(text[pos:], ",\n")
		var raw string
		if sep == -1 {
			raw = text[pos:]
			pos = len(text) + 1
		} else {
			raw = text[pos : pos+sep]
			pos = pos + sep + 1
		}

		if raw == "" {
			continue
		}

		if hash := strings.IndexByte(raw, '#'); hash != -1 {
			raw = raw[:hash]
		}
		raw = strings.TrimSpace(raw)

		if raw == "" {
			continue
		}

		entries = append(entries, raw)
	}
	return entries
}

// parseEntry parses one "type[:qualifier]:perms" entry.
func parseEntry(s string) (Entry, error) {
	firstColon := strings.IndexByte(s, ':')
	if firstColon == -1 {
		return Entry{}, graftsql.Newf(graftsql.InputInvalid, "acl entry %q: missing ':'", s)
	}
	rest := s[firstColon+1:]
	secondColon := strings.IndexByte(rest, ':')
	if secondColon == -1 {
		return Entry{}, graftsql.Newf(graftsql.InputInvalid, "acl entry %q: missing second ':'", s)
	}

	typ := s[:firstColon]
	qualifier := rest[:secondColon]
	perms := rest[secondColon+1:]

	var tag Tag
	switch typ {
	case "user", "u":
		if qualifier == "" {
			tag = TagUserObj
		} else {
			tag = TagUser
		}
	case "group", "g":
		if qualifier == "" {
			tag = TagGroupObj
		} else {
			tag = TagGroup
		}
	case "other", "o":
		tag = TagOther
	case "mask", "m":
		tag = TagMask
	default:
		return Entry{}, graftsql.Newf(graftsql.InputInvalid, "acl entry %q: unknown type %q", s, typ)
	}

	id, err := resolveID(tag, qualifier)
	if err != nil {
		return Entry{}, err
	}

	perm, err := parsePerms(perms)
	if err != nil {
		return Entry{}, graftsql.Newf(graftsql.InputInvalid, "acl entry %q: %v", s, err)
	}

	return Entry{Tag: tag, ID: id, Perm: perm}, nil
}

// resolveID resolves a qualifier to a numeric id. An empty qualifier
// selects UndefinedID. A numeric qualifier is used directly. A symbolic
// name is only valid for User/Group entries, resolved via the system's
// user/group database.
func resolveID(tag Tag, qualifier string) (uint32, error) {
	if qualifier == "" {
		return UndefinedID, nil
	}

	if n, err := strconv.ParseUint(qualifier, 10, 32); err == nil {
		return uint32(n), nil
	}

	switch tag {
	case TagUser:
		u, err := user.Lookup(qualifier)
		if err != nil {
			return 0, graftsql.Newf(graftsql.InputInvalid, "unresolved user %q: %v", qualifier, err)
		}
		uid, err := strconv.ParseUint(u.Uid, 10, 32)
		if err != nil {
			return 0, graftsql.Newf(graftsql.InputInvalid, "invalid uid for user %q: %v", qualifier, err)
		}
		return uint32(uid), nil
	case TagGroup:
		g, err := user.LookupGroup(qualifier)
		if err != nil {
			return 0, graftsql.Newf(graftsql.InputInvalid, "unresolved group %q: %v", qualifier, err)
		}
		gid, err := strconv.ParseUint(g.Gid, 10, 32)
		if err != nil {
			return 0, graftsql.Newf(graftsql.InputInvalid, "invalid gid for group %q: %v", qualifier, err)
		}
		return uint32(gid), nil
	default:
		return 0, graftsql.Newf(graftsql.InputInvalid, "qualifier %q is not valid for this entry type", qualifier)
	}
}

// parsePerms parses a permission string over {r,w,x,-}.
func parsePerms(s string) (Perm, error) {
	var perm Perm
	for _, c := range s {
		switch c {
		case 'r':
			perm |= PermRead
		case 'w':
			perm |= PermWrite
		case 'x':
			perm |= PermExecute
		case '-':
		default:
			return 0, graftsql.Newf(graftsql.InputInvalid, "invalid permission character %q", c)
		}
	}
	return perm, nil
}

// Parse parses a textual ACL (comma- or newline-separated entries, possibly
// with '#' comments) into a slice of Entry. It does not sort, validate
// invariants, or check the equivalent-to-mode rule — call Validate and
// Encode for that.
func Parse(text string) ([]Entry, error) {
	raw := splitEntries(text)
	entries := make([]Entry, 0, len(raw))
	for _, r := range raw {
		e, err := parseEntry(r)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}
