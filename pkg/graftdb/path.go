package graftdb

import (
	"strings"

	graftsql "github.com/cvmfs-go/graft/internal/graftsql/errors"
)

// SanitisePath strips leading slashes and rejects any name that is not a
// well-formed relative path: no "//", no "./"/"../" prefix, no "/."/"/.."
// suffix, no "/./" or "/../" substring, no trailing "/" (unless the
// entire name was "/"), and never empty.
//
// allowLeadingSlash permits the single-character name "/" (used for
// additional_prefix, which may legitimately be the repository root) to
// pass the trailing-slash check.
func SanitisePath(raw string, allowLeadingSlash bool) (string, error) {
	name := strings.TrimLeft(raw, "/")

	if strings.HasSuffix(name, "/") {
		if !(allowLeadingSlash && len(name) == 1) {
			return "", graftsql.Newf(graftsql.InputInvalid, "name %q is invalid (reason 2: trailing slash)", name)
		}
	}
	if strings.Contains(name, "//") {
		return "", graftsql.Newf(graftsql.InputInvalid, "name %q is invalid (reason 3: double slash)", name)
	}
	if strings.HasPrefix(name, "./") || strings.HasPrefix(name, "../") {
		return "", graftsql.Newf(graftsql.InputInvalid, "name %q is invalid (reason 4: dot-prefixed)", name)
	}
	if strings.HasSuffix(name, "/.") || strings.HasSuffix(name, "/..") {
		return "", graftsql.Newf(graftsql.InputInvalid, "name %q is invalid (reason 5: dot-suffixed)", name)
	}
	if strings.Contains(name, "/./") || strings.Contains(name, "/../") {
		return "", graftsql.Newf(graftsql.InputInvalid, "name %q is invalid (reason 6: dot-segment)", name)
	}
	if name == "" {
		return "", graftsql.New(graftsql.InputInvalid, "name is empty after sanitisation")
	}

	return name, nil
}

// CheckPrefix reports whether path lies within leasePath (path equals
// leasePath, or leasePath is empty, or path starts with leasePath followed
// by a "/" boundary).
func CheckPrefix(path, leasePath string) bool {
	if leasePath == "" || leasePath == "/" || path == leasePath {
		return true
	}
	return strings.HasPrefix(path, leasePath+"/")
}
