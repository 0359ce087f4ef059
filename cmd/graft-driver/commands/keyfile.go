package commands

import (
	"os"
	"strings"

	graftsql "github.com/cvmfs-go/graft/internal/graftsql/errors"
)

// readGatewayKeys parses a gateway key file: key_id and secret, whitespace
// separated, on a single non-empty line. Blank lines and lines starting
// with '#' are ignored.
func readGatewayKeys(path string) (keyID, secret string, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", graftsql.Wrap(graftsql.StorageError, err, "failed to read gateway key file").WithPath(path)
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return "", "", graftsql.Newf(graftsql.InputInvalid, "malformed gateway key file line: %q", line).WithPath(path)
		}
		return fields[0], fields[1], nil
	}

	return "", "", graftsql.New(graftsql.InputInvalid, "gateway key file has no key_id/secret line").WithPath(path)
}
