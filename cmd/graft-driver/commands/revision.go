package commands

import (
	graftsql "github.com/cvmfs-go/graft/internal/graftsql/errors"
	"github.com/cvmfs-go/graft/internal/logger"
)

// reconcileRevision compares the gateway's reported lease state against
// the fetched manifest and returns the root hash/revision the driver
// should treat as current. A gatewayRevision of 0 means the gateway
// reported no prior revision (a brand new repository); the manifest is
// used as-is.
func reconcileRevision(gatewayRevision uint64, gatewayRootHash string, manifestRevision uint64, manifestRootHash string) (revision uint64, rootHash string, err error) {
	if gatewayRevision == 0 {
		return manifestRevision, manifestRootHash, nil
	}

	switch {
	case gatewayRevision == manifestRevision:
		if gatewayRootHash != manifestRootHash {
			return 0, "", graftsql.Newf(graftsql.CatalogConflict,
				"gateway and manifest disagree on root hash for revision %d (%s != %s)",
				gatewayRevision, gatewayRootHash, manifestRootHash)
		}
		logger.Info("gateway and manifest agree on repository revision", logger.Revision(gatewayRevision))
		return manifestRevision, manifestRootHash, nil

	case gatewayRevision > manifestRevision:
		logger.Info("gateway reports a newer revision than the manifest, adopting gateway values",
			logger.Revision(gatewayRevision))
		return gatewayRevision, gatewayRootHash, nil

	default:
		logger.Info("gateway reports an older revision than the manifest, proceeding with manifest",
			logger.Revision(manifestRevision))
		return manifestRevision, manifestRootHash, nil
	}
}
