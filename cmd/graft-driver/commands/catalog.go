package commands

import (
	graftsql "github.com/cvmfs-go/graft/internal/graftsql/errors"
	"github.com/cvmfs-go/graft/pkg/planner"
)

// NewCatalogManager builds the writable catalog the planner mutates. The
// catalog-upload pipeline that backs it in production is an external
// collaborator outside this repository's scope: wire your implementation
// in by reassigning this variable before calling Execute.
var NewCatalogManager func(repoName, stratum0URL string) (planner.CatalogManager, error) = func(string, string) (planner.CatalogManager, error) {
	return nil, graftsql.New(graftsql.InternalInvariant, "no catalog manager configured: wire commands.NewCatalogManager before calling Execute")
}
