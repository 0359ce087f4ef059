package commands

import (
	"testing"

	graftsql "github.com/cvmfs-go/graft/internal/graftsql/errors"
)

func TestReconcileRevision_NoGatewayRevisionUsesManifest(t *testing.T) {
	rev, hash, err := reconcileRevision(0, "", 5, "abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rev != 5 || hash != "abc" {
		t.Errorf("got (%d, %q), want (5, abc)", rev, hash)
	}
}

func TestReconcileRevision_EqualRevisionMatchingHash(t *testing.T) {
	rev, hash, err := reconcileRevision(5, "abc", 5, "abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rev != 5 || hash != "abc" {
		t.Errorf("got (%d, %q), want (5, abc)", rev, hash)
	}
}

func TestReconcileRevision_EqualRevisionMismatchedHashAborts(t *testing.T) {
	_, _, err := reconcileRevision(5, "abc", 5, "def")
	if !graftsql.Is(err, graftsql.CatalogConflict) {
		t.Fatalf("expected CatalogConflict, got %v", err)
	}
}

func TestReconcileRevision_GatewayNewerAdoptsGatewayValues(t *testing.T) {
	rev, hash, err := reconcileRevision(7, "newhash", 5, "oldhash")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rev != 7 || hash != "newhash" {
		t.Errorf("got (%d, %q), want (7, newhash)", rev, hash)
	}
}

func TestReconcileRevision_GatewayOlderKeepsManifest(t *testing.T) {
	rev, hash, err := reconcileRevision(3, "stale", 5, "current")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rev != 5 || hash != "current" {
		t.Errorf("got (%d, %q), want (5, current)", rev, hash)
	}
}
