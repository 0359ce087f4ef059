package commands

import (
	"testing"

	"github.com/cvmfs-go/graft/internal/config"
)

func resetFlagVars() {
	repoNameFlag = ""
	gatewayURLFlag = ""
	stratum0URLFlag = ""
	tempDirFlag = ""
	leasePathFlag = ""
	pathPrefixFlag = ""
	keyFileFlag = ""
	allowDeletionsFlag = false
	allowAdditionsFlag = false
	forceCancelLeaseFlag = false
	priorityFlag = 0
	busyRetrySecondsFlag = 0
}

func TestValidateDriverInvocation_MissingRepoName(t *testing.T) {
	cfg := &config.Config{Gateway: config.GatewayConfig{URL: "u", KeyID: "k", Secret: "s"}}
	if err := validateDriverInvocation(cfg); err == nil {
		t.Error("expected error for missing repo name")
	}
}

func TestValidateDriverInvocation_MissingGatewayCredentials(t *testing.T) {
	cfg := &config.Config{Driver: config.DriverConfig{RepoName: "r"}, Gateway: config.GatewayConfig{URL: "u"}}
	if err := validateDriverInvocation(cfg); err == nil {
		t.Error("expected error for missing gateway credentials")
	}
}

func TestValidateDriverInvocation_Valid(t *testing.T) {
	cfg := &config.Config{
		Driver:  config.DriverConfig{RepoName: "r"},
		Gateway: config.GatewayConfig{URL: "u", KeyID: "k", Secret: "s"},
	}
	if err := validateDriverInvocation(cfg); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestApplyFlagOverrides_OverridesConfigValues(t *testing.T) {
	resetFlagVars()
	t.Cleanup(resetFlagVars)

	repoNameFlag = "flag-repo"
	gatewayURLFlag = "https://flag-gateway"
	allowDeletionsFlag = true

	cfg := &config.Config{
		Driver:  config.DriverConfig{RepoName: "config-repo"},
		Gateway: config.GatewayConfig{URL: "https://config-gateway"},
	}
	applyFlagOverrides(cfg)

	if cfg.Driver.RepoName != "flag-repo" {
		t.Errorf("RepoName = %q, want flag-repo", cfg.Driver.RepoName)
	}
	if cfg.Gateway.URL != "https://flag-gateway" {
		t.Errorf("Gateway.URL = %q, want https://flag-gateway", cfg.Gateway.URL)
	}
	if !cfg.Driver.AllowDeletions {
		t.Error("expected AllowDeletions to be set from flag")
	}
}

func TestApplyFlagOverrides_LeavesConfigValuesWhenFlagsUnset(t *testing.T) {
	resetFlagVars()
	t.Cleanup(resetFlagVars)

	cfg := &config.Config{Driver: config.DriverConfig{RepoName: "config-repo"}}
	applyFlagOverrides(cfg)

	if cfg.Driver.RepoName != "config-repo" {
		t.Errorf("RepoName = %q, want config-repo unchanged", cfg.Driver.RepoName)
	}
}
