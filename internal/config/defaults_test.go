package config

import (
	"testing"
	"time"

	"github.com/cvmfs-go/graft/internal/bytesize"
)

func TestApplyDefaults_LoggingNormalizedToUppercase(t *testing.T) {
	cfg := &Config{Logging: LoggingConfig{Level: "debug"}}
	ApplyDefaults(cfg)
	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Logging.Level = %q, want DEBUG", cfg.Logging.Level)
	}
}

func TestApplyDefaults_LedgerCleanupThresholdDerivedFromLimit(t *testing.T) {
	cfg := &Config{Ledger: LedgerConfig{Limit: 10 * bytesize.GiB}}
	ApplyDefaults(cfg)
	want := 10 * bytesize.GiB * 8 / 10
	if cfg.Ledger.CleanupThreshold != want {
		t.Errorf("CleanupThreshold = %v, want %v", cfg.Ledger.CleanupThreshold, want)
	}
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &Config{
		Gateway: GatewayConfig{BusyRetryInterval: 7 * time.Second},
		Metrics: MetricsConfig{Port: 1234},
	}
	ApplyDefaults(cfg)
	if cfg.Gateway.BusyRetryInterval != 7*time.Second {
		t.Errorf("BusyRetryInterval overwritten: %v", cfg.Gateway.BusyRetryInterval)
	}
	if cfg.Metrics.Port != 1234 {
		t.Errorf("Port overwritten: %d", cfg.Metrics.Port)
	}
}
