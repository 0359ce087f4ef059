package config

import (
	"os"
	"strings"
	"time"

	"github.com/cvmfs-go/graft/internal/bytesize"
)

// ApplyDefaults fills unset fields with sensible defaults after a config
// file and environment overrides have been applied. Zero values (0, "")
// are replaced; explicitly set values are preserved. Boolean fields get no
// default.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyMetricsDefaults(&cfg.Metrics)
	applyGatewayDefaults(&cfg.Gateway)
	applyLedgerDefaults(&cfg.Ledger)
	applyDriverDefaults(&cfg.Driver)
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Port == 0 {
		cfg.Port = 9090
	}
}

func applyGatewayDefaults(cfg *GatewayConfig) {
	if cfg.BusyRetryInterval == 0 {
		cfg.BusyRetryInterval = 30 * time.Second
	}
}

func applyLedgerDefaults(cfg *LedgerConfig) {
	if cfg.Limit == 0 {
		cfg.Limit = 1 * bytesize.GiB
	}
	if cfg.CleanupThreshold == 0 {
		// Leave 20% headroom after a cleanup pass.
		cfg.CleanupThreshold = cfg.Limit * 8 / 10
	}
}

func applyDriverDefaults(cfg *DriverConfig) {
	if cfg.TempDir == "" {
		if tmp := os.Getenv("TMPDIR"); tmp != "" {
			cfg.TempDir = tmp
		} else {
			cfg.TempDir = os.TempDir()
		}
	}
}
