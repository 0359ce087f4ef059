// Package config loads the graft driver's configuration from built-in
// defaults, a YAML/TOML file, and environment variables, in that ascending
// order of precedence (CLI flags, handled by the cmd package, take highest
// precedence of all).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/cvmfs-go/graft/internal/bytesize"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Config is the graft driver's static configuration.
//
// Configuration sources, in order of precedence:
//  1. CLI flags (applied by the caller after Load)
//  2. Environment variables (CVMFS_GRAFT_*)
//  3. Configuration file (YAML or TOML)
//  4. Default values (lowest priority)
type Config struct {
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Gateway GatewayConfig `mapstructure:"gateway"`
	Ledger  LedgerConfig  `mapstructure:"ledger"`
	Driver  DriverConfig  `mapstructure:"driver"`
}

// LoggingConfig controls log output behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=text json"`
	Output string `mapstructure:"output" validate:"required"`
}

// MetricsConfig configures the Prometheus metrics HTTP server.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port" validate:"omitempty,min=1,max=65535"`
}

// GatewayConfig configures the HTTP client used to acquire, refresh, and
// release the repository write lease.
type GatewayConfig struct {
	URL               string        `mapstructure:"url" validate:"required"`
	KeyID             string        `mapstructure:"key_id" validate:"required"`
	Secret            string        `mapstructure:"secret" validate:"required"`
	BusyRetryInterval time.Duration `mapstructure:"busy_retry_interval"`
}

// LedgerConfig configures the local LRU-managed cache.
type LedgerConfig struct {
	CacheDir         string            `mapstructure:"cache_dir" validate:"required"`
	Limit            bytesize.ByteSize `mapstructure:"limit"`
	CleanupThreshold bytesize.ByteSize `mapstructure:"cleanup_threshold"`
}

// DriverConfig configures one graft driver invocation: the repository
// being published to, the lease scope, and which changeset phases run.
type DriverConfig struct {
	RepoName         string `mapstructure:"repo_name" validate:"required"`
	StratumZeroURL   string `mapstructure:"stratum0_url"`
	TempDir          string `mapstructure:"temp_dir"`
	LeasePath        string `mapstructure:"lease_path"`
	PathPrefix       string `mapstructure:"path_prefix"`
	AllowDeletions   bool   `mapstructure:"allow_deletions"`
	AllowAdditions   bool   `mapstructure:"allow_additions"`
	ForceCancelLease bool   `mapstructure:"force_cancel_lease"`
	Priority         int64  `mapstructure:"priority"`
	Verbose          bool   `mapstructure:"verbose"`
}

// Load reads configuration from configPath (or the default search path if
// empty), overlays environment variables prefixed CVMFS_GRAFT_, applies
// defaults for anything still unset, and validates the result.
func Load(configPath string) (*Config, error) {
	cfg, err := LoadUnvalidated(configPath)
	if err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadUnvalidated does everything Load does except run field validation.
// Callers that only need a subset of Config (e.g. a CLI command that
// fills the rest from flags) can validate that subset themselves.
func LoadUnvalidated(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	if _, err := readConfigFile(v); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(cfg)

	return cfg, nil
}

// configKeys lists every mapstructure key Load understands, so each can be
// explicitly bound to its CVMFS_GRAFT_ environment variable. viper's
// AutomaticEnv only resolves keys that are already known to it (from a
// config file, a default, or an explicit bind); an unbound key is silently
// invisible to Unmarshal even if its environment variable is set.
var configKeys = []string{
	"logging.level", "logging.format", "logging.output",
	"metrics.enabled", "metrics.port",
	"gateway.url", "gateway.key_id", "gateway.secret", "gateway.busy_retry_interval",
	"ledger.cache_dir", "ledger.limit", "ledger.cleanup_threshold",
	"driver.repo_name", "driver.stratum0_url", "driver.temp_dir", "driver.lease_path",
	"driver.path_prefix", "driver.allow_deletions", "driver.allow_additions",
	"driver.force_cancel_lease", "driver.priority", "driver.verbose",
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("CVMFS_GRAFT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range configKeys {
		_ = v.BindEnv(key)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}

	configDir := getConfigDir()
	v.AddConfigPath(configDir)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		durationDecodeHook(),
	)
}

func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return bytesize.ParseByteSize(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "cvmfs-graft")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "cvmfs-graft")
}
