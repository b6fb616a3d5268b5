package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix prefixes every environment override, e.g. TBCWALLET_NETWORK.
const EnvPrefix = "TBCWALLET"

// envOverrides mirrors Config for environment variables. Unset variables
// leave the field nil or empty and do not override anything.
type envOverrides struct {
	Network        string         `envconfig:"NETWORK"`
	DataDir        string         `envconfig:"DATADIR"`
	StorageEngine  string         `envconfig:"STORAGE_ENGINE"`
	IndexerURL     string         `envconfig:"INDEXER_URL"`
	IndexerTimeout *time.Duration `envconfig:"INDEXER_TIMEOUT"`
	IndexerRPS     *float64       `envconfig:"INDEXER_RPS"`
	IndexerBurst   *int           `envconfig:"INDEXER_BURST"`
	IndexerRetries *int           `envconfig:"INDEXER_RETRIES"`
	SyncPageSize   *int           `envconfig:"SYNC_PAGESIZE"`
	SyncMaxPages   *int           `envconfig:"SYNC_MAXPAGES"`
	LogLevel       string         `envconfig:"LOG_LEVEL"`
	LogFile        string         `envconfig:"LOG_FILE"`
	LogJSON        *bool          `envconfig:"LOG_JSON"`
	MetricsFile    string         `envconfig:"METRICS_FILE"`
}

// ApplyEnv applies TBCWALLET_* environment variables to cfg.
func ApplyEnv(cfg *Config) error {
	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return fmt.Errorf("environment: %w", err)
	}

	if env.Network != "" {
		cfg.Network = NetworkType(strings.ToLower(env.Network))
	}
	if env.DataDir != "" {
		cfg.DataDir = env.DataDir
	}
	if env.StorageEngine != "" {
		cfg.Storage.Engine = strings.ToLower(env.StorageEngine)
	}
	if env.IndexerURL != "" {
		cfg.Indexer.URL = env.IndexerURL
	}
	if env.IndexerTimeout != nil {
		cfg.Indexer.Timeout = *env.IndexerTimeout
	}
	if env.IndexerRPS != nil {
		cfg.Indexer.RPS = *env.IndexerRPS
	}
	if env.IndexerBurst != nil {
		cfg.Indexer.Burst = *env.IndexerBurst
	}
	if env.IndexerRetries != nil {
		cfg.Indexer.Retries = *env.IndexerRetries
	}
	if env.SyncPageSize != nil {
		cfg.Sync.PageSize = *env.SyncPageSize
	}
	if env.SyncMaxPages != nil {
		cfg.Sync.MaxPages = *env.SyncMaxPages
	}
	if env.LogLevel != "" {
		cfg.Log.Level = env.LogLevel
	}
	if env.LogFile != "" {
		cfg.Log.File = env.LogFile
	}
	if env.LogJSON != nil {
		cfg.Log.JSON = *env.LogJSON
	}
	if env.MetricsFile != "" {
		cfg.Metrics.File = env.MetricsFile
	}
	return nil
}
