package config

import (
	"fmt"
	"net/url"
)

// MaxPageSize is the largest page the indexer serves.
const MaxPageSize = 100

// Validate checks runtime config for obvious operator mistakes.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.Network != Mainnet && cfg.Network != Testnet {
		return fmt.Errorf("network must be %q or %q", Mainnet, Testnet)
	}
	if cfg.DataDir == "" {
		return fmt.Errorf("datadir must be set")
	}

	switch cfg.Storage.Engine {
	case "badger", "leveldb", "memory":
	case "":
		cfg.Storage.Engine = "badger"
	default:
		return fmt.Errorf("storage.engine must be badger, leveldb or memory")
	}

	u, err := url.Parse(cfg.Indexer.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("indexer.url must be an http(s) URL")
	}
	if cfg.Indexer.Timeout <= 0 {
		return fmt.Errorf("indexer.timeout must be positive")
	}
	if cfg.Indexer.RPS < 0 {
		return fmt.Errorf("indexer.rps must not be negative")
	}
	if cfg.Indexer.Burst < 0 {
		return fmt.Errorf("indexer.burst must not be negative")
	}
	if cfg.Indexer.Retries < 0 || cfg.Indexer.Retries > 10 {
		return fmt.Errorf("indexer.retries must be in range [0, 10]")
	}

	if cfg.Sync.PageSize < 1 || cfg.Sync.PageSize > MaxPageSize {
		return fmt.Errorf("sync.pagesize must be in range [1, %d]", MaxPageSize)
	}
	if cfg.Sync.MaxPages < 1 {
		return fmt.Errorf("sync.maxpages must be at least 1")
	}

	switch cfg.Log.Level {
	case "debug", "info", "warn", "error", "disabled", "off":
	case "":
		cfg.Log.Level = "info"
	default:
		return fmt.Errorf("log.level must be debug, info, warn, error or off")
	}
	return nil
}
