// Package config handles wallet configuration.
//
// Settings are layered: built-in defaults, then the config file (.conf or
// YAML), then TBCWALLET_* environment variables, then command-line flags.
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// NetworkType identifies mainnet or testnet.
type NetworkType string

const (
	Mainnet NetworkType = "mainnet"
	Testnet NetworkType = "testnet"
)

// Config holds the wallet's runtime configuration.
type Config struct {
	// Core
	Network NetworkType `conf:"network"`
	DataDir string      `conf:"datadir"`

	Storage StorageConfig
	Indexer IndexerConfig
	Sync    SyncConfig
	Log     LogConfig
	Metrics MetricsConfig
}

// StorageConfig selects the local database engine.
type StorageConfig struct {
	Engine string `conf:"storage.engine"` // badger, leveldb or memory
}

// IndexerConfig holds the indexer endpoint and client tuning.
type IndexerConfig struct {
	URL     string        `conf:"indexer.url"`
	Timeout time.Duration `conf:"indexer.timeout"`
	RPS     float64       `conf:"indexer.rps"`
	Burst   int           `conf:"indexer.burst"`
	Retries int           `conf:"indexer.retries"`
}

// SyncConfig tunes ledger pagination.
type SyncConfig struct {
	PageSize int `conf:"sync.pagesize"`
	MaxPages int `conf:"sync.maxpages"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `conf:"log.level"`
	File  string `conf:"log.file"`
	JSON  bool   `conf:"log.json"`
}

// MetricsConfig holds the metrics dump target. Empty disables the dump.
type MetricsConfig struct {
	File string `conf:"metrics.file"`
}

// DefaultDataDir returns the platform-specific default data directory.
//
//	Linux:   ~/.tbcwallet
//	macOS:   ~/Library/Application Support/TBCWallet
//	Windows: %APPDATA%\TBCWallet
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".tbcwallet"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "TBCWallet")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, "TBCWallet")
		}
		return filepath.Join(home, "AppData", "Roaming", "TBCWallet")
	default:
		return filepath.Join(home, ".tbcwallet")
	}
}

// NetworkDataDir returns the network-specific data directory.
func (c *Config) NetworkDataDir() string {
	return filepath.Join(c.DataDir, string(c.Network))
}

// DBDir returns the local database directory.
func (c *Config) DBDir() string {
	return filepath.Join(c.NetworkDataDir(), "db")
}

// KeystoreDir returns the keystore directory.
func (c *Config) KeystoreDir() string {
	return filepath.Join(c.NetworkDataDir(), "keystore")
}

// LogsDir returns the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// ConfigFile returns the default config file path.
func (c *Config) ConfigFile() string {
	return filepath.Join(c.DataDir, "tbcwallet.conf")
}
