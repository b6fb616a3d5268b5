package config

import "time"

// Default indexer endpoints.
const (
	MainnetIndexerURL = "https://turingwallet.xyz/v1/tbc/main"
	TestnetIndexerURL = "https://turingwallet.xyz/v1/tbc/test"
)

// DefaultMainnet returns the default configuration for mainnet.
func DefaultMainnet() *Config {
	return &Config{
		Network: Mainnet,
		DataDir: DefaultDataDir(),
		Storage: StorageConfig{
			Engine: "badger",
		},
		Indexer: IndexerConfig{
			URL:     MainnetIndexerURL,
			Timeout: 15 * time.Second,
			RPS:     10,
			Burst:   5,
			Retries: 3,
		},
		Sync: SyncConfig{
			PageSize: 10,
			MaxPages: 1000,
		},
		Log: LogConfig{
			Level: "info",
			JSON:  false,
		},
	}
}

// DefaultTestnet returns the default configuration for testnet.
func DefaultTestnet() *Config {
	cfg := DefaultMainnet()
	cfg.Network = Testnet
	cfg.Indexer.URL = TestnetIndexerURL
	return cfg
}

// Default returns the default configuration for the given network.
func Default(network NetworkType) *Config {
	switch network {
	case Testnet:
		return DefaultTestnet()
	default:
		return DefaultMainnet()
	}
}
