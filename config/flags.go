package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrHelp is returned by ParseFlags when help was requested.
var ErrHelp = errors.New("help requested")

// Flags holds parsed global command-line flags.
type Flags struct {
	// Commands
	Help    bool
	Version bool

	// Core
	Network string
	DataDir string
	Config  string

	// Storage
	StorageEngine string

	// Indexer
	Indexer string

	// Logging
	LogLevel string
	LogFile  string
	LogJSON  bool

	// Metrics
	MetricsFile string

	// Remaining args: the command and its arguments.
	Args []string

	// Explicitly-set bool flags (for true/false overrides).
	SetLogJSON bool
}

// ParseFlags parses the global flags in args (without the program name).
// Parsing stops at the first non-flag argument, the command.
func ParseFlags(args []string) (*Flags, error) {
	f := &Flags{}
	fs := flag.NewFlagSet("tbcwallet", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	// Commands
	fs.BoolVar(&f.Help, "help", false, "Show help message")
	fs.BoolVar(&f.Help, "h", false, "Show help message (shorthand)")
	fs.BoolVar(&f.Version, "version", false, "Show version information")
	fs.BoolVar(&f.Version, "v", false, "Show version (shorthand)")

	// Core
	fs.StringVar(&f.Network, "network", "", "Network type (mainnet or testnet)")
	testnet := fs.Bool("testnet", false, "Use testnet (shorthand for --network=testnet)")
	fs.StringVar(&f.DataDir, "datadir", "", "Data directory path")
	fs.StringVar(&f.Config, "config", "", "Config file path")
	fs.StringVar(&f.Config, "c", "", "Config file path (shorthand)")

	fs.StringVar(&f.StorageEngine, "storage", "", "Database engine (badger, leveldb, memory)")
	fs.StringVar(&f.Indexer, "indexer", "", "Indexer base URL")

	// Logging
	fs.StringVar(&f.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.StringVar(&f.LogFile, "log-file", "", "Log file path")
	fs.BoolVar(&f.LogJSON, "log-json", false, "Output logs as JSON")

	fs.StringVar(&f.MetricsFile, "metrics-file", "", "Write Prometheus metrics to this file on exit")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return f, ErrHelp
		}
		return nil, err
	}
	if f.Help {
		return f, ErrHelp
	}

	if *testnet {
		f.Network = string(Testnet)
	}
	f.SetLogJSON = isFlagSet(fs, "log-json")
	f.Args = fs.Args()
	return f, nil
}

// ApplyFlags applies command-line flags to a Config struct.
func ApplyFlags(cfg *Config, f *Flags) {
	// Core
	if f.Network != "" {
		cfg.Network = NetworkType(strings.ToLower(f.Network))
	}
	if f.DataDir != "" {
		cfg.DataDir = f.DataDir
	}

	if f.StorageEngine != "" {
		cfg.Storage.Engine = strings.ToLower(f.StorageEngine)
	}
	if f.Indexer != "" {
		cfg.Indexer.URL = f.Indexer
	}

	// Logging
	if f.LogLevel != "" {
		cfg.Log.Level = f.LogLevel
	}
	if f.LogFile != "" {
		cfg.Log.File = f.LogFile
	}
	if f.SetLogJSON {
		cfg.Log.JSON = f.LogJSON
	}

	if f.MetricsFile != "" {
		cfg.Metrics.File = f.MetricsFile
	}
}

// isFlagSet checks if a flag was explicitly set.
func isFlagSet(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

// PrintUsage writes the global usage text to w.
func PrintUsage(w io.Writer) {
	usage := `TBC Wallet - keys, transfers, multisig and ledger sync for TBC

Usage:
  tbcwallet [options] <command> [arguments]
  tbcwallet --help

Commands:
  create                         Create a wallet and print its mnemonic
  restore [--account N --index I | --path P]
                                 Restore an account from a mnemonic
  import                         Import a WIF private key
  accounts                       List accounts
  accounts use <address>         Switch the active account
  accounts type <type>           Spend from the TBC, TAPROOT or TAPROOT_LEGACY address
  accounts remove <address>      Remove an account and its local data
  passwd                         Change the active account's password
  balance                        Refresh and show the active balance
  sync [--full]                  Sync tokens, NFTs, collections, multisig and history
  send [--yes] <address> <amount>
  multisig create <m> <pubkey...>
  multisig send [--pubkeys K,.. --m M] [--signers K,..] <lock> <address> <amount>
  multisig sign <unsigned-txid>
  multisig finish <unsigned-txid>
  multisig pending
  nft list
  nft transfer [--yes] <nft-id> <address>

Core Options:
  --network       Network type: mainnet (default) or testnet
  --testnet       Shorthand for --network=testnet
  --datadir       Data directory (default: ~/.tbcwallet)
  --config, -c    Config file path, .conf or .yaml (default: <datadir>/tbcwallet.conf)
  --storage       Database engine: badger (default), leveldb, memory
  --indexer       Indexer base URL

Logging Options:
  --log-level     Log level: debug, info, warn, error (default: info)
  --log-file      Log file path (default: stderr only)
  --log-json      Output logs as JSON
  --metrics-file  Write Prometheus metrics to this file on exit

Environment:
  Every config key can be set as TBCWALLET_<KEY>, e.g. TBCWALLET_NETWORK,
  TBCWALLET_INDEXER_URL, TBCWALLET_SYNC_PAGESIZE. Flags win over the
  environment, which wins over the config file.
`
	fmt.Fprint(w, usage)
}

// Load loads configuration with the following precedence:
// 1. Default values
// 2. Auto-create data dirs + default config (idempotent)
// 3. Config file
// 4. Environment
// 5. Command-line flags
func Load(args []string) (*Config, *Flags, error) {
	flags, err := ParseFlags(args)
	if err != nil {
		return nil, flags, err
	}

	// Determine network first (needed for defaults). The environment may
	// also pick it.
	network := Mainnet
	if strings.EqualFold(flags.Network, string(Testnet)) ||
		(flags.Network == "" && strings.EqualFold(os.Getenv(EnvPrefix+"_NETWORK"), string(Testnet))) {
		network = Testnet
	}

	cfg := Default(network)
	if dir := os.Getenv(EnvPrefix + "_DATADIR"); dir != "" {
		cfg.DataDir = dir
	}
	if flags.DataDir != "" {
		cfg.DataDir = flags.DataDir
	}

	if err := EnsureDataDirs(cfg); err != nil {
		return nil, nil, fmt.Errorf("ensuring data dirs: %w", err)
	}

	configPath := flags.Config
	if configPath == "" {
		configPath = cfg.ConfigFile()
	}
	fileValues, err := LoadFile(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config file: %w", err)
	}
	if err := ApplyFileConfig(cfg, fileValues); err != nil {
		return nil, nil, fmt.Errorf("applying config file: %w", err)
	}
	if err := ApplyEnv(cfg); err != nil {
		return nil, nil, err
	}

	// Apply flags (highest precedence)
	ApplyFlags(cfg, flags)
	alignNetworkDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := os.MkdirAll(cfg.KeystoreDir(), 0700); err != nil {
		return nil, nil, fmt.Errorf("creating directory %s: %w", cfg.KeystoreDir(), err)
	}
	return cfg, flags, nil
}

// alignNetworkDefaults swaps a defaulted indexer URL for the chosen
// network's when the network changed after defaults were applied.
func alignNetworkDefaults(cfg *Config) {
	for _, n := range []NetworkType{Mainnet, Testnet} {
		if n != cfg.Network && cfg.Indexer.URL == Default(n).Indexer.URL {
			cfg.Indexer.URL = Default(cfg.Network).Indexer.URL
		}
	}
}

// EnsureDataDirs creates the data directory and a default config file if
// they don't already exist. This is idempotent.
func EnsureDataDirs(cfg *Config) error {
	for _, dir := range []string{cfg.DataDir, cfg.LogsDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}

	configPath := cfg.ConfigFile()
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := WriteDefaultConfig(configPath, cfg.Network); err != nil {
			return fmt.Errorf("writing config file: %w", err)
		}
	}
	return nil
}
