package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// LoadFile loads configuration values from path. Files ending in .yaml or
// .yml are parsed as YAML and flattened to dotted keys; anything else uses
// the key = value format (one per line, # for comments). A missing file
// yields no values.
func LoadFile(path string) (map[string]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return loadYAML(path)
	default:
		return loadConf(path)
	}
}

func loadConf(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, err
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("line %d: invalid format (expected key = value)", lineNum)
		}
		values[strings.TrimSpace(key)] = unquote(strings.TrimSpace(value))
	}

	return values, scanner.Err()
}

func unquote(value string) string {
	if len(value) >= 2 {
		if (value[0] == '"' && value[len(value)-1] == '"') ||
			(value[0] == '\'' && value[len(value)-1] == '\'') {
			return value[1 : len(value)-1]
		}
	}
	return value
}

// loadYAML reads a YAML document such as
//
//	network: testnet
//	indexer:
//	  url: https://example.org
//
// into {"network": "testnet", "indexer.url": "https://example.org"}.
func loadYAML(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, err
	}
	var doc yaml.MapSlice
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	values := make(map[string]string)
	if err := flatten("", doc, values); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return values, nil
}

func flatten(prefix string, doc yaml.MapSlice, out map[string]string) error {
	for _, item := range doc {
		key := fmt.Sprint(item.Key)
		if prefix != "" {
			key = prefix + "." + key
		}
		switch v := item.Value.(type) {
		case yaml.MapSlice:
			if err := flatten(key, v, out); err != nil {
				return err
			}
		case []interface{}:
			parts := make([]string, len(v))
			for i, p := range v {
				parts[i] = fmt.Sprint(p)
			}
			out[key] = strings.Join(parts, ",")
		case nil:
			out[key] = ""
		default:
			out[key] = fmt.Sprint(v)
		}
	}
	return nil
}

// ApplyFileConfig applies file configuration to a Config struct.
func ApplyFileConfig(cfg *Config, values map[string]string) error {
	for key, value := range values {
		if err := setConfigValue(cfg, key, value); err != nil {
			return fmt.Errorf("config key %q: %w", key, err)
		}
	}
	return nil
}

// setConfigValue sets a config value by key.
func setConfigValue(cfg *Config, key, value string) error {
	switch key {
	// Core
	case "network":
		cfg.Network = NetworkType(strings.ToLower(value))
	case "datadir":
		cfg.DataDir = value

	// Storage
	case "storage.engine":
		cfg.Storage.Engine = strings.ToLower(value)

	// Indexer
	case "indexer.url", "indexer":
		cfg.Indexer.URL = value
	case "indexer.timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		cfg.Indexer.Timeout = d
	case "indexer.rps":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		cfg.Indexer.RPS = f
	case "indexer.burst":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		cfg.Indexer.Burst = n
	case "indexer.retries":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		cfg.Indexer.Retries = n

	// Sync
	case "sync.pagesize":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		cfg.Sync.PageSize = n
	case "sync.maxpages":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		cfg.Sync.MaxPages = n

	// Logging
	case "log.level":
		cfg.Log.Level = value
	case "log.file":
		cfg.Log.File = value
	case "log.json":
		cfg.Log.JSON = parseBool(value)

	// Metrics
	case "metrics.file":
		cfg.Metrics.File = value

	default:
		// Unknown keys are ignored
	}
	return nil
}

// parseBool parses a boolean value.
func parseBool(s string) bool {
	s = strings.ToLower(s)
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

// WriteDefaultConfig writes a default configuration file.
func WriteDefaultConfig(path string, network NetworkType) error {
	content := `# TBC Wallet Configuration
#
# Values here are overridden by TBCWALLET_* environment variables and by
# command-line flags.

# Network: mainnet or testnet
# network = ` + string(network) + `

# Data directory (default: ~/.tbcwallet)
# datadir = ~/.tbcwallet

# ============================================================================
# Storage
# ============================================================================

# Local database engine: badger, leveldb or memory
storage.engine = badger

# ============================================================================
# Indexer
# ============================================================================

# Base URL (default depends on the network)
# indexer.url = ` + Default(network).Indexer.URL + `
indexer.timeout = 15s

# Request throttle (requests per second, burst)
indexer.rps = 10
indexer.burst = 5

# Retries for transport errors and 5xx responses
indexer.retries = 3

# ============================================================================
# Sync
# ============================================================================

sync.pagesize = 10
sync.maxpages = 1000

# ============================================================================
# Logging
# ============================================================================

log.level = info
# log.file =
log.json = false

# ============================================================================
# Metrics
# ============================================================================

# Prometheus text dump written when a command exits
# metrics.file =
`
	return os.WriteFile(path, []byte(content), 0644)
}
