package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// LoadFile loads configuration from a .conf file.
// Format: key = value (one per line, # for comments)
func LoadFile(path string) (map[string]string, error) {
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

		// Parse key = value
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("line %d: invalid format (expected key = value)", lineNum)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Remove quotes if present
		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}

		values[key] = value
	}

	return values, scanner.Err()
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
		cfg.Network = NetworkType(value)
	case "datadir":
		cfg.DataDir = value

	// Guardian set
	case "guardian.members", "guardians":
		cfg.Guardian.Members = parseStringList(value)
	case "guardian.threshold", "threshold":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		cfg.Guardian.Threshold = n
	case "guardian.key":
		cfg.Guardian.KeyFile = value

	// Storage
	case "storage.backend":
		cfg.Storage.Backend = StorageBackend(strings.ToLower(value))

	// Logging
	case "log.level":
		cfg.Log.Level = value
	case "log.file":
		cfg.Log.File = value
	case "log.json":
		cfg.Log.JSON = parseBool(value)

	// Metrics
	case "metrics.enabled", "metrics":
		cfg.Metrics.Enabled = parseBool(value)

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

// parseStringList parses a comma-separated list.
func parseStringList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// WriteDefaultConfig writes a default configuration file.
func WriteDefaultConfig(path string, network NetworkType) error {
	content := `# Klingnet Guardian Configuration

# Network: mainnet or testnet
network = ` + string(network) + `

# Data directory (default: ~/.klingnet-guardian)
# datadir = ~/.klingnet-guardian

# ============================================================================
# Guardian Set
# ============================================================================

# Guardian addresses (comma-separated hex, at most 255)
# guardian.members = 0x...,0x...,0x...

# Approvals required for quorum. 0 = two thirds of the set, rounded up.
# Must lie between half the set (rounded up) and the set size.
guardian.threshold = 0

# Path to this guardian's private key (hex)
# guardian.key = ~/.klingnet-guardian/` + string(network) + `/keystore/guardian.key

# ============================================================================
# Storage
# ============================================================================

# badger (persistent) or memory
storage.backend = badger

# ============================================================================
# Logging
# ============================================================================

log.level = ` + defaultLogLevel(network) + `
# log.file =
log.json = false

# ============================================================================
# Metrics
# ============================================================================

metrics.enabled = true
`
	return os.WriteFile(path, []byte(content), 0644)
}

func defaultLogLevel(network NetworkType) string {
	if network == Testnet {
		return "debug"
	}
	return "info"
}
