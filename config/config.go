// Package config handles guardian node configuration.
//
// Settings come from defaults, then a key = value .conf file in the data
// directory, then command-line flags.
package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// NetworkType identifies mainnet or testnet.
type NetworkType string

const (
	Mainnet NetworkType = "mainnet"
	Testnet NetworkType = "testnet"
)

// StorageBackend selects the approval/block store.
type StorageBackend string

const (
	StorageBadger StorageBackend = "badger"
	StorageMemory StorageBackend = "memory"
)

// Config holds guardian node runtime configuration.
type Config struct {
	// Core
	Network NetworkType `conf:"network"`
	DataDir string      `conf:"datadir"`

	// Guardian set and local guardian key
	Guardian GuardianConfig

	// Approval and proven-block storage
	Storage StorageConfig

	// Logging
	Log LogConfig

	// Prometheus counters
	Metrics MetricsConfig
}

// GuardianConfig describes the guardian set.
type GuardianConfig struct {
	Members   []string `conf:"guardian.members"`   // Hex addresses, comma-separated
	Threshold int      `conf:"guardian.threshold"` // 0 means two thirds of the set, rounded up
	KeyFile   string   `conf:"guardian.key"`       // Path to this guardian's private key
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	Backend StorageBackend `conf:"storage.backend"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `conf:"log.level"`
	File  string `conf:"log.file"`
	JSON  bool   `conf:"log.json"`
}

// MetricsConfig holds metrics settings.
type MetricsConfig struct {
	Enabled bool `conf:"metrics.enabled"`
}

// =============================================================================
// Directory helpers
// =============================================================================

// DefaultDataDir returns the platform-specific default data directory.
//
//	Linux:   ~/.klingnet-guardian
//	macOS:   ~/Library/Application Support/KlingnetGuardian
//	Windows: %APPDATA%\KlingnetGuardian
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".klingnet-guardian"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "KlingnetGuardian")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, "KlingnetGuardian")
		}
		return filepath.Join(home, "AppData", "Roaming", "KlingnetGuardian")
	default:
		return filepath.Join(home, ".klingnet-guardian")
	}
}

// NetworkDataDir returns the network-specific data directory.
func (c *Config) NetworkDataDir() string {
	return filepath.Join(c.DataDir, string(c.Network))
}

// DBDir returns the Badger database directory.
func (c *Config) DBDir() string {
	return filepath.Join(c.NetworkDataDir(), "db")
}

// KeystoreDir returns the directory holding guardian keys.
func (c *Config) KeystoreDir() string {
	return filepath.Join(c.NetworkDataDir(), "keystore")
}

// DefaultKeyFile returns the default guardian key path.
func (c *Config) DefaultKeyFile() string {
	return filepath.Join(c.KeystoreDir(), "guardian.key")
}

// LogsDir returns the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// ConfigFile returns the config file path.
func (c *Config) ConfigFile() string {
	return filepath.Join(c.DataDir, "guardian.conf")
}
