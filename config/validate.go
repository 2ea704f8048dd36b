package config

import (
	"fmt"
	"strings"

	"github.com/Klingon-tech/klingnet-guardian/pkg/types"
)

// MaxGuardians is the largest guardian set the approval tally can track.
const MaxGuardians = 255

// Validate checks runtime config for obvious operator mistakes.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.Network != Mainnet && cfg.Network != Testnet {
		return fmt.Errorf("network must be %q or %q", Mainnet, Testnet)
	}

	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = StorageBadger
	}
	switch cfg.Storage.Backend {
	case StorageBadger, StorageMemory:
	default:
		return fmt.Errorf("storage.backend must be %q or %q", StorageBadger, StorageMemory)
	}

	switch strings.ToLower(cfg.Log.Level) {
	case "", "trace", "debug", "info", "warn", "warning", "error", "fatal", "panic", "disabled", "off":
	default:
		return fmt.Errorf("log.level %q is not a known level", cfg.Log.Level)
	}

	if err := validateMembers(cfg.Guardian.Members); err != nil {
		return err
	}
	return validateThreshold(len(cfg.Guardian.Members), cfg.Guardian.Threshold)
}

// GuardianAddresses parses the configured guardian members.
func (c *Config) GuardianAddresses() ([]types.Address, error) {
	addrs := make([]types.Address, len(c.Guardian.Members))
	for i, m := range c.Guardian.Members {
		addr, err := types.ParseAddress(m)
		if err != nil {
			return nil, fmt.Errorf("guardian.members[%d]: %w", i, err)
		}
		addrs[i] = addr
	}
	return addrs, nil
}

func validateMembers(members []string) error {
	if len(members) > MaxGuardians {
		return fmt.Errorf("guardian.members has %d entries, max is %d", len(members), MaxGuardians)
	}
	seen := make(map[types.Address]struct{}, len(members))
	for i, m := range members {
		addr, err := types.ParseAddress(strings.TrimSpace(m))
		if err != nil {
			return fmt.Errorf("guardian.members[%d] must be a 20-byte hex address", i)
		}
		if addr.IsZero() {
			return fmt.Errorf("guardian.members[%d] is the zero address", i)
		}
		if _, ok := seen[addr]; ok {
			return fmt.Errorf("guardian.members has duplicate address %s", addr)
		}
		seen[addr] = struct{}{}
	}
	return nil
}

func validateThreshold(n, threshold int) error {
	if threshold == 0 {
		return nil
	}
	if threshold < 0 {
		return fmt.Errorf("guardian.threshold must not be negative")
	}
	if n == 0 {
		return fmt.Errorf("guardian.threshold set without guardian.members")
	}
	if threshold < (n+1)/2 || threshold > n {
		return fmt.Errorf("guardian.threshold must be in range [%d, %d]", (n+1)/2, n)
	}
	return nil
}
