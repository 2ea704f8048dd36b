package node

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Klingon-tech/klingnet-guardian/config"
	"github.com/Klingon-tech/klingnet-guardian/internal/guardian"
	"github.com/Klingon-tech/klingnet-guardian/pkg/crypto"
)

// expandHome replaces a leading ~ with the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}

// LoadGuardianKey reads a hex-encoded 32-byte private key from a file.
func LoadGuardianKey(path string) (*crypto.PrivateKey, error) {
	path = expandHome(path)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}

	hexStr := strings.TrimSpace(string(data))
	keyBytes, err := hex.DecodeString(hexStr)
	if err != nil {
		return nil, fmt.Errorf("decode hex: %w", err)
	}

	return crypto.PrivateKeyFromBytes(keyBytes)
}

// SaveGuardianKey writes key hex-encoded to path, readable by the owner only.
// It refuses to overwrite an existing file.
func SaveGuardianKey(path string, key *crypto.PrivateKey) error {
	path = expandHome(path)
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create key dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return fmt.Errorf("create key file: %w", err)
	}
	if _, err := f.WriteString(hex.EncodeToString(key.Serialize()) + "\n"); err != nil {
		f.Close()
		return fmt.Errorf("write key file: %w", err)
	}
	return f.Close()
}

// buildGuardianSet creates the guardian set described by cfg. A zero
// threshold selects guardian.DefaultThreshold.
func buildGuardianSet(cfg *config.Config) (*guardian.Set, error) {
	members, err := cfg.GuardianAddresses()
	if err != nil {
		return nil, err
	}
	threshold := cfg.Guardian.Threshold
	if threshold == 0 {
		threshold = guardian.DefaultThreshold(len(members))
	}
	return guardian.NewSet(members, threshold)
}
