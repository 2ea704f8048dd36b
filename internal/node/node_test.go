package node

import (
	"context"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/Klingon-tech/klingnet-guardian/config"
	"github.com/Klingon-tech/klingnet-guardian/internal/prover"
	"github.com/Klingon-tech/klingnet-guardian/internal/storage"
	"github.com/Klingon-tech/klingnet-guardian/pkg/crypto"
	"github.com/Klingon-tech/klingnet-guardian/pkg/proposal"
	"github.com/Klingon-tech/klingnet-guardian/pkg/types"
)

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home dir")
	}
	tests := []struct {
		input, want string
	}{
		{"~/foo/bar", filepath.Join(home, "foo/bar")},
		{"~/.klingnet-guardian/key", filepath.Join(home, ".klingnet-guardian/key")},
		{"/absolute/path", "/absolute/path"},
		{"relative/path", "relative/path"},
		{"", ""},
	}
	for _, tt := range tests {
		got := expandHome(tt.input)
		if got != tt.want {
			t.Errorf("expandHome(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestLoadGuardianKey(t *testing.T) {
	// Generate a random key, write it hex-encoded to a temp file.
	privKey, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	keyHex := hex.EncodeToString(privKey.Serialize())

	keyPath := filepath.Join(t.TempDir(), "guardian.key")
	if err := os.WriteFile(keyPath, []byte(keyHex+"\n"), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	loaded, err := LoadGuardianKey(keyPath)
	if err != nil {
		t.Fatalf("LoadGuardianKey: %v", err)
	}
	if hex.EncodeToString(loaded.Serialize()) != keyHex {
		t.Errorf("key mismatch: got %x, want %s", loaded.Serialize(), keyHex)
	}
	loaded.Zero()
}

func TestLoadGuardianKey_Missing(t *testing.T) {
	if _, err := LoadGuardianKey("/nonexistent/path"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadGuardianKey_InvalidHex(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), "bad.key")
	if err := os.WriteFile(keyPath, []byte("not-hex-data"), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := LoadGuardianKey(keyPath); err == nil {
		t.Fatal("expected error for invalid hex")
	}
}

func TestSaveGuardianKey(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	path := filepath.Join(t.TempDir(), "keystore", "guardian.key")
	if err := SaveGuardianKey(path, key); err != nil {
		t.Fatalf("SaveGuardianKey: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("key file mode = %v, want 0600", info.Mode().Perm())
	}

	loaded, err := LoadGuardianKey(path)
	if err != nil {
		t.Fatalf("LoadGuardianKey: %v", err)
	}
	if loaded.Address() != key.Address() {
		t.Error("saved key does not load back")
	}

	if err := SaveGuardianKey(path, key); err == nil {
		t.Error("SaveGuardianKey should not overwrite an existing key")
	}
}

func TestBuildGuardianSet_DefaultThreshold(t *testing.T) {
	cfg := config.DefaultMainnet()
	cfg.Guardian.Members = []string{
		"0x0101010101010101010101010101010101010101",
		"0x0202020202020202020202020202020202020202",
		"0x0303030303030303030303030303030303030303",
		"0x0404040404040404040404040404040404040404",
	}
	set, err := buildGuardianSet(cfg)
	if err != nil {
		t.Fatalf("buildGuardianSet: %v", err)
	}
	if set.MinGuardians() != 3 {
		t.Errorf("MinGuardians() = %d, want 3", set.MinGuardians())
	}
}

// testNode starts a node over nKeys fresh guardians. The first key is the
// node's own guardian key.
func testNode(t *testing.T, nKeys, threshold int, backend config.StorageBackend) (*Node, []*crypto.PrivateKey, *config.Config) {
	t.Helper()
	dir := t.TempDir()

	keys := make([]*crypto.PrivateKey, nKeys)
	for i := range keys {
		k, err := crypto.GenerateKey()
		if err != nil {
			t.Fatalf("GenerateKey: %v", err)
		}
		keys[i] = k
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Address().Less(keys[j].Address()) })

	cfg := config.DefaultTestnet()
	cfg.DataDir = dir
	cfg.Storage.Backend = backend
	cfg.Guardian.Threshold = threshold
	for _, k := range keys {
		cfg.Guardian.Members = append(cfg.Guardian.Members, k.Address().String())
	}
	cfg.Guardian.KeyFile = filepath.Join(dir, "guardian.key")
	if err := SaveGuardianKey(cfg.Guardian.KeyFile, keys[0]); err != nil {
		t.Fatalf("SaveGuardianKey: %v", err)
	}
	if err := config.EnsureDataDirs(cfg); err != nil {
		t.Fatalf("EnsureDataDirs: %v", err)
	}

	n, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return n, keys, cfg
}

func nodeProposal(blockID uint64) *proposal.Proposal {
	return &proposal.Proposal{
		Meta: proposal.Metadata{BlockID: blockID, L1Height: 42},
		Tran: proposal.Transition{StateHash: types.Hash{0xab}},
	}
}

func TestNodeLifecycle(t *testing.T) {
	n, keys, _ := testNode(t, 3, 2, config.StorageMemory)
	defer n.Close()

	if n.Set().Size() != 3 || n.Set().MinGuardians() != 2 {
		t.Fatalf("set size/threshold = %d/%d", n.Set().Size(), n.Set().MinGuardians())
	}
	if n.GuardianKey() == nil || n.GuardianKey().Address() != keys[0].Address() {
		t.Fatal("guardian key not loaded")
	}
	if n.Metrics() == nil {
		t.Fatal("metrics should be enabled by default")
	}

	ctx := context.Background()
	p := nodeProposal(5)
	proof := &proposal.Proof{Tier: proposal.TierGuardian}

	approved, err := n.Attest(ctx, p, proof)
	if err != nil {
		t.Fatalf("Attest: %v", err)
	}
	if approved {
		t.Fatal("one attestation should not reach quorum")
	}
	pending, err := n.PendingApprovals(p)
	if err != nil {
		t.Fatalf("PendingApprovals: %v", err)
	}
	if len(pending) != 1 || pending[0] != keys[0].Address() {
		t.Errorf("PendingApprovals = %v", pending)
	}

	approved, err = n.Gate().SubmitIncremental(ctx, keys[1].Address(), p, proof)
	if err != nil {
		t.Fatalf("SubmitIncremental: %v", err)
	}
	if !approved {
		t.Fatal("second attestation should reach quorum")
	}

	rec, err := n.ProvenBlock(5)
	if err != nil {
		t.Fatalf("ProvenBlock: %v", err)
	}
	if rec.StateHash != p.Tran.StateHash {
		t.Errorf("recorded state hash = %s", rec.StateHash)
	}
	if n.Events().Len() != 2 {
		t.Errorf("events = %d, want 2", n.Events().Len())
	}

	families, err := n.Metrics().Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	found := false
	for _, mf := range families {
		if mf.GetName() == "guardian_approvals_total" {
			found = true
		}
	}
	if !found {
		t.Error("guardian_approvals_total not gathered")
	}
}

func TestNode_SubmitBundle(t *testing.T) {
	n, keys, _ := testNode(t, 3, 2, config.StorageMemory)
	defer n.Close()

	p := nodeProposal(9)
	fp := prover.Bind(p, prover.TagApprove)
	var sigs [][]byte
	for _, k := range keys[:2] {
		sig, err := k.Sign(fp[:])
		if err != nil {
			t.Fatalf("Sign: %v", err)
		}
		sigs = append(sigs, sig)
	}

	if err := n.Submit(context.Background(), p, &proposal.Proof{Tier: proposal.TierGuardian}, sigs); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, err := n.ProvenBlock(9); err != nil {
		t.Fatalf("ProvenBlock: %v", err)
	}
	if _, err := n.ProvenBlock(10); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("ProvenBlock(10) error = %v, want ErrNotFound", err)
	}
}

func TestNode_BadgerPersistence(t *testing.T) {
	n, _, cfg := testNode(t, 3, 2, config.StorageBadger)
	p := nodeProposal(3)
	proof := &proposal.Proof{Tier: proposal.TierGuardian}

	if _, err := n.Attest(context.Background(), p, proof); err != nil {
		t.Fatalf("Attest: %v", err)
	}
	if err := n.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := New(cfg)
	if err != nil {
		t.Fatalf("New (reopen): %v", err)
	}
	defer reopened.Close()

	pending, err := reopened.PendingApprovals(p)
	if err != nil {
		t.Fatalf("PendingApprovals: %v", err)
	}
	if len(pending) != 1 {
		t.Errorf("pending approvals after reopen = %v, want one", pending)
	}
}

func TestNode_NoKey(t *testing.T) {
	n, _, cfg := testNode(t, 3, 2, config.StorageMemory)
	n.Close()

	cfg.Guardian.KeyFile = ""
	cfg.Metrics.Enabled = false
	n, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer n.Close()

	if n.Metrics() != nil {
		t.Error("Metrics() should be nil when disabled")
	}
	_, err = n.Attest(context.Background(), nodeProposal(1), &proposal.Proof{Tier: proposal.TierGuardian})
	if !errors.Is(err, ErrNoGuardianKey) {
		t.Fatalf("Attest error = %v, want ErrNoGuardianKey", err)
	}
}

func TestNew_NoGuardians(t *testing.T) {
	cfg := config.DefaultTestnet()
	cfg.DataDir = t.TempDir()
	cfg.Storage.Backend = config.StorageMemory
	if _, err := New(cfg); err == nil {
		t.Fatal("New should fail without guardian members")
	}
}

func TestNew_BadKeyReleasesStorage(t *testing.T) {
	n, _, cfg := testNode(t, 3, 2, config.StorageBadger)
	if err := n.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	goodKey := cfg.Guardian.KeyFile
	cfg.Guardian.KeyFile = filepath.Join(cfg.DataDir, "missing.key")
	if _, err := New(cfg); err == nil {
		t.Fatal("New should fail with a missing key file")
	}

	// The database opened by the failed New must have been closed.
	cfg.Guardian.KeyFile = goodKey
	reopened, err := New(cfg)
	if err != nil {
		t.Fatalf("New after failed New: %v", err)
	}
	reopened.Close()
}
