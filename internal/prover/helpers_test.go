package prover

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/Klingon-tech/klingnet-guardian/internal/blockproc"
	"github.com/Klingon-tech/klingnet-guardian/internal/guardian"
	"github.com/Klingon-tech/klingnet-guardian/internal/storage"
	"github.com/Klingon-tech/klingnet-guardian/pkg/crypto"
	"github.com/Klingon-tech/klingnet-guardian/pkg/proposal"
	"github.com/Klingon-tech/klingnet-guardian/pkg/types"
	"github.com/rs/zerolog"
)

// testGuardians returns n keys sorted by ascending address.
func testGuardians(t *testing.T, n int) []*crypto.PrivateKey {
	t.Helper()
	keys := make([]*crypto.PrivateKey, n)
	for i := range keys {
		k, err := crypto.GenerateKey()
		if err != nil {
			t.Fatalf("GenerateKey() error: %v", err)
		}
		keys[i] = k
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].Address().Less(keys[j].Address())
	})
	return keys
}

func addrsOf(keys []*crypto.PrivateKey) []types.Address {
	out := make([]types.Address, len(keys))
	for i, k := range keys {
		out[i] = k.Address()
	}
	return out
}

func testProposal(blockID uint64) *proposal.Proposal {
	return &proposal.Proposal{
		Meta: proposal.Metadata{
			BlockID:    blockID,
			ParentHash: types.Hash{0x01},
			L1Height:   100,
			L1Hash:     types.Hash{0x02},
			Timestamp:  1700000000,
			Coinbase:   types.Address{0x03},
			TxListHash: types.Hash{0x04},
		},
		Tran: proposal.Transition{
			ParentHash: types.Hash{0x05},
			StateHash:  types.Hash{0x06, byte(blockID)},
			SignalRoot: types.Hash{0x07},
		},
	}
}

func guardianProof() *proposal.Proof {
	return &proposal.Proof{Tier: proposal.TierGuardian}
}

func sign(t *testing.T, key *crypto.PrivateKey, fp types.Hash) []byte {
	t.Helper()
	sig, err := key.Sign(fp[:])
	if err != nil {
		t.Fatalf("Sign() error: %v", err)
	}
	return sig
}

// signAll signs Bind(p, TagApprove) with each key, in the order given.
func signAll(t *testing.T, p *proposal.Proposal, keys ...*crypto.PrivateKey) [][]byte {
	t.Helper()
	fp := Bind(p, TagApprove)
	sigs := make([][]byte, len(keys))
	for i, k := range keys {
		sigs[i] = sign(t, k, fp)
	}
	return sigs
}

// dispatchCall is one recorded ProveBlock invocation.
type dispatchCall struct {
	blockID uint64
	payload []byte
}

// fakeProcessor records ProveBlock calls and can be told to fail.
type fakeProcessor struct {
	mu    sync.Mutex
	calls []dispatchCall
	err   error
	hook  func(ctx context.Context)
}

func (f *fakeProcessor) ProveBlock(ctx context.Context, blockID uint64, payload []byte) error {
	if f.hook != nil {
		f.hook(ctx)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, dispatchCall{blockID: blockID, payload: payload})
	return nil
}

func (f *fakeProcessor) Calls() []dispatchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]dispatchCall(nil), f.calls...)
}

type testEnv struct {
	gate      *Gate
	set       *guardian.Set
	store     *guardian.ApprovalStore
	events    *EventLog
	processor *fakeProcessor
	services  *blockproc.Registry
	keys      []*crypto.PrivateKey
}

func newTestEnv(t *testing.T, n, threshold int) *testEnv {
	t.Helper()
	keys := testGuardians(t, n)
	set, err := guardian.NewSet(addrsOf(keys), threshold)
	if err != nil {
		t.Fatalf("NewSet() error: %v", err)
	}
	store := guardian.NewApprovalStore(storage.NewMemory(), set, zerolog.Nop())

	processor := &fakeProcessor{}
	services := blockproc.NewRegistry()
	services.Register(blockproc.ServiceName, processor)

	events := &EventLog{}
	gate, err := New(Config{
		Registry: set,
		Tracker:  store,
		Resolver: services,
		Sink:     events,
		Logger:   zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return &testEnv{
		gate:      gate,
		set:       set,
		store:     store,
		events:    events,
		processor: processor,
		services:  services,
		keys:      keys,
	}
}
