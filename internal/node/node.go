// Package node wires the guardian gate to storage, logging and metrics so
// that it can be embedded in any binary.
package node

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Klingon-tech/klingnet-guardian/config"
	"github.com/Klingon-tech/klingnet-guardian/internal/blockproc"
	"github.com/Klingon-tech/klingnet-guardian/internal/guardian"
	klog "github.com/Klingon-tech/klingnet-guardian/internal/log"
	"github.com/Klingon-tech/klingnet-guardian/internal/prover"
	"github.com/Klingon-tech/klingnet-guardian/internal/storage"
	"github.com/Klingon-tech/klingnet-guardian/pkg/crypto"
	"github.com/Klingon-tech/klingnet-guardian/pkg/proposal"
	"github.com/Klingon-tech/klingnet-guardian/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// Keyspaces inside the node database.
var (
	approvalsPrefix = []byte("g/")
	blocksPrefix    = []byte("b/")
)

// ErrNoGuardianKey is returned by Attest when no guardian key is configured.
var ErrNoGuardianKey = errors.New("no guardian key configured")

// Node is a fully-initialized guardian gate with its storage.
type Node struct {
	cfg    *config.Config
	logger zerolog.Logger

	db        storage.DB
	set       *guardian.Set
	approvals *guardian.ApprovalStore
	recorder  *blockproc.Recorder
	services  *blockproc.Registry
	events    *prover.EventLog
	registry  *prometheus.Registry
	gate      *prover.Gate

	guardianKey *crypto.PrivateKey
}

// New creates and initializes a Node.
func New(cfg *config.Config) (*Node, error) {
	// ── 1. Init logger ──────────────────────────────────────────────
	logFile := cfg.Log.File
	if logFile == "" {
		logsDir := cfg.LogsDir()
		if err := os.MkdirAll(logsDir, 0755); err != nil {
			return nil, fmt.Errorf("creating logs dir: %w", err)
		}
		logFile = filepath.Join(logsDir, "guardian.log")
	}
	if err := klog.Init(cfg.Log.Level, cfg.Log.JSON, logFile); err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	logger := klog.WithComponent("node")

	// ── 2. Guardian set ─────────────────────────────────────────────
	set, err := buildGuardianSet(cfg)
	if err != nil {
		return nil, fmt.Errorf("guardian set: %w", err)
	}
	logger.Info().
		Str("network", string(cfg.Network)).
		Int("guardians", set.Size()).
		Int("threshold", set.MinGuardians()).
		Msg("Starting Klingnet Guardian")

	// ── 3. Open storage ─────────────────────────────────────────────
	done := klog.Benchmark("open storage")
	db, err := openDB(cfg)
	done()
	if err != nil {
		return nil, err
	}
	klog.Storage.Info().
		Str("backend", string(cfg.Storage.Backend)).
		Str("path", cfg.DBDir()).
		Msg("Database opened")

	// ── 4. Approvals and block processor ────────────────────────────
	approvals := guardian.NewApprovalStore(storage.NewPrefixDB(db, approvalsPrefix), set, klog.Guardian)
	recorder := blockproc.NewRecorder(storage.NewPrefixDB(db, blocksPrefix), klog.BlockProc)
	services := blockproc.NewRegistry()
	services.Register(blockproc.ServiceName, recorder)

	// ── 5. Metrics ──────────────────────────────────────────────────
	var (
		registry *prometheus.Registry
		metrics  *prover.Metrics
	)
	if cfg.Metrics.Enabled {
		registry = prometheus.NewRegistry()
		metrics, err = prover.NewMetrics(registry)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}

	// ── 6. Gate ─────────────────────────────────────────────────────
	events := &prover.EventLog{}
	gate, err := prover.New(prover.Config{
		Registry: set,
		Tracker:  approvals,
		Resolver: services,
		Sink:     prover.MultiSink{events, prover.LogSink{Logger: klog.Prover}},
		Metrics:  metrics,
		Logger:   klog.Prover,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create gate: %w", err)
	}

	// ── 7. Guardian key (optional) ──────────────────────────────────
	// Nothing may fail after the key is loaded.
	var guardianKey *crypto.PrivateKey
	if cfg.Guardian.KeyFile != "" {
		guardianKey, err = LoadGuardianKey(cfg.Guardian.KeyFile)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("load guardian key %s: %w", cfg.Guardian.KeyFile, err)
		}
		addr := guardianKey.Address()
		if !set.IsGuardian(addr) {
			logger.Warn().Str("address", addr.String()).Msg("Loaded key is not in the guardian set")
		} else {
			logger.Info().Str("address", addr.String()).Msg("Guardian key loaded")
		}
	}

	return &Node{
		cfg:         cfg,
		logger:      logger,
		db:          db,
		set:         set,
		approvals:   approvals,
		recorder:    recorder,
		services:    services,
		events:      events,
		registry:    registry,
		gate:        gate,
		guardianKey: guardianKey,
	}, nil
}

func openDB(cfg *config.Config) (storage.DB, error) {
	switch cfg.Storage.Backend {
	case config.StorageMemory:
		return storage.NewMemory(), nil
	case config.StorageBadger, "":
		db, err := storage.NewBadger(cfg.DBDir())
		if err != nil {
			return nil, fmt.Errorf("open database at %s: %w", cfg.DBDir(), err)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// Close releases the database and wipes the guardian key.
func (n *Node) Close() error {
	if n.guardianKey != nil {
		n.guardianKey.Zero()
	}
	var err error
	if n.db != nil {
		err = n.db.Close()
	}
	n.logger.Info().Msg("Goodbye!")
	return err
}

// Attest records this node's guardian approval of p through the incremental
// path and reports whether it completed the quorum.
func (n *Node) Attest(ctx context.Context, p *proposal.Proposal, proof *proposal.Proof) (bool, error) {
	if n.guardianKey == nil {
		return false, ErrNoGuardianKey
	}
	return n.gate.SubmitIncremental(ctx, n.guardianKey.Address(), p, proof)
}

// Submit dispatches p on the strength of a signature bundle.
func (n *Node) Submit(ctx context.Context, p *proposal.Proposal, proof *proposal.Proof, sigs [][]byte) error {
	return n.gate.SubmitWithSignatures(ctx, p, proof, sigs)
}

// PendingApprovals returns the guardians whose incremental approval of p is
// recorded and not yet consumed.
func (n *Node) PendingApprovals(p *proposal.Proposal) ([]types.Address, error) {
	ids, err := n.approvals.Approvals(p.Meta.BlockID, prover.Bind(p, prover.TagNone))
	if err != nil {
		return nil, err
	}
	out := make([]types.Address, 0, len(ids))
	for _, id := range ids {
		if addr, ok := n.set.ByID(id); ok {
			out = append(out, addr)
		}
	}
	return out, nil
}

// ProvenBlock returns the recorded proof for blockID, or storage.ErrNotFound.
func (n *Node) ProvenBlock(blockID uint64) (*blockproc.ProvenBlock, error) {
	return n.recorder.Get(blockID)
}

// Gate returns the guardian gate.
func (n *Node) Gate() *prover.Gate { return n.gate }

// Set returns the guardian set.
func (n *Node) Set() *guardian.Set { return n.set }

// Events returns the in-memory audit log of this process.
func (n *Node) Events() *prover.EventLog { return n.events }

// GuardianKey returns the loaded guardian key, or nil.
func (n *Node) GuardianKey() *crypto.PrivateKey { return n.guardianKey }

// Metrics returns the metrics gatherer, or nil when metrics are disabled.
func (n *Node) Metrics() prometheus.Gatherer {
	if n.registry == nil {
		return nil
	}
	return n.registry
}

// BlockProcessors returns the service registry the gate dispatches through.
func (n *Node) BlockProcessors() *blockproc.Registry { return n.services }
