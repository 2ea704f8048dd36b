package prover

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/Klingon-tech/klingnet-guardian/internal/blockproc"
	"github.com/Klingon-tech/klingnet-guardian/pkg/proposal"
	"github.com/Klingon-tech/klingnet-guardian/pkg/types"
	"github.com/rs/zerolog"
)

// Config wires a Gate to its collaborators.
type Config struct {
	Registry Registry
	Tracker  Tracker
	Resolver blockproc.Resolver

	// Optional.
	Sink    EventSink
	Metrics *Metrics
	Logger  zerolog.Logger
}

// Gate lets a block proof through to the block processor only once guardian
// quorum has been established for the exact proposal.
//
// Submissions are serialized: each one runs to completion before the next
// starts. While the block processor is being called, every submission to the
// gate fails fast with ErrReentrant, whatever context it carries. The context
// passed to the block processor also records the gate, so nesting through
// several gates is rejected the same way.
//
// On quorum the approval state is invalidated before the block processor is
// called. If the call then fails, the approval stays spent and guardians
// must approve again.
type Gate struct {
	mu          sync.Mutex
	paused      atomic.Bool
	dispatching atomic.Bool

	tracker     Tracker
	dispatcher  *Dispatcher
	incremental QuorumStrategy
	signatures  QuorumStrategy

	sink    EventSink
	metrics *Metrics
	logger  zerolog.Logger
}

// New creates a Gate.
func New(cfg Config) (*Gate, error) {
	if cfg.Registry == nil {
		return nil, errors.New("gate: registry is required")
	}
	if cfg.Tracker == nil {
		return nil, errors.New("gate: tracker is required")
	}
	if cfg.Resolver == nil {
		return nil, errors.New("gate: resolver is required")
	}
	sink := cfg.Sink
	if sink == nil {
		sink = &EventLog{}
	}
	return &Gate{
		tracker:     cfg.Tracker,
		dispatcher:  NewDispatcher(cfg.Resolver),
		incremental: &incrementalStrategy{tracker: cfg.Tracker},
		signatures:  &signatureStrategy{verifier: NewSignatureVerifier(cfg.Registry)},
		sink:        sink,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
	}, nil
}

// SubmitIncremental records caller's approval of p and reports whether it
// completed the quorum. When it did, the proposal is dispatched. One
// ApprovalEvent is emitted per successful call, approved or not.
func (g *Gate) SubmitIncremental(ctx context.Context, caller types.Address, p *proposal.Proposal, proof *proposal.Proof) (bool, error) {
	return g.submit(ctx, g.incremental, &Request{Caller: caller, Proposal: p, Proof: proof})
}

// SubmitWithSignatures dispatches p if sigs carry a quorum of guardian
// signatures over Bind(p, TagApprove), ordered by strictly increasing signer
// address.
func (g *Gate) SubmitWithSignatures(ctx context.Context, p *proposal.Proposal, proof *proposal.Proof, sigs [][]byte) error {
	_, err := g.submit(ctx, g.signatures, &Request{Proposal: p, Proof: proof, Signatures: sigs})
	return err
}

// Pause makes every submission fail with ErrPaused until Unpause.
func (g *Gate) Pause() {
	g.paused.Store(true)
	g.logger.Warn().Msg("Guardian gate paused")
}

// Unpause re-enables submissions.
func (g *Gate) Unpause() {
	g.paused.Store(false)
	g.logger.Info().Msg("Guardian gate unpaused")
}

// Paused reports whether the gate is paused.
func (g *Gate) Paused() bool {
	return g.paused.Load()
}

// inFlight marks a context as carrying a running submission. Entries chain
// so that nesting through several gates is still detected.
type inFlight struct {
	gate   *Gate
	parent *inFlight
}

type inFlightKey struct{}

func (g *Gate) running(ctx context.Context) bool {
	for f := ctxInFlight(ctx); f != nil; f = f.parent {
		if f.gate == g {
			return true
		}
	}
	return false
}

func (g *Gate) submit(ctx context.Context, s QuorumStrategy, req *Request) (bool, error) {
	path := s.Path()
	g.metrics.submitted(path)

	approved, err := g.run(ctx, s, req)
	if err != nil {
		g.metrics.rejected(path, err)
		ev := g.logger.Debug()
		if errors.Is(err, ErrReentrant) {
			ev = g.logger.Warn()
		}
		ev.Err(err).Str("path", string(path)).Msg("Submission rejected")
		return false, err
	}
	if approved {
		g.metrics.approved(path)
	}
	return approved, nil
}

func (g *Gate) run(ctx context.Context, s QuorumStrategy, req *Request) (bool, error) {
	if g.paused.Load() {
		return false, ErrPaused
	}
	if g.dispatching.Load() || g.running(ctx) {
		return false, ErrReentrant
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	// Pause may have been requested while we waited for the lock.
	if g.paused.Load() {
		return false, ErrPaused
	}
	if req.Proposal == nil {
		return false, ErrNilProposal
	}
	if req.Proof == nil || req.Proof.Tier != proposal.TierGuardian {
		tier := uint16(0)
		if req.Proof != nil {
			tier = req.Proof.Tier
		}
		return false, fmt.Errorf("%w: got %d, want %d", ErrInvalidProofTier, tier, proposal.TierGuardian)
	}
	if len(req.Proof.Data) > proposal.MaxProofData {
		return false, fmt.Errorf("%w: %d bytes, max %d", ErrProofTooLarge, len(req.Proof.Data), proposal.MaxProofData)
	}

	out, err := s.Establish(req)
	if err != nil {
		return false, err
	}

	p := req.Proposal
	if out.Approved {
		if err := g.tracker.Invalidate(out.Fingerprint); err != nil {
			return false, fmt.Errorf("invalidate approvals: %w", err)
		}
		ctx = context.WithValue(ctx, inFlightKey{}, &inFlight{gate: g, parent: ctxInFlight(ctx)})
		if err := g.dispatch(ctx, p, req.Proof); err != nil {
			g.metrics.dispatchFailed()
			g.logger.Error().
				Err(err).
				Uint64("block_id", p.Meta.BlockID).
				Str("fingerprint", out.Fingerprint.Short()).
				Msg("Dispatch failed after approvals were consumed")
			return false, err
		}
	}

	g.sink.Emit(ApprovalEvent{
		Guardian:  out.Signer,
		BlockID:   p.Meta.BlockID,
		StateHash: p.Tran.StateHash,
		Approved:  out.Approved,
	})
	g.logger.Debug().
		Str("path", string(s.Path())).
		Uint64("block_id", p.Meta.BlockID).
		Str("fingerprint", out.Fingerprint.Short()).
		Bool("approved", out.Approved).
		Msg("Submission accepted")
	return out.Approved, nil
}

func (g *Gate) dispatch(ctx context.Context, p *proposal.Proposal, proof *proposal.Proof) error {
	g.dispatching.Store(true)
	defer g.dispatching.Store(false)
	return g.dispatcher.Dispatch(ctx, p, proof)
}

func ctxInFlight(ctx context.Context) *inFlight {
	f, _ := ctx.Value(inFlightKey{}).(*inFlight)
	return f
}
