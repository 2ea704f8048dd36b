package prover

import (
	"github.com/Klingon-tech/klingnet-guardian/pkg/proposal"
	"github.com/Klingon-tech/klingnet-guardian/pkg/types"
)

// Path names an approval path. It is used in logs and metric labels.
type Path string

const (
	PathIncremental Path = "incremental"
	PathSignatures  Path = "signatures"
)

// Tracker is the incremental approval tally.
type Tracker interface {
	// RecordAndCheck records caller's approval of fp within blockID's scope
	// and reports whether quorum has been reached. After a true result the
	// caller must Invalidate fp.
	RecordAndCheck(blockID uint64, fp types.Hash, caller types.Address) (bool, error)
	// Invalidate clears all approval state held for fp.
	Invalidate(fp types.Hash) error
}

// Request is one submission to the gate.
type Request struct {
	Caller     types.Address // incremental path only
	Proposal   *proposal.Proposal
	Proof      *proposal.Proof
	Signatures [][]byte // signature path only
}

// Outcome is what a strategy decided about a request.
type Outcome struct {
	Fingerprint types.Hash    // invalidated when Approved
	Signer      types.Address // reported in the approval event
	Approved    bool
}

// QuorumStrategy establishes whether a request carries guardian quorum.
// It must not mutate state when it returns an error.
type QuorumStrategy interface {
	Path() Path
	Establish(req *Request) (Outcome, error)
}

// incrementalStrategy accumulates one approval per submission in the tracker.
type incrementalStrategy struct {
	tracker Tracker
}

func (s *incrementalStrategy) Path() Path { return PathIncremental }

func (s *incrementalStrategy) Establish(req *Request) (Outcome, error) {
	fp := Bind(req.Proposal, TagNone)
	approved, err := s.tracker.RecordAndCheck(req.Proposal.Meta.BlockID, fp, req.Caller)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Fingerprint: fp, Signer: req.Caller, Approved: approved}, nil
}

// signatureStrategy establishes quorum from a pre-sorted signature bundle.
// No single caller is accountable, so the event signer is the zero address.
type signatureStrategy struct {
	verifier *SignatureVerifier
}

func (s *signatureStrategy) Path() Path { return PathSignatures }

func (s *signatureStrategy) Establish(req *Request) (Outcome, error) {
	fp := Bind(req.Proposal, TagApprove)
	if err := s.verifier.Verify(fp, req.Signatures); err != nil {
		return Outcome{}, err
	}
	// The tagged fingerprint is what gets invalidated. It never holds
	// incremental approvals, so this clear is normally a no-op.
	return Outcome{Fingerprint: fp, Approved: true}, nil
}
