package prover

import "errors"

// Submission errors. A rejected submission mutates no approval state and
// emits no event.
var (
	ErrInvalidProofTier       = errors.New("invalid proof tier")
	ErrProofTooLarge          = errors.New("proof data too large")
	ErrInsufficientSignatures = errors.New("insufficient signatures")
	ErrInvalidSignatures      = errors.New("invalid signatures")
	ErrPaused                 = errors.New("guardian gate is paused")
	ErrReentrant              = errors.New("reentrant submission")
	ErrNilProposal            = errors.New("nil proposal")
)
