package prover

import (
	"fmt"

	"github.com/Klingon-tech/klingnet-guardian/pkg/crypto"
	"github.com/Klingon-tech/klingnet-guardian/pkg/types"
)

// Registry answers guardian membership and quorum questions.
type Registry interface {
	// GuardianID returns a non-zero ID for guardians and 0 otherwise.
	GuardianID(addr types.Address) uint32
	MinGuardians() int
}

// SignatureVerifier checks a signature bundle against the guardian set.
type SignatureVerifier struct {
	registry Registry
}

// NewSignatureVerifier creates a verifier backed by registry.
func NewSignatureVerifier(registry Registry) *SignatureVerifier {
	return &SignatureVerifier{registry: registry}
}

// Verify checks that the first MinGuardians signatures over fp come from
// distinct guardians supplied in strictly increasing signer order.
// Signatures beyond the threshold are ignored.
//
// Bad signatures, unknown signers and ordering violations all yield
// ErrInvalidSignatures.
func (v *SignatureVerifier) Verify(fp types.Hash, sigs [][]byte) error {
	threshold := v.registry.MinGuardians()
	if len(sigs) < threshold {
		return fmt.Errorf("%w: have %d, need %d", ErrInsufficientSignatures, len(sigs), threshold)
	}

	var last types.Address
	for i := 0; i < threshold; i++ {
		signer, err := crypto.RecoverAddress(fp[:], sigs[i])
		if err != nil {
			return fmt.Errorf("%w: signature %d: %v", ErrInvalidSignatures, i, err)
		}
		if last.Compare(signer) >= 0 {
			return fmt.Errorf("%w: signature %d: signer %s not above %s", ErrInvalidSignatures, i, signer, last)
		}
		if v.registry.GuardianID(signer) == 0 {
			return fmt.Errorf("%w: signature %d: %s is not a guardian", ErrInvalidSignatures, i, signer)
		}
		last = signer
	}
	return nil
}
