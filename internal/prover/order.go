package prover

import (
	"fmt"
	"sort"

	"github.com/Klingon-tech/klingnet-guardian/pkg/crypto"
	"github.com/Klingon-tech/klingnet-guardian/pkg/types"
)

// StrictlyIncreasing reports whether every element of seq orders strictly
// after its predecessor under cmp. A sequence passing this check contains
// no duplicates. Empty and single-element sequences are increasing.
func StrictlyIncreasing[T any](seq []T, cmp func(a, b T) int) bool {
	for i := 1; i < len(seq); i++ {
		if cmp(seq[i-1], seq[i]) >= 0 {
			return false
		}
	}
	return true
}

// SignersOrdered reports whether signers are strictly increasing and all
// above the zero address, the condition the bulk path enforces.
func SignersOrdered(signers []types.Address) bool {
	seq := make([]types.Address, 0, len(signers)+1)
	seq = append(seq, types.Address{})
	seq = append(seq, signers...)
	return StrictlyIncreasing(seq, types.Address.Compare)
}

// OrderSignatures recovers the signer of each signature over fp and returns
// the signatures sorted by ascending signer, together with the sorted
// signers. Duplicates are kept; the verifier rejects them.
func OrderSignatures(fp types.Hash, sigs [][]byte) ([][]byte, []types.Address, error) {
	type entry struct {
		sig    []byte
		signer types.Address
	}
	entries := make([]entry, len(sigs))
	for i, sig := range sigs {
		signer, err := crypto.RecoverAddress(fp[:], sig)
		if err != nil {
			return nil, nil, fmt.Errorf("signature %d: %w", i, err)
		}
		entries[i] = entry{sig: sig, signer: signer}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].signer.Less(entries[j].signer)
	})

	outSigs := make([][]byte, len(entries))
	signers := make([]types.Address, len(entries))
	for i, e := range entries {
		outSigs[i] = e.sig
		signers[i] = e.signer
	}
	return outSigs, signers, nil
}
