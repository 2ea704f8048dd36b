// Package prover implements the guardian quorum gate: it fingerprints block
// proposals, establishes guardian quorum either one approval at a time or
// from a bundle of signatures, and forwards approved proposals to the block
// processor.
package prover

import (
	"github.com/Klingon-tech/klingnet-guardian/pkg/crypto"
	"github.com/Klingon-tech/klingnet-guardian/pkg/proposal"
	"github.com/Klingon-tech/klingnet-guardian/pkg/types"
)

// Tag domain-separates fingerprints of the two approval paths.
type Tag string

const (
	// TagNone is used by the incremental path.
	TagNone Tag = ""
	// TagApprove is used by the signature-bundle path. Guardians sign the
	// fingerprint bound with this tag.
	TagApprove Tag = "APPROVE"
)

// Bind computes the fingerprint of p.
//
//	untagged: BLAKE3(SigningBytes)
//	tagged:   BLAKE3(len(tag) || tag || SigningBytes)
//
// SigningBytes is fixed-width, so a tagged preimage is always longer than an
// untagged one and the two paths can never share a fingerprint.
func Bind(p *proposal.Proposal, tag Tag) types.Hash {
	if tag == TagNone {
		return crypto.Hash(p.SigningBytes())
	}
	return crypto.HashParts([]byte{byte(len(tag))}, []byte(tag), p.SigningBytes())
}
