package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/Klingon-tech/klingnet-guardian/pkg/crypto"
	"github.com/Klingon-tech/klingnet-guardian/pkg/proposal"
)

// request is the on-disk form of a proposal submitted for approval.
type request struct {
	Proposal *proposal.Proposal `json:"proposal"`
	Proof    *proposal.Proof    `json:"proof"`
}

// loadRequest reads a request JSON file. A missing proof defaults to a
// guardian-tier proof with no data.
func loadRequest(path string) (*request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read proposal file: %w", err)
	}
	var req request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("decode proposal file: %w", err)
	}
	if req.Proposal == nil {
		return nil, fmt.Errorf("proposal file has no \"proposal\" object")
	}
	if req.Proof == nil {
		req.Proof = &proposal.Proof{Tier: proposal.TierGuardian}
	}
	if len(req.Proof.Data) > proposal.MaxProofData {
		return nil, fmt.Errorf("proof data is %d bytes, max is %d", len(req.Proof.Data), proposal.MaxProofData)
	}
	return &req, nil
}

// parseSignatures decodes hex signatures, with or without a 0x prefix.
func parseSignatures(args []string) ([][]byte, error) {
	sigs := make([][]byte, 0, len(args))
	for i, arg := range args {
		s := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(arg), "0x"), "0X")
		sig, err := hex.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("signature %d: %w", i, err)
		}
		if len(sig) != crypto.SignatureSize {
			return nil, fmt.Errorf("signature %d: got %d bytes, want %d", i, len(sig), crypto.SignatureSize)
		}
		sigs = append(sigs, sig)
	}
	return sigs, nil
}
