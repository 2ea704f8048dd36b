package proposal

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Proof tiers. Only TierGuardian proofs are accepted by the guardian gate.
const (
	TierOptimistic uint16 = 100
	TierSGX        uint16 = 200
	TierZK         uint16 = 300
	TierGuardian   uint16 = 1000
)

// MaxProofData bounds the opaque proof payload.
const MaxProofData = 1 << 20

// Proof accompanies a proposal to the block processor.
type Proof struct {
	Tier uint16 `json:"tier"`
	Data []byte `json:"data,omitempty"`
}

// proofJSON is the JSON representation of Proof with hex-encoded data.
type proofJSON struct {
	Tier uint16 `json:"tier"`
	Data string `json:"data,omitempty"`
}

// MarshalJSON encodes the proof with hex-encoded data.
func (pr Proof) MarshalJSON() ([]byte, error) {
	j := proofJSON{Tier: pr.Tier}
	if pr.Data != nil {
		j.Data = hex.EncodeToString(pr.Data)
	}
	return json.Marshal(j)
}

// UnmarshalJSON decodes a proof with hex-encoded data.
func (pr *Proof) UnmarshalJSON(data []byte) error {
	var j proofJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	pr.Tier = j.Tier
	pr.Data = nil
	if j.Data != "" {
		b, err := hex.DecodeString(j.Data)
		if err != nil {
			return fmt.Errorf("invalid proof data hex: %w", err)
		}
		pr.Data = b
	}
	return nil
}

// EncodePayload serializes the proposal and proof for the block processor.
// Format: SigningBytes | tier(2) | len(data)(4) | data
func EncodePayload(p *Proposal, proof *Proof) []byte {
	buf := make([]byte, 0, SigningSize+6+len(proof.Data))
	buf = append(buf, p.SigningBytes()...)
	buf = binary.LittleEndian.AppendUint16(buf, proof.Tier)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(proof.Data)))
	buf = append(buf, proof.Data...)
	return buf
}

// DecodePayload reverses EncodePayload.
func DecodePayload(b []byte) (*Proposal, *Proof, error) {
	if len(b) < SigningSize+6 {
		return nil, nil, fmt.Errorf("payload too short: %d bytes", len(b))
	}
	p, err := FromSigningBytes(b[:SigningSize])
	if err != nil {
		return nil, nil, err
	}
	rest := b[SigningSize:]
	tier := binary.LittleEndian.Uint16(rest[0:2])
	n := binary.LittleEndian.Uint32(rest[2:6])
	if n > MaxProofData {
		return nil, nil, fmt.Errorf("proof data too large: %d bytes", n)
	}
	if uint32(len(rest)-6) != n {
		return nil, nil, fmt.Errorf("proof data length mismatch: header says %d, have %d", n, len(rest)-6)
	}
	proof := &Proof{Tier: tier}
	if n > 0 {
		proof.Data = append([]byte(nil), rest[6:]...)
	}
	return p, proof, nil
}
