// Package proposal defines the block proposal that guardians approve and
// its canonical byte encoding.
package proposal

import (
	"encoding/binary"
	"fmt"

	"github.com/Klingon-tech/klingnet-guardian/pkg/types"
)

// SigningSize is the length of Proposal.SigningBytes.
// blockID(8) | parentHash(32) | l1Height(8) | l1Hash(32) | timestamp(8) |
// coinbase(20) | txListHash(32) | tranParentHash(32) | stateHash(32) |
// signalRoot(32) | graffiti(32)
const SigningSize = 8 + 32 + 8 + 32 + 8 + types.AddressSize + 32 + 4*32

// Metadata describes the proposed block.
type Metadata struct {
	BlockID    uint64        `json:"block_id"`
	ParentHash types.Hash    `json:"parent_hash"`
	L1Height   uint64        `json:"l1_height"`
	L1Hash     types.Hash    `json:"l1_hash"`
	Timestamp  uint64        `json:"timestamp"`
	Coinbase   types.Address `json:"coinbase"`
	TxListHash types.Hash    `json:"tx_list_hash"`
}

// Transition is the state change the block claims to produce.
type Transition struct {
	ParentHash types.Hash `json:"parent_hash"`
	StateHash  types.Hash `json:"state_hash"` // resulting state
	SignalRoot types.Hash `json:"signal_root"`
	Graffiti   types.Hash `json:"graffiti"`
}

// Proposal pairs block metadata with its proposed transition.
// It is treated as immutable once handed to the gate.
type Proposal struct {
	Meta Metadata   `json:"meta"`
	Tran Transition `json:"transition"`
}

// SigningBytes returns the canonical fixed-width encoding of the proposal.
// Integers are little-endian.
func (p *Proposal) SigningBytes() []byte {
	buf := make([]byte, 0, SigningSize)
	buf = binary.LittleEndian.AppendUint64(buf, p.Meta.BlockID)
	buf = append(buf, p.Meta.ParentHash[:]...)
	buf = binary.LittleEndian.AppendUint64(buf, p.Meta.L1Height)
	buf = append(buf, p.Meta.L1Hash[:]...)
	buf = binary.LittleEndian.AppendUint64(buf, p.Meta.Timestamp)
	buf = append(buf, p.Meta.Coinbase[:]...)
	buf = append(buf, p.Meta.TxListHash[:]...)
	buf = append(buf, p.Tran.ParentHash[:]...)
	buf = append(buf, p.Tran.StateHash[:]...)
	buf = append(buf, p.Tran.SignalRoot[:]...)
	buf = append(buf, p.Tran.Graffiti[:]...)
	return buf
}

// FromSigningBytes decodes the output of SigningBytes.
func FromSigningBytes(b []byte) (*Proposal, error) {
	if len(b) != SigningSize {
		return nil, fmt.Errorf("proposal encoding must be %d bytes, got %d", SigningSize, len(b))
	}
	var p Proposal
	off := 0
	u64 := func() uint64 {
		v := binary.LittleEndian.Uint64(b[off : off+8])
		off += 8
		return v
	}
	hash := func(dst *types.Hash) {
		copy(dst[:], b[off:off+types.HashSize])
		off += types.HashSize
	}

	p.Meta.BlockID = u64()
	hash(&p.Meta.ParentHash)
	p.Meta.L1Height = u64()
	hash(&p.Meta.L1Hash)
	p.Meta.Timestamp = u64()
	copy(p.Meta.Coinbase[:], b[off:off+types.AddressSize])
	off += types.AddressSize
	hash(&p.Meta.TxListHash)
	hash(&p.Tran.ParentHash)
	hash(&p.Tran.StateHash)
	hash(&p.Tran.SignalRoot)
	hash(&p.Tran.Graffiti)
	return &p, nil
}
