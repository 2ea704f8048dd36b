package blockproc

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/Klingon-tech/klingnet-guardian/internal/storage"
	"github.com/Klingon-tech/klingnet-guardian/pkg/proposal"
	"github.com/Klingon-tech/klingnet-guardian/pkg/types"
	"github.com/rs/zerolog"
)

// ErrAlreadyProven is returned when a block already has a recorded proof.
var ErrAlreadyProven = errors.New("block already proven")

// ProvenBlock is what the Recorder stores per block.
type ProvenBlock struct {
	BlockID   uint64             `json:"block_id"`
	StateHash types.Hash         `json:"state_hash"`
	Proposal  *proposal.Proposal `json:"proposal"`
	Proof     *proposal.Proof    `json:"proof"`
}

// Recorder is a BlockProver that decodes each payload and persists it,
// accepting at most one proof per block ID.
type Recorder struct {
	mu     sync.Mutex
	db     storage.DB
	logger zerolog.Logger
}

// NewRecorder creates a recorder over db.
func NewRecorder(db storage.DB, logger zerolog.Logger) *Recorder {
	return &Recorder{db: db, logger: logger}
}

func blockKey(blockID uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, blockID)
	return key
}

// ProveBlock implements BlockProver.
func (r *Recorder) ProveBlock(ctx context.Context, blockID uint64, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, proof, err := proposal.DecodePayload(payload)
	if err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	if p.Meta.BlockID != blockID {
		return fmt.Errorf("payload is for block %d, not %d", p.Meta.BlockID, blockID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := blockKey(blockID)
	exists, err := r.db.Has(key)
	if err != nil {
		return fmt.Errorf("check block %d: %w", blockID, err)
	}
	if exists {
		return fmt.Errorf("%w: %d", ErrAlreadyProven, blockID)
	}

	rec := ProvenBlock{BlockID: blockID, StateHash: p.Tran.StateHash, Proposal: p, Proof: proof}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode proven block: %w", err)
	}
	if err := r.db.Put(key, data); err != nil {
		return fmt.Errorf("store proven block: %w", err)
	}

	r.logger.Info().
		Uint64("block_id", blockID).
		Str("state_hash", p.Tran.StateHash.Short()).
		Uint16("tier", proof.Tier).
		Msg("Block proven")
	return nil
}

// Get returns the recorded proof for blockID, or storage.ErrNotFound.
func (r *Recorder) Get(blockID uint64) (*ProvenBlock, error) {
	data, err := r.db.Get(blockKey(blockID))
	if err != nil {
		return nil, err
	}
	var rec ProvenBlock
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode proven block: %w", err)
	}
	return &rec, nil
}

// Count returns the number of proven blocks.
func (r *Recorder) Count() (int, error) {
	n := 0
	err := r.db.ForEach(nil, func(_, _ []byte) error {
		n++
		return nil
	})
	return n, err
}
