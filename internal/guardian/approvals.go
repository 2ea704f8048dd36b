package guardian

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/bits"
	"sync"

	"github.com/Klingon-tech/klingnet-guardian/internal/storage"
	"github.com/Klingon-tech/klingnet-guardian/pkg/types"
	"github.com/rs/zerolog"
)

// approvalKeySize = fingerprint(32) + blockID(8).
const approvalKeySize = types.HashSize + 8

// bitmap records which guardian IDs approved. Bit i is guardian ID i; bit 0
// is never set.
type bitmap [32]byte

func (b *bitmap) set(id uint32)      { b[id/8] |= 1 << (id % 8) }
func (b *bitmap) has(id uint32) bool { return b[id/8]&(1<<(id%8)) != 0 }

func (b *bitmap) count() int {
	n := 0
	for _, x := range b {
		n += bits.OnesCount8(x)
	}
	return n
}

// ApprovalStore is the persistent incremental-approval tally. Entries are
// keyed by (fingerprint, blockID) so that equal fingerprints under different
// blocks never share a count, and Invalidate can clear every block scope of
// a fingerprint with one prefix scan.
type ApprovalStore struct {
	mu       sync.Mutex
	db       storage.DB
	registry Registry
	logger   zerolog.Logger
}

// NewApprovalStore creates a tally over db. db should be a namespace of its
// own (see storage.PrefixDB).
func NewApprovalStore(db storage.DB, registry Registry, logger zerolog.Logger) *ApprovalStore {
	return &ApprovalStore{db: db, registry: registry, logger: logger}
}

func approvalKey(blockID uint64, fp types.Hash) []byte {
	key := make([]byte, approvalKeySize)
	copy(key, fp[:])
	binary.BigEndian.PutUint64(key[types.HashSize:], blockID)
	return key
}

func (s *ApprovalStore) load(key []byte) (bitmap, error) {
	var bm bitmap
	raw, err := s.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return bm, nil
	}
	if err != nil {
		return bm, fmt.Errorf("load approvals: %w", err)
	}
	if len(raw) != len(bm) {
		return bm, fmt.Errorf("corrupt approval entry: %d bytes", len(raw))
	}
	copy(bm[:], raw)
	return bm, nil
}

// RecordAndCheck records caller's approval of fp under blockID and reports
// whether the number of distinct approving guardians has reached quorum.
// A repeated approval by the same guardian does not increase the count.
//
// The approval that reaches quorum is not written: the caller consumes the
// quorum with Invalidate, and if that fails the stored tally is unchanged.
func (s *ApprovalStore) RecordAndCheck(blockID uint64, fp types.Hash, caller types.Address) (bool, error) {
	id := s.registry.GuardianID(caller)
	if id == 0 {
		return false, fmt.Errorf("%w: %s", ErrNotGuardian, caller)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := approvalKey(blockID, fp)
	bm, err := s.load(key)
	if err != nil {
		return false, err
	}
	fresh := !bm.has(id)
	bm.set(id)
	count := bm.count()
	reached := count >= s.registry.MinGuardians()
	if fresh && !reached {
		if err := s.db.Put(key, bm[:]); err != nil {
			return false, fmt.Errorf("store approvals: %w", err)
		}
	}

	s.logger.Debug().
		Uint64("block_id", blockID).
		Str("fingerprint", fp.Short()).
		Uint32("guardian_id", id).
		Int("approvals", count).
		Msg("Approval recorded")
	return reached, nil
}

// Invalidate clears every approval recorded for fp, across all block scopes.
func (s *ApprovalStore) Invalidate(fp types.Hash) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch := storage.NewBatch(s.db)
	n := 0
	err := s.db.ForEach(fp[:], func(key, _ []byte) error {
		if len(key) != approvalKeySize {
			return nil
		}
		n++
		return batch.Delete(key)
	})
	if err != nil {
		return fmt.Errorf("scan approvals: %w", err)
	}
	if n == 0 {
		return nil
	}
	if err := batch.Commit(); err != nil {
		return fmt.Errorf("clear approvals: %w", err)
	}
	s.logger.Debug().Str("fingerprint", fp.Short()).Int("entries", n).Msg("Approvals invalidated")
	return nil
}

// Approvals returns the IDs of guardians that approved fp under blockID, in
// ascending order.
func (s *ApprovalStore) Approvals(blockID uint64, fp types.Hash) ([]uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bm, err := s.load(approvalKey(blockID, fp))
	if err != nil {
		return nil, err
	}
	var ids []uint32
	for id := uint32(1); id <= MaxGuardians; id++ {
		if bm.has(id) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
