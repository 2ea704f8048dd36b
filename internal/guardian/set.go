// Package guardian holds the guardian registry and the per-proposal approval
// tally that the incremental approval path writes to.
package guardian

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Klingon-tech/klingnet-guardian/pkg/types"
)

// MaxGuardians is the largest guardian set supported. Guardian IDs are
// 1-based and must fit in the 256-bit approval bitmap.
const MaxGuardians = 255

// Guardian set errors.
var (
	ErrNoGuardians       = errors.New("no guardians configured")
	ErrTooManyGuardians  = errors.New("too many guardians")
	ErrZeroGuardian      = errors.New("guardian address is zero")
	ErrDuplicateGuardian = errors.New("duplicate guardian")
	ErrInvalidThreshold  = errors.New("invalid guardian threshold")
	ErrNotGuardian       = errors.New("caller is not a guardian")
)

// Registry answers membership and quorum questions about a guardian set.
type Registry interface {
	// GuardianID returns the 1-based ID of addr, or 0 if addr is not a guardian.
	GuardianID(addr types.Address) uint32
	// MinGuardians is the number of distinct approvals that make a quorum.
	MinGuardians() int
}

// Set is a fixed guardian set with a quorum threshold.
type Set struct {
	mu           sync.RWMutex
	members      []types.Address
	ids          map[types.Address]uint32
	minGuardians int
}

// DefaultThreshold returns ceil(2n/3), the threshold used when none is
// configured.
func DefaultThreshold(n int) int {
	return (2*n + 2) / 3
}

// NewSet creates a guardian set. IDs are assigned in the order given,
// starting from 1. minGuardians must be at least a simple majority and at
// most the set size.
func NewSet(members []types.Address, minGuardians int) (*Set, error) {
	n := len(members)
	if n == 0 {
		return nil, ErrNoGuardians
	}
	if n > MaxGuardians {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyGuardians, n, MaxGuardians)
	}
	if minGuardians < (n+1)/2 || minGuardians > n {
		return nil, fmt.Errorf("%w: %d of %d", ErrInvalidThreshold, minGuardians, n)
	}

	s := &Set{
		members:      make([]types.Address, 0, n),
		ids:          make(map[types.Address]uint32, n),
		minGuardians: minGuardians,
	}
	for i, addr := range members {
		if addr.IsZero() {
			return nil, fmt.Errorf("%w at index %d", ErrZeroGuardian, i)
		}
		if _, dup := s.ids[addr]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateGuardian, addr)
		}
		s.members = append(s.members, addr)
		s.ids[addr] = uint32(i + 1)
	}
	return s, nil
}

// GuardianID returns the 1-based ID of addr, or 0 if it is not a member.
func (s *Set) GuardianID(addr types.Address) uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ids[addr]
}

// IsGuardian reports whether addr is in the set.
func (s *Set) IsGuardian(addr types.Address) bool {
	return s.GuardianID(addr) != 0
}

// MinGuardians returns the quorum threshold.
func (s *Set) MinGuardians() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.minGuardians
}

// Size returns the number of guardians.
func (s *Set) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.members)
}

// Members returns a copy of the guardian addresses in ID order.
func (s *Set) Members() []types.Address {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]types.Address(nil), s.members...)
}

// ByID returns the guardian with the given 1-based ID.
func (s *Set) ByID(id uint32) (types.Address, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id == 0 || int(id) > len(s.members) {
		return types.Address{}, false
	}
	return s.members[id-1], true
}
