package guardian

import (
	"errors"
	"testing"

	"github.com/Klingon-tech/klingnet-guardian/pkg/types"
)

func testAddrs(n int) []types.Address {
	out := make([]types.Address, n)
	for i := range out {
		out[i] = types.Address{19: byte(i + 1)}
	}
	return out
}

func TestNewSet(t *testing.T) {
	members := testAddrs(3)
	s, err := NewSet(members, 2)
	if err != nil {
		t.Fatalf("NewSet() error: %v", err)
	}
	if s.Size() != 3 {
		t.Errorf("Size() = %d, want 3", s.Size())
	}
	if s.MinGuardians() != 2 {
		t.Errorf("MinGuardians() = %d, want 2", s.MinGuardians())
	}
	for i, a := range members {
		if id := s.GuardianID(a); id != uint32(i+1) {
			t.Errorf("GuardianID(%s) = %d, want %d", a, id, i+1)
		}
		got, ok := s.ByID(uint32(i + 1))
		if !ok || got != a {
			t.Errorf("ByID(%d) = %s, %v", i+1, got, ok)
		}
	}
	if s.IsGuardian(types.Address{0xff}) {
		t.Error("outsider should not be a guardian")
	}
	if _, ok := s.ByID(0); ok {
		t.Error("ByID(0) should not resolve")
	}
}

func TestNewSet_Errors(t *testing.T) {
	dup := testAddrs(2)
	dup[1] = dup[0]
	withZero := testAddrs(2)
	withZero[1] = types.Address{}

	tests := []struct {
		name      string
		members   []types.Address
		threshold int
		want      error
	}{
		{"empty", nil, 1, ErrNoGuardians},
		{"too many", testAddrs(MaxGuardians + 1), MaxGuardians, ErrTooManyGuardians},
		{"zero address", withZero, 2, ErrZeroGuardian},
		{"duplicate", dup, 2, ErrDuplicateGuardian},
		{"threshold above size", testAddrs(3), 4, ErrInvalidThreshold},
		{"threshold below majority", testAddrs(5), 2, ErrInvalidThreshold},
		{"threshold zero", testAddrs(1), 0, ErrInvalidThreshold},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSet(tt.members, tt.threshold)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got: %v", tt.want, err)
			}
		})
	}
}

func TestNewSet_MaxGuardians(t *testing.T) {
	s, err := NewSet(testAddrs(MaxGuardians), DefaultThreshold(MaxGuardians))
	if err != nil {
		t.Fatalf("NewSet() error: %v", err)
	}
	if s.GuardianID(s.Members()[MaxGuardians-1]) != MaxGuardians {
		t.Error("last guardian should have ID MaxGuardians")
	}
}

func TestDefaultThreshold(t *testing.T) {
	tests := []struct{ n, want int }{
		{1, 1}, {2, 2}, {3, 2}, {4, 3}, {5, 4}, {6, 4}, {9, 6},
	}
	for _, tt := range tests {
		if got := DefaultThreshold(tt.n); got != tt.want {
			t.Errorf("DefaultThreshold(%d) = %d, want %d", tt.n, got, tt.want)
		}
	}
}

func TestSet_MembersIsCopy(t *testing.T) {
	s, _ := NewSet(testAddrs(2), 2)
	m := s.Members()
	m[0] = types.Address{0xee}
	if s.Members()[0] == m[0] {
		t.Error("Members() should return a copy")
	}
}
