package types

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// AddressSize is the length of an address in bytes.
const AddressSize = 20

// Address identifies a guardian (or any signer). It is the truncated hash of
// a compressed public key.
//
// Addresses are totally ordered by their big-endian numeric value, which is
// the same as lexicographic byte order. The zero address is the minimum.
type Address [AddressSize]byte

// IsZero returns true if the address is all zeros.
func (a Address) IsZero() bool {
	return a == Address{}
}

// Compare returns -1, 0 or +1 depending on whether a is less than, equal to
// or greater than b.
func (a Address) Compare(b Address) int {
	return bytes.Compare(a[:], b[:])
}

// Less reports whether a orders strictly before b.
func (a Address) Less(b Address) bool {
	return a.Compare(b) < 0
}

// String returns the 0x-prefixed hex address.
func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

// Hex returns the raw hex-encoded address without prefix.
func (a Address) Hex() string {
	return hex.EncodeToString(a[:])
}

// Bytes returns a copy of the address as a byte slice.
func (a Address) Bytes() []byte {
	b := make([]byte, AddressSize)
	copy(b, a[:])
	return b
}

// MarshalJSON encodes the address as a 0x-prefixed hex string.
func (a Address) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON decodes a hex string (with or without 0x) into an address.
func (a *Address) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*a = Address{}
		return nil
	}
	parsed, err := ParseAddress(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// ParseAddress parses a 40-character hex address, optionally 0x-prefixed.
func ParseAddress(s string) (Address, error) {
	if s == "" {
		return Address{}, fmt.Errorf("empty address")
	}
	decoded, err := hex.DecodeString(trimHexPrefix(s))
	if err != nil {
		return Address{}, fmt.Errorf("invalid address: %w", err)
	}
	if len(decoded) != AddressSize {
		return Address{}, fmt.Errorf("address must be %d bytes, got %d", AddressSize, len(decoded))
	}
	var a Address
	copy(a[:], decoded)
	return a, nil
}
