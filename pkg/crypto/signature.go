package crypto

import (
	"errors"
	"fmt"

	"github.com/Klingon-tech/klingnet-guardian/pkg/types"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// SignatureSize is the length of a compact recoverable signature:
// one recovery byte followed by R and S.
const SignatureSize = 65

// ErrBadSignature is returned when a signer cannot be recovered.
var ErrBadSignature = errors.New("malformed signature")

// Signer signs 32-byte digests with a recoverable signature.
type Signer interface {
	// Sign produces a 65-byte compact ECDSA signature over a 32-byte hash.
	Sign(hash []byte) ([]byte, error)
	// Address returns the address derived from the signer's public key.
	Address() types.Address
}

// PrivateKey wraps a secp256k1 private key for recoverable ECDSA signing.
type PrivateKey struct {
	key *secp256k1.PrivateKey
}

// GenerateKey creates a new random secp256k1 private key.
func GenerateKey() (*PrivateKey, error) {
	key, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return &PrivateKey{key: key}, nil
}

// PrivateKeyFromBytes creates a PrivateKey from a 32-byte secret.
func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	if len(b) != 32 {
		return nil, fmt.Errorf("private key must be 32 bytes, got %d", len(b))
	}
	key := secp256k1.PrivKeyFromBytes(b)
	return &PrivateKey{key: key}, nil
}

// Sign produces a compact recoverable ECDSA signature over a 32-byte hash.
func (pk *PrivateKey) Sign(hash []byte) ([]byte, error) {
	if len(hash) != 32 {
		return nil, fmt.Errorf("hash must be 32 bytes, got %d", len(hash))
	}
	return ecdsa.SignCompact(pk.key, hash, true), nil
}

// PublicKey returns the compressed 33-byte public key.
func (pk *PrivateKey) PublicKey() []byte {
	return pk.key.PubKey().SerializeCompressed()
}

// Address returns the address of the key's public half.
func (pk *PrivateKey) Address() types.Address {
	return AddressFromPubKey(pk.PublicKey())
}

// Serialize returns the 32-byte private key scalar.
func (pk *PrivateKey) Serialize() []byte {
	return pk.key.Serialize()
}

// Zero securely zeroes the private key memory.
func (pk *PrivateKey) Zero() {
	pk.key.Zero()
}

// RecoverPubKey recovers the compressed public key that produced signature
// over hash.
func RecoverPubKey(hash, signature []byte) ([]byte, error) {
	if len(hash) != 32 {
		return nil, fmt.Errorf("%w: hash must be 32 bytes, got %d", ErrBadSignature, len(hash))
	}
	if len(signature) != SignatureSize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrBadSignature, SignatureSize, len(signature))
	}
	pub, _, err := ecdsa.RecoverCompact(signature, hash)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	return pub.SerializeCompressed(), nil
}

// RecoverAddress recovers the signer address from a compact signature.
func RecoverAddress(hash, signature []byte) (types.Address, error) {
	pub, err := RecoverPubKey(hash, signature)
	if err != nil {
		return types.Address{}, err
	}
	return AddressFromPubKey(pub), nil
}
