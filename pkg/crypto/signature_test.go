package crypto

import (
	"bytes"
	"errors"
	"testing"
)

func TestGenerateKey(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}

	if len(key.PublicKey()) != 33 {
		t.Errorf("PublicKey() length = %d, want 33", len(key.PublicKey()))
	}
	if len(key.Serialize()) != 32 {
		t.Errorf("Serialize() length = %d, want 32", len(key.Serialize()))
	}
}

func TestPrivateKeyFromBytes(t *testing.T) {
	original, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}

	restored, err := PrivateKeyFromBytes(original.Serialize())
	if err != nil {
		t.Fatalf("PrivateKeyFromBytes() error: %v", err)
	}

	if !bytes.Equal(original.PublicKey(), restored.PublicKey()) {
		t.Error("restored key should have same public key")
	}
}

func TestPrivateKeyFromBytes_InvalidLength(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", []byte{}},
		{"too short", make([]byte, 16)},
		{"too long", make([]byte, 64)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := PrivateKeyFromBytes(tt.data); err == nil {
				t.Error("expected error for invalid key length")
			}
		})
	}
}

func TestSign_Recover(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}

	hash := Hash([]byte("test message"))
	sig, err := key.Sign(hash[:])
	if err != nil {
		t.Fatalf("Sign() error: %v", err)
	}
	if len(sig) != SignatureSize {
		t.Errorf("signature length = %d, want %d", len(sig), SignatureSize)
	}

	pub, err := RecoverPubKey(hash[:], sig)
	if err != nil {
		t.Fatalf("RecoverPubKey() error: %v", err)
	}
	if !bytes.Equal(pub, key.PublicKey()) {
		t.Error("recovered public key does not match signer")
	}

	addr, err := RecoverAddress(hash[:], sig)
	if err != nil {
		t.Fatalf("RecoverAddress() error: %v", err)
	}
	if addr != key.Address() {
		t.Errorf("RecoverAddress() = %s, want %s", addr, key.Address())
	}
}

func TestSign_Deterministic(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}

	hash := Hash([]byte("deterministic test"))
	sig1, _ := key.Sign(hash[:])
	sig2, _ := key.Sign(hash[:])
	if !bytes.Equal(sig1, sig2) {
		t.Error("RFC6979 signatures should be deterministic")
	}
}

func TestSign_InvalidHashLength(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}

	if _, err := key.Sign([]byte("too short")); err == nil {
		t.Error("Sign() should reject non-32-byte hash")
	}
}

func TestRecover_WrongHash(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}

	hash := Hash([]byte("message"))
	sig, _ := key.Sign(hash[:])

	wrong := Hash([]byte("different message"))
	addr, err := RecoverAddress(wrong[:], sig)
	if err == nil && addr == key.Address() {
		t.Error("signature over a different hash must not recover the signer")
	}
}

func TestRecover_CorruptedSignature(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}

	hash := Hash([]byte("message"))
	sig, _ := key.Sign(hash[:])

	corrupted := append([]byte(nil), sig...)
	corrupted[10] ^= 0x01

	addr, err := RecoverAddress(hash[:], corrupted)
	if err == nil && addr == key.Address() {
		t.Error("corrupted signature must not recover the signer")
	}
}

func TestRecover_InvalidInputs(t *testing.T) {
	tests := []struct {
		name      string
		hash      []byte
		signature []byte
	}{
		{"nil hash", nil, make([]byte, SignatureSize)},
		{"empty signature", make([]byte, 32), nil},
		{"short signature", make([]byte, 32), make([]byte, 64)},
		{"zero signature", make([]byte, 32), make([]byte, SignatureSize)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := RecoverAddress(tt.hash, tt.signature)
			if !errors.Is(err, ErrBadSignature) {
				t.Errorf("expected ErrBadSignature, got: %v", err)
			}
		})
	}
}

func TestPrivateKey_Zero(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}

	key.Zero()

	for _, b := range key.Serialize() {
		if b != 0 {
			t.Fatal("Serialize() should return zeros after Zero()")
		}
	}
}
