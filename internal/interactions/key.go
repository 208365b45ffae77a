package interactions

import (
	"crypto/ed25519"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
)

// ErrInvalidPublicKey is returned when a configured key is not a usable
// Ed25519 verifying key.
var ErrInvalidPublicKey = errors.New("invalid bot public key")

// PublicKey is a validated Ed25519 verifying key. The zero value is not usable;
// build one with NewPublicKey or ParsePublicKey.
type PublicKey struct {
	key ed25519.PublicKey
}

// NewPublicKey validates raw as a compressed edwards25519 point.
func NewPublicKey(raw [ed25519.PublicKeySize]byte) (PublicKey, error) {
	if _, err := new(edwards25519.Point).SetBytes(raw[:]); err != nil {
		return PublicKey{}, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	key := make(ed25519.PublicKey, ed25519.PublicKeySize)
	copy(key, raw[:])
	return PublicKey{key: key}, nil
}

// ParsePublicKey parses a 64 digit hex string into a validated key.
func ParsePublicKey(s string) (PublicKey, error) {
	var raw [ed25519.PublicKeySize]byte
	if !DecodeHex(raw[:], s) {
		return PublicKey{}, fmt.Errorf("%w: public key must be a %d digit hex string", ErrInvalidPublicKey, 2*ed25519.PublicKeySize)
	}
	return NewPublicKey(raw)
}

// Bytes returns a copy of the raw key bytes.
func (k PublicKey) Bytes() []byte {
	out := make([]byte, len(k.key))
	copy(out, k.key)
	return out
}

// String returns the hex form of the key.
func (k PublicKey) String() string {
	return EncodeHex(k.key)
}
