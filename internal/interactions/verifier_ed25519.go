package interactions

import "crypto/ed25519"

// Ed25519Verifier verifies Discord interaction signatures. It holds only the
// immutable public key and is safe for concurrent use.
type Ed25519Verifier struct {
	publicKey PublicKey
}

// NewEd25519Verifier creates a verifier for the given key.
func NewEd25519Verifier(publicKey PublicKey) *Ed25519Verifier {
	return &Ed25519Verifier{publicKey: publicKey}
}

// Verify checks signature over timestamp ++ body. Every failure, including a
// malformed signature, collapses to ErrInvalidSignature.
func (v *Ed25519Verifier) Verify(signature, timestamp string, body []byte) error {
	if len(v.publicKey.key) != ed25519.PublicKeySize {
		return ErrInvalidSignature
	}

	var sig [ed25519.SignatureSize]byte
	if !DecodeHex(sig[:], signature) {
		return ErrInvalidSignature
	}

	message := make([]byte, 0, len(timestamp)+len(body))
	message = append(message, timestamp...)
	message = append(message, body...)

	if !ed25519.Verify(v.publicKey.key, message, sig[:]) {
		return ErrInvalidSignature
	}
	return nil
}
