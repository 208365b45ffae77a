package interactions

import "errors"

const (
	// TimestampHeader carries the signed timestamp string.
	TimestampHeader = "X-Signature-Timestamp"
	// SignatureHeader carries the hex encoded Ed25519 signature.
	SignatureHeader = "X-Signature-Ed25519"
)

// Verifier validates interaction webhook authenticity.
type Verifier interface {
	Verify(signature, timestamp string, body []byte) error
}

var (
	ErrMissingHeader    = errors.New("header is not present or is invalid")
	ErrInvalidSignature = errors.New("invalid signature")
)
