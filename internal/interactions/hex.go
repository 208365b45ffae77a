package interactions

import "encoding/hex"

// DecodeHex decodes s into dst. It succeeds only when s holds exactly
// 2*len(dst) hex digits; on failure dst is left untouched.
func DecodeHex(dst []byte, s string) bool {
	if len(s) != 2*len(dst) {
		return false
	}
	buf := make([]byte, len(dst))
	if _, err := hex.Decode(buf, []byte(s)); err != nil {
		return false
	}
	copy(dst, buf)
	return true
}

// EncodeHex returns the lower-case hex encoding of b.
func EncodeHex(b []byte) string {
	return hex.EncodeToString(b)
}
