package interactions_test

import (
	"crypto/ed25519"
	"encoding/hex"
	"testing"

	"github.com/michaelhelvey/crabbot/internal/interactions"
	"github.com/stretchr/testify/require"
)

// testSeed is a fixed Ed25519 seed so signatures are reproducible.
var testSeed = []byte("crabbot-interaction-test-seed-32")

func testKeyPair(t *testing.T) (ed25519.PrivateKey, interactions.PublicKey) {
	t.Helper()
	require.Len(t, testSeed, ed25519.SeedSize)
	priv := ed25519.NewKeyFromSeed(testSeed)
	pub, err := interactions.ParsePublicKey(hex.EncodeToString(priv.Public().(ed25519.PublicKey)))
	require.NoError(t, err)
	return priv, pub
}

func sign(priv ed25519.PrivateKey, timestamp string, body []byte) string {
	msg := append([]byte(timestamp), body...)
	return hex.EncodeToString(ed25519.Sign(priv, msg))
}
