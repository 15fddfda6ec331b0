package dispenser

import (
	"encoding/binary"
	"testing"

	"github.com/fuellabs/go-faucet/testing/assert"
	"github.com/fuellabs/go-faucet/testing/require"
)

// solve brute-forces a nonce for the salt at the given difficulty.
func solve(t *testing.T, v *PowVerifier, salt string) string {
	t.Helper()
	buf := make([]byte, 8)
	for i := uint64(0); i < 1<<24; i++ {
		binary.BigEndian.PutUint64(buf, i)
		if v.Verify(salt, string(buf)) {
			return string(buf)
		}
	}
	t.Fatal("no nonce found")
	return ""
}

func TestPowVerifier_ZeroDifficultyAcceptsAnything(t *testing.T) {
	v := NewPowVerifier(0)
	assert.Equal(t, true, v.Verify("deadbeef", "whatever"))
	assert.Equal(t, true, v.Verify("", ""))
}

func TestPowVerifier_RejectsWeakNonce(t *testing.T) {
	v := NewPowVerifier(255)
	// Only a digest of 0 or 1 passes at difficulty 255.
	assert.Equal(t, false, v.Verify("deadbeef", "nonce"))
}

func TestPowVerifier_SolvedNonceVerifies(t *testing.T) {
	v := NewPowVerifier(12)
	salt := "3e1894d3bf4ad2b4eea5bbe1d6c1e1b537d2cbef5c235f33c3426b0ba55b197c"
	nonce := solve(t, v, salt)
	require.Equal(t, true, v.Verify(salt, nonce))

	// The same nonce fails against a different salt.
	assert.Equal(t, false, v.Verify(salt[1:]+"0", nonce))
}

func TestPowVerifier_Difficulty(t *testing.T) {
	assert.Equal(t, uint8(20), NewPowVerifier(20).Difficulty())
}
