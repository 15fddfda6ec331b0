package dispenser

import (
	"math/big"

	"github.com/minio/sha256-simd"
)

// maxU256 is 2^256 - 1, the largest value a sha256 digest can take.
var maxU256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// PowVerifier checks client proof of work solutions against a per-session
// salt.
type PowVerifier struct {
	difficulty uint8
	target     *big.Int
}

// NewPowVerifier returns a verifier requiring the given number of leading
// zero bits.
func NewPowVerifier(difficulty uint8) *PowVerifier {
	return &PowVerifier{
		difficulty: difficulty,
		target:     new(big.Int).Rsh(maxU256, uint(difficulty)),
	}
}

// Difficulty returns the configured leading zero bits target.
func (v *PowVerifier) Difficulty() uint8 {
	return v.difficulty
}

// Verify accepts iff sha256(saltHex || nonce), read as a big-endian 256 bit
// integer, is at most (2^256-1) >> difficulty. The salt is hashed in its
// hex string form, byte for byte as the client supplied it.
func (v *PowVerifier) Verify(saltHex, nonce string) bool {
	h := sha256.New()
	h.Write([]byte(saltHex))
	h.Write([]byte(nonce))
	digest := h.Sum(nil)
	return new(big.Int).SetBytes(digest).Cmp(v.target) <= 0
}
