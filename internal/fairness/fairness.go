// Package fairness implements the commit-reveal randomness used by every game round.
//
// A round commits to a secret seed by publishing its SHA-256 hash. Outcomes are
// drawn from HMAC-SHA256(secret, clientSeed:nonce) and can be recomputed by anyone
// once the secret is revealed.
package fairness

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/bits"
	"strconv"
)

// SeedSize is the length of a secret seed in bytes.
const SeedSize = 32

// drawSpace is the number of distinct values a single draw can take.
const drawSpace = 1 << 32

type Commitment struct {
	Secret []byte
	Hash   string
}

// Commit generates a fresh secret seed and the hash that is published before play.
func Commit() (Commitment, error) {
	secret := make([]byte, SeedSize)
	if _, err := rand.Read(secret); err != nil {
		return Commitment{}, fmt.Errorf("read secret seed: %w", err)
	}
	return Commitment{Secret: secret, Hash: HashSeed(secret)}, nil
}

// HashSeed returns the hex SHA-256 digest of a secret seed.
func HashSeed(secret []byte) string {
	sum := sha256.Sum256(secret)
	return hex.EncodeToString(sum[:])
}

// VerifyCommitment reports whether secret hashes to the published commitment.
func VerifyCommitment(secret []byte, hash string) bool {
	return subtle.ConstantTimeCompare([]byte(HashSeed(secret)), []byte(hash)) == 1
}

// NewClientSeed returns a random client seed for callers that do not supply one.
func NewClientSeed() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read client seed: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Digest returns the full HMAC for one draw.
func Digest(secret []byte, clientSeed string, nonce uint64) []byte {
	h := hmac.New(sha256.New, secret)
	h.Write([]byte(clientSeed))
	h.Write([]byte{':'})
	h.Write([]byte(strconv.FormatUint(nonce, 10)))
	return h.Sum(nil)
}

// Draw is the scaled integer every outcome is computed from: the first four
// bytes of the digest read as a big-endian uint32.
func Draw(secret []byte, clientSeed string, nonce uint64) uint32 {
	return binary.BigEndian.Uint32(Digest(secret, clientSeed, nonce)[:4])
}

// Derive maps a draw onto [0,1). The division is exact in float64.
func Derive(secret []byte, clientSeed string, nonce uint64) float64 {
	return float64(Draw(secret, clientSeed, nonce)) / drawSpace
}

// DeriveInRange maps a draw onto the closed interval [lo,hi].
// It equals floor(Derive*(hi-lo+1))+lo but stays in the integer domain.
func DeriveInRange(secret []byte, clientSeed string, nonce uint64, lo, hi int) int {
	return scale(Draw(secret, clientSeed, nonce), lo, hi)
}

// scale computes (draw*span)>>32 in 128 bits, so any [lo,hi] within int is
// exact. span wraps to 0 for the full 64-bit range, which stands for 2^64.
func scale(draw uint32, lo, hi int) int {
	if hi < lo {
		panic(fmt.Sprintf("fairness: empty range [%d,%d]", lo, hi))
	}
	span := uint64(hi) - uint64(lo) + 1
	var offset uint64
	if span == 0 {
		offset = uint64(draw) << 32
	} else {
		prodHi, prodLo := bits.Mul64(uint64(draw), span)
		offset = prodHi<<32 | prodLo>>32
	}
	return int(uint64(lo) + offset)
}

// Verify recomputes a [0,1) outcome and compares it exactly with the claim.
func Verify(secret []byte, clientSeed string, nonce uint64, claimed float64) bool {
	return Derive(secret, clientSeed, nonce) == claimed
}

// VerifyInRange recomputes a ranged outcome and compares it with the claim.
func VerifyInRange(secret []byte, clientSeed string, nonce uint64, lo, hi, claimed int) bool {
	if hi < lo {
		return false
	}
	return DeriveInRange(secret, clientSeed, nonce, lo, hi) == claimed
}

// DecodeSeed parses a hex-encoded secret seed as revealed to players.
func DecodeSeed(s string) ([]byte, error) {
	secret, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode secret seed: %w", err)
	}
	if len(secret) != SeedSize {
		return nil, fmt.Errorf("secret seed must be %d bytes, got %d", SeedSize, len(secret))
	}
	return secret, nil
}
