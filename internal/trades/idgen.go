package trades

import (
	"crypto/rand"
	"fmt"
)

// Crockford base32: no I, L, O or U.
const idAlphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

type randomIDGenerator struct {
	length int
}

// NewRandomIDGenerator returns a generator of short uppercase tokens.
func NewRandomIDGenerator(length int) IDGenerator {
	if length <= 0 {
		length = 8
	}
	return &randomIDGenerator{length: length}
}

func (g *randomIDGenerator) NewID() (string, error) {
	buf := make([]byte, g.length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	out := make([]byte, g.length)
	for i, b := range buf {
		// len(idAlphabet) divides 256, so no modulo bias
		out[i] = idAlphabet[int(b)%len(idAlphabet)]
	}
	return string(out), nil
}
