package trades

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRandomIDGeneratorUsesAlphabet(t *testing.T) {
	gen := NewRandomIDGenerator(10)
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		id, err := gen.NewID()
		require.NoError(t, err)
		require.Len(t, id, 10)
		for _, r := range id {
			require.True(t, strings.ContainsRune(idAlphabet, r), "unexpected rune %q in %s", r, id)
		}
		seen[id] = true
	}
	require.Greater(t, len(seen), 190)
}
