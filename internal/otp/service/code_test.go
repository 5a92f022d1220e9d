package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomDigits(t *testing.T) {
	g := RandomDigits{}

	for _, length := range []int{4, 6, 8, 12} {
		code, err := g.Generate(length)
		require.NoError(t, err)
		assert.Len(t, code, length)
		for _, r := range code {
			assert.True(t, r >= '0' && r <= '9', "non-digit %q in %s", r, code)
		}
	}

	_, err := g.Generate(0)
	assert.Error(t, err)
	_, err = g.Generate(19)
	assert.Error(t, err)
}

func TestRandomDigitsSpread(t *testing.T) {
	g := RandomDigits{}
	seen := make(map[string]struct{})
	for i := 0; i < 200; i++ {
		code, err := g.Generate(6)
		require.NoError(t, err)
		seen[code] = struct{}{}
	}
	// 200 draws from a million codes should almost never collide more than a few times.
	assert.Greater(t, len(seen), 190)
}
