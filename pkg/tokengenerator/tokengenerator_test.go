package tokengenerator

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	g := New()

	token, expiresAt, hash, err := g.Generate(1 * time.Hour)
	require.NoError(t, err)

	t.Run("TokenFormat", func(t *testing.T) {
		assert.Len(t, token, TokenLength)
		assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]+$`), token)
	})

	t.Run("Expiry", func(t *testing.T) {
		assert.WithinDuration(t, time.Now().UTC().Add(1*time.Hour), expiresAt, 5*time.Second)
	})

	t.Run("HashMatchesToken", func(t *testing.T) {
		assert.Equal(t, Hash(token), hash)
		assert.NotEqual(t, token, hash)
	})

	t.Run("ZeroValidityExpiresImmediately", func(t *testing.T) {
		_, expired, _, err := g.Generate(0)
		require.NoError(t, err)
		assert.False(t, expired.After(time.Now().UTC()))
	})
}

func TestGenerateUnique(t *testing.T) {
	g := New()
	seen := make(map[string]bool)

	for i := 0; i < 100; i++ {
		token, _, _, err := g.Generate(time.Minute)
		require.NoError(t, err)
		assert.False(t, seen[token], "token generated twice")
		seen[token] = true
	}
}

func TestHashStable(t *testing.T) {
	assert.Equal(t, Hash("0123456789abcdef0123456789abcdef"), Hash("0123456789abcdef0123456789abcdef"))
	assert.NotEqual(t, Hash("0123456789abcdef0123456789abcdef"), Hash("0123456789abcdef0123456789abcdee"))
}
