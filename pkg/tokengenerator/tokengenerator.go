package tokengenerator

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"golang.org/x/crypto/blake2b"
)

// TokenLength is the length of a confirmation token in characters.
// Tokens are lowercase hexadecimal, so this corresponds to TokenLength/2
// bytes of entropy from the system's CSPRNG.
const TokenLength = 32

// ConfirmationTokenGenerator mints opaque single-use confirmation tokens.
// Only the hash of a token is ever persisted; the plaintext exists solely
// in the confirmation email sent to the address being proven.
type ConfirmationTokenGenerator struct {
	now func() time.Time
}

// New creates a new confirmation token generator.
func New() *ConfirmationTokenGenerator {
	return &ConfirmationTokenGenerator{now: time.Now}
}

// Generate mints a new token valid for the given duration. It returns the
// plaintext token, its expiry timestamp and the storable hash of the token.
func (g *ConfirmationTokenGenerator) Generate(validity time.Duration) (string, time.Time, string, error) {
	b := make([]byte, TokenLength/2)
	if _, err := rand.Read(b); err != nil {
		return "", time.Time{}, "", fmt.Errorf("failed to generate confirmation token: %w", err)
	}

	token := hex.EncodeToString(b)
	expiresAt := g.now().UTC().Add(validity)

	return token, expiresAt, Hash(token), nil
}

// Hash returns the storable form of a token. The token is high-entropy and
// single-use, so an unkeyed fast hash is sufficient; this is not a password.
func Hash(token string) string {
	sum := blake2b.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
