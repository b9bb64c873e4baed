package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

const (
	// ResetSecretBytes is the amount of randomness in a reset secret (256 bits).
	ResetSecretBytes = 32
	// DefaultResetTTL is how long a reset secret stays valid.
	DefaultResetTTL = 10 * time.Minute
)

// ResetSecret is a freshly generated reset secret. Only Hash and ExpiresAt
// may be persisted; Raw is sent to the user and then discarded.
type ResetSecret struct {
	Raw       string
	Hash      string
	ExpiresAt time.Time
}

// ResetTokenVault generates password-reset secrets and their stored form.
type ResetTokenVault struct {
	ttl time.Duration
	now func() time.Time
}

// NewResetTokenVault returns a vault. A non-positive ttl selects
// DefaultResetTTL and a nil clock selects time.Now.
func NewResetTokenVault(ttl time.Duration, clock func() time.Time) *ResetTokenVault {
	if ttl <= 0 {
		ttl = DefaultResetTTL
	}
	if clock == nil {
		clock = time.Now
	}
	return &ResetTokenVault{ttl: ttl, now: clock}
}

// Generate returns a new random secret with its hash and expiry.
func (v *ResetTokenVault) Generate() (*ResetSecret, error) {
	buf := make([]byte, ResetSecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("auth: generate reset secret: %w", err)
	}
	raw := hex.EncodeToString(buf)

	return &ResetSecret{
		Raw:       raw,
		Hash:      v.Hash(raw),
		ExpiresAt: v.now().Add(v.ttl),
	}, nil
}

// Hash returns the SHA-256 hex digest used to look up a reset secret.
func (v *ResetTokenVault) Hash(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
