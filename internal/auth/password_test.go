package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHasher_RoundTrip(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)

	hashed, err := h.Hash("secret123")
	require.NoError(t, err)
	assert.NotEqual(t, "secret123", hashed)

	ok, err := h.Verify("secret123", hashed)
	require.NoError(t, err)
	assert.True(t, ok)

	for _, other := range []string{"secret124", "Secret123", "secret123 ", ""} {
		ok, err := h.Verify(other, hashed)
		require.NoError(t, err)
		assert.False(t, ok, "expected %q not to verify", other)
	}
}

func TestPasswordHasher_SaltedPerCall(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)

	first, err := h.Hash("secret123")
	require.NoError(t, err)
	second, err := h.Hash("secret123")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestPasswordHasher_RejectsShortAndLong(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)

	_, err := h.Hash("")
	assert.ErrorIs(t, err, ErrPasswordTooShort)

	_, err = h.Hash("1234567")
	assert.ErrorIs(t, err, ErrPasswordTooShort)

	// 4 characters, 8 bytes.
	_, err = h.Hash("ääää")
	assert.ErrorIs(t, err, ErrPasswordTooShort)

	_, err = h.Hash(strings.Repeat("a", MaxPasswordLength+1))
	assert.ErrorIs(t, err, ErrPasswordTooLong)

	_, err = h.Hash("päßwörtä")
	assert.NoError(t, err)

	_, err = h.Hash("12345678")
	assert.NoError(t, err)
}

func TestPasswordHasher_MalformedHash(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)

	ok, err := h.Verify("secret123", "not-a-bcrypt-hash")
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrMalformedHash)
}

func TestPasswordHasher_DefaultCost(t *testing.T) {
	h := NewPasswordHasher(0)
	assert.Equal(t, DefaultPasswordCost, h.cost)

	hashed, err := h.Hash("secret123")
	require.NoError(t, err)

	cost, err := bcrypt.Cost([]byte(hashed))
	require.NoError(t, err)
	assert.Equal(t, 12, cost)
}
