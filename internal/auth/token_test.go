package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestIssuer(t *testing.T, clock *fakeClock, ttl time.Duration) *TokenIssuer {
	t.Helper()
	issuer, err := NewTokenIssuer(TokenConfig{
		Secret: "test-secret-key-with-enough-length",
		Issuer: "natours-test",
		TTL:    ttl,
		Clock:  clock.Now,
	})
	require.NoError(t, err)
	return issuer
}

func TestNewTokenIssuer_RequiresSecret(t *testing.T) {
	_, err := NewTokenIssuer(TokenConfig{})
	assert.Error(t, err)
}

func TestNewTokenIssuer_DefaultTTL(t *testing.T) {
	issuer, err := NewTokenIssuer(TokenConfig{Secret: "s"})
	require.NoError(t, err)
	assert.Equal(t, DefaultTokenTTL, issuer.TTL())
}

func TestTokenIssuer_IssueAndVerify(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	issuer := newTestIssuer(t, clock, time.Hour)

	token, err := issuer.Issue("user-1")
	require.NoError(t, err)

	clock.Advance(30 * time.Minute)
	verified, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", verified.SubjectID)
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC).Unix(), verified.IssuedAt.Unix())
	assert.Equal(t, time.Date(2026, 1, 2, 4, 4, 5, 0, time.UTC).Unix(), verified.ExpiresAt.Unix())
}

func TestTokenIssuer_IssueRequiresSubject(t *testing.T) {
	issuer := newTestIssuer(t, &fakeClock{now: time.Now()}, time.Hour)
	_, err := issuer.Issue("")
	assert.Error(t, err)
}

func TestTokenIssuer_Expired(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	issuer := newTestIssuer(t, clock, time.Minute)

	token, err := issuer.Issue("user-1")
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)
	_, err = issuer.Verify(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
	assert.NotErrorIs(t, err, ErrTokenInvalid)
}

func TestTokenIssuer_Invalid(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	issuer := newTestIssuer(t, clock, time.Hour)

	token, err := issuer.Issue("user-1")
	require.NoError(t, err)

	other, err := NewTokenIssuer(TokenConfig{Secret: "a-different-secret", Issuer: "natours-test", Clock: clock.Now})
	require.NoError(t, err)
	foreign, err := other.Issue("user-1")
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))

	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"id":  "user-1",
		"iat": clock.Now().Unix(),
		"exp": clock.Now().Add(time.Hour).Unix(),
		"iss": "natours-test",
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	cases := map[string]string{
		"empty":          "",
		"garbage":        "not.a.token",
		"tampered":       tampered,
		"foreign secret": foreign,
		"alg none":       noneToken,
	}
	for name, tok := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := issuer.Verify(tok)
			assert.ErrorIs(t, err, ErrTokenInvalid)
		})
	}
}

func TestTokenIssuer_WrongIssuer(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	issuer := newTestIssuer(t, clock, time.Hour)

	other, err := NewTokenIssuer(TokenConfig{Secret: "test-secret-key-with-enough-length", Issuer: "someone-else", Clock: clock.Now})
	require.NoError(t, err)
	token, err := other.Issue("user-1")
	require.NoError(t, err)

	_, err = issuer.Verify(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}
