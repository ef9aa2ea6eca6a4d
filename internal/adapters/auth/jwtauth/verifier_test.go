package jwtauth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medication-adherence/internal/ports/auth"
)

func TestVerify_RoundTrip(t *testing.T) {
	opts := Options{Secret: "top-secret", Issuer: "adherence", Audience: "api"}
	v, err := NewVerifier(opts)
	require.NoError(t, err)

	tok, err := Sign(opts, "user-1", time.Hour)
	require.NoError(t, err)

	c, err := v.Verify(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, "user-1", c.UserID)
	assert.False(t, c.ExpiresAt.IsZero())
}

func TestVerify_Rejects(t *testing.T) {
	opts := Options{Secret: "top-secret", Issuer: "adherence"}
	v, err := NewVerifier(opts)
	require.NoError(t, err)

	wrongSecret, err := Sign(Options{Secret: "other", Issuer: "adherence"}, "user-1", time.Hour)
	require.NoError(t, err)
	wrongIssuer, err := Sign(Options{Secret: "top-secret", Issuer: "someone-else"}, "user-1", time.Hour)
	require.NoError(t, err)
	expired, err := Sign(opts, "user-1", -time.Minute)
	require.NoError(t, err)
	noSubject, err := Sign(opts, "", time.Hour)
	require.NoError(t, err)
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "user-1",
		Issuer:    "adherence",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	cases := map[string]string{
		"wrong secret": wrongSecret,
		"wrong issuer": wrongIssuer,
		"expired":      expired,
		"no subject":   noSubject,
		"alg none":     none,
		"garbage":      "not-a-jwt",
	}
	for name, tok := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(context.Background(), tok)
			assert.ErrorIs(t, err, auth.ErrTokenInvalid)
		})
	}

	_, err = v.Verify(context.Background(), "  ")
	assert.ErrorIs(t, err, auth.ErrTokenEmpty)
}

func TestNewVerifier_RequiresSecret(t *testing.T) {
	_, err := NewVerifier(Options{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}
