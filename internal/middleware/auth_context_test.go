package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"medication-adherence/internal/ports/auth"
)

type staticVerifier map[string]string

func (s staticVerifier) Verify(_ context.Context, token string) (auth.Claims, error) {
	uid, ok := s[token]
	if !ok {
		return auth.Claims{}, errors.New("bad token")
	}
	return auth.Claims{UserID: uid}, nil
}

func capture(verifier auth.AuthVerifier, req *http.Request) (auth.Claims, bool) {
	var (
		got auth.Claims
		ok  bool
	)
	h := AuthContext(verifier)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got, ok = GetClaims(r.Context())
	}))
	h.ServeHTTP(httptest.NewRecorder(), req)
	return got, ok
}

func TestAuthContext_DevHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(DebugUserHeader, " u1 ")

	c, ok := capture(nil, req)
	assert.True(t, ok)
	assert.Equal(t, "u1", c.UserID)

	_, ok = capture(nil, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.False(t, ok)
}

func TestAuthContext_Bearer(t *testing.T) {
	v := staticVerifier{"good": "u2"}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "bearer good")
	c, ok := capture(v, req)
	assert.True(t, ok)
	assert.Equal(t, "u2", c.UserID)

	bad := httptest.NewRequest(http.MethodGet, "/", nil)
	bad.Header.Set("Authorization", "Bearer nope")
	_, ok = capture(v, bad)
	assert.False(t, ok)

	// con verifier el header de debug no cuenta
	dev := httptest.NewRequest(http.MethodGet, "/", nil)
	dev.Header.Set(DebugUserHeader, "u1")
	_, ok = capture(v, dev)
	assert.False(t, ok)
}
