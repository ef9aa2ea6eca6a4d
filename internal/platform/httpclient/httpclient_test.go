package httpclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostJSON_SignsAndDecodes(t *testing.T) {
	secret := []byte("shh")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.True(t, Verify(secret, body, r.Header.Get(SignatureHeader)))
		assert.Equal(t, UserAgent, r.Header.Get("User-Agent"))
		assert.Equal(t, "v", r.Header.Get("X-Extra"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	var out struct {
		OK bool `json:"ok"`
	}
	c := New(Options{Secret: string(secret)})
	require.NoError(t, c.PostJSON(context.Background(), srv.URL, map[string]string{"X-Extra": "v"}, map[string]int{"a": 1}, &out))
	assert.True(t, out.OK)
}

func TestPostJSON_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get(SignatureHeader))
		http.Error(w, "busy", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	err := New(Options{}).PostJSON(context.Background(), srv.URL, nil, struct{}{}, nil)
	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusServiceUnavailable, httpErr.StatusCode)
	assert.True(t, httpErr.Retryable())
}

func TestValidateURL(t *testing.T) {
	assert.NoError(t, ValidateURL("https://hooks.example.com/adherence"))
	assert.Error(t, ValidateURL("ftp://x"))
	assert.Error(t, ValidateURL("not a url"))
}

func TestVerify_RejectsTampered(t *testing.T) {
	secret := []byte("k")
	sig := "sha256=" + Sign(secret, []byte("a"))
	assert.True(t, Verify(secret, []byte("a"), sig))
	assert.False(t, Verify(secret, []byte("b"), sig))
	assert.False(t, Verify(secret, []byte("a"), Sign(secret, []byte("a"))))
}
