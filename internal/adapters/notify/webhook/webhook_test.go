package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medication-adherence/internal/platform/httpclient"
	"medication-adherence/internal/ports/notify"
)

func TestDispatch_PostsPayload(t *testing.T) {
	var got Payload
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/hooks/adherence", r.URL.Path)
		auth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		assert.True(t, httpclient.Verify([]byte("hmac-key"), body, r.Header.Get(httpclient.SignatureHeader)))
		require.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	d, err := New(Options{URL: srv.URL + "/hooks/adherence", Token: "s3cret", Secret: "hmac-key"})
	require.NoError(t, err)

	err = d.Dispatch(context.Background(), "p1", []notify.Action{{Kind: "escalate", DoseKey: "Lisinopril|2026-03-02|08:00", Reason: "urgent"}})
	require.NoError(t, err)

	assert.Equal(t, "Bearer s3cret", auth)
	assert.Equal(t, "p1", got.PatientID)
	require.Len(t, got.Actions, 1)
	assert.Equal(t, "urgent", got.Actions[0].Reason)
}

func TestDispatch_Non2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	d, err := New(Options{URL: srv.URL})
	require.NoError(t, err)

	err = d.Dispatch(context.Background(), "p1", []notify.Action{{Kind: "notify"}})
	var httpErr *httpclient.HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusBadGateway, httpErr.StatusCode)
}

func TestDispatch_NoActionsSkipsRequest(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	d, err := New(Options{URL: srv.URL})
	require.NoError(t, err)
	require.NoError(t, d.Dispatch(context.Background(), "p1", nil))
	assert.False(t, called)
}

func TestNew_RequiresURL(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err)

	_, err = New(Options{URL: "hooks.example.com"})
	require.Error(t, err)
}
