package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medication-adherence/internal/ports/explainer"
)

func TestSummarize(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-3-5-sonnet-20241022",
			"content": [{"type": "text", "text": "Lisinopril was missed this morning."}],
			"stop_reason": "end_turn",
			"stop_sequence": null,
			"usage": {"input_tokens": 10, "output_tokens": 8}
		}`))
	}))
	defer srv.Close()

	e := New(func(o *Options) {
		o.APIKey = "test-key"
		o.Extra = []option.RequestOption{option.WithBaseURL(srv.URL), option.WithMaxRetries(0)}
	})

	text, err := e.Summarize(context.Background(), []explainer.Facts{{Kind: "missed-dose", Severity: "medium", Subject: "Lisinopril"}})
	require.NoError(t, err)
	assert.Equal(t, "Lisinopril was missed this morning.", text)
	assert.Equal(t, "claude-3-5-sonnet-20241022", got["model"])
	assert.NotEmpty(t, got["system"])
}

func TestSummarize_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"type":"error","error":{"type":"overloaded_error","message":"overloaded"}}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	e := New(func(o *Options) {
		o.APIKey = "test-key"
		o.Extra = []option.RequestOption{option.WithBaseURL(srv.URL), option.WithMaxRetries(0)}
	})
	_, err := e.Summarize(context.Background(), []explainer.Facts{{Kind: "missed-dose"}})
	require.Error(t, err)
}
