package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medication-adherence/internal/ports/explainer"
)

func TestSummarize(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1772438400,
			"model": "gpt-4o-mini",
			"choices": [{
				"index": 0,
				"finish_reason": "stop",
				"message": {"role": "assistant", "content": "Metformin stock is running low."}
			}]
		}`))
	}))
	defer srv.Close()

	e := New(func(o *Options) {
		o.APIKey = "test-key"
		o.Extra = []option.RequestOption{option.WithBaseURL(srv.URL + "/"), option.WithMaxRetries(0)}
	})

	text, err := e.Summarize(context.Background(), []explainer.Facts{{Kind: "low-inventory", Severity: "medium", Subject: "Metformin"}})
	require.NoError(t, err)
	assert.Equal(t, "Metformin stock is running low.", text)
	assert.Equal(t, "gpt-4o-mini", got["model"])

	msgs, ok := got["messages"].([]any)
	require.True(t, ok)
	assert.Len(t, msgs, 2)
}

func TestSummarize_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","created":1,"model":"gpt-4o-mini","choices":[]}`))
	}))
	defer srv.Close()

	e := New(func(o *Options) {
		o.APIKey = "test-key"
		o.Extra = []option.RequestOption{option.WithBaseURL(srv.URL + "/"), option.WithMaxRetries(0)}
	})
	_, err := e.Summarize(context.Background(), []explainer.Facts{{Kind: "low-inventory"}})
	assert.ErrorIs(t, err, explainer.ErrEmpty)
}
