package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, Debug, ParseLevel("DEBUG"))
	assert.Equal(t, Warn, ParseLevel("warning"))
	assert.Equal(t, Info, ParseLevel(""))
	assert.Equal(t, Info, ParseLevel("nope"))
}

func TestJSONOutputCarriesFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Level: Info, Format: FormatJSON, App: "adherence", Output: &buf})

	log.With(map[string]any{"patient_id": "p-1"}).Info("tick done", map[string]any{
		"actions": 2,
		"err":     errors.New("boom"),
		"":        "ignored",
	})

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "tick done", entry["message"])
	assert.Equal(t, "adherence", entry["app"])
	assert.Equal(t, "p-1", entry["patient_id"])
	assert.Equal(t, float64(2), entry["actions"])
	assert.Equal(t, "boom", entry["err"])
	assert.NotContains(t, entry, "")
}

func TestLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Level: Warn, Format: FormatJSON, Output: &buf})

	log.Info("hidden", nil)
	assert.Zero(t, buf.Len())

	log.Warn("shown", nil)
	assert.Contains(t, buf.String(), "shown")
}
