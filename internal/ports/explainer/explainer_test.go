package explainer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixed struct {
	text string
	err  error
}

func (f fixed) Summarize(context.Context, []Facts) (string, error) { return f.text, f.err }

func TestChain(t *testing.T) {
	ctx := context.Background()

	text, err := Chain{fixed{err: errors.New("down")}, fixed{text: "ok"}}.Summarize(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", text)

	_, err = Chain{fixed{text: "  "}, nil}.Summarize(ctx, nil)
	assert.ErrorIs(t, err, ErrEmpty)

	down := errors.New("down")
	_, err = Chain{fixed{err: down}}.Summarize(ctx, nil)
	assert.ErrorIs(t, err, down)
}

func TestUserPrompt(t *testing.T) {
	p, err := UserPrompt([]Facts{{Kind: "missed-dose", Severity: "medium", Subject: "Lisinopril"}})
	require.NoError(t, err)
	assert.Contains(t, p, `"subject": "Lisinopril"`)
}
