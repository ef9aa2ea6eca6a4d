// Package anthropic implementa explainer.Explainer con la Messages API de Claude.
package anthropic

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"medication-adherence/internal/ports/explainer"
)

type Options struct {
	Model       string
	MaxTokens   int64
	Temperature float64
	APIKey      string

	// Extra permite inyectar opciones del cliente (base URL en tests, retries).
	Extra []option.RequestOption
}

type Explainer struct {
	client *anthropic.Client
	opts   Options
}

func New(optFns ...func(o *Options)) *Explainer {
	opts := Options{
		Model:       string(anthropic.ModelClaude3_5Sonnet20241022),
		MaxTokens:   512,
		Temperature: 0.2,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	clientOpts = append(clientOpts, opts.Extra...)

	client := anthropic.NewClient(clientOpts...)
	return &Explainer{client: &client, opts: opts}
}

func (e *Explainer) Summarize(ctx context.Context, facts []explainer.Facts) (string, error) {
	prompt, err := explainer.UserPrompt(facts)
	if err != nil {
		return "", err
	}

	resp, err := e.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(e.opts.Model),
		MaxTokens:   e.opts.MaxTokens,
		Temperature: anthropic.Float(e.opts.Temperature),
		System:      []anthropic.TextBlockParam{{Text: explainer.SystemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic api error: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type != "text" {
			continue
		}
		sb.WriteString(block.AsText().Text)
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", explainer.ErrEmpty
	}
	return text, nil
}
