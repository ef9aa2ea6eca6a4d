// Package openai implementa explainer.Explainer con Chat Completions.
package openai

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"medication-adherence/internal/ports/explainer"
)

type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
	APIKey              string

	// Extra permite inyectar opciones del cliente (base URL en tests, retries).
	Extra []option.RequestOption
}

type Explainer struct {
	client *openai.Client
	opts   Options
}

func New(optFns ...func(o *Options)) *Explainer {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.2,
		MaxCompletionTokens: 512,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	clientOpts = append(clientOpts, opts.Extra...)

	client := openai.NewClient(clientOpts...)
	return &Explainer{client: &client, opts: opts}
}

func (e *Explainer) Summarize(ctx context.Context, facts []explainer.Facts) (string, error) {
	prompt, err := explainer.UserPrompt(facts)
	if err != nil {
		return "", err
	}

	resp, err := e.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: e.opts.Model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(explainer.SystemPrompt),
			openai.UserMessage(prompt),
		},
		Temperature:         openai.Float(e.opts.Temperature),
		MaxCompletionTokens: openai.Int(e.opts.MaxCompletionTokens),
	})
	if err != nil {
		return "", fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", explainer.ErrEmpty
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", explainer.ErrEmpty
	}
	return text, nil
}
