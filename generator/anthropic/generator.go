// Package anthropic implements generator.Provider against the Anthropic
// Messages API, adapted from the teacher's generator/anthropic provider
// (same anthropic-sdk-go client, single-turn user message), renamed
// Generate -> Complete to match generator.Provider. Schema compliance is
// enforced entirely by generator.Generate's validator/retry loop - no
// tool-call forcing is assumed available.
package anthropic

import (
	"context"
	"errors"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"

	"github.com/chronofact/chronofact/generator"
)

type provider struct {
	options generator.Options
	client  *anthropic.Client
}

func (p *provider) Complete(ctx context.Context, prompt string) (string, error) {
	fullPrompt := prompt
	if len(p.options.PromptPrefix) > 0 {
		fullPrompt = p.options.PromptPrefix + "\n" + prompt
	}

	req := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.options.Model),
		MaxTokens: 2048,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(fullPrompt)),
		},
	}

	rsp, err := p.client.Messages.New(ctx, req)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, content := range rsp.Content {
		if text, ok := content.AsAny().(anthropic.TextBlock); ok {
			b.WriteString(text.Text)
		}
	}

	result := b.String()
	if len(result) == 0 {
		return "", errors.New("no response from Anthropic")
	}

	return result, nil
}

// New constructs a Provider backed by Anthropic's Messages API.
func New(opts ...generator.Option) generator.Provider {
	options := generator.NewOptions(opts...)

	client := anthropic.NewClient(anthropicopt.WithAPIKey(options.ApiKey))

	return &provider{options: options, client: &client}
}
