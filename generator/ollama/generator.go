// Package ollama implements generator.Provider against a local or remote
// Ollama server, using the ollama/ollama api client package rather than a
// hand-rolled HTTP client - grounded on the client shape of
// ob-labs-powermem-go's pkg/llm/ollama provider (single-turn chat, a
// baseURL with a sane local default), adapted to the real SDK's
// streaming-callback Chat method. Used for local/offline development.
package ollama

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"

	"github.com/chronofact/chronofact/generator"
)

type provider struct {
	options generator.Options
	client  *api.Client
}

func (p *provider) Complete(ctx context.Context, prompt string) (string, error) {
	fullPrompt := prompt
	if len(p.options.PromptPrefix) > 0 {
		fullPrompt = p.options.PromptPrefix + "\n" + prompt
	}

	stream := false
	req := &api.ChatRequest{
		Model: p.options.Model,
		Messages: []api.Message{
			{Role: "user", Content: fullPrompt},
		},
		Stream: &stream,
	}

	var b strings.Builder
	err := p.client.Chat(ctx, req, func(rsp api.ChatResponse) error {
		b.WriteString(rsp.Message.Content)
		return nil
	})
	if err != nil {
		return "", err
	}

	result := b.String()
	if len(result) == 0 {
		return "", errors.New("no response from Ollama")
	}

	return result, nil
}

// New constructs a Provider backed by an Ollama server at options' BaseURL
// (defaulting to http://localhost:11434).
func New(opts ...generator.Option) generator.Provider {
	options := generator.NewOptions(opts...)

	base := options.BaseURL
	if len(base) == 0 {
		base = "http://localhost:11434"
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		panic(err)
	}

	return &provider{
		options: options,
		client:  api.NewClient(baseURL, http.DefaultClient),
	}
}
