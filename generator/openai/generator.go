// Package openai implements generator.Provider against the OpenAI chat
// completions API, adapted from the teacher's generator/openai provider,
// renamed Generate -> Complete, and using ResponseFormat json_object when
// the configured model supports it - falling back to prompt-only schema
// enforcement otherwise, same as the teacher's plain single-turn request.
package openai

import (
	"context"
	"errors"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/chronofact/chronofact/generator"
)

// jsonModeModels lists model families known to honor ResponseFormat
// json_object; anything else gets prompt-only enforcement.
var jsonModeModels = []string{"gpt-4", "gpt-3.5-turbo-1106", "gpt-4-turbo", "gpt-4o"}

type provider struct {
	options generator.Options
	client  *openai.Client
}

func (p *provider) Complete(ctx context.Context, prompt string) (string, error) {
	fullPrompt := prompt
	if len(p.options.PromptPrefix) > 0 {
		fullPrompt = p.options.PromptPrefix + "\n" + prompt
	}

	req := openai.ChatCompletionRequest{
		Model: p.options.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: fullPrompt},
		},
	}

	if supportsJSONMode(p.options.Model) {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	rsp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}

	if len(rsp.Choices) == 0 || len(rsp.Choices[0].Message.Content) == 0 {
		return "", errors.New("no response from OpenAI")
	}

	return rsp.Choices[0].Message.Content, nil
}

func supportsJSONMode(model string) bool {
	for _, prefix := range jsonModeModels {
		if strings.HasPrefix(model, prefix) {
			return true
		}
	}
	return false
}

// New constructs a Provider backed by OpenAI's chat completions API.
func New(opts ...generator.Option) generator.Provider {
	options := generator.NewOptions(opts...)

	return &provider{
		options: options,
		client:  openai.NewClient(options.ApiKey),
	}
}
