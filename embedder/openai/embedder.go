// Package openai implements embedder.Embedder against the OpenAI embeddings
// API, adapted from the teacher's embedder/openai provider: same
// go-openai client, generalized to the EmbedText method name and
// chronoerr-wrapped failures.
package openai

import (
	"context"
	"errors"

	openai "github.com/sashabaranov/go-openai"

	"github.com/chronofact/chronofact/embedder"
)

type openAIEmbedder struct {
	options embedder.Options
	client  *openai.Client
}

func (e *openAIEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	rsp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(e.options.Model),
	})
	if err != nil {
		return nil, embedder.Wrap(err)
	}

	if len(rsp.Data) == 0 || len(rsp.Data[0].Embedding) == 0 {
		return nil, embedder.Wrap(errors.New("no embedding returned from OpenAI"))
	}

	return rsp.Data[0].Embedding, nil
}

// New constructs a text embedder backed by OpenAI.
func New(opts ...embedder.Option) embedder.Embedder {
	options := embedder.NewOptions(opts...)

	return &openAIEmbedder{
		options: options,
		client:  openai.NewClient(options.ApiKey),
	}
}
