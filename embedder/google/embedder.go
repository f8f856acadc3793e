// Package google implements embedder.MultimodalEmbedder (and Embedder, for
// text-only calls) against Google's generative-ai-go EmbeddingModel,
// adapted from the teacher's memory_manager/providers/embedder/google
// provider, generalized from a text-only Embed to a fusion-aware multimodal
// EmbedMultimodal that averages/weights separate text and image embedding
// calls client-side - genai.EmbeddingModel embeds one modality per call.
package google

import (
	"context"
	"errors"

	"github.com/google/generative-ai-go/genai"
	genaiopt "google.golang.org/api/option"

	"github.com/chronofact/chronofact/embedder"
)

type googleEmbedder struct {
	options embedder.Options
	client  *genai.Client
}

func (e *googleEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return e.embed(ctx, genai.Text(text))
}

func (e *googleEmbedder) EmbedMultimodal(ctx context.Context, in embedder.MultimodalInput) ([]float32, error) {
	if len(in.Text) == 0 && len(in.Image) == 0 {
		return nil, embedder.Wrap(errors.New("multimodal embed requires at least one of text or image"))
	}

	switch in.Fusion {
	case embedder.FusionImageOnly:
		return e.embedImage(ctx, in.Image)
	case embedder.FusionTextOnly, "":
		if len(in.Text) > 0 {
			return e.EmbedText(ctx, in.Text)
		}
		return e.embedImage(ctx, in.Image)
	default:
		return e.embedFused(ctx, in)
	}
}

func (e *googleEmbedder) embedFused(ctx context.Context, in embedder.MultimodalInput) ([]float32, error) {
	var textVec, imageVec []float32
	var err error

	if len(in.Text) > 0 {
		textVec, err = e.EmbedText(ctx, in.Text)
		if err != nil {
			return nil, err
		}
	}
	if len(in.Image) > 0 {
		imageVec, err = e.embedImage(ctx, in.Image)
		if err != nil {
			return nil, err
		}
	}

	switch {
	case textVec == nil:
		return imageVec, nil
	case imageVec == nil:
		return textVec, nil
	}

	alpha := in.Alpha
	switch in.Fusion {
	case embedder.FusionTextWeighted:
		if alpha <= 0 {
			alpha = 0.5
		}
	case embedder.FusionImageWeighted:
		if alpha <= 0 {
			alpha = 0.5
		}
		alpha = 1 - alpha
	default: // mean
		alpha = 0.5
	}

	return weightedAverage(textVec, imageVec, alpha), nil
}

func weightedAverage(text, image []float32, alpha float64) []float32 {
	n := len(text)
	if len(image) < n {
		n = len(image)
	}
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		out[i] = float32(alpha)*text[i] + float32(1-alpha)*image[i]
	}
	return out
}

func (e *googleEmbedder) embed(ctx context.Context, parts ...genai.Part) ([]float32, error) {
	model := e.client.EmbeddingModel(e.options.Model)
	rsp, err := model.EmbedContent(ctx, parts...)
	if err != nil {
		return nil, embedder.Wrap(err)
	}
	if rsp == nil || rsp.Embedding == nil || len(rsp.Embedding.Values) == 0 {
		return nil, embedder.Wrap(errors.New("no embedding returned from Google"))
	}
	return rsp.Embedding.Values, nil
}

func (e *googleEmbedder) embedImage(ctx context.Context, data []byte) ([]float32, error) {
	if len(data) == 0 {
		return nil, embedder.Wrap(errors.New("empty image for multimodal embed"))
	}
	return e.embed(ctx, genai.ImageData("jpeg", data))
}

// New constructs a multimodal embedder backed by Google's generative-ai-go.
func New(opts ...embedder.Option) *googleEmbedder {
	options := embedder.NewOptions(opts...)

	client, err := genai.NewClient(context.Background(), genaiopt.WithAPIKey(options.ApiKey))
	if err != nil {
		panic(err)
	}

	return &googleEmbedder{options: options, client: client}
}
