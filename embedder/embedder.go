// Package embedder defines the C1 capability surface: a text embedder and a
// multimodal (text+image) embedder, each total over nonempty input and
// failing with chronoerr.ErrEmbeddingUnavailable when the backing model
// cannot be reached.
package embedder

import (
	"context"
	"fmt"

	"github.com/chronofact/chronofact/chronoerr"
)

// Fusion selects how a multimodal embed call combines its text and image
// inputs when both are supplied.
type Fusion string

const (
	FusionTextOnly      Fusion = "text_only"
	FusionImageOnly     Fusion = "image_only"
	FusionMean          Fusion = "mean"
	FusionTextWeighted  Fusion = "text_weighted"
	FusionImageWeighted Fusion = "image_weighted"
)

// MultimodalInput is the optional text/image pair passed to EmbedMultimodal.
// At least one of Text or Image MUST be set.
type MultimodalInput struct {
	Text   string
	Image  []byte
	Fusion Fusion
	Alpha  float64 // weight for *_weighted fusion, in [0,1]
}

// Embedder produces a dense vector for free text.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// MultimodalEmbedder produces a dense vector for a text/image pair under a
// chosen fusion strategy.
type MultimodalEmbedder interface {
	EmbedMultimodal(ctx context.Context, in MultimodalInput) ([]float32, error)
}

// Wrap annotates a provider transport error as ErrEmbeddingUnavailable.
func Wrap(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", chronoerr.ErrEmbeddingUnavailable, err)
}
