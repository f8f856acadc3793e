// Package imageanalyzer implements C5: producing short natural-language
// visual context for an uploaded image through the structured generator
// under a fixed schema. Byte-size is checked before any decode so an
// oversized payload never reaches the decoder (spec.md §4.5);
// golang.org/x/image backs JPEG/PNG/WebP decode and downsampling, grounded
// on yungbote-neurobridge-backend's use of golang.org/x/image for media
// processing. The image is decoded only to validate it; generator.Provider
// takes a text prompt, and the prompt carries the topic alone, so the image
// itself is not sent to the model.
package imageanalyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/chronofact/chronofact/chronoerr"
	"github.com/chronofact/chronofact/generator"
)

// maxLongEdge is the long edge downsample resizes larger images to,
// independent of the caller-supplied byte limit.
const maxLongEdge = 2048

const visualContextPrompt = `Describe the visually relevant context of this image for the topic %q.
Focus on concrete, checkable details (objects, scene, visible text, condition of infrastructure) -
not speculation about what the image "might mean".

Reply with a single JSON object of exactly this shape and nothing else:
{"visual_context": "string", "entities": ["string", ...]}`

// Result is C5's fixed output schema.
type Result struct {
	VisualContext string   `json:"visual_context"`
	Entities      []string `json:"entities"`
}

type visualContextReply = Result

// Analyze checks imageBytes against maxBytes, rejects bytes that do not
// decode as an image, and asks the generator for a visual-context reply
// relative to topic. The image is not passed to the generator: the prompt
// holds only topic, and the downsampled bytes are discarded.
func Analyze(ctx context.Context, e *generator.Engine, imageBytes []byte, topic string, maxBytes int64) (Result, error) {
	if int64(len(imageBytes)) > maxBytes {
		return Result{}, fmt.Errorf("%w: image is %d bytes, limit is %d", chronoerr.ErrPayloadTooLarge, len(imageBytes), maxBytes)
	}

	if _, err := downsample(imageBytes); err != nil {
		return Result{}, fmt.Errorf("%w: %v", chronoerr.ErrInvalidRequest, err)
	}

	prompt := fmt.Sprintf(visualContextPrompt, topic)

	return generator.Generate(ctx, e, prompt, parseVisualContext)
}

// downsample decodes data and, if its long edge exceeds maxLongEdge,
// resizes it down and re-encodes as JPEG. Analyze calls it only to check
// that data is a real, decodable image and discards the result.
func downsample(data []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("not a decodable image: %w", err)
	}

	bounds := img.Bounds()
	longEdge := bounds.Dx()
	if bounds.Dy() > longEdge {
		longEdge = bounds.Dy()
	}
	if longEdge <= maxLongEdge {
		return data, nil
	}

	scale := float64(maxLongEdge) / float64(longEdge)
	newW := int(float64(bounds.Dx()) * scale)
	newH := int(float64(bounds.Dy()) * scale)

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("re-encode downsampled image: %w", err)
	}

	return buf.Bytes(), nil
}

func parseVisualContext(raw string) (visualContextReply, error) {
	var out visualContextReply
	if err := json.Unmarshal([]byte(generator.ExtractJSON(raw)), &out); err != nil {
		return visualContextReply{}, fmt.Errorf("invalid visual context JSON: %w", err)
	}
	if len(out.VisualContext) == 0 {
		return visualContextReply{}, fmt.Errorf("visual_context must be non-empty")
	}
	return out, nil
}
