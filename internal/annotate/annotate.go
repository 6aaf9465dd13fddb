// Package annotate generates an annotated copy of an equation image.
package annotate

import (
	"context"
	"encoding/base64"
	"log/slog"

	"github.com/asaadkhaja99/rabbit-hole/internal/domain"
	"github.com/asaadkhaja99/rabbit-hole/internal/prompt"
	"github.com/asaadkhaja99/rabbit-hole/internal/provider"
)

// Bucket is a discrete aspect-ratio class
type Bucket int

const (
	Portrait Bucket = iota
	Tall
	Square
	Wide
	Widescreen
)

func (b Bucket) String() string {
	switch b {
	case Widescreen:
		return "widescreen"
	case Wide:
		return "wide"
	case Square:
		return "square"
	case Tall:
		return "tall"
	default:
		return "portrait"
	}
}

// BucketFor classifies a width/height ratio. Boundaries are exclusive above.
func BucketFor(ratio float64) Bucket {
	switch {
	case ratio > 2.2:
		return Widescreen
	case ratio > 1.5:
		return Wide
	case ratio > 0.9:
		return Square
	case ratio > 0.6:
		return Tall
	default:
		return Portrait
	}
}

// Labels maps each bucket to the label the provider understands
type Labels struct {
	Widescreen string
	Wide       string
	Square     string
	Tall       string
	Portrait   string
}

// For returns the label of bucket b
func (l Labels) For(b Bucket) string {
	switch b {
	case Widescreen:
		return l.Widescreen
	case Wide:
		return l.Wide
	case Square:
		return l.Square
	case Tall:
		return l.Tall
	default:
		return l.Portrait
	}
}

// Request is the input of Annotate
type Request struct {
	ImageBase64 string
	Question    string
	AspectRatio float64
}

// Annotator calls the provider for a mixed text and image answer
type Annotator struct {
	generator   provider.Generator
	instruction prompt.Instruction
	labels      Labels
	logger      *slog.Logger
}

// New creates an annotator
func New(generator provider.Generator, instruction prompt.Instruction, labels Labels, logger *slog.Logger) *Annotator {
	return &Annotator{
		generator:   generator,
		instruction: instruction,
		labels:      labels,
		logger:      logger,
	}
}

// Annotate returns the base64-encoded annotated image
func (a *Annotator) Annotate(ctx context.Context, req Request) (string, error) {
	if req.ImageBase64 == "" {
		return "", domain.NewValidationError("image_base64", "image_base64 is required")
	}
	if req.Question == "" {
		return "", domain.NewValidationError("question", "question is required")
	}

	bucket := BucketFor(req.AspectRatio)
	image := prompt.DecodeImageLenient(req.ImageBase64)

	resp, err := a.generator.GenerateMultimodal(ctx, provider.MultimodalRequest{
		Parts:              prompt.AnnotationParts(image, req.Question),
		SystemInstruction:  a.instruction.SystemPrompt,
		Temperature:        a.instruction.Temperature,
		ResponseModalities: []provider.Modality{provider.ModalityText, provider.ModalityImage},
		AspectRatio:        a.labels.For(bucket),
	})
	if err != nil {
		return "", err
	}

	data, ok := extractImage(resp)
	if !ok {
		a.logger.Warn("Annotation response carried no image",
			slog.String("bucket", bucket.String()),
			slog.Int("candidates", len(resp.Candidates)),
		)
		return "", domain.ErrNoImageReturned
	}

	return base64.StdEncoding.EncodeToString(data), nil
}

// extractImage returns the first image in the first candidate, preferring
// inline bytes over an image object within each part
func extractImage(resp *provider.Response) ([]byte, bool) {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, false
	}

	for _, part := range resp.Candidates[0].Parts {
		if part.InlineImage != nil && len(part.InlineImage.Data) > 0 {
			return part.InlineImage.Data, true
		}
		if part.Image != nil && len(part.Image.Data) > 0 {
			return part.Image.Data, true
		}
	}
	return nil, false
}
