package providers

import "context"

// GenerationInput defines the standardized input for all backends.
type GenerationInput struct {
	Prompt         string
	NegativePrompt string
	Steps          int
	GuidanceScale  float64
	Width          int
	Height         int
	Seed           *int64  // nil means random
	ImageBytes     []byte  // init image for image-to-image
	Strength       float64 // img2img only, 0..1
}

// GenerationOutput defines the standardized output from all backends.
type GenerationOutput struct {
	ImageBytes []byte
	Format     string // "png" or "jpeg"
}

// ImageProvider is the interface both generation backends implement: the
// remote inference API and the locally running pipeline.
type ImageProvider interface {
	// TextToImage generates an image from a text prompt.
	TextToImage(ctx context.Context, input GenerationInput) (*GenerationOutput, error)
	// ImageToImage transforms input.ImageBytes guided by the prompt.
	ImageToImage(ctx context.Context, input GenerationInput) (*GenerationOutput, error)
	// Name returns the backend name (e.g. "huggingface").
	Name() string
	// Configured reports whether the backend has the credentials or
	// connectivity it needs to serve requests.
	Configured() bool
}
