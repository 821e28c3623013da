// Package generation orchestrates a single image generation: it applies the
// style preset, normalizes parameters, resolves the target backend and
// converts backend failures into displayable errors.
package generation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	"sdstudio/params"
	"sdstudio/providers"
	"sdstudio/styles"
)

// Request carries the raw, unvalidated fields of one generation as they
// arrive from the caller. It is not mutated after dispatch.
type Request struct {
	Prompt         string
	NegativePrompt string
	Style          string
	Steps          int
	GuidanceScale  float64
	Width          int
	Height         int
	Seed           string // empty or "-1" means random
	Mode           string // "local", "api" or "auto"
	ImageBytes     []byte // img2img only
	Strength       float64
}

// Metadata echoes a completed generation. It is written next to the image
// and never mutated after that.
type Metadata struct {
	Prompt         string  `json:"prompt"`
	NegativePrompt string  `json:"negative_prompt,omitempty"`
	StyledPrompt   string  `json:"styled_prompt"`
	Style          string  `json:"style"`
	Type           string  `json:"type"` // "text2img" or "img2img"
	Mode           string  `json:"mode"` // "local" or "api"
	Steps          int     `json:"steps"`
	GuidanceScale  float64 `json:"guidance_scale"`
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	Strength       float64 `json:"strength,omitempty"`
	Seed           string  `json:"seed"` // "random" or the decimal value
	Fallback       string  `json:"fallback,omitempty"`
	SavedAt        string  `json:"saved_at,omitempty"`
	Filename       string  `json:"filename,omitempty"`
	HostedURL      string  `json:"hosted_url,omitempty"`
}

// Result is the outcome of a successful generation.
type Result struct {
	ImageBytes []byte
	Metadata   Metadata
}

// ErrEmptyPrompt is returned when the prompt is missing or blank.
var ErrEmptyPrompt = errors.New("prompt cannot be empty")

// ErrMissingImage is returned when img2img is requested without an image.
var ErrMissingImage = errors.New("input image is required for image-to-image generation")

// Generator dispatches requests to one of the two backends.
type Generator struct {
	Local  providers.ImageProvider
	Remote providers.ImageProvider
	Token  string
}

// NewGenerator wires the two configured backends.
func NewGenerator(local, remote providers.ImageProvider, token string) *Generator {
	return &Generator{Local: local, Remote: remote, Token: token}
}

// provider returns the backend for a resolved mode.
func (g *Generator) provider(mode Mode) providers.ImageProvider {
	if mode == ModeAPI {
		return g.Remote
	}
	return g.Local
}

// Text2Img generates an image from a text prompt.
func (g *Generator) Text2Img(ctx context.Context, req Request) (*Result, error) {
	if isBlank(req.Prompt) {
		return nil, ErrEmptyPrompt
	}

	styled := styles.Apply(req.Prompt, req.Style)
	p := params.Clamp(req.Steps, req.GuidanceScale, req.Width, req.Height)
	seed := params.FixSeed(req.Seed)
	mode := ResolveMode(req.Mode, g.Token)

	meta := Metadata{
		Prompt:         req.Prompt,
		NegativePrompt: req.NegativePrompt,
		StyledPrompt:   styled,
		Style:          styleOrNone(req.Style),
		Type:           "text2img",
		Mode:           string(mode),
		Steps:          p.Steps,
		GuidanceScale:  p.GuidanceScale,
		Width:          p.Width,
		Height:         p.Height,
		Seed:           formatSeed(seed),
	}

	log.Printf("Generating text2img via %s: %dx%d, steps=%d, guidance=%.1f, seed=%s",
		mode, p.Width, p.Height, p.Steps, p.GuidanceScale, meta.Seed)

	input := providers.GenerationInput{
		Prompt:         styled,
		NegativePrompt: req.NegativePrompt,
		Steps:          p.Steps,
		GuidanceScale:  p.GuidanceScale,
		Width:          p.Width,
		Height:         p.Height,
		Seed:           seed,
	}

	out, err := g.provider(mode).TextToImage(ctx, input)
	if err != nil {
		return nil, displayable(err)
	}

	return &Result{ImageBytes: out.ImageBytes, Metadata: meta}, nil
}

// Img2Img transforms a source image guided by a text prompt. When the
// remote backend fails the transform, it is retried once as text-to-image
// on the same backend before the failure is reported.
func (g *Generator) Img2Img(ctx context.Context, req Request) (*Result, error) {
	if isBlank(req.Prompt) {
		return nil, ErrEmptyPrompt
	}
	if len(req.ImageBytes) == 0 {
		return nil, ErrMissingImage
	}

	styled := styles.Apply(req.Prompt, req.Style)
	p := params.Clamp(req.Steps, req.GuidanceScale, req.Width, req.Height)
	strength := params.ClampStrength(req.Strength)
	seed := params.FixSeed(req.Seed)
	mode := ResolveMode(req.Mode, g.Token)

	meta := Metadata{
		Prompt:         req.Prompt,
		NegativePrompt: req.NegativePrompt,
		StyledPrompt:   styled,
		Style:          styleOrNone(req.Style),
		Type:           "img2img",
		Mode:           string(mode),
		Steps:          p.Steps,
		GuidanceScale:  p.GuidanceScale,
		Width:          p.Width,
		Height:         p.Height,
		Strength:       strength,
		Seed:           formatSeed(seed),
	}

	log.Printf("Generating img2img via %s: strength=%.2f, steps=%d, guidance=%.1f, seed=%s",
		mode, strength, p.Steps, p.GuidanceScale, meta.Seed)

	input := providers.GenerationInput{
		Prompt:         styled,
		NegativePrompt: req.NegativePrompt,
		Steps:          p.Steps,
		GuidanceScale:  p.GuidanceScale,
		Width:          p.Width,
		Height:         p.Height,
		Seed:           seed,
		ImageBytes:     req.ImageBytes,
		Strength:       strength,
	}

	backend := g.provider(mode)
	out, err := backend.ImageToImage(ctx, input)
	if err == nil {
		return &Result{ImageBytes: out.ImageBytes, Metadata: meta}, nil
	}

	// Remote backends may not support image-to-image for every model. Fall
	// back once to text-to-image on the same client before giving up.
	if mode == ModeAPI && ctx.Err() == nil {
		log.Printf("img2img failed on %s (%v), falling back to text2img", backend.Name(), err)
		fallbackInput := input
		fallbackInput.ImageBytes = nil
		fallbackInput.Strength = 0
		out, fbErr := backend.TextToImage(ctx, fallbackInput)
		if fbErr == nil {
			meta.Fallback = "text2img"
			return &Result{ImageBytes: out.ImageBytes, Metadata: meta}, nil
		}
		log.Printf("text2img fallback also failed on %s: %v", backend.Name(), fbErr)
	}

	return nil, displayable(err)
}

// displayable decorates a backend failure with a human-readable hint when
// one is known for its category.
func displayable(err error) error {
	if hint := providers.Hint(err); hint != "" {
		return fmt.Errorf("%w. %s", err, hint)
	}
	return err
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func styleOrNone(style string) string {
	if style == "" {
		return "None"
	}
	return style
}

func formatSeed(seed *int64) string {
	if seed == nil {
		return "random"
	}
	return strconv.FormatInt(*seed, 10)
}
