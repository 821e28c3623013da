package providers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"sdstudio/params"
)

// SDWebUIProvider implements ImageProvider against a locally running
// AUTOMATIC1111-compatible Stable Diffusion WebUI server.
type SDWebUIProvider struct {
	BaseURL string
	Client  *http.Client
}

// NewSDWebUIProvider creates a client for the local pipeline.
func NewSDWebUIProvider(baseURL string) *SDWebUIProvider {
	return &SDWebUIProvider{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: 10 * time.Minute},
	}
}

// Name returns the name of the backend.
func (p *SDWebUIProvider) Name() string {
	return "sdwebui"
}

// Configured probes the WebUI options endpoint to check the local pipeline
// is reachable.
func (p *SDWebUIProvider) Configured() bool {
	if p.BaseURL == "" {
		return false
	}
	client := &http.Client{Timeout: 3 * time.Second}
	resp, err := client.Get(p.BaseURL + "/sdapi/v1/options")
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// sdTxt2ImgPayload matches the txt2img request body of the WebUI API.
type sdTxt2ImgPayload struct {
	Prompt         string  `json:"prompt"`
	NegativePrompt string  `json:"negative_prompt,omitempty"`
	Steps          int     `json:"steps"`
	CfgScale       float64 `json:"cfg_scale"`
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	Seed           int64   `json:"seed"`
	BatchSize      int     `json:"batch_size"`
}

// sdImg2ImgPayload matches the img2img request body of the WebUI API.
type sdImg2ImgPayload struct {
	Prompt            string   `json:"prompt"`
	NegativePrompt    string   `json:"negative_prompt,omitempty"`
	InitImages        []string `json:"init_images"`
	DenoisingStrength float64  `json:"denoising_strength"`
	Steps             int      `json:"steps"`
	CfgScale          float64  `json:"cfg_scale"`
	Seed              int64    `json:"seed"`
	BatchSize         int      `json:"batch_size"`
}

// sdResponse matches the JSON response with base64 image data.
type sdResponse struct {
	Images []string `json:"images"`
	Detail string   `json:"detail"`
}

// TextToImage generates an image on the local pipeline.
func (p *SDWebUIProvider) TextToImage(ctx context.Context, input GenerationInput) (*GenerationOutput, error) {
	payload := sdTxt2ImgPayload{
		Prompt:         input.Prompt,
		NegativePrompt: input.NegativePrompt,
		Steps:          input.Steps,
		CfgScale:       input.GuidanceScale,
		Width:          input.Width,
		Height:         input.Height,
		Seed:           seedOrRandom(input.Seed),
		BatchSize:      1,
	}
	return p.call(ctx, "/sdapi/v1/txt2img", payload)
}

// ImageToImage transforms a source image on the local pipeline.
func (p *SDWebUIProvider) ImageToImage(ctx context.Context, input GenerationInput) (*GenerationOutput, error) {
	if len(input.ImageBytes) == 0 {
		return nil, fmt.Errorf("sdwebui: image-to-image requires a source image")
	}
	payload := sdImg2ImgPayload{
		Prompt:            input.Prompt,
		NegativePrompt:    input.NegativePrompt,
		InitImages:        []string{base64.StdEncoding.EncodeToString(input.ImageBytes)},
		DenoisingStrength: input.Strength,
		Steps:             input.Steps,
		CfgScale:          input.GuidanceScale,
		Seed:              seedOrRandom(input.Seed),
		BatchSize:         1,
	}
	return p.call(ctx, "/sdapi/v1/img2img", payload)
}

// call posts a payload to the WebUI endpoint and decodes the first image of
// the response.
func (p *SDWebUIProvider) call(ctx context.Context, path string, payload any) (*GenerationOutput, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("sdwebui: failed to marshal payload: %w", err)
	}

	log.Printf("Calling provider '%s' at '%s%s'", p.Name(), p.BaseURL, path)

	req, err := http.NewRequestWithContext(ctx, "POST", p.BaseURL+path, bytes.NewBuffer(payloadBytes))
	if err != nil {
		return nil, fmt.Errorf("sdwebui: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sdwebui: %w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("sdwebui: %w", Classify(resp.StatusCode, string(body)))
	}

	var apiResp sdResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("sdwebui: failed to decode response: %w", err)
	}

	if len(apiResp.Images) == 0 {
		if apiResp.Detail != "" {
			return nil, fmt.Errorf("sdwebui: API reported an error: %s", apiResp.Detail)
		}
		return nil, fmt.Errorf("sdwebui: no images returned in response")
	}

	imageData, err := base64.StdEncoding.DecodeString(apiResp.Images[0])
	if err != nil {
		return nil, fmt.Errorf("sdwebui: failed to decode base64 image data: %w", err)
	}

	return &GenerationOutput{
		ImageBytes: imageData,
		Format:     "png",
	}, nil
}

// seedOrRandom resolves the optional seed, drawing a fresh random one when
// none was requested.
func seedOrRandom(seed *int64) int64 {
	if seed == nil {
		return params.RandomSeed()
	}
	return *seed
}
