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
	"strings"
	"time"
)

const hfInferenceBaseURL = "https://api-inference.huggingface.co/models/"

// HuggingFaceProvider implements ImageProvider against the Hugging Face
// Inference API.
type HuggingFaceProvider struct {
	ModelID string
	Token   string
	BaseURL string
	Client  *http.Client
}

// NewHuggingFaceProvider creates a new Hugging Face client.
func NewHuggingFaceProvider(modelID, token string) *HuggingFaceProvider {
	return &HuggingFaceProvider{
		ModelID: modelID,
		Token:   token,
		BaseURL: hfInferenceBaseURL,
		Client:  &http.Client{Timeout: 5 * time.Minute},
	}
}

// Name returns the name of the backend.
func (p *HuggingFaceProvider) Name() string {
	return "huggingface"
}

// Configured reports whether a well-formed API token is present.
func (p *HuggingFaceProvider) Configured() bool {
	return p.Token != "" && strings.HasPrefix(p.Token, "hf_")
}

// hfParameters matches the "parameters" object of the Inference API.
type hfParameters struct {
	Prompt            string   `json:"prompt,omitempty"`
	NegativePrompt    string   `json:"negative_prompt,omitempty"`
	NumInferenceSteps int      `json:"num_inference_steps,omitempty"`
	GuidanceScale     float64  `json:"guidance_scale,omitempty"`
	Width             int      `json:"width,omitempty"`
	Height            int      `json:"height,omitempty"`
	Seed              *int64   `json:"seed,omitempty"`
	Strength          *float64 `json:"strength,omitempty"`
}

// hfPayload matches the request body of the Inference API. Inputs is the
// prompt for text-to-image and the base64 source image for image-to-image.
type hfPayload struct {
	Inputs     string       `json:"inputs"`
	Parameters hfParameters `json:"parameters"`
}

// hfErrorResponse matches the JSON body returned on failure.
type hfErrorResponse struct {
	Error         any     `json:"error"`
	EstimatedTime float64 `json:"estimated_time"`
}

// TextToImage generates an image from a text prompt via the Inference API.
func (p *HuggingFaceProvider) TextToImage(ctx context.Context, input GenerationInput) (*GenerationOutput, error) {
	payload := hfPayload{
		Inputs: input.Prompt,
		Parameters: hfParameters{
			NegativePrompt:    input.NegativePrompt,
			NumInferenceSteps: input.Steps,
			GuidanceScale:     input.GuidanceScale,
			Width:             input.Width,
			Height:            input.Height,
			Seed:              input.Seed,
		},
	}
	return p.call(ctx, payload)
}

// ImageToImage transforms a source image via the Inference API. The source
// image travels base64-encoded in the inputs field, the prompt moves into
// the parameters object.
func (p *HuggingFaceProvider) ImageToImage(ctx context.Context, input GenerationInput) (*GenerationOutput, error) {
	if len(input.ImageBytes) == 0 {
		return nil, fmt.Errorf("huggingface: image-to-image requires a source image")
	}
	strength := input.Strength
	payload := hfPayload{
		Inputs: base64.StdEncoding.EncodeToString(input.ImageBytes),
		Parameters: hfParameters{
			Prompt:            input.Prompt,
			NegativePrompt:    input.NegativePrompt,
			NumInferenceSteps: input.Steps,
			GuidanceScale:     input.GuidanceScale,
			Seed:              input.Seed,
			Strength:          &strength,
		},
	}
	return p.call(ctx, payload)
}

// call posts a payload to the model endpoint and decodes the image or the
// classified error from the response.
func (p *HuggingFaceProvider) call(ctx context.Context, payload hfPayload) (*GenerationOutput, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("huggingface: failed to marshal payload: %w", err)
	}

	log.Printf("Calling provider '%s' with model '%s'", p.Name(), p.ModelID)

	req, err := http.NewRequestWithContext(ctx, "POST", p.BaseURL+p.ModelID, bytes.NewBuffer(payloadBytes))
	if err != nil {
		return nil, fmt.Errorf("huggingface: failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.Token)
	// Wait for cold models instead of failing fast with a 503.
	req.Header.Set("x-wait-for-model", "true")

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("huggingface: failed to call external API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		msg := string(body)
		var errResp hfErrorResponse
		if json.Unmarshal(body, &errResp) == nil && errResp.Error != nil {
			msg = fmt.Sprintf("%v", errResp.Error)
			if errResp.EstimatedTime > 0 {
				msg = fmt.Sprintf("%s (estimated %.0fs)", msg, errResp.EstimatedTime)
			}
		}
		return nil, fmt.Errorf("huggingface: %w", Classify(resp.StatusCode, msg))
	}

	imageData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("huggingface: failed to read image response body: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if strings.Contains(contentType, "application/json") {
		// A 200 with a JSON body still means no image was produced.
		return nil, fmt.Errorf("huggingface: API returned JSON instead of an image: %s", string(imageData))
	}

	format := "png"
	if strings.Contains(contentType, "jpeg") {
		format = "jpeg"
	}

	return &GenerationOutput{
		ImageBytes: imageData,
		Format:     format,
	}, nil
}
