// Package imagehost mirrors generated images to the NodeImage hosting
// service so they can be shared by URL.
package imagehost

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
)

const uploadAPIURL = "https://api.nodeimage.com/api/upload"

// NodeImageClient handles communication with the NodeImage API.
type NodeImageClient struct {
	APIKey    string
	UploadURL string
	Client    *http.Client
}

// NewNodeImageClient creates a new NodeImage client.
func NewNodeImageClient(apiKey string) *NodeImageClient {
	return &NodeImageClient{
		APIKey:    apiKey,
		UploadURL: uploadAPIURL,
		Client:    &http.Client{},
	}
}

// UploadResponse matches the structure of the successful upload response.
type UploadResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	ImageID string `json:"image_id"`
	Links   struct {
		Direct string `json:"direct"`
	} `json:"links"`
}

// UploadImage uploads an image and returns the direct URL and image ID.
func (c *NodeImageClient) UploadImage(imageBytes []byte, filename string) (*UploadResponse, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("image", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err = io.Copy(part, bytes.NewReader(imageBytes)); err != nil {
		return nil, fmt.Errorf("failed to copy image bytes to form: %w", err)
	}
	writer.Close()

	req, err := http.NewRequest("POST", c.UploadURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create upload request: %w", err)
	}

	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("X-API-Key", c.APIKey)

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute upload request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("nodeimage API returned non-200 status: %d, body: %s", resp.StatusCode, string(body))
	}

	var uploadResp UploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&uploadResp); err != nil {
		return nil, fmt.Errorf("failed to decode upload response: %w", err)
	}

	if !uploadResp.Success {
		return nil, fmt.Errorf("nodeimage API reported an error: %s", uploadResp.Message)
	}

	return &uploadResp, nil
}
