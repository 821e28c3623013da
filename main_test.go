package main

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sdstudio/config"
	"sdstudio/generation"
	"sdstudio/providers"
)

// stubProvider returns a fixed image for every call.
type stubProvider struct {
	name string
}

func (s *stubProvider) TextToImage(ctx context.Context, input providers.GenerationInput) (*providers.GenerationOutput, error) {
	return &providers.GenerationOutput{ImageBytes: []byte("stub-image"), Format: "png"}, nil
}

func (s *stubProvider) ImageToImage(ctx context.Context, input providers.GenerationInput) (*providers.GenerationOutput, error) {
	return &providers.GenerationOutput{ImageBytes: []byte("stub-image"), Format: "png"}, nil
}

func (s *stubProvider) Name() string     { return s.name }
func (s *stubProvider) Configured() bool { return true }

func setupApp(t *testing.T) {
	t.Helper()
	// Blank out any configuration the host process carries so the handlers
	// see only what the test sets.
	for _, key := range []string{
		"HF_TOKEN", "HF_MODEL_ID", "SD_WEBUI_URL", "GENERATION_MODE",
		"OUTPUT_DIR", "UPLOAD_TO_IMAGE_HOST", "NODEIMAGE_API_KEY",
		"API_KEY", "WEB_PASSWORD", "SESSION_SECRET", "LISTEN_ADDR",
	} {
		t.Setenv(key, "")
	}
	config.LoadConfig()
	config.AppConfig.Settings.OutputDir = t.TempDir()
	config.AppConfig.Settings.UploadToImageHost = false
	gen = generation.NewGenerator(&stubProvider{name: "local"}, &stubProvider{name: "remote"}, "")
}

func multipartForm(t *testing.T, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestHandleGenerateRejectsEmptyPrompt(t *testing.T) {
	setupApp(t)

	body, contentType := multipartForm(t, map[string]string{"prompt": "   "})
	req := httptest.NewRequest(http.MethodPost, "/api/generate", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	handleGenerate(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "prompt cannot be empty")
}

func TestHandleGenerateText2Img(t *testing.T) {
	setupApp(t)

	body, contentType := multipartForm(t, map[string]string{
		"prompt": "a fox",
		"style":  "Anime",
		"seed":   "42",
		"mode":   "local",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/generate", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	handleGenerate(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "stub-image", rec.Body.String())
	assert.Equal(t, "42", rec.Header().Get("X-Seed"))
	assert.Equal(t, "local", rec.Header().Get("X-Mode"))

	filename := rec.Header().Get("X-Filename")
	require.NotEmpty(t, filename)
	assert.Contains(t, filename, "_text2img_anime_42.png")

	// Image and sidecar were persisted.
	outputDir := config.AppConfig.Settings.OutputDir
	_, err := os.Stat(filepath.Join(outputDir, filename))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(outputDir, strings.TrimSuffix(filename, ".png")+".json"))
	require.NoError(t, err)
}

func TestHandleGenerateExplicitZerosAreClamped(t *testing.T) {
	setupApp(t)

	// Explicit out-of-range values are clamped to the bounds, not replaced
	// with the defaults that cover absent fields.
	body, contentType := multipartForm(t, map[string]string{
		"prompt":   "a fox",
		"mode":     "local",
		"seed":     "7",
		"steps":    "0",
		"guidance": "0",
		"width":    "0",
		"height":   "0",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/generate", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	handleGenerate(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	filename := rec.Header().Get("X-Filename")
	require.NotEmpty(t, filename)
	sidecar, err := os.ReadFile(filepath.Join(config.AppConfig.Settings.OutputDir,
		strings.TrimSuffix(filename, ".png")+".json"))
	require.NoError(t, err)

	var meta generation.Metadata
	require.NoError(t, json.Unmarshal(sidecar, &meta))
	assert.Equal(t, config.MinSteps, meta.Steps)
	assert.Equal(t, config.MinGuidance, meta.GuidanceScale)
	assert.Equal(t, config.MinResolution, meta.Width)
	assert.Equal(t, config.MinResolution, meta.Height)
}

func TestHandleGenerateRequiresPost(t *testing.T) {
	setupApp(t)

	req := httptest.NewRequest(http.MethodGet, "/api/generate", nil)
	rec := httptest.NewRecorder()
	handleGenerate(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleStyles(t *testing.T) {
	setupApp(t)

	req := httptest.NewRequest(http.MethodGet, "/api/styles", nil)
	rec := httptest.NewRecorder()
	handleStyles(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var entries []struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 10)
	assert.Equal(t, "None", entries[0].Name)
}

func TestHandleHistoryAndClear(t *testing.T) {
	setupApp(t)

	// Generate one image so history has content.
	body, contentType := multipartForm(t, map[string]string{"prompt": "a fox", "mode": "local"})
	req := httptest.NewRequest(http.MethodPost, "/api/generate", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handleGenerate(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/history?limit=5", nil)
	rec = httptest.NewRecorder()
	handleHistory(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var entries []struct {
		Filename string               `json:"filename"`
		URL      string               `json:"url"`
		Metadata *generation.Metadata `json:"metadata"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.True(t, strings.HasPrefix(entries[0].URL, "/images/"))
	require.NotNil(t, entries[0].Metadata)
	assert.Equal(t, "a fox", entries[0].Metadata.Prompt)

	// Unconfirmed clear deletes nothing.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/history/clear", strings.NewReader(`{"confirm":false}`))
	handleHistoryClear(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"deleted":0}`, rec.Body.String())

	// Confirmed clear removes image and sidecar.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/history/clear", strings.NewReader(`{"confirm":true}`))
	handleHistoryClear(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"deleted":2}`, rec.Body.String())
}

func TestHandleStatus(t *testing.T) {
	setupApp(t)
	config.AppConfig.Settings.Mode = "auto"

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	handleStatus(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var status map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "auto", status["mode"])
	assert.Equal(t, "local", status["resolved_mode"])
	assert.Equal(t, true, status["api_configured"])
	assert.Equal(t, float64(0), status["image_count"])
}
