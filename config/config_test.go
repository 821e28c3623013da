package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable LoadConfig reads so a test sees only its
// own overrides, not whatever the host process carries.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"HF_TOKEN", "HF_MODEL_ID", "SD_WEBUI_URL", "GENERATION_MODE",
		"OUTPUT_DIR", "UPLOAD_TO_IMAGE_HOST", "NODEIMAGE_API_KEY",
		"API_KEY", "WEB_PASSWORD", "SESSION_SECRET", "LISTEN_ADDR",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)
	LoadConfig()

	require.NotNil(t, AppConfig)
	assert.Equal(t, "runwayml/stable-diffusion-v1-5", AppConfig.HuggingFace.ModelID)
	assert.Equal(t, "http://127.0.0.1:7860", AppConfig.LocalPipeline.BaseURL)
	assert.Equal(t, "auto", AppConfig.Settings.Mode)
	assert.Equal(t, "outputs/generated", AppConfig.Settings.OutputDir)
	assert.Equal(t, ":8080", AppConfig.Settings.ListenAddr)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("HF_TOKEN", "hf_from_env")
	t.Setenv("GENERATION_MODE", "local")
	t.Setenv("OUTPUT_DIR", "/tmp/out")
	t.Setenv("UPLOAD_TO_IMAGE_HOST", "true")

	LoadConfig()

	assert.Equal(t, "hf_from_env", AppConfig.HuggingFace.Token)
	assert.Equal(t, "local", AppConfig.Settings.Mode)
	assert.Equal(t, "/tmp/out", AppConfig.Settings.OutputDir)
	assert.True(t, AppConfig.Settings.UploadToImageHost)
}

func TestBoundsAreSane(t *testing.T) {
	assert.Less(t, MinSteps, MaxSteps)
	assert.Less(t, MinGuidance, MaxGuidance)
	assert.Less(t, MinResolution, MaxResolution)
	assert.Zero(t, MinResolution%8)
	assert.Zero(t, MaxResolution%8)
}
