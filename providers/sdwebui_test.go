package providers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSDTestProvider(t *testing.T, handler http.HandlerFunc) *SDWebUIProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewSDWebUIProvider(server.URL)
}

func TestSDWebUITextToImage(t *testing.T) {
	var gotPath string
	var gotPayload sdTxt2ImgPayload
	p := newSDTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		json.NewEncoder(w).Encode(sdResponse{
			Images: []string{base64.StdEncoding.EncodeToString([]byte("fake-png"))},
		})
	})

	seed := int64(42)
	out, err := p.TextToImage(context.Background(), GenerationInput{
		Prompt:        "a fox",
		Steps:         30,
		GuidanceScale: 7.5,
		Width:         512,
		Height:        512,
		Seed:          &seed,
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("fake-png"), out.ImageBytes)

	assert.Equal(t, "/sdapi/v1/txt2img", gotPath)
	assert.Equal(t, "a fox", gotPayload.Prompt)
	assert.Equal(t, 7.5, gotPayload.CfgScale)
	assert.Equal(t, int64(42), gotPayload.Seed)
	assert.Equal(t, 1, gotPayload.BatchSize)
}

func TestSDWebUIRandomSeedResolved(t *testing.T) {
	var gotPayload sdTxt2ImgPayload
	p := newSDTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		json.NewEncoder(w).Encode(sdResponse{
			Images: []string{base64.StdEncoding.EncodeToString([]byte("x"))},
		})
	})

	// No seed requested: a concrete random seed is drawn, never the -1
	// sentinel.
	_, err := p.TextToImage(context.Background(), GenerationInput{Prompt: "a fox"})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, gotPayload.Seed, int64(0))
	assert.Less(t, gotPayload.Seed, int64(1)<<32)
}

func TestSDWebUIImageToImage(t *testing.T) {
	var gotPath string
	var gotPayload sdImg2ImgPayload
	p := newSDTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		json.NewEncoder(w).Encode(sdResponse{
			Images: []string{base64.StdEncoding.EncodeToString([]byte("fake-png"))},
		})
	})

	out, err := p.ImageToImage(context.Background(), GenerationInput{
		Prompt:     "a fox",
		ImageBytes: []byte("source"),
		Strength:   0.6,
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("fake-png"), out.ImageBytes)

	assert.Equal(t, "/sdapi/v1/img2img", gotPath)
	assert.Equal(t, 0.6, gotPayload.DenoisingStrength)
	require.Len(t, gotPayload.InitImages, 1)
	decoded, err := base64.StdEncoding.DecodeString(gotPayload.InitImages[0])
	require.NoError(t, err)
	assert.Equal(t, []byte("source"), decoded)
}

func TestSDWebUIImageToImageRequiresImage(t *testing.T) {
	p := NewSDWebUIProvider("http://127.0.0.1:7860")
	_, err := p.ImageToImage(context.Background(), GenerationInput{Prompt: "a fox"})
	assert.Error(t, err)
}

func TestSDWebUIErrors(t *testing.T) {
	t.Run("detail message surfaces", func(t *testing.T) {
		p := newSDTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(sdResponse{Detail: "model not loaded"})
		})
		_, err := p.TextToImage(context.Background(), GenerationInput{Prompt: "a fox"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "model not loaded")
	})

	t.Run("unreachable server classified unavailable", func(t *testing.T) {
		p := NewSDWebUIProvider("http://127.0.0.1:1")
		_, err := p.TextToImage(context.Background(), GenerationInput{Prompt: "a fox"})
		assert.ErrorIs(t, err, ErrUnavailable)
	})

	t.Run("500 classified unavailable", func(t *testing.T) {
		p := newSDTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		})
		_, err := p.TextToImage(context.Background(), GenerationInput{Prompt: "a fox"})
		assert.ErrorIs(t, err, ErrUnavailable)
	})
}

func TestSDWebUIConfigured(t *testing.T) {
	assert.False(t, NewSDWebUIProvider("").Configured())

	p := newSDTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/sdapi/v1/options" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})
	assert.True(t, p.Configured())
}
