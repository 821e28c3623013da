package config

import (
	"encoding/json"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Generation defaults.
const (
	DefaultSteps    = 30
	DefaultGuidance = 7.5
	DefaultWidth    = 512
	DefaultHeight   = 512
	DefaultStrength = 0.75
)

// Safety limits. Requested values outside these ranges are clamped, never
// rejected.
const (
	MinSteps      = 1
	MaxSteps      = 100
	MinGuidance   = 1.0
	MaxGuidance   = 20.0
	MinResolution = 256
	MaxResolution = 768
)

// HuggingFace holds the remote inference API settings.
type HuggingFace struct {
	Token   string `json:"HF_TOKEN"`
	ModelID string `json:"HF_MODEL_ID"`
}

// LocalPipeline holds the settings for the locally running Stable Diffusion
// WebUI backend.
type LocalPipeline struct {
	BaseURL string `json:"SD_WEBUI_URL"`
}

// Settings holds optional application settings.
type Settings struct {
	Mode              string `json:"GENERATION_MODE"` // "local", "api" or "auto"
	OutputDir         string `json:"OUTPUT_DIR"`
	UploadToImageHost bool   `json:"UPLOAD_TO_IMAGE_HOST"`
	NodeImageAPIKey   string `json:"NODEIMAGE_API_KEY"`
	APIKey            string `json:"API_KEY"`
	WebPassword       string `json:"WEB_PASSWORD"`
	SessionSecret     string `json:"SESSION_SECRET"`
	ListenAddr        string `json:"LISTEN_ADDR"`
}

// Config holds the entire application configuration.
type Config struct {
	HuggingFace   HuggingFace   `json:"HUGGINGFACE"`
	LocalPipeline LocalPipeline `json:"LOCAL_PIPELINE"`
	Settings      Settings      `json:"SETTINGS"`
}

// AppConfig is the global configuration instance.
var AppConfig *Config

// LoadConfig loads the configuration from defaults, conf.json, .env, and
// environment variables, each layer overriding the previous one.
func LoadConfig() {
	// 1. Set default values
	AppConfig = &Config{
		HuggingFace: HuggingFace{
			ModelID: "runwayml/stable-diffusion-v1-5",
		},
		LocalPipeline: LocalPipeline{
			BaseURL: "http://127.0.0.1:7860",
		},
		Settings: Settings{
			Mode:          "auto",
			OutputDir:     "outputs/generated",
			SessionSecret: "a_very_long_and_random_secret_string",
			ListenAddr:    ":8080",
		},
	}

	// 2. Load from conf.json
	file, err := os.Open("conf.json")
	if err == nil {
		defer file.Close()
		decoder := json.NewDecoder(file)
		if err := decoder.Decode(AppConfig); err != nil {
			log.Printf("Warning: Could not decode conf.json: %v", err)
		} else {
			log.Println("Loaded configuration from conf.json")
		}
	} else if !os.IsNotExist(err) {
		log.Printf("Warning: Could not open conf.json: %v", err)
	}

	// 3. Load from .env file (will override conf.json)
	godotenv.Load()

	// 4. Load from environment variables (will override everything)
	loadFromEnv()

	log.Println("Configuration loaded successfully.")
}

// loadFromEnv loads configuration from environment variables, overriding
// existing values.
func loadFromEnv() {
	if token := os.Getenv("HF_TOKEN"); token != "" {
		AppConfig.HuggingFace.Token = token
	}
	if model := os.Getenv("HF_MODEL_ID"); model != "" {
		AppConfig.HuggingFace.ModelID = model
	}
	if url := os.Getenv("SD_WEBUI_URL"); url != "" {
		AppConfig.LocalPipeline.BaseURL = url
	}

	if mode := os.Getenv("GENERATION_MODE"); mode != "" {
		AppConfig.Settings.Mode = mode
	}
	if dir := os.Getenv("OUTPUT_DIR"); dir != "" {
		AppConfig.Settings.OutputDir = dir
	}
	if val := os.Getenv("UPLOAD_TO_IMAGE_HOST"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			AppConfig.Settings.UploadToImageHost = b
		}
	}
	if key := os.Getenv("NODEIMAGE_API_KEY"); key != "" {
		AppConfig.Settings.NodeImageAPIKey = key
	}
	if key := os.Getenv("API_KEY"); key != "" {
		AppConfig.Settings.APIKey = key
	}
	if pass := os.Getenv("WEB_PASSWORD"); pass != "" {
		AppConfig.Settings.WebPassword = pass
	}
	if secret := os.Getenv("SESSION_SECRET"); secret != "" {
		AppConfig.Settings.SessionSecret = secret
	}
	if addr := os.Getenv("LISTEN_ADDR"); addr != "" {
		AppConfig.Settings.ListenAddr = addr
	}
}
