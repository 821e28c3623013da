package main

import (
	"encoding/json"
	"errors"
	"html/template"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"sdstudio/config"
	"sdstudio/generation"
	"sdstudio/history"
	"sdstudio/imagehost"
	"sdstudio/imgutil"
	"sdstudio/middleware"
	"sdstudio/providers"
	"sdstudio/styles"
)

var gen *generation.Generator

func main() {
	config.LoadConfig()
	middleware.InitSessionStore()

	local := providers.NewSDWebUIProvider(config.AppConfig.LocalPipeline.BaseURL)
	remote := providers.NewHuggingFaceProvider(
		config.AppConfig.HuggingFace.ModelID,
		config.AppConfig.HuggingFace.Token,
	)
	gen = generation.NewGenerator(local, remote, config.AppConfig.HuggingFace.Token)

	mux := http.NewServeMux()

	// Serve static files and saved images
	fs := http.FileServer(http.Dir("static"))
	mux.Handle("/static/", http.StripPrefix("/static/", fs))
	images := http.FileServer(http.Dir(config.AppConfig.Settings.OutputDir))
	mux.Handle("/images/", middleware.WebAuthMiddleware(http.StripPrefix("/images/", images)))

	// Serve the index page
	mux.Handle("/", middleware.WebAuthMiddleware(http.HandlerFunc(serveIndex)))
	mux.HandleFunc("/login", handleLogin)
	mux.HandleFunc("/logout", handleLogout)

	// Handle the API requests
	mux.Handle("/api/generate", middleware.APIKeyAuthMiddleware(http.HandlerFunc(handleGenerate)))
	mux.Handle("/api/styles", middleware.APIKeyAuthMiddleware(http.HandlerFunc(handleStyles)))
	mux.Handle("/api/history", middleware.APIKeyAuthMiddleware(http.HandlerFunc(handleHistory)))
	mux.Handle("/api/history/clear", middleware.APIKeyAuthMiddleware(http.HandlerFunc(handleHistoryClear)))
	mux.Handle("/api/thumbnail", middleware.APIKeyAuthMiddleware(http.HandlerFunc(handleThumbnail)))
	mux.Handle("/api/status", middleware.APIKeyAuthMiddleware(http.HandlerFunc(handleStatus)))

	addr := config.AppConfig.Settings.ListenAddr
	log.Printf("Starting server on %s...", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("Could not start server: %s\n", err)
	}
}

func serveIndex(w http.ResponseWriter, r *http.Request) {
	tmpl, err := template.ParseFiles("templates/index.html")
	if err != nil {
		http.Error(w, "Could not parse template", http.StatusInternalServerError)
		return
	}
	tmpl.Execute(w, nil)
}

func handleLogin(w http.ResponseWriter, r *http.Request) {
	if config.AppConfig.Settings.WebPassword == "" {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	if r.Method == http.MethodGet {
		tmpl, err := template.ParseFiles("templates/login.html")
		if err != nil {
			http.Error(w, "Could not parse template", http.StatusInternalServerError)
			return
		}
		tmpl.Execute(w, nil)
		return
	}

	if r.Method != http.MethodPost {
		http.Error(w, "Only GET and POST methods are allowed", http.StatusMethodNotAllowed)
		return
	}

	if r.FormValue("password") != config.AppConfig.Settings.WebPassword {
		http.Error(w, "Invalid password", http.StatusUnauthorized)
		return
	}

	session, _ := middleware.Store.Get(r, middleware.SessionName)
	session.Values[middleware.UserSessionKey] = true
	if err := session.Save(r, w); err != nil {
		log.Printf("Error saving session: %v", err)
		http.Error(w, "Could not save session", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

func handleLogout(w http.ResponseWriter, r *http.Request) {
	session, _ := middleware.Store.Get(r, middleware.SessionName)
	session.Values[middleware.UserSessionKey] = false
	session.Options.MaxAge = -1
	session.Save(r, w)
	http.Redirect(w, r, "/login", http.StatusFound)
}

func handleGenerate(w http.ResponseWriter, r *http.Request) {
	log.Println("Received a new request for /api/generate")
	if r.Method != http.MethodPost {
		log.Printf("Invalid method: %s", r.Method)
		http.Error(w, "Only POST method is allowed", http.StatusMethodNotAllowed)
		return
	}

	// Parse multipart form, as we might have an init image
	if err := r.ParseMultipartForm(10 << 20); err != nil { // 10 MB
		log.Printf("Error parsing multipart form: %v", err)
		http.Error(w, "Could not parse multipart form", http.StatusBadRequest)
		return
	}

	req := generation.Request{
		Prompt:         r.FormValue("prompt"),
		NegativePrompt: r.FormValue("negative_prompt"),
		Style:          r.FormValue("style"),
		Seed:           r.FormValue("seed"),
		Mode:           r.FormValue("mode"),
	}

	// Defaults apply only when a field is absent. An explicit out-of-range
	// value is clamped, not replaced.
	if v := r.FormValue("steps"); v != "" {
		req.Steps, _ = strconv.Atoi(v)
	} else {
		req.Steps = config.DefaultSteps
	}
	if v := r.FormValue("guidance"); v != "" {
		req.GuidanceScale, _ = strconv.ParseFloat(v, 64)
	} else {
		req.GuidanceScale = config.DefaultGuidance
	}
	if v := r.FormValue("width"); v != "" {
		req.Width, _ = strconv.Atoi(v)
	} else {
		req.Width = config.DefaultWidth
	}
	if v := r.FormValue("height"); v != "" {
		req.Height, _ = strconv.Atoi(v)
	} else {
		req.Height = config.DefaultHeight
	}
	if v := r.FormValue("strength"); v != "" {
		req.Strength, _ = strconv.ParseFloat(v, 64)
	} else {
		req.Strength = config.DefaultStrength
	}
	if req.Mode == "" {
		req.Mode = config.AppConfig.Settings.Mode
	}

	// Get file from form, but don't error if it's missing
	file, handler, err := r.FormFile("image")
	if err != nil && !errors.Is(err, http.ErrMissingFile) {
		log.Printf("Error retrieving image from form: %v", err)
		http.Error(w, "Could not retrieve image from form", http.StatusBadRequest)
		return
	}

	var result *generation.Result
	if err == nil {
		// An init image was uploaded: image-to-image
		defer file.Close()

		imgBytes, readErr := io.ReadAll(file)
		if readErr != nil {
			log.Printf("Error reading image file: %v", readErr)
			http.Error(w, "Could not read image file", http.StatusInternalServerError)
			return
		}

		prepared, width, height, prepErr := imgutil.PrepareInitImage(imgBytes, config.MaxResolution)
		if prepErr != nil {
			log.Printf("Error preparing init image: %v", prepErr)
			http.Error(w, "Could not process the uploaded image", http.StatusBadRequest)
			return
		}
		req.ImageBytes = prepared
		req.Width = width
		req.Height = height

		log.Printf("Received img2img request. Prompt: '%s', Style: '%s', Size: %dx%d, Image: %s (%d bytes)",
			req.Prompt, req.Style, width, height, handler.Filename, len(imgBytes))

		result, err = gen.Img2Img(r.Context(), req)
	} else {
		log.Printf("Received text2img request. Prompt: '%s', Style: '%s', Steps: %d, Size: %dx%d",
			req.Prompt, req.Style, req.Steps, req.Width, req.Height)

		result, err = gen.Text2Img(r.Context(), req)
	}

	if err != nil {
		if errors.Is(err, generation.ErrEmptyPrompt) || errors.Is(err, generation.ErrMissingImage) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		log.Printf("Generation failed: %v", err)
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	// Persist image + sidecar; the image write failing is fatal, the sidecar
	// is handled inside Save.
	outputDir := config.AppConfig.Settings.OutputDir
	if _, err := history.Save(result.ImageBytes, &result.Metadata, outputDir); err != nil {
		log.Printf("Error saving generation: %v", err)
		http.Error(w, "Could not save generated image", http.StatusInternalServerError)
		return
	}

	if config.AppConfig.Settings.UploadToImageHost && config.AppConfig.Settings.NodeImageAPIKey != "" {
		uploadToHost(result)
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("X-Filename", result.Metadata.Filename)
	w.Header().Set("X-Seed", result.Metadata.Seed)
	w.Header().Set("X-Mode", result.Metadata.Mode)
	w.Write(result.ImageBytes)
	log.Println("Successfully streamed image response to client.")
}

// uploadToHost mirrors the saved image to the configured image host and
// records the direct URL in the sidecar. Failures are logged, not fatal.
func uploadToHost(result *generation.Result) {
	client := imagehost.NewNodeImageClient(config.AppConfig.Settings.NodeImageAPIKey)
	uploadResp, err := client.UploadImage(result.ImageBytes, result.Metadata.Filename)
	if err != nil {
		log.Printf("Warning: could not upload image to host: %v", err)
		return
	}
	log.Printf("Image mirrored to %s", uploadResp.Links.Direct)

	result.Metadata.HostedURL = uploadResp.Links.Direct
	if err := history.WriteSidecar(&result.Metadata, config.AppConfig.Settings.OutputDir); err != nil {
		log.Printf("Warning: could not update metadata sidecar for %s: %v", result.Metadata.Filename, err)
	}
}

func handleStyles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Only GET method is allowed", http.StatusMethodNotAllowed)
		return
	}

	type styleEntry struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	entries := make([]styleEntry, 0)
	for _, name := range styles.List() {
		entries = append(entries, styleEntry{Name: name, Description: styles.Description(name)})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}

func handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Only GET method is allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	type historyEntry struct {
		Filename string               `json:"filename"`
		URL      string               `json:"url"`
		Metadata *generation.Metadata `json:"metadata,omitempty"`
	}

	outputDir := config.AppConfig.Settings.OutputDir
	entries := make([]historyEntry, 0)
	for _, path := range history.ListRecent(outputDir, limit) {
		name := filepath.Base(path)
		meta, err := history.LoadMetadata(path)
		if err != nil {
			log.Printf("Warning: could not load metadata for %s: %v", name, err)
		}
		entries = append(entries, historyEntry{
			Filename: name,
			URL:      "/images/" + name,
			Metadata: meta,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}

func handleHistoryClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Only POST method is allowed", http.StatusMethodNotAllowed)
		return
	}

	var payload struct {
		Confirm bool `json:"confirm"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	deleted, err := history.Clear(config.AppConfig.Settings.OutputDir, payload.Confirm)
	if err != nil {
		log.Printf("Error clearing history: %v", err)
		http.Error(w, "Could not clear history", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int{"deleted": deleted})
}

func handleThumbnail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Only GET method is allowed", http.StatusMethodNotAllowed)
		return
	}

	name := filepath.Base(r.URL.Query().Get("file"))
	if name == "." || !strings.HasSuffix(name, ".png") {
		http.Error(w, "A .png file name is required", http.StatusBadRequest)
		return
	}

	data, err := os.ReadFile(filepath.Join(config.AppConfig.Settings.OutputDir, name))
	if err != nil {
		http.Error(w, "Image not found", http.StatusNotFound)
		return
	}

	img, _, err := imgutil.DecodeImage(data)
	if err != nil {
		log.Printf("Error decoding %s for thumbnail: %v", name, err)
		http.Error(w, "Could not decode image", http.StatusInternalServerError)
		return
	}

	thumb, err := imgutil.Thumbnail(img, 256)
	if err != nil {
		log.Printf("Error encoding thumbnail for %s: %v", name, err)
		http.Error(w, "Could not encode thumbnail", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/webp")
	w.Write(thumb)
}

func handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Only GET method is allowed", http.StatusMethodNotAllowed)
		return
	}

	resolved := generation.ResolveMode(config.AppConfig.Settings.Mode, config.AppConfig.HuggingFace.Token)

	status := map[string]any{
		"mode":           config.AppConfig.Settings.Mode,
		"resolved_mode":  string(resolved),
		"model":          config.AppConfig.HuggingFace.ModelID,
		"api_configured": gen.Remote.Configured(),
		"image_count":    history.Count(config.AppConfig.Settings.OutputDir),
	}
	// The local probe does a network round trip, so only report it when the
	// resolved mode needs it.
	if resolved == generation.ModeLocal {
		status["local_configured"] = gen.Local.Configured()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}
