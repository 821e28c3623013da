// Package history persists generated images with a JSON metadata sidecar
// and manages the output directory.
package history

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"sdstudio/generation"
)

// Filename derives the deterministic output filename for a generation:
// timestamp to the second, generation type, lowercased style and seed.
// Two generations with identical type/style/seed in the same second collide
// and the later write wins; that is accepted at this scale.
func Filename(meta generation.Metadata) string {
	timestamp := time.Now().Format("20060102_150405")
	style := strings.ToLower(strings.ReplaceAll(meta.Style, " ", "_"))
	if style == "" {
		style = "none"
	}
	genType := meta.Type
	if genType == "" {
		genType = "text2img"
	}
	seed := meta.Seed
	if seed == "" {
		seed = "random"
	}
	return fmt.Sprintf("%s_%s_%s_%s.png", timestamp, genType, style, seed)
}

// Save writes the image and then its metadata sidecar to outputDir, creating
// the directory if needed. A failed sidecar write is logged but does not
// fail the save; a failed image write does. The metadata is updated with the
// filename and save time before the sidecar is written.
func Save(imageBytes []byte, meta *generation.Metadata, outputDir string) (string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	filename := Filename(*meta)
	imagePath := filepath.Join(outputDir, filename)

	if err := os.WriteFile(imagePath, imageBytes, 0644); err != nil {
		return "", fmt.Errorf("failed to save image: %w", err)
	}
	log.Printf("Image saved to %s", imagePath)

	meta.Filename = filename
	meta.SavedAt = time.Now().Format(time.RFC3339)

	if err := WriteSidecar(meta, outputDir); err != nil {
		log.Printf("Warning: could not save metadata sidecar for %s: %v", filename, err)
	}

	return imagePath, nil
}

// WriteSidecar writes (or rewrites) the JSON sidecar for a saved image. The
// metadata's Filename must already be set; the sidecar shares its stem.
func WriteSidecar(meta *generation.Metadata, outputDir string) error {
	sidecarPath := filepath.Join(outputDir, strings.TrimSuffix(meta.Filename, ".png")+".json")
	sidecar, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	if err := os.WriteFile(sidecarPath, sidecar, 0644); err != nil {
		return fmt.Errorf("failed to write metadata sidecar: %w", err)
	}
	return nil
}

// LoadMetadata reads the sidecar for an image path. It returns nil without
// an error when no sidecar exists.
func LoadMetadata(imagePath string) (*generation.Metadata, error) {
	sidecarPath := strings.TrimSuffix(imagePath, ".png") + ".json"
	data, err := os.ReadFile(sidecarPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read metadata sidecar: %w", err)
	}
	var meta generation.Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to decode metadata sidecar: %w", err)
	}
	return &meta, nil
}

// ListRecent returns up to limit image paths from outputDir, newest first by
// modification time. A missing directory yields an empty list.
func ListRecent(outputDir string, limit int) []string {
	entries, err := os.ReadDir(outputDir)
	if err != nil {
		return nil
	}

	type fileWithTime struct {
		path    string
		modTime time.Time
	}

	var files []fileWithTime
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".png") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, fileWithTime{
			path:    filepath.Join(outputDir, entry.Name()),
			modTime: info.ModTime(),
		})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].modTime.After(files[j].modTime)
	})

	if limit > 0 && len(files) > limit {
		files = files[:limit]
	}

	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.path
	}
	return paths
}

// Count returns the number of generated images in outputDir.
func Count(outputDir string) int {
	entries, err := os.ReadDir(outputDir)
	if err != nil {
		return 0
	}
	count := 0
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".png") {
			count++
		}
	}
	return count
}

// Clear deletes all generated images and sidecars from outputDir. Nothing is
// deleted unless confirm is true. It returns the number of files removed.
func Clear(outputDir string, confirm bool) (int, error) {
	if !confirm {
		log.Println("Clear operation not confirmed; nothing deleted.")
		return 0, nil
	}

	entries, err := os.ReadDir(outputDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read output directory: %w", err)
	}

	deleted := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || (!strings.HasSuffix(name, ".png") && !strings.HasSuffix(name, ".json")) {
			continue
		}
		path := filepath.Join(outputDir, name)
		if err := os.Remove(path); err != nil {
			log.Printf("Warning: could not delete %s: %v", path, err)
			continue
		}
		deleted++
	}

	log.Printf("Deleted %d files from %s", deleted, outputDir)
	return deleted, nil
}
