//go:build ignore

package main

import (
	"bytes"
	"flag"
	"fmt"
	"image"
	_ "image/jpeg" // Import for JPEG decoding
	_ "image/png"  // Import for PNG decoding
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
)

// Standalone utility: walks the output directory and writes a webp thumbnail
// next to every generated png that does not have one yet.
func main() {
	dir := flag.String("dir", "outputs/generated", "Output directory to scan")
	size := flag.Int("size", 256, "Thumbnail bounding box in pixels")
	force := flag.Bool("force", false, "Regenerate thumbnails that already exist")
	flag.Parse()

	entries, err := os.ReadDir(*dir)
	if err != nil {
		log.Fatalf("Failed to read directory %s: %v", *dir, err)
	}

	written := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".png") {
			continue
		}

		thumbPath := filepath.Join(*dir, strings.TrimSuffix(name, ".png")+"_thumb.webp")
		if !*force {
			if _, err := os.Stat(thumbPath); err == nil {
				continue
			}
		}

		data, err := os.ReadFile(filepath.Join(*dir, name))
		if err != nil {
			log.Printf("Skipping %s: %v", name, err)
			continue
		}

		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			log.Printf("Skipping %s: failed to decode: %v", name, err)
			continue
		}

		small := imaging.Fit(img, *size, *size, imaging.Lanczos)
		out, err := webp.EncodeRGBA(small, 80)
		if err != nil {
			log.Printf("Skipping %s: failed to encode webp: %v", name, err)
			continue
		}

		if err := os.WriteFile(thumbPath, out, 0644); err != nil {
			log.Printf("Failed to write %s: %v", thumbPath, err)
			continue
		}
		written++
	}

	fmt.Printf("Wrote %d thumbnails to %s\n", written, *dir)
}
