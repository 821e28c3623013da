// Package styles provides the static prompt style presets. A preset wraps
// the user prompt with a fixed prefix and suffix; the table is loaded once
// and never mutated.
package styles

import "strings"

// Preset describes a single prompt style.
type Preset struct {
	Name        string `json:"name"`
	Prefix      string `json:"prefix"`
	Suffix      string `json:"suffix"`
	Description string `json:"description"`
}

// presets is ordered so List is stable for the UI dropdown.
var presets = []Preset{
	{
		Name:        "None",
		Description: "No style modifications",
	},
	{
		Name:        "Realistic Photography",
		Prefix:      "a high-resolution photograph of ",
		Suffix:      ", ultra realistic, 8k, detailed lighting, professional photography",
		Description: "Photorealistic style with high detail",
	},
	{
		Name:        "Anime",
		Prefix:      "anime style illustration of ",
		Suffix:      ", vibrant colors, clean line art, detailed, high quality anime",
		Description: "Japanese anime/manga style",
	},
	{
		Name:        "3D Render",
		Prefix:      "3D render of ",
		Suffix:      ", octane render, highly detailed, studio lighting, 8k, CGI",
		Description: "3D rendered, Pixar/CGI style",
	},
	{
		Name:        "Oil Painting",
		Prefix:      "oil painting of ",
		Suffix:      ", classical art style, brush strokes, artistic, masterpiece",
		Description: "Traditional oil painting style",
	},
	{
		Name:        "Watercolor",
		Prefix:      "watercolor painting of ",
		Suffix:      ", soft colors, artistic, flowing, delicate, traditional art",
		Description: "Watercolor painting style",
	},
	{
		Name:        "Cyberpunk",
		Prefix:      "cyberpunk style ",
		Suffix:      ", neon lights, futuristic, high tech, dystopian, vibrant colors",
		Description: "Futuristic cyberpunk aesthetic",
	},
	{
		Name:        "Fantasy Art",
		Prefix:      "fantasy art illustration of ",
		Suffix:      ", magical, ethereal, detailed, epic, artstation trending",
		Description: "Fantasy and magical themes",
	},
	{
		Name:        "Pixel Art",
		Prefix:      "pixel art of ",
		Suffix:      ", 8-bit, retro gaming style, detailed pixels, nostalgic",
		Description: "Retro pixel art style",
	},
	{
		Name:        "Comic Book",
		Prefix:      "comic book style illustration of ",
		Suffix:      ", bold lines, vibrant colors, superhero art, dynamic",
		Description: "Comic book illustration style",
	},
}

// byName is built once at startup; read-only afterwards.
var byName = func() map[string]Preset {
	m := make(map[string]Preset, len(presets))
	for _, p := range presets {
		m[p.Name] = p
	}
	return m
}()

// List returns the available style names in presentation order.
func List() []string {
	names := make([]string, len(presets))
	for i, p := range presets {
		names[i] = p.Name
	}
	return names
}

// Info returns the preset for the given name. Unknown names fall back to the
// "None" preset.
func Info(name string) Preset {
	if p, ok := byName[name]; ok {
		return p
	}
	return byName["None"]
}

// Description returns the human-readable description of a style.
func Description(name string) string {
	return Info(name).Description
}

// Apply wraps a prompt with the prefix and suffix of the named style. An
// empty prompt is returned unchanged; the caller rejects empty prompts
// before this stage.
func Apply(prompt, name string) string {
	if strings.TrimSpace(prompt) == "" {
		return prompt
	}
	p := Info(name)
	return strings.TrimSpace(p.Prefix + strings.TrimSpace(prompt) + p.Suffix)
}
