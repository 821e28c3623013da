// Package params normalizes raw generation parameters into the safe ranges
// the diffusion backends accept. Out-of-range values are clamped rather than
// rejected, so normalization never fails.
package params

import (
	"math/rand"
	"strconv"
	"strings"

	"sdstudio/config"
)

// Params holds a normalized set of generation parameters.
type Params struct {
	Steps         int
	GuidanceScale float64
	Width         int
	Height        int
}

// Clamp validates steps, guidance scale and dimensions against the
// configured bounds. Dimensions are additionally snapped down to the nearest
// multiple of 8, which Stable Diffusion requires.
func Clamp(steps int, guidanceScale float64, width, height int) Params {
	w, h := SnapDimensions(width, height)
	return Params{
		Steps:         clampInt(steps, config.MinSteps, config.MaxSteps),
		GuidanceScale: clampFloat(guidanceScale, config.MinGuidance, config.MaxGuidance),
		Width:         w,
		Height:        h,
	}
}

// SnapDimensions clamps width and height to the configured resolution range
// and rounds both down to the nearest multiple of 8.
func SnapDimensions(width, height int) (int, int) {
	width = clampInt(width, config.MinResolution, config.MaxResolution)
	height = clampInt(height, config.MinResolution, config.MaxResolution)
	return (width / 8) * 8, (height / 8) * 8
}

// ClampStrength limits the img2img strength to [0, 1].
func ClampStrength(strength float64) float64 {
	return clampFloat(strength, 0.0, 1.0)
}

// FixSeed parses a user-supplied seed value. Empty strings, "-1", negative
// numbers and anything that does not parse as an integer all mean "random"
// and yield nil.
func FixSeed(raw string) *int64 {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "-1" || strings.EqualFold(raw, "random") {
		return nil
	}
	seed, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || seed < 0 {
		return nil
	}
	return &seed
}

// RandomSeed draws a concrete seed for backends that need one. The range
// matches what diffusion pipelines accept as a 32-bit seed.
func RandomSeed() int64 {
	return rand.Int63n(1 << 32)
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func clampFloat(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
