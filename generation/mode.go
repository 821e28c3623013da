package generation

import "strings"

// Mode selects which backend serves a generation request.
type Mode string

const (
	// ModeLocal routes to the locally running pipeline.
	ModeLocal Mode = "local"
	// ModeAPI routes to the remote inference API.
	ModeAPI Mode = "api"
	// ModeAuto picks the API when a credential is configured, else local.
	ModeAuto Mode = "auto"
)

// ResolveMode turns a requested mode into a concrete one. Auto resolves to
// the API if and only if a well-formed token ("hf_" prefix) is present.
// Unknown mode strings behave like auto.
func ResolveMode(mode string, token string) Mode {
	switch Mode(strings.ToLower(strings.TrimSpace(mode))) {
	case ModeLocal:
		return ModeLocal
	case ModeAPI:
		return ModeAPI
	default:
		if token != "" && strings.HasPrefix(token, "hf_") {
			return ModeAPI
		}
		return ModeLocal
	}
}
