package providers

import (
	"errors"
	"fmt"
	"strings"
)

// Known upstream failure categories. Providers wrap these so callers can
// attach a useful hint without parsing messages again.
var (
	// ErrModelLoading means the remote model is still warming up.
	ErrModelLoading = errors.New("model is loading")
	// ErrRateLimited means the request quota has been exhausted.
	ErrRateLimited = errors.New("rate limited")
	// ErrUnavailable means the backend is temporarily unreachable.
	ErrUnavailable = errors.New("service unavailable")
)

// Classify maps an HTTP status code and response body to one of the known
// failure sentinels, by status code first and message inspection second.
// Unrecognized failures come back as a plain error carrying the body.
func Classify(status int, body string) error {
	lower := strings.ToLower(body)
	switch {
	case status == 503 || strings.Contains(lower, "currently loading") || strings.Contains(lower, "is loading"):
		return fmt.Errorf("%w: status %d: %s", ErrModelLoading, status, body)
	case status == 429 || strings.Contains(lower, "rate limit"):
		return fmt.Errorf("%w: status %d: %s", ErrRateLimited, status, body)
	case status >= 500:
		return fmt.Errorf("%w: status %d: %s", ErrUnavailable, status, body)
	default:
		return fmt.Errorf("API returned non-200 status: %d, body: %s", status, body)
	}
}

// Hint returns a human-readable suggestion for a classified failure, or an
// empty string when there is nothing useful to add.
func Hint(err error) string {
	switch {
	case errors.Is(err, ErrModelLoading):
		return "The model is loading on the remote servers. This can take 30-60 seconds; try again in a moment."
	case errors.Is(err, ErrRateLimited):
		return "Rate limit reached. Wait a few minutes and try again."
	case errors.Is(err, ErrUnavailable):
		return "The service is temporarily unavailable. Try again shortly or switch to local mode."
	default:
		return ""
	}
}
