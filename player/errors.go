package player

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedVideoID is returned when a video id fails validation.
	ErrMalformedVideoID = errors.New("malformed video id")

	// ErrDestroyed is returned for operations on a destroyed tracker.
	ErrDestroyed = errors.New("tracker has been destroyed")

	// ErrInvalidState is returned for operations not allowed in the
	// tracker's current state.
	ErrInvalidState = errors.New("operation not allowed in current state")
)

// ErrorCategory classifies provider-level playback failures.
type ErrorCategory string

const (
	CategoryPrivateVideo      ErrorCategory = "private_video"
	CategoryRegionLocked      ErrorCategory = "region_locked"
	CategoryPasswordProtected ErrorCategory = "password_protected"
	CategoryVideoNotFound     ErrorCategory = "video_not_found"
	CategoryUnavailable       ErrorCategory = "provider_unavailable"
)

// Human returns a human-readable description of the category.
func (c ErrorCategory) Human() string {
	switch c {
	case CategoryPrivateVideo:
		return "This video is private"
	case CategoryRegionLocked:
		return "This video is not available in your region"
	case CategoryPasswordProtected:
		return "This video is password-protected"
	case CategoryVideoNotFound:
		return "This video could not be found"
	case CategoryUnavailable:
		return "The video host is temporarily unavailable"
	}
	return "Video playback failed"
}

// ProviderError is a typed provider-level failure (private video,
// region lock, etc.) surfaced to the UI for an explicit retry affordance.
type ProviderError struct {
	Provider string
	Category ErrorCategory
	Message  string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s (%s)", e.Provider, e.Category, e.Message)
}

// InitError is returned when the provider fails to load within the retry
// budget. It wraps the last underlying error.
type InitError struct {
	Provider string
	VideoID  string
	Attempts int
	Err      error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("player init failed for %q on %s after %d attempts: %v",
		e.VideoID, e.Provider, e.Attempts, e.Err)
}

func (e *InitError) Unwrap() error {
	return e.Err
}
