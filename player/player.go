// Package player wraps third-party video hosts behind a single progress
// tracker. Two bindings exist: a REST binding whose playback position is
// polled, and an embed binding fed by heartbeats from the embedded web
// player. The tracker normalizes both into one progress stream and fires
// a single completion event when the watch threshold is crossed.
package player

import (
	"context"
	"regexp"
	"time"
)

// Playback is a normalized snapshot of player position.
type Playback struct {
	CurrentTime float64 `json:"current_time"` // seconds
	Duration    float64 `json:"duration"`     // seconds
}

// Progress is the normalized signal emitted by a Tracker.
type Progress struct {
	CurrentTime          float64 `json:"current_time"`
	Duration             float64 `json:"duration"`
	CompletionPercentage float64 `json:"completion_percentage"`
	WatchedSeconds       float64 `json:"watched_seconds"`
}

// State is the tracker lifecycle state.
type State int32

const (
	StateUninitialized State = iota
	StateLoading
	StateReady
	StatePlaying
	StatePaused
	StateDestroyed
	StateError
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateDestroyed:
		return "destroyed"
	case StateError:
		return "error"
	}
	return "unknown"
}

// Provider is the capability set every video host binding implements.
type Provider interface {
	Name() string
	Load(ctx context.Context, videoID string) error
	Play(ctx context.Context) error
	Pause(ctx context.Context) error
	Seek(ctx context.Context, seconds float64) error
	SetVolume(ctx context.Context, volume float64) error
	SetPlaybackRate(ctx context.Context, rate float64) error
	Close() error
}

// PositionReader is implemented by providers whose playback position must
// be polled.
type PositionReader interface {
	Position(ctx context.Context) (Playback, error)
}

// TickSource is implemented by providers that push native timeupdate
// heartbeats. The channel is closed when the provider closes.
type TickSource interface {
	Ticks() <-chan Playback
}

// Options configures a Tracker.
type Options struct {
	// CompletionThreshold is the watch percentage at which the one-shot
	// completion event fires. Defaults to 80.
	CompletionThreshold float64

	// PollInterval is the cadence for position polling while playing.
	// Defaults to 30s. Only used for PositionReader providers.
	PollInterval time.Duration

	// LoadTimeout bounds each provider load attempt. Defaults to 15s.
	LoadTimeout time.Duration

	// LoadRetries is the number of load attempts before giving up.
	// Defaults to 3.
	LoadRetries int
}

func (o Options) withDefaults() Options {
	if o.CompletionThreshold <= 0 {
		o.CompletionThreshold = 80
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 30 * time.Second
	}
	if o.LoadTimeout <= 0 {
		o.LoadTimeout = 15 * time.Second
	}
	if o.LoadRetries <= 0 {
		o.LoadRetries = 3
	}
	return o
}

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,100}$`)

// ValidVideoID reports whether id is a well-formed video identifier.
func ValidVideoID(id string) bool {
	return videoIDPattern.MatchString(id)
}
