package player

import (
	"context"
	"sync"
	"time"
)

// Tracker drives one playback session over a Provider. It owns the
// lifecycle state machine, normalizes provider ticks into Progress events,
// and fires at most one completion event per tracker lifetime.
type Tracker struct {
	provider Provider
	opts     Options

	mu              sync.Mutex
	state           State
	videoID         string
	maxWatched      float64
	last            Playback
	completionFired bool
	lastErr         error

	onProgress   []func(Progress)
	onCompletion []func(Progress)

	stop     chan struct{}
	stopOnce sync.Once
	pumping  bool
}

// NewTracker creates a tracker over the given provider binding.
func NewTracker(provider Provider, opts Options) *Tracker {
	return &Tracker{
		provider: provider,
		opts:     opts.withDefaults(),
		state:    StateUninitialized,
		stop:     make(chan struct{}),
	}
}

// State returns the current lifecycle state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// LastError returns the error that moved the tracker into the error state.
func (t *Tracker) LastError() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastErr
}

// OnProgress registers a progress subscriber. Subscribers must be
// registered before Initialize.
func (t *Tracker) OnProgress(fn func(Progress)) {
	t.mu.Lock()
	t.onProgress = append(t.onProgress, fn)
	t.mu.Unlock()
}

// OnCompletion registers a completion subscriber.
func (t *Tracker) OnCompletion(fn func(Progress)) {
	t.mu.Lock()
	t.onCompletion = append(t.onCompletion, fn)
	t.mu.Unlock()
}

// Initialize attaches to the provider's player for the given video.
// The provider load is bounded by LoadTimeout and retried up to
// LoadRetries times; exhaustion surfaces an *InitError and leaves the
// tracker in the error state, recoverable via Retry.
func (t *Tracker) Initialize(ctx context.Context, videoID string) error {
	if !ValidVideoID(videoID) {
		return &InitError{Provider: t.provider.Name(), VideoID: videoID, Attempts: 0, Err: ErrMalformedVideoID}
	}

	t.mu.Lock()
	switch t.state {
	case StateUninitialized, StateError:
	case StateDestroyed:
		t.mu.Unlock()
		return ErrDestroyed
	default:
		t.mu.Unlock()
		return ErrInvalidState
	}
	t.state = StateLoading
	t.videoID = videoID
	t.mu.Unlock()

	var lastErr error
	attempts := 0
	for attempts < t.opts.LoadRetries {
		attempts++
		loadCtx, cancel := context.WithTimeout(ctx, t.opts.LoadTimeout)
		lastErr = t.provider.Load(loadCtx, videoID)
		cancel()
		if lastErr == nil {
			break
		}
		// Provider-level denials (private, region lock) will not
		// succeed on retry.
		if _, ok := lastErr.(*ProviderError); ok {
			break
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == StateDestroyed {
		return ErrDestroyed
	}
	if lastErr != nil {
		t.state = StateError
		t.lastErr = lastErr
		if pe, ok := lastErr.(*ProviderError); ok {
			return pe
		}
		return &InitError{Provider: t.provider.Name(), VideoID: videoID, Attempts: attempts, Err: lastErr}
	}

	t.state = StateReady
	t.lastErr = nil
	t.startPumpLocked()
	return nil
}

// Retry transitions error → loading and re-runs initialization.
func (t *Tracker) Retry(ctx context.Context) error {
	t.mu.Lock()
	if t.state != StateError {
		t.mu.Unlock()
		return ErrInvalidState
	}
	videoID := t.videoID
	t.state = StateUninitialized
	t.mu.Unlock()

	return t.Initialize(ctx, videoID)
}

// Play starts or resumes playback.
func (t *Tracker) Play(ctx context.Context) error {
	t.mu.Lock()
	if t.state != StateReady && t.state != StatePaused {
		t.mu.Unlock()
		return ErrInvalidState
	}
	t.mu.Unlock()

	if err := t.provider.Play(ctx); err != nil {
		return err
	}

	t.mu.Lock()
	t.state = StatePlaying
	t.startPollLocked()
	t.mu.Unlock()
	return nil
}

// Pause pauses playback. A position sample is emitted immediately so that
// progress recorded on pause is current rather than one poll interval old.
func (t *Tracker) Pause(ctx context.Context) error {
	t.mu.Lock()
	if t.state != StatePlaying {
		t.mu.Unlock()
		return ErrInvalidState
	}
	t.mu.Unlock()

	if err := t.provider.Pause(ctx); err != nil {
		return err
	}

	t.mu.Lock()
	t.state = StatePaused
	t.mu.Unlock()

	if pr, ok := t.provider.(PositionReader); ok {
		if pb, err := pr.Position(ctx); err == nil {
			t.handleTick(pb)
		}
	}
	return nil
}

// Seek moves the playhead.
func (t *Tracker) Seek(ctx context.Context, seconds float64) error {
	if !t.active() {
		return ErrInvalidState
	}
	return t.provider.Seek(ctx, seconds)
}

// SetVolume adjusts volume in [0,1].
func (t *Tracker) SetVolume(ctx context.Context, volume float64) error {
	if !t.active() {
		return ErrInvalidState
	}
	return t.provider.SetVolume(ctx, volume)
}

// SetPlaybackRate adjusts playback speed.
func (t *Tracker) SetPlaybackRate(ctx context.Context, rate float64) error {
	if !t.active() {
		return ErrInvalidState
	}
	return t.provider.SetPlaybackRate(ctx, rate)
}

// Snapshot returns the latest normalized progress.
func (t *Tracker) Snapshot() Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.progressLocked()
}

// Destroy releases timers, listeners and the provider. Safe to call more
// than once.
func (t *Tracker) Destroy() {
	t.mu.Lock()
	if t.state == StateDestroyed {
		t.mu.Unlock()
		return
	}
	t.state = StateDestroyed
	t.mu.Unlock()

	t.stopOnce.Do(func() { close(t.stop) })
	t.provider.Close()
}

func (t *Tracker) active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state == StateReady || t.state == StatePlaying || t.state == StatePaused
}

// startPumpLocked consumes native heartbeats from a TickSource provider.
// Caller holds t.mu.
func (t *Tracker) startPumpLocked() {
	src, ok := t.provider.(TickSource)
	if !ok || t.pumping {
		return
	}
	t.pumping = true

	go func() {
		ticks := src.Ticks()
		for {
			select {
			case <-t.stop:
				return
			case pb, open := <-ticks:
				if !open {
					return
				}
				t.handleTick(pb)
			}
		}
	}()
}

// startPollLocked polls a PositionReader provider while playing.
// Caller holds t.mu.
func (t *Tracker) startPollLocked() {
	pr, ok := t.provider.(PositionReader)
	if !ok || t.pumping {
		return
	}
	t.pumping = true

	go func() {
		ticker := time.NewTicker(t.opts.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-t.stop:
				return
			case <-ticker.C:
				if t.State() != StatePlaying {
					continue
				}
				ctx, cancel := context.WithTimeout(context.Background(), t.opts.LoadTimeout)
				pb, err := pr.Position(ctx)
				cancel()
				if err != nil {
					continue
				}
				t.handleTick(pb)
			}
		}
	}()
}

// handleTick folds a raw position sample into the progress stream and
// fires the one-shot completion latch when the threshold is first crossed.
func (t *Tracker) handleTick(pb Playback) {
	t.mu.Lock()
	if t.state == StateDestroyed {
		t.mu.Unlock()
		return
	}

	t.last = pb
	if pb.CurrentTime > t.maxWatched {
		t.maxWatched = pb.CurrentTime
	}
	progress := t.progressLocked()

	fireCompletion := false
	if !t.completionFired && progress.CompletionPercentage >= t.opts.CompletionThreshold {
		t.completionFired = true
		fireCompletion = true
	}

	progressSubs := append([]func(Progress){}, t.onProgress...)
	completionSubs := append([]func(Progress){}, t.onCompletion...)
	t.mu.Unlock()

	for _, fn := range progressSubs {
		fn(progress)
	}
	if fireCompletion {
		for _, fn := range completionSubs {
			fn(progress)
		}
	}
}

// progressLocked computes the normalized progress. Caller holds t.mu.
func (t *Tracker) progressLocked() Progress {
	pct := 0.0
	if t.last.Duration > 0 {
		pct = t.last.CurrentTime / t.last.Duration * 100
		if pct < 0 {
			pct = 0
		}
		if pct > 100 {
			pct = 100
		}
	}
	return Progress{
		CurrentTime:          t.last.CurrentTime,
		Duration:             t.last.Duration,
		CompletionPercentage: pct,
		WatchedSeconds:       t.maxWatched,
	}
}
