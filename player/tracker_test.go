package player

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider is a scripted binding driven directly by tests. It pushes
// ticks like the embed binding does.
type fakeProvider struct {
	mu        sync.Mutex
	loadErrs  []error // popped per Load call; nil entry means success
	loadCalls int
	closed    bool

	ticks chan Playback
}

func newFakeProvider(loadErrs ...error) *fakeProvider {
	return &fakeProvider{
		loadErrs: loadErrs,
		ticks:    make(chan Playback, 16),
	}
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Load(ctx context.Context, videoID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loadCalls++
	if len(f.loadErrs) == 0 {
		return nil
	}
	err := f.loadErrs[0]
	f.loadErrs = f.loadErrs[1:]
	return err
}

func (f *fakeProvider) Play(ctx context.Context) error                   { return nil }
func (f *fakeProvider) Pause(ctx context.Context) error                  { return nil }
func (f *fakeProvider) Seek(ctx context.Context, _ float64) error        { return nil }
func (f *fakeProvider) SetVolume(ctx context.Context, _ float64) error   { return nil }
func (f *fakeProvider) SetPlaybackRate(ctx context.Context, _ float64) error {
	return nil
}

func (f *fakeProvider) Ticks() <-chan Playback { return f.ticks }

func (f *fakeProvider) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeProvider) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loadCalls
}

// waitFor polls until the condition holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestTrackerInitializeHappyPath(t *testing.T) {
	tracker := NewTracker(newFakeProvider(), Options{})

	require.NoError(t, tracker.Initialize(context.Background(), "abc-123"))
	assert.Equal(t, StateReady, tracker.State())
}

func TestTrackerRejectsMalformedVideoID(t *testing.T) {
	tracker := NewTracker(newFakeProvider(), Options{})

	err := tracker.Initialize(context.Background(), "abc/../evil")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedVideoID)

	// A rejected id never reaches the provider
	assert.Equal(t, StateUninitialized, tracker.State())
}

func TestTrackerRetriesTransientLoadFailures(t *testing.T) {
	transient := errors.New("timeout")
	provider := newFakeProvider(transient, transient, nil)
	tracker := NewTracker(provider, Options{LoadRetries: 3})

	require.NoError(t, tracker.Initialize(context.Background(), "abc"))
	assert.Equal(t, 3, provider.calls())
	assert.Equal(t, StateReady, tracker.State())
}

func TestTrackerExhaustsRetryBudget(t *testing.T) {
	transient := errors.New("timeout")
	provider := newFakeProvider(transient, transient, transient)
	tracker := NewTracker(provider, Options{LoadRetries: 3})

	err := tracker.Initialize(context.Background(), "abc")
	require.Error(t, err)

	var initErr *InitError
	require.ErrorAs(t, err, &initErr)
	assert.Equal(t, 3, initErr.Attempts)
	assert.Equal(t, StateError, tracker.State())
}

func TestTrackerDoesNotRetryProviderDenials(t *testing.T) {
	denial := &ProviderError{Provider: "fake", Category: CategoryPrivateVideo, Message: "private"}
	provider := newFakeProvider(denial)
	tracker := NewTracker(provider, Options{LoadRetries: 3})

	err := tracker.Initialize(context.Background(), "abc")
	require.Error(t, err)

	// A private video will stay private; one attempt only
	assert.Equal(t, 1, provider.calls())

	var provErr *ProviderError
	assert.ErrorAs(t, err, &provErr)
	assert.Equal(t, StateError, tracker.State())
}

func TestTrackerRetryRecoversFromError(t *testing.T) {
	transient := errors.New("timeout")
	provider := newFakeProvider(transient, transient, transient, nil)
	tracker := NewTracker(provider, Options{LoadRetries: 3})

	require.Error(t, tracker.Initialize(context.Background(), "abc"))
	require.Equal(t, StateError, tracker.State())

	require.NoError(t, tracker.Retry(context.Background()))
	assert.Equal(t, StateReady, tracker.State())
}

func TestTrackerRetryRequiresErrorState(t *testing.T) {
	tracker := NewTracker(newFakeProvider(), Options{})
	require.NoError(t, tracker.Initialize(context.Background(), "abc"))

	assert.ErrorIs(t, tracker.Retry(context.Background()), ErrInvalidState)
}

func TestTrackerCompletionFiresExactlyOnce(t *testing.T) {
	provider := newFakeProvider()
	tracker := NewTracker(provider, Options{CompletionThreshold: 80})

	var mu sync.Mutex
	completions := 0
	var progressSamples []Progress

	tracker.OnProgress(func(p Progress) {
		mu.Lock()
		progressSamples = append(progressSamples, p)
		mu.Unlock()
	})
	tracker.OnCompletion(func(p Progress) {
		mu.Lock()
		completions++
		mu.Unlock()
	})

	require.NoError(t, tracker.Initialize(context.Background(), "abc"))

	// Cross the threshold, then keep watching: completion stays one-shot
	provider.ticks <- Playback{CurrentTime: 100, Duration: 300}
	provider.ticks <- Playback{CurrentTime: 250, Duration: 300}
	provider.ticks <- Playback{CurrentTime: 280, Duration: 300}
	provider.ticks <- Playback{CurrentTime: 300, Duration: 300}

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(progressSamples) == 4
	})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, completions)
}

func TestTrackerCompletionSurvivesSeekBack(t *testing.T) {
	provider := newFakeProvider()
	tracker := NewTracker(provider, Options{CompletionThreshold: 80})

	var mu sync.Mutex
	completions := 0
	samples := 0
	tracker.OnCompletion(func(Progress) {
		mu.Lock()
		completions++
		mu.Unlock()
	})
	tracker.OnProgress(func(Progress) {
		mu.Lock()
		samples++
		mu.Unlock()
	})

	require.NoError(t, tracker.Initialize(context.Background(), "abc"))

	provider.ticks <- Playback{CurrentTime: 290, Duration: 300}
	// Seeking back below the threshold must not rearm the latch
	provider.ticks <- Playback{CurrentTime: 10, Duration: 300}
	provider.ticks <- Playback{CurrentTime: 290, Duration: 300}

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return samples == 3
	})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, completions)
}

func TestTrackerTracksMaxWatched(t *testing.T) {
	provider := newFakeProvider()
	tracker := NewTracker(provider, Options{})

	var mu sync.Mutex
	samples := 0
	tracker.OnProgress(func(Progress) {
		mu.Lock()
		samples++
		mu.Unlock()
	})

	require.NoError(t, tracker.Initialize(context.Background(), "abc"))

	provider.ticks <- Playback{CurrentTime: 200, Duration: 300}
	provider.ticks <- Playback{CurrentTime: 50, Duration: 300}

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return samples == 2
	})

	snapshot := tracker.Snapshot()
	assert.Equal(t, 50.0, snapshot.CurrentTime)
	assert.Equal(t, 200.0, snapshot.WatchedSeconds)
}

func TestTrackerDestroyIsIdempotent(t *testing.T) {
	provider := newFakeProvider()
	tracker := NewTracker(provider, Options{})
	require.NoError(t, tracker.Initialize(context.Background(), "abc"))

	tracker.Destroy()
	tracker.Destroy()

	assert.Equal(t, StateDestroyed, tracker.State())
	assert.True(t, provider.closed)

	// No operation works after destroy
	assert.ErrorIs(t, tracker.Initialize(context.Background(), "abc"), ErrDestroyed)
	assert.ErrorIs(t, tracker.Play(context.Background()), ErrInvalidState)
}

func TestTrackerPlayPauseStateMachine(t *testing.T) {
	provider := newFakeProvider()
	tracker := NewTracker(provider, Options{})

	// Transport controls require a live player
	assert.ErrorIs(t, tracker.Play(context.Background()), ErrInvalidState)
	assert.ErrorIs(t, tracker.Seek(context.Background(), 10), ErrInvalidState)

	require.NoError(t, tracker.Initialize(context.Background(), "abc"))

	assert.ErrorIs(t, tracker.Pause(context.Background()), ErrInvalidState)

	require.NoError(t, tracker.Play(context.Background()))
	assert.Equal(t, StatePlaying, tracker.State())

	require.NoError(t, tracker.Pause(context.Background()))
	assert.Equal(t, StatePaused, tracker.State())

	require.NoError(t, tracker.Play(context.Background()))
	assert.Equal(t, StatePlaying, tracker.State())
}

func TestEmbedProviderDropsOldestWhenSaturated(t *testing.T) {
	provider := NewEmbedProvider()
	require.NoError(t, provider.Load(context.Background(), "abc"))

	for i := 0; i < embedTickBuffer+5; i++ {
		assert.True(t, provider.Feed(Playback{CurrentTime: float64(i), Duration: 100}))
	}

	// The stream stayed fresh: the newest sample is still there
	var last Playback
	for {
		select {
		case pb := <-provider.Ticks():
			last = pb
			continue
		default:
		}
		break
	}
	assert.Equal(t, float64(embedTickBuffer+4), last.CurrentTime)
}

func TestEmbedProviderRejectsFeedBeforeLoadAndAfterClose(t *testing.T) {
	provider := NewEmbedProvider()

	assert.False(t, provider.Feed(Playback{CurrentTime: 1, Duration: 100}))

	require.NoError(t, provider.Load(context.Background(), "abc"))
	assert.True(t, provider.Feed(Playback{CurrentTime: 1, Duration: 100}))

	require.NoError(t, provider.Close())
	require.NoError(t, provider.Close())
	assert.False(t, provider.Feed(Playback{CurrentTime: 2, Duration: 100}))
}
