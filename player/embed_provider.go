package player

import (
	"context"
	"sync"
)

// EmbedProvider binds to an embedded web player whose native timeupdate
// callbacks arrive as heartbeats over HTTP. Each heartbeat is forwarded
// to the tracker through the Ticks channel; no polling is involved.
type EmbedProvider struct {
	ticks     chan Playback
	closeOnce sync.Once

	mu     sync.Mutex
	loaded bool
}

// heartbeat buffer: the web player emits frequently; slow consumers drop
// the oldest sample rather than blocking the HTTP handler.
const embedTickBuffer = 16

// NewEmbedProvider creates an event-driven binding.
func NewEmbedProvider() *EmbedProvider {
	return &EmbedProvider{
		ticks: make(chan Playback, embedTickBuffer),
	}
}

func (p *EmbedProvider) Name() string { return "embed" }

// Load attaches to the embedded player. There is nothing to fetch; the
// web player loads client-side and starts pushing heartbeats.
func (p *EmbedProvider) Load(ctx context.Context, videoID string) error {
	p.mu.Lock()
	p.loaded = true
	p.mu.Unlock()
	return nil
}

// Feed ingests one native timeupdate heartbeat. Returns false once the
// provider is closed or if the heartbeat was dropped.
func (p *EmbedProvider) Feed(pb Playback) bool {
	p.mu.Lock()
	if !p.loaded {
		p.mu.Unlock()
		return false
	}
	p.mu.Unlock()

	select {
	case p.ticks <- pb:
		return true
	default:
		// Buffer full: drop the oldest sample to keep the stream fresh.
		select {
		case <-p.ticks:
		default:
		}
		select {
		case p.ticks <- pb:
			return true
		default:
			return false
		}
	}
}

// Ticks returns the heartbeat stream.
func (p *EmbedProvider) Ticks() <-chan Playback {
	return p.ticks
}

// Transport controls execute client-side in the embedded player; the
// server binding only validates that the session is live.

func (p *EmbedProvider) Play(ctx context.Context) error            { return p.ensureLoaded() }
func (p *EmbedProvider) Pause(ctx context.Context) error           { return p.ensureLoaded() }
func (p *EmbedProvider) Seek(ctx context.Context, _ float64) error { return p.ensureLoaded() }
func (p *EmbedProvider) SetVolume(ctx context.Context, _ float64) error {
	return p.ensureLoaded()
}
func (p *EmbedProvider) SetPlaybackRate(ctx context.Context, _ float64) error {
	return p.ensureLoaded()
}

func (p *EmbedProvider) ensureLoaded() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.loaded {
		return ErrInvalidState
	}
	return nil
}

// Close shuts the heartbeat stream. Idempotent.
func (p *EmbedProvider) Close() error {
	p.mu.Lock()
	p.loaded = false
	p.mu.Unlock()

	p.closeOnce.Do(func() { close(p.ticks) })
	return nil
}
