package player

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
)

// RESTProvider binds to a video host that exposes playback sessions over
// a REST API. Position is not pushed; the tracker polls it on a timer.
type RESTProvider struct {
	client  *resty.Client
	videoID string
}

// restError is the error envelope returned by the playback API.
type restError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type restVideo struct {
	ID       string  `json:"id"`
	Duration float64 `json:"duration"`
	Status   string  `json:"status"`
}

type restPlayback struct {
	CurrentTime float64 `json:"current_time"`
	Duration    float64 `json:"duration"`
}

// NewRESTProvider creates a binding against the given playback API.
func NewRESTProvider(baseURL, apiKey string) *RESTProvider {
	client := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Accept", "application/json").
		SetAuthToken(apiKey)

	return &RESTProvider{client: client}
}

func (p *RESTProvider) Name() string { return "rest" }

// Load opens a playback session for the video. Host-side denials are
// mapped to typed provider errors so the UI can present the category.
func (p *RESTProvider) Load(ctx context.Context, videoID string) error {
	var video restVideo
	var apiErr restError

	resp, err := p.client.R().
		SetContext(ctx).
		SetResult(&video).
		SetError(&apiErr).
		Get(fmt.Sprintf("/v1/videos/%s", videoID))
	if err != nil {
		return err
	}

	if resp.IsError() {
		return p.mapError(resp.StatusCode(), apiErr)
	}

	p.videoID = videoID
	return nil
}

// Position reads the current playback position.
func (p *RESTProvider) Position(ctx context.Context) (Playback, error) {
	var pb restPlayback
	var apiErr restError

	resp, err := p.client.R().
		SetContext(ctx).
		SetResult(&pb).
		SetError(&apiErr).
		Get(fmt.Sprintf("/v1/videos/%s/playback", p.videoID))
	if err != nil {
		return Playback{}, err
	}
	if resp.IsError() {
		return Playback{}, p.mapError(resp.StatusCode(), apiErr)
	}

	return Playback{CurrentTime: pb.CurrentTime, Duration: pb.Duration}, nil
}

func (p *RESTProvider) control(ctx context.Context, action string, value float64) error {
	var apiErr restError

	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(map[string]interface{}{"action": action, "value": value}).
		SetError(&apiErr).
		Post(fmt.Sprintf("/v1/videos/%s/control", p.videoID))
	if err != nil {
		return err
	}
	if resp.IsError() {
		return p.mapError(resp.StatusCode(), apiErr)
	}
	return nil
}

func (p *RESTProvider) Play(ctx context.Context) error {
	return p.control(ctx, "play", 0)
}

func (p *RESTProvider) Pause(ctx context.Context) error {
	return p.control(ctx, "pause", 0)
}

func (p *RESTProvider) Seek(ctx context.Context, seconds float64) error {
	return p.control(ctx, "seek", seconds)
}

func (p *RESTProvider) SetVolume(ctx context.Context, volume float64) error {
	return p.control(ctx, "volume", volume)
}

func (p *RESTProvider) SetPlaybackRate(ctx context.Context, rate float64) error {
	return p.control(ctx, "rate", rate)
}

func (p *RESTProvider) Close() error {
	return nil
}

// mapError converts API error codes into typed provider errors.
func (p *RESTProvider) mapError(status int, apiErr restError) error {
	category := CategoryUnavailable
	switch apiErr.Code {
	case "private":
		category = CategoryPrivateVideo
	case "region_locked":
		category = CategoryRegionLocked
	case "password_required":
		category = CategoryPasswordProtected
	case "not_found":
		category = CategoryVideoNotFound
	default:
		if status == 404 {
			category = CategoryVideoNotFound
		}
	}

	msg := apiErr.Message
	if msg == "" {
		msg = fmt.Sprintf("playback API returned status %d", status)
	}
	return &ProviderError{Provider: p.Name(), Category: category, Message: msg}
}
