package playback

import (
	"bufio"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/lingodeck/api/player"
	"github.com/lingodeck/api/services"
	"github.com/lingodeck/api/utils/middleware"
	"github.com/lingodeck/api/utils/response"
	"github.com/lingodeck/api/utils/sse"
	"github.com/lingodeck/api/utils/validation"
)

// PlaybackHandler handles live playback session requests
type PlaybackHandler struct {
	playback  *services.PlaybackService
	access    *services.AccessService
	validator *validation.Validator
}

// NewPlaybackHandler creates a new playback handler
func NewPlaybackHandler(playback *services.PlaybackService, access *services.AccessService) *PlaybackHandler {
	return &PlaybackHandler{
		playback:  playback,
		access:    access,
		validator: validation.NewValidator(),
	}
}

// CreateSessionRequest represents the request body for opening a session
type CreateSessionRequest struct {
	CourseID uint `json:"course_id" validate:"required,min=1"`
	LessonID uint `json:"lesson_id" validate:"required,min=1"`
}

// EventRequest is a playback heartbeat from an embedded client player
type EventRequest struct {
	CurrentTime float64 `json:"current_time" validate:"min=0"`
	Duration    float64 `json:"duration" validate:"required,gt=0"`
}

// ControlRequest represents a transport control command
type ControlRequest struct {
	Action string  `json:"action" validate:"required,oneof=play pause seek volume rate retry"`
	Value  float64 `json:"value"`
}

// SessionResponse describes a session to the client
type SessionResponse struct {
	ID       string          `json:"id"`
	CourseID uint            `json:"course_id"`
	LessonID uint            `json:"lesson_id"`
	Provider string          `json:"provider"`
	State    string          `json:"state"`
	Progress player.Progress `json:"progress"`
}

func toSessionResponse(s *services.PlaybackSession) SessionResponse {
	return SessionResponse{
		ID:       s.ID,
		CourseID: s.CourseID,
		LessonID: s.LessonID,
		Provider: s.Provider,
		State:    s.State().String(),
		Progress: s.Snapshot(),
	}
}

// CreateSession handles POST /api/v1/playback/sessions. The lesson must
// pass the access gate before any player state is created.
func (h *PlaybackHandler) CreateSession(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	var req CreateSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	result := h.access.CheckLessonAccess(c.Context(), &userID, req.CourseID, req.LessonID)
	if !result.HasAccess {
		return response.ErrorWithDetails(c, fiber.StatusForbidden,
			"Access denied", "ACCESS_DENIED", services.PresentDenial(result))
	}

	session, err := h.playback.CreateSession(c.Context(), userID, req.CourseID, req.LessonID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrCourseNotFound),
			errors.Is(err, services.ErrLessonNotFound):
			return response.NotFound(c, "Lesson not found")
		case errors.Is(err, player.ErrMalformedVideoID):
			return response.BadRequest(c, "Lesson has a malformed video ID")
		}
		var provErr *player.ProviderError
		if errors.As(err, &provErr) {
			return response.ErrorWithDetails(c, fiber.StatusBadGateway,
				provErr.Category.Human(), "VIDEO_UNAVAILABLE", fiber.Map{
					"provider": provErr.Provider,
					"category": provErr.Category,
				})
		}
		var initErr *player.InitError
		if errors.As(err, &initErr) {
			return response.ErrorWithDetails(c, fiber.StatusBadGateway,
				"Video failed to load", "VIDEO_LOAD_FAILED", fiber.Map{
					"provider": initErr.Provider,
					"attempts": initErr.Attempts,
				})
		}
		return response.InternalServerError(c, "Failed to create playback session")
	}

	return response.Created(c, toSessionResponse(session))
}

// GetSession handles GET /api/v1/playback/sessions/:sessionID
func (h *PlaybackHandler) GetSession(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	session, err := h.playback.Get(c.Params("sessionID"), userID)
	if err != nil {
		return h.sessionError(c, err)
	}

	return response.Success(c, toSessionResponse(session))
}

// Event handles POST /api/v1/playback/sessions/:sessionID/events
func (h *PlaybackHandler) Event(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	var req EventRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	err := h.playback.Feed(c.Params("sessionID"), userID, player.Playback{
		CurrentTime: req.CurrentTime,
		Duration:    req.Duration,
	})
	if err != nil {
		if errors.Is(err, services.ErrNotEmbedSession) {
			return response.BadRequest(c, "This session tracks position server-side")
		}
		return h.sessionError(c, err)
	}

	return response.Success(c, nil)
}

// Control handles POST /api/v1/playback/sessions/:sessionID/control
func (h *PlaybackHandler) Control(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	var req ControlRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	sessionID := c.Params("sessionID")
	if err := h.playback.Control(c.Context(), sessionID, userID, req.Action, req.Value); err != nil {
		switch {
		case errors.Is(err, player.ErrInvalidState):
			return response.Conflict(c, "Session is not in a state that allows this action")
		case errors.Is(err, player.ErrDestroyed):
			return response.Conflict(c, "Session has been destroyed")
		}
		return h.sessionError(c, err)
	}

	session, err := h.playback.Get(sessionID, userID)
	if err != nil {
		return h.sessionError(c, err)
	}

	return response.Success(c, toSessionResponse(session))
}

// Stream handles GET /api/v1/playback/sessions/:sessionID/stream as SSE.
// Emits progress and completion events as the tracker observes them.
func (h *PlaybackHandler) Stream(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	session, err := h.playback.Get(c.Params("sessionID"), userID)
	if err != nil {
		return h.sessionError(c, err)
	}

	events, cancel := session.Subscribe()

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer cancel()

		// Current snapshot first so the client can render immediately
		if err := sse.SendProgress(w, session.Snapshot()); err != nil {
			return
		}

		keepAlive := time.NewTicker(15 * time.Second)
		defer keepAlive.Stop()

		for {
			select {
			case event, open := <-events:
				if !open {
					return
				}
				var err error
				if event.Type == "completion" {
					err = sse.SendCompletion(w, event.Progress)
				} else {
					err = sse.SendProgress(w, event.Progress)
				}
				if err != nil {
					return
				}
			case <-keepAlive.C:
				if err := sse.SendKeepAlive(w); err != nil {
					return
				}
			}
		}
	})

	return nil
}

// DestroySession handles DELETE /api/v1/playback/sessions/:sessionID
func (h *PlaybackHandler) DestroySession(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	if err := h.playback.Destroy(c.Params("sessionID"), userID); err != nil {
		return h.sessionError(c, err)
	}

	return response.SuccessWithMessage(c, "Session destroyed", nil)
}

func (h *PlaybackHandler) sessionError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrSessionNotFound):
		return response.NotFound(c, "Playback session not found")
	case errors.Is(err, services.ErrSessionForbidden):
		return response.Forbidden(c, "Session belongs to another user")
	}
	return response.InternalServerError(c, "Playback session error")
}
