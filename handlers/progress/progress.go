package progress

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/lingodeck/api/services"
	"github.com/lingodeck/api/utils/middleware"
	"github.com/lingodeck/api/utils/response"
	"github.com/lingodeck/api/utils/validation"
)

// ProgressHandler handles watch-progress requests
type ProgressHandler struct {
	progress  *services.ProgressService
	access    *services.AccessService
	validator *validation.Validator
}

// NewProgressHandler creates a new progress handler
func NewProgressHandler(progress *services.ProgressService, access *services.AccessService) *ProgressHandler {
	return &ProgressHandler{
		progress:  progress,
		access:    access,
		validator: validation.NewValidator(),
	}
}

// SaveProgressRequest represents a progress heartbeat from the client
type SaveProgressRequest struct {
	WatchedSeconds float64 `json:"watched_seconds" validate:"min=0"`
	TotalSeconds   float64 `json:"total_seconds" validate:"required,gt=0"`
}

func parseCourseLesson(c *fiber.Ctx) (uint, uint, error) {
	courseID, err1 := strconv.ParseUint(c.Params("courseID"), 10, 32)
	lessonID, err2 := strconv.ParseUint(c.Params("lessonID"), 10, 32)
	if err1 != nil || err2 != nil {
		return 0, 0, fiber.ErrBadRequest
	}
	return uint(courseID), uint(lessonID), nil
}

// SaveProgress handles PUT /api/v1/courses/:courseID/lessons/:lessonID/progress.
// Derived fields are recomputed server-side; the client only reports raw
// watched and total seconds. A storage failure queues the update instead
// of failing the request.
func (h *ProgressHandler) SaveProgress(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	courseID, lessonID, err := parseCourseLesson(c)
	if err != nil {
		return response.BadRequest(c, "Invalid course or lesson ID")
	}

	var req SaveProgressRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	// Progress writes go through the same gate as playback
	result := h.access.CheckLessonAccess(c.Context(), &userID, courseID, lessonID)
	if !result.HasAccess {
		return response.ErrorWithDetails(c, fiber.StatusForbidden,
			"Access denied", "ACCESS_DENIED", services.PresentDenial(result))
	}

	snapshot := h.progress.SaveProgress(c.Context(),
		userID, courseID, lessonID, req.WatchedSeconds, req.TotalSeconds)

	return response.Success(c, snapshot)
}

// GetLessonProgress handles GET /api/v1/courses/:courseID/lessons/:lessonID/progress
func (h *ProgressHandler) GetLessonProgress(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	courseID, lessonID, err := parseCourseLesson(c)
	if err != nil {
		return response.BadRequest(c, "Invalid course or lesson ID")
	}

	progress, err := h.progress.GetProgress(c.Context(), userID, courseID, lessonID)
	if err != nil {
		return response.InternalServerError(c, "Failed to fetch progress")
	}
	if progress == nil {
		return response.NotFound(c, "No progress recorded for this lesson")
	}

	return response.Success(c, progress)
}

// GetCourseProgress handles GET /api/v1/courses/:courseID/progress
func (h *ProgressHandler) GetCourseProgress(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	courseID, err := strconv.ParseUint(c.Params("courseID"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid course ID")
	}

	progress, err := h.progress.CourseProgress(c.Context(), userID, uint(courseID))
	if err != nil {
		return response.InternalServerError(c, "Failed to fetch course progress")
	}
	if progress == nil {
		return response.NotFound(c, "Course not found")
	}

	return response.Success(c, progress)
}

// SyncPending handles POST /api/v1/progress/sync. Flushes the caller's
// queued offline updates; safe to call repeatedly.
func (h *ProgressHandler) SyncPending(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	report, err := h.progress.SyncPending(c.Context(), userID)
	if err != nil {
		return response.InternalServerError(c, "Failed to sync pending progress")
	}

	return response.Success(c, report)
}
