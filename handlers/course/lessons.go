package course

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/lingodeck/api/model"
	"github.com/lingodeck/api/player"
	"github.com/lingodeck/api/utils/response"
	"github.com/lingodeck/api/utils/validation"
)

// CreateLessonRequest represents the request body for adding a lesson
type CreateLessonRequest struct {
	Title              string         `json:"title" validate:"required,min=3,max=255"`
	IsPreview          bool           `json:"is_preview"`
	Duration           int            `json:"duration" validate:"required,min=1"`
	VideoID            string         `json:"video_id" validate:"required,max=100"`
	VideoProvider      string         `json:"video_provider" validate:"omitempty,oneof=embed rest"`
	LearningObjectives datatypes.JSON `json:"learning_objectives"`
}

// UpdateLessonRequest represents the request body for updating a lesson
type UpdateLessonRequest struct {
	Title              string         `json:"title" validate:"omitempty,min=3,max=255"`
	IsPreview          *bool          `json:"is_preview"`
	Duration           *int           `json:"duration" validate:"omitempty,min=1"`
	VideoID            string         `json:"video_id" validate:"omitempty,max=100"`
	VideoProvider      string         `json:"video_provider" validate:"omitempty,oneof=embed rest"`
	LearningObjectives datatypes.JSON `json:"learning_objectives"`
}

// GetLesson handles GET /api/v1/courses/:courseID/lessons/:lessonID.
// Returns lesson metadata plus its order neighbours; the video itself is
// only reachable through an access-checked playback session.
func (h *CourseHandler) GetLesson(c *fiber.Ctx) error {
	courseID, err1 := strconv.ParseUint(c.Params("courseID"), 10, 32)
	lessonID, err2 := strconv.ParseUint(c.Params("lessonID"), 10, 32)
	if err1 != nil || err2 != nil {
		return response.BadRequest(c, "Invalid course or lesson ID")
	}

	lesson, err := h.directory.GetLesson(c.Context(), uint(courseID), uint(lessonID))
	if err != nil {
		return response.InternalServerError(c, "Failed to fetch lesson")
	}
	if lesson == nil {
		return response.NotFound(c, "Lesson not found")
	}

	next, _ := h.directory.GetNextLesson(c.Context(), uint(courseID), uint(lessonID))
	previous, _ := h.directory.GetPreviousLesson(c.Context(), uint(courseID), uint(lessonID))

	return response.Success(c, fiber.Map{
		"lesson":   lesson,
		"next":     next,
		"previous": previous,
	})
}

// CreateLesson handles POST /api/v1/admin/courses/:courseID/lessons.
// Lessons are appended at the end of the course so orders stay
// zero-based and contiguous; the unlock rule depends on that.
func (h *CourseHandler) CreateLesson(c *fiber.Ctx) error {
	courseID, err := strconv.ParseUint(c.Params("courseID"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid course ID")
	}

	var req CreateLessonRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	if !player.ValidVideoID(req.VideoID) {
		return response.BadRequest(c, "Video ID may only contain letters, digits, '-' and '_'")
	}

	var course model.Course
	if err := h.db.First(&course, courseID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Course not found")
		}
		return response.InternalServerError(c, "Failed to fetch course")
	}

	provider := req.VideoProvider
	if provider == "" {
		provider = "embed"
	}

	lesson := model.Lesson{
		CourseID:           course.ID,
		Title:              validation.SanitizeString(req.Title),
		IsPreview:          req.IsPreview,
		Duration:           req.Duration,
		VideoID:            req.VideoID,
		VideoProvider:      provider,
		LearningObjectives: req.LearningObjectives,
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.Lesson{}).
			Where("course_id = ?", course.ID).
			Count(&count).Error; err != nil {
			return err
		}
		lesson.Order = int(count)

		if err := tx.Create(&lesson).Error; err != nil {
			return err
		}

		return tx.Model(&course).
			UpdateColumn("total_duration", gorm.Expr("total_duration + ?", req.Duration)).Error
	})
	if err != nil {
		return response.InternalServerError(c, "Failed to create lesson")
	}

	h.directory.InvalidateCourse(course.ID)

	return response.Created(c, lesson)
}

// UpdateLesson handles PUT /api/v1/admin/courses/:courseID/lessons/:lessonID.
// Order is not editable here; reordering would need a dedicated endpoint
// that rewrites the whole sequence.
func (h *CourseHandler) UpdateLesson(c *fiber.Ctx) error {
	courseID, err1 := strconv.ParseUint(c.Params("courseID"), 10, 32)
	lessonID, err2 := strconv.ParseUint(c.Params("lessonID"), 10, 32)
	if err1 != nil || err2 != nil {
		return response.BadRequest(c, "Invalid course or lesson ID")
	}

	var req UpdateLessonRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	var lesson model.Lesson
	if err := h.db.
		Where("course_id = ?", courseID).
		First(&lesson, lessonID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Lesson not found")
		}
		return response.InternalServerError(c, "Failed to fetch lesson")
	}

	durationDelta := 0

	if req.Title != "" {
		lesson.Title = validation.SanitizeString(req.Title)
	}
	if req.IsPreview != nil {
		lesson.IsPreview = *req.IsPreview
	}
	if req.Duration != nil {
		durationDelta = *req.Duration - lesson.Duration
		lesson.Duration = *req.Duration
	}
	if req.VideoID != "" {
		if !player.ValidVideoID(req.VideoID) {
			return response.BadRequest(c, "Video ID may only contain letters, digits, '-' and '_'")
		}
		lesson.VideoID = req.VideoID
	}
	if req.VideoProvider != "" {
		lesson.VideoProvider = req.VideoProvider
	}
	if len(req.LearningObjectives) > 0 {
		lesson.LearningObjectives = req.LearningObjectives
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(&lesson).Error; err != nil {
			return err
		}
		if durationDelta != 0 {
			return tx.Model(&model.Course{}).
				Where("id = ?", lesson.CourseID).
				UpdateColumn("total_duration", gorm.Expr("total_duration + ?", durationDelta)).Error
		}
		return nil
	})
	if err != nil {
		return response.InternalServerError(c, "Failed to update lesson")
	}

	h.directory.InvalidateCourse(lesson.CourseID)

	return response.SuccessWithMessage(c, "Lesson updated successfully", lesson)
}
