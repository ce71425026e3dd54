package course

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/lingodeck/api/model"
	"github.com/lingodeck/api/services"
	"github.com/lingodeck/api/utils/response"
	"github.com/lingodeck/api/utils/validation"
)

// CourseHandler handles course catalog requests
type CourseHandler struct {
	db        *gorm.DB
	directory *services.DirectoryService
	validator *validation.Validator
}

// NewCourseHandler creates a new course handler
func NewCourseHandler(db *gorm.DB, directory *services.DirectoryService) *CourseHandler {
	return &CourseHandler{
		db:        db,
		directory: directory,
		validator: validation.NewValidator(),
	}
}

// CreateCourseRequest represents the request body for creating a course
type CreateCourseRequest struct {
	Title               string  `json:"title" validate:"required,min=3,max=255"`
	Language            string  `json:"language" validate:"required,min=2,max=10"`
	Level               string  `json:"level" validate:"omitempty,max=10"`
	Description         string  `json:"description" validate:"omitempty,max=2000"`
	Price               float64 `json:"price" validate:"omitempty,min=0"`
	CompletionThreshold int     `json:"completion_threshold" validate:"omitempty,min=1,max=100"`
	UnlockSequential    *bool   `json:"unlock_sequential"`
}

// UpdateCourseRequest represents the request body for updating a course
type UpdateCourseRequest struct {
	Title               string   `json:"title" validate:"omitempty,min=3,max=255"`
	Level               string   `json:"level" validate:"omitempty,max=10"`
	Description         string   `json:"description" validate:"omitempty,max=2000"`
	Price               *float64 `json:"price" validate:"omitempty,min=0"`
	CompletionThreshold *int     `json:"completion_threshold" validate:"omitempty,min=1,max=100"`
	UnlockSequential    *bool    `json:"unlock_sequential"`
}

// ListCourses handles GET /api/v1/courses
func (h *CourseHandler) ListCourses(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "10"))
	search := c.Query("search", "")
	language := c.Query("language", "")
	level := c.Query("level", "")

	query := h.db.Model(&model.Course{})

	if search != "" {
		query = query.Where("title ILIKE ? OR description ILIKE ?",
			"%"+search+"%", "%"+search+"%")
	}
	if language != "" {
		query = query.Where("language = ?", language)
	}
	if level != "" {
		query = query.Where("level = ?", level)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return response.InternalServerError(c, "Failed to count courses")
	}

	offset := (page - 1) * limit
	pagination := response.CalculatePagination(page, limit, total)

	var courses []model.Course
	if err := query.
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&courses).Error; err != nil {
		return response.InternalServerError(c, "Failed to fetch courses")
	}

	return response.Paginated(c, courses, pagination)
}

// GetCourse handles GET /api/v1/courses/:courseID. Served through the
// directory cache, lessons ordered by position.
func (h *CourseHandler) GetCourse(c *fiber.Ctx) error {
	courseID, err := strconv.ParseUint(c.Params("courseID"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid course ID")
	}

	course, err := h.directory.GetCourse(c.Context(), uint(courseID))
	if err != nil {
		return response.InternalServerError(c, "Failed to fetch course")
	}
	if course == nil {
		return response.NotFound(c, "Course not found")
	}

	return response.Success(c, course)
}

// CreateCourse handles POST /api/v1/admin/courses
func (h *CourseHandler) CreateCourse(c *fiber.Ctx) error {
	var req CreateCourseRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	course := model.Course{
		Title:               validation.SanitizeString(req.Title),
		Language:            req.Language,
		Level:               req.Level,
		Description:         validation.SanitizeString(req.Description),
		Price:               req.Price,
		CompletionThreshold: req.CompletionThreshold,
		UnlockSequential:    true,
	}
	if course.CompletionThreshold == 0 {
		course.CompletionThreshold = model.DefaultCompletionThreshold
	}
	if req.UnlockSequential != nil {
		course.UnlockSequential = *req.UnlockSequential
	}

	if err := h.db.Create(&course).Error; err != nil {
		return response.InternalServerError(c, "Failed to create course")
	}

	return response.Created(c, course)
}

// UpdateCourse handles PUT /api/v1/admin/courses/:courseID
func (h *CourseHandler) UpdateCourse(c *fiber.Ctx) error {
	courseID := c.Params("courseID")

	var req UpdateCourseRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	var course model.Course
	if err := h.db.First(&course, courseID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Course not found")
		}
		return response.InternalServerError(c, "Failed to fetch course")
	}

	if req.Title != "" {
		course.Title = validation.SanitizeString(req.Title)
	}
	if req.Level != "" {
		course.Level = req.Level
	}
	if req.Description != "" {
		course.Description = validation.SanitizeString(req.Description)
	}
	if req.Price != nil {
		course.Price = *req.Price
	}
	if req.CompletionThreshold != nil {
		course.CompletionThreshold = *req.CompletionThreshold
	}
	if req.UnlockSequential != nil {
		course.UnlockSequential = *req.UnlockSequential
	}

	if err := h.db.Save(&course).Error; err != nil {
		return response.InternalServerError(c, "Failed to update course")
	}

	// Cached copies are stale from this point
	h.directory.InvalidateCourse(course.ID)

	return response.SuccessWithMessage(c, "Course updated successfully", course)
}
