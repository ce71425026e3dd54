package access

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/lingodeck/api/model"
	"github.com/lingodeck/api/services"
	"github.com/lingodeck/api/utils/middleware"
	"github.com/lingodeck/api/utils/response"
)

// AccessHandler exposes the access gate to clients. Every endpoint runs
// under optional auth; anonymous requests are checked as such rather
// than rejected at the door, so previews work without an account.
type AccessHandler struct {
	access *services.AccessService
}

// NewAccessHandler creates a new access handler
func NewAccessHandler(access *services.AccessService) *AccessHandler {
	return &AccessHandler{access: access}
}

func currentUser(c *fiber.Ctx) *uint {
	if id, ok := middleware.GetUserID(c); ok {
		return &id
	}
	return nil
}

func verdict(c *fiber.Ctx, result model.AccessCheckResult) error {
	if result.HasAccess {
		return response.Success(c, fiber.Map{"result": result})
	}
	return response.Success(c, fiber.Map{
		"result": result,
		"denied": services.PresentDenial(result),
	})
}

// CheckCourse handles GET /api/v1/access/courses/:courseID
func (h *AccessHandler) CheckCourse(c *fiber.Ctx) error {
	courseID, err := strconv.ParseUint(c.Params("courseID"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid course ID")
	}

	result := h.access.CheckCourseAccess(c.Context(), currentUser(c), uint(courseID))
	return verdict(c, result)
}

// CheckLesson handles GET /api/v1/access/courses/:courseID/lessons/:lessonID
func (h *AccessHandler) CheckLesson(c *fiber.Ctx) error {
	courseID, err1 := strconv.ParseUint(c.Params("courseID"), 10, 32)
	lessonID, err2 := strconv.ParseUint(c.Params("lessonID"), 10, 32)
	if err1 != nil || err2 != nil {
		return response.BadRequest(c, "Invalid course or lesson ID")
	}

	result := h.access.CheckLessonAccess(c.Context(), currentUser(c), uint(courseID), uint(lessonID))
	return verdict(c, result)
}

// AccessibleLessons handles GET /api/v1/access/courses/:courseID/lessons.
// Returns the lessons the caller may open right now, in course order.
func (h *AccessHandler) AccessibleLessons(c *fiber.Ctx) error {
	courseID, err := strconv.ParseUint(c.Params("courseID"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid course ID")
	}

	lessons, err := h.access.GetAccessibleLessons(c.Context(), currentUser(c), uint(courseID))
	if err != nil {
		if errors.Is(err, services.ErrCourseNotFound) {
			return response.NotFound(c, "Course not found")
		}
		return response.InternalServerError(c, "Failed to resolve accessible lessons")
	}

	return response.Success(c, fiber.Map{
		"course_id": uint(courseID),
		"lessons":   lessons,
	})
}

// EnrollmentStatus handles GET /api/v1/access/courses/:courseID/enrollment
func (h *AccessHandler) EnrollmentStatus(c *fiber.Ctx) error {
	courseID, err := strconv.ParseUint(c.Params("courseID"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid course ID")
	}

	status, err := h.access.GetUserEnrollmentStatus(c.Context(), currentUser(c), uint(courseID))
	if err != nil {
		return response.InternalServerError(c, "Failed to resolve enrollment status")
	}

	return response.Success(c, status)
}
