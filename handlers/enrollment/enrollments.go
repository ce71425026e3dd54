package enrollment

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/lingodeck/api/services"
	"github.com/lingodeck/api/utils/middleware"
	"github.com/lingodeck/api/utils/response"
)

// EnrollmentHandler handles enrollment lifecycle requests
type EnrollmentHandler struct {
	enrollments *services.EnrollmentService
	access      *services.AccessService
}

// NewEnrollmentHandler creates a new enrollment handler
func NewEnrollmentHandler(enrollments *services.EnrollmentService, access *services.AccessService) *EnrollmentHandler {
	return &EnrollmentHandler{
		enrollments: enrollments,
		access:      access,
	}
}

// EnrollRequest represents the request body for enrolling in a course
type EnrollRequest struct {
	PaymentID *string `json:"payment_id"`
}

// Enroll handles POST /api/v1/courses/:courseID/enroll
func (h *EnrollmentHandler) Enroll(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	courseID, err := strconv.ParseUint(c.Params("courseID"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid course ID")
	}

	var req EnrollRequest
	// Body is optional for free courses
	_ = c.BodyParser(&req)

	enrollment, err := h.enrollments.Enroll(c.Context(), userID, uint(courseID), req.PaymentID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrCourseNotFound):
			return response.NotFound(c, "Course not found")
		case errors.Is(err, services.ErrAlreadyEnrolled):
			return response.Conflict(c, "Already enrolled in this course")
		}
		return response.InternalServerError(c, "Failed to enroll")
	}

	return response.Created(c, enrollment)
}

// ListMine handles GET /api/v1/enrollments
func (h *EnrollmentHandler) ListMine(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	enrollments, err := h.enrollments.ListForUser(c.Context(), userID)
	if err != nil {
		return response.InternalServerError(c, "Failed to fetch enrollments")
	}

	return response.Success(c, enrollments)
}

// EnrollPageAccess handles GET /api/v1/courses/:courseID/enroll-access.
// An already enrolled user is allowed through with a redirect hint back
// to the course, so the UI never shows a broken checkout.
func (h *EnrollmentHandler) EnrollPageAccess(c *fiber.Ctx) error {
	courseID, err := strconv.ParseUint(c.Params("courseID"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid course ID")
	}

	var userID *uint
	if id, ok := middleware.GetUserID(c); ok {
		userID = &id
	}

	result := h.access.CheckEnrollmentPageAccess(c.Context(), userID, uint(courseID))
	if !result.HasAccess {
		return response.Success(c, fiber.Map{
			"result": result,
			"denied": services.PresentDenial(result),
		})
	}

	return response.Success(c, fiber.Map{"result": result})
}

func (h *EnrollmentHandler) transition(c *fiber.Ctx, do func(uint) error) error {
	enrollmentID, err := strconv.ParseUint(c.Params("enrollmentID"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid enrollment ID")
	}

	if err := do(uint(enrollmentID)); err != nil {
		if errors.Is(err, services.ErrEnrollmentNotFound) {
			return response.NotFound(c, "Enrollment not found")
		}
		return response.InternalServerError(c, "Failed to update enrollment")
	}

	return response.SuccessWithMessage(c, "Enrollment updated", nil)
}

// Suspend handles POST /api/v1/admin/enrollments/:enrollmentID/suspend
func (h *EnrollmentHandler) Suspend(c *fiber.Ctx) error {
	return h.transition(c, func(id uint) error {
		_, err := h.enrollments.Suspend(c.Context(), id)
		return err
	})
}

// Reinstate handles POST /api/v1/admin/enrollments/:enrollmentID/reinstate
func (h *EnrollmentHandler) Reinstate(c *fiber.Ctx) error {
	return h.transition(c, func(id uint) error {
		_, err := h.enrollments.Reinstate(c.Context(), id)
		return err
	})
}

// Expire handles POST /api/v1/admin/enrollments/:enrollmentID/expire
func (h *EnrollmentHandler) Expire(c *fiber.Ctx) error {
	return h.transition(c, func(id uint) error {
		_, err := h.enrollments.Expire(c.Context(), id)
		return err
	})
}
