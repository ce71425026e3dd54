package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lingodeck/api/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrAlreadyEnrolled    = errors.New("user is already enrolled in this course")
	ErrCourseNotFound     = errors.New("course not found")
	ErrEnrollmentNotFound = errors.New("enrollment not found")
)

// EnrollmentService records and queries user-to-course enrollments.
// Records are never deleted; suspension and expiry are the only
// deny-producing transitions.
type EnrollmentService struct {
	db        *gorm.DB
	directory *DirectoryService
}

// NewEnrollmentService creates a new enrollment service
func NewEnrollmentService(db *gorm.DB, directory *DirectoryService) *EnrollmentService {
	return &EnrollmentService{
		db:        db,
		directory: directory,
	}
}

// Get returns the enrollment for (user, course), or nil when none exists.
func (s *EnrollmentService) Get(ctx context.Context, userID, courseID uint) (*model.Enrollment, error) {
	var enrollment model.Enrollment
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		First(&enrollment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load enrollment: %w", err)
	}
	return &enrollment, nil
}

// IsEnrolled reports whether the user holds an active enrollment.
func (s *EnrollmentService) IsEnrolled(ctx context.Context, userID, courseID uint) (bool, error) {
	enrollment, err := s.Get(ctx, userID, courseID)
	if err != nil {
		return false, err
	}
	return enrollment != nil && enrollment.Status == model.EnrollmentActive, nil
}

// Enroll creates an active enrollment and increments the course's
// enrollment counter in a single transaction, so the record and the
// counter can never diverge.
func (s *EnrollmentService) Enroll(ctx context.Context, userID, courseID uint, paymentID *string) (*model.Enrollment, error) {
	enrollment := &model.Enrollment{
		UserID:    userID,
		CourseID:  courseID,
		Status:    model.EnrollmentActive,
		PaymentID: paymentID,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var course model.Course
		if err := tx.First(&course, courseID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrCourseNotFound
			}
			return err
		}

		var existing model.Enrollment
		err := tx.Where("user_id = ? AND course_id = ?", userID, courseID).
			First(&existing).Error
		if err == nil {
			return ErrAlreadyEnrolled
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if err := tx.Create(enrollment).Error; err != nil {
			return err
		}

		return tx.Model(&model.Course{}).
			Where("id = ?", courseID).
			UpdateColumn("enrollment_count", gorm.Expr("enrollment_count + 1")).Error
	})
	if err != nil {
		return nil, err
	}

	// Enrollment count changed; drop the stale cached course.
	s.directory.InvalidateCourse(courseID)

	return enrollment, nil
}

// transition moves an enrollment to a new status.
func (s *EnrollmentService) transition(ctx context.Context, enrollmentID uint, status string, expiresAt *time.Time) (*model.Enrollment, error) {
	var enrollment model.Enrollment
	err := s.db.WithContext(ctx).First(&enrollment, enrollmentID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrEnrollmentNotFound
	}
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{"status": status}
	if expiresAt != nil {
		updates["access_expires_at"] = *expiresAt
	}
	if err := s.db.WithContext(ctx).Model(&enrollment).
		Clauses(clause.Returning{}).
		Updates(updates).Error; err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// Suspend suspends an enrollment (admin/payment driven).
func (s *EnrollmentService) Suspend(ctx context.Context, enrollmentID uint) (*model.Enrollment, error) {
	return s.transition(ctx, enrollmentID, model.EnrollmentSuspended, nil)
}

// Reinstate returns a suspended enrollment to active.
func (s *EnrollmentService) Reinstate(ctx context.Context, enrollmentID uint) (*model.Enrollment, error) {
	return s.transition(ctx, enrollmentID, model.EnrollmentActive, nil)
}

// Expire closes the enrollment's access window as of now.
func (s *EnrollmentService) Expire(ctx context.Context, enrollmentID uint) (*model.Enrollment, error) {
	now := time.Now()
	return s.transition(ctx, enrollmentID, model.EnrollmentActive, &now)
}

// ListForUser returns all of a user's enrollments with their courses.
func (s *EnrollmentService) ListForUser(ctx context.Context, userID uint) ([]model.Enrollment, error) {
	var enrollments []model.Enrollment
	err := s.db.WithContext(ctx).
		Preload("Course").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&enrollments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list enrollments: %w", err)
	}
	return enrollments, nil
}
