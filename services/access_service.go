package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/lingodeck/api/model"
)

// AccessConfig holds the four independent gating toggles.
type AccessConfig struct {
	RequireAuthentication bool
	RequireEnrollment     bool
	CheckSequentialUnlock bool
	AllowPreviewLessons   bool
}

// DefaultAccessConfig enables every gate; this is production behavior.
func DefaultAccessConfig() AccessConfig {
	return AccessConfig{
		RequireAuthentication: true,
		RequireEnrollment:     true,
		CheckSequentialUnlock: true,
		AllowPreviewLessons:   true,
	}
}

// EnrollmentStatus is the UI-facing summary of a user's standing in a
// course.
type EnrollmentStatus struct {
	Enrolled        bool       `json:"enrolled"`
	Status          string     `json:"status,omitempty"`
	PaymentPending  bool       `json:"payment_pending"`
	AccessExpiresAt *time.Time `json:"access_expires_at,omitempty"`
}

// AccessService is the single source of truth for "can user U see lesson
// L of course C right now". It is a pure decision function over current
// state: it reads the directory, enrollments and progress, and never
// writes. Every dependency failure maps to a verification_error denial:
// deny by default, never allow.
type AccessService struct {
	cfg         AccessConfig
	directory   *DirectoryService
	enrollments *EnrollmentService
	progress    *ProgressService
	now         func() time.Time
}

// NewAccessService creates the access engine. A nil clock defaults to
// time.Now.
func NewAccessService(cfg AccessConfig, directory *DirectoryService, enrollments *EnrollmentService, progress *ProgressService, now func() time.Time) *AccessService {
	if now == nil {
		now = time.Now
	}
	return &AccessService{
		cfg:         cfg,
		directory:   directory,
		enrollments: enrollments,
		progress:    progress,
		now:         now,
	}
}

// failClosed converts any dependency error (or panic) into a denial.
func failClosed(courseID uint, err interface{}) model.AccessCheckResult {
	log.Printf("access verification error for course=%d: %v", courseID, err)
	return model.Deny(model.ReasonVerificationError, courseID)
}

// CheckCourseAccess decides whether the user may open the course at all.
func (s *AccessService) CheckCourseAccess(ctx context.Context, userID *uint, courseID uint) (result model.AccessCheckResult) {
	defer func() {
		if r := recover(); r != nil {
			result = failClosed(courseID, r)
		}
	}()

	verdict, _, err := s.courseCheck(ctx, userID, courseID)
	if err != nil {
		return failClosed(courseID, err)
	}
	return verdict
}

// courseCheck runs the course-level gate chain in strict order,
// short-circuiting on the first failure. It also returns the loaded
// course so lesson-level checks avoid a second directory read.
func (s *AccessService) courseCheck(ctx context.Context, userID *uint, courseID uint) (model.AccessCheckResult, *model.Course, error) {
	if s.cfg.RequireAuthentication && userID == nil {
		return model.Deny(model.ReasonNotAuthenticated, courseID), nil, nil
	}

	course, err := s.directory.GetCourse(ctx, courseID)
	if err != nil {
		return model.AccessCheckResult{}, nil, err
	}
	if course == nil {
		return model.Deny(model.ReasonCourseNotFound, courseID), nil, nil
	}

	if s.cfg.RequireEnrollment {
		if userID == nil {
			return model.Deny(model.ReasonNotEnrolled, courseID), course, nil
		}

		enrollment, err := s.enrollments.Get(ctx, *userID, courseID)
		if err != nil {
			return model.AccessCheckResult{}, course, err
		}

		switch {
		case enrollment == nil:
			return model.Deny(model.ReasonNotEnrolled, courseID), course, nil
		case enrollment.Status == model.EnrollmentSuspended:
			return model.Deny(model.ReasonSuspended, courseID), course, nil
		case enrollment.IsExpired(s.now()):
			return model.Deny(model.ReasonExpired, courseID), course, nil
		case enrollment.PaymentID != nil && enrollment.Status != model.EnrollmentActive:
			return model.Deny(model.ReasonPaymentPending, courseID), course, nil
		}
	}

	return model.Allow(courseID), course, nil
}

// enrollmentGated reports whether the denial is content gating that a
// preview lesson bypasses. Authentication and missing-content denials
// are not bypassed.
func enrollmentGated(reason model.DenialReason) bool {
	switch reason {
	case model.ReasonNotEnrolled, model.ReasonSuspended,
		model.ReasonExpired, model.ReasonPaymentPending:
		return true
	}
	return false
}

// CheckLessonAccess decides whether the user may open a specific lesson.
func (s *AccessService) CheckLessonAccess(ctx context.Context, userID *uint, courseID, lessonID uint) (result model.AccessCheckResult) {
	defer func() {
		if r := recover(); r != nil {
			result = failClosed(courseID, r).WithLesson(lessonID)
		}
	}()

	verdict, course, err := s.courseCheck(ctx, userID, courseID)
	if err != nil {
		return failClosed(courseID, err).WithLesson(lessonID)
	}

	// Course-level denials propagate with lesson context, except that a
	// preview lesson bypasses enrollment content gating.
	if !verdict.HasAccess {
		if course != nil && s.cfg.AllowPreviewLessons && enrollmentGated(verdict.Reason) {
			if lesson := findLesson(course, lessonID); lesson != nil && lesson.IsPreview {
				return model.Allow(courseID).WithLesson(lessonID)
			}
		}
		return verdict.WithLesson(lessonID)
	}

	lesson := findLesson(course, lessonID)
	if lesson == nil {
		return model.Deny(model.ReasonLessonNotFound, courseID).WithLesson(lessonID)
	}

	if lesson.IsPreview && s.cfg.AllowPreviewLessons {
		return model.Allow(courseID).WithLesson(lessonID)
	}

	if !course.UnlockSequential || !s.cfg.CheckSequentialUnlock {
		return model.Allow(courseID).WithLesson(lessonID)
	}

	completed, err := s.completedSet(ctx, userID, courseID)
	if err != nil {
		return failClosed(courseID, err).WithLesson(lessonID)
	}

	if !LessonUnlocked(course.Lessons, lessonID, completed, s.cfg.AllowPreviewLessons) {
		return model.Deny(model.ReasonLessonLocked, courseID).WithLesson(lessonID)
	}
	return model.Allow(courseID).WithLesson(lessonID)
}

// CheckEnrollmentPageAccess gates the enrollment/purchase page. An
// already active enrollment allows the page with a redirect hint to the
// course itself.
func (s *AccessService) CheckEnrollmentPageAccess(ctx context.Context, userID *uint, courseID uint) (result model.AccessCheckResult) {
	defer func() {
		if r := recover(); r != nil {
			result = failClosed(courseID, r)
		}
	}()

	if s.cfg.RequireAuthentication && userID == nil {
		return model.Deny(model.ReasonNotAuthenticated, courseID)
	}

	course, err := s.directory.GetCourse(ctx, courseID)
	if err != nil {
		return failClosed(courseID, err)
	}
	if course == nil {
		return model.Deny(model.ReasonCourseNotFound, courseID)
	}

	if userID != nil {
		enrolled, err := s.enrollments.IsEnrolled(ctx, *userID, courseID)
		if err != nil {
			return failClosed(courseID, err)
		}
		if enrolled {
			return model.Allow(courseID).
				WithRedirect(fmt.Sprintf("/courses/%d", courseID))
		}
	}

	return model.Allow(courseID)
}

// GetAccessibleLessons returns the lessons the user may currently open,
// in order. The result is always the contiguous unlock prefix plus
// previews; a user failing enrollment gating sees previews only.
func (s *AccessService) GetAccessibleLessons(ctx context.Context, userID *uint, courseID uint) ([]model.Lesson, error) {
	verdict, course, err := s.courseCheck(ctx, userID, courseID)
	if err != nil {
		return nil, err
	}

	if !verdict.HasAccess {
		switch {
		case verdict.Reason == model.ReasonCourseNotFound:
			return nil, ErrCourseNotFound
		case enrollmentGated(verdict.Reason) && s.cfg.AllowPreviewLessons:
			return previewLessons(course), nil
		default:
			return []model.Lesson{}, nil
		}
	}

	if !course.UnlockSequential || !s.cfg.CheckSequentialUnlock {
		return course.Lessons, nil
	}

	completed, err := s.completedSet(ctx, userID, courseID)
	if err != nil {
		return nil, err
	}
	return AccessiblePrefix(course.Lessons, completed, s.cfg.AllowPreviewLessons), nil
}

// GetUserEnrollmentStatus summarizes the user's standing in a course for
// display. An anonymous user is simply not enrolled.
func (s *AccessService) GetUserEnrollmentStatus(ctx context.Context, userID *uint, courseID uint) (*EnrollmentStatus, error) {
	if userID == nil {
		return &EnrollmentStatus{Enrolled: false}, nil
	}

	enrollment, err := s.enrollments.Get(ctx, *userID, courseID)
	if err != nil {
		return nil, err
	}
	if enrollment == nil {
		return &EnrollmentStatus{Enrolled: false}, nil
	}

	return &EnrollmentStatus{
		Enrolled:        enrollment.Status == model.EnrollmentActive && !enrollment.IsExpired(s.now()),
		Status:          enrollment.Status,
		PaymentPending:  enrollment.PaymentID != nil && enrollment.Status != model.EnrollmentActive,
		AccessExpiresAt: enrollment.AccessExpiresAt,
	}, nil
}

func (s *AccessService) completedSet(ctx context.Context, userID *uint, courseID uint) (map[uint]bool, error) {
	if userID == nil {
		return map[uint]bool{}, nil
	}
	return s.progress.CompletedSet(ctx, *userID, courseID)
}

func findLesson(course *model.Course, lessonID uint) *model.Lesson {
	for i := range course.Lessons {
		if course.Lessons[i].ID == lessonID {
			return &course.Lessons[i]
		}
	}
	return nil
}

func previewLessons(course *model.Course) []model.Lesson {
	previews := make([]model.Lesson, 0)
	for _, lesson := range course.Lessons {
		if lesson.IsPreview {
			previews = append(previews, lesson)
		}
	}
	return previews
}
