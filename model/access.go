package model

// DenialReason enumerates every way an access check can fail. Each value
// maps to exactly one user-facing recovery action (see services.DeniedView).
type DenialReason string

const (
	ReasonNotAuthenticated  DenialReason = "not_authenticated"
	ReasonNotEnrolled       DenialReason = "not_enrolled"
	ReasonPaymentPending    DenialReason = "payment_pending"
	ReasonSuspended         DenialReason = "suspended"
	ReasonExpired           DenialReason = "expired"
	ReasonLessonLocked      DenialReason = "lesson_locked" // previous lessons incomplete
	ReasonCourseNotFound    DenialReason = "course_not_found"
	ReasonLessonNotFound    DenialReason = "lesson_not_found"
	ReasonVerificationError DenialReason = "verification_error"
)

// AccessCheckResult is the verdict of an access check. It is computed per
// request and never persisted.
type AccessCheckResult struct {
	HasAccess bool         `json:"has_access"`
	Reason    DenialReason `json:"reason,omitempty"`
	CourseID  uint         `json:"course_id,omitempty"`
	LessonID  uint         `json:"lesson_id,omitempty"`
	Redirect  string       `json:"redirect,omitempty"` // optional hint for the UI
}

// Allow builds a granting verdict for the given course.
func Allow(courseID uint) AccessCheckResult {
	return AccessCheckResult{HasAccess: true, CourseID: courseID}
}

// Deny builds a denying verdict with the given reason.
func Deny(reason DenialReason, courseID uint) AccessCheckResult {
	return AccessCheckResult{HasAccess: false, Reason: reason, CourseID: courseID}
}

// WithLesson attaches lesson context to a verdict.
func (r AccessCheckResult) WithLesson(lessonID uint) AccessCheckResult {
	r.LessonID = lessonID
	return r
}

// WithRedirect attaches a redirect hint to a verdict.
func (r AccessCheckResult) WithRedirect(dest string) AccessCheckResult {
	r.Redirect = dest
	return r
}
