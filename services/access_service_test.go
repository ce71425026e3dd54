package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/lingodeck/api/model"
)

func newAccessFixture(t *testing.T) (*gorm.DB, *AccessService, *EnrollmentService, *ProgressService) {
	t.Helper()

	db := newTestDB(t)
	directory := newDirectory(t, db)
	enrollments := NewEnrollmentService(db, directory)
	progress := NewProgressService(db, directory, NewMemoryPendingQueue())
	access := NewAccessService(DefaultAccessConfig(), directory, enrollments, progress, time.Now)
	return db, access, enrollments, progress
}

func TestCourseAccessAnonymous(t *testing.T) {
	db, access, _, _ := newAccessFixture(t)
	course := seedCourse(t, db, 3, false)

	result := access.CheckCourseAccess(context.Background(), nil, course.ID)

	assert.False(t, result.HasAccess)
	assert.Equal(t, model.ReasonNotAuthenticated, result.Reason)
}

func TestCourseAccessChecksAuthBeforeExistence(t *testing.T) {
	_, access, _, _ := newAccessFixture(t)

	// Even a nonexistent course denies on authentication first
	result := access.CheckCourseAccess(context.Background(), nil, 9999)

	assert.Equal(t, model.ReasonNotAuthenticated, result.Reason)
}

func TestCourseAccessCourseNotFound(t *testing.T) {
	db, access, _, _ := newAccessFixture(t)
	user := seedUser(t, db, "a@example.com")

	result := access.CheckCourseAccess(context.Background(), &user.ID, 9999)

	assert.False(t, result.HasAccess)
	assert.Equal(t, model.ReasonCourseNotFound, result.Reason)
}

func TestCourseAccessNotEnrolled(t *testing.T) {
	db, access, _, _ := newAccessFixture(t)
	course := seedCourse(t, db, 3, false)
	user := seedUser(t, db, "a@example.com")

	result := access.CheckCourseAccess(context.Background(), &user.ID, course.ID)

	assert.False(t, result.HasAccess)
	assert.Equal(t, model.ReasonNotEnrolled, result.Reason)
}

func TestCourseAccessEnrolled(t *testing.T) {
	db, access, enrollments, _ := newAccessFixture(t)
	course := seedCourse(t, db, 3, false)
	user := seedUser(t, db, "a@example.com")

	_, err := enrollments.Enroll(context.Background(), user.ID, course.ID, nil)
	require.NoError(t, err)

	result := access.CheckCourseAccess(context.Background(), &user.ID, course.ID)

	assert.True(t, result.HasAccess)
	assert.Empty(t, result.Reason)
}

func TestCourseAccessSuspended(t *testing.T) {
	db, access, enrollments, _ := newAccessFixture(t)
	course := seedCourse(t, db, 3, false)
	user := seedUser(t, db, "a@example.com")

	enrollment, err := enrollments.Enroll(context.Background(), user.ID, course.ID, nil)
	require.NoError(t, err)
	_, err = enrollments.Suspend(context.Background(), enrollment.ID)
	require.NoError(t, err)

	result := access.CheckCourseAccess(context.Background(), &user.ID, course.ID)

	assert.False(t, result.HasAccess)
	assert.Equal(t, model.ReasonSuspended, result.Reason)
}

func TestCourseAccessExpired(t *testing.T) {
	db, access, _, _ := newAccessFixture(t)
	course := seedCourse(t, db, 3, false)
	user := seedUser(t, db, "a@example.com")

	past := time.Now().Add(-time.Hour)
	require.NoError(t, db.Create(&model.Enrollment{
		UserID:          user.ID,
		CourseID:        course.ID,
		Status:          model.EnrollmentActive,
		AccessExpiresAt: &past,
	}).Error)

	result := access.CheckCourseAccess(context.Background(), &user.ID, course.ID)

	assert.False(t, result.HasAccess)
	assert.Equal(t, model.ReasonExpired, result.Reason)
}

func TestCourseAccessPaymentPending(t *testing.T) {
	db, access, _, _ := newAccessFixture(t)
	course := seedCourse(t, db, 3, false)
	user := seedUser(t, db, "a@example.com")

	paymentID := "pay_123"
	require.NoError(t, db.Create(&model.Enrollment{
		UserID:    user.ID,
		CourseID:  course.ID,
		Status:    "pending",
		PaymentID: &paymentID,
	}).Error)

	result := access.CheckCourseAccess(context.Background(), &user.ID, course.ID)

	assert.False(t, result.HasAccess)
	assert.Equal(t, model.ReasonPaymentPending, result.Reason)
}

func TestLessonAccessPreviewBypassesEnrollment(t *testing.T) {
	db, access, _, _ := newAccessFixture(t)
	course := seedCourse(t, db, 3, true)
	user := seedUser(t, db, "a@example.com")

	preview := course.Lessons[0]
	regular := course.Lessons[1]

	// Not enrolled: preview opens, regular lesson does not
	result := access.CheckLessonAccess(context.Background(), &user.ID, course.ID, preview.ID)
	assert.True(t, result.HasAccess)

	result = access.CheckLessonAccess(context.Background(), &user.ID, course.ID, regular.ID)
	assert.False(t, result.HasAccess)
	assert.Equal(t, model.ReasonNotEnrolled, result.Reason)
}

func TestLessonAccessPreviewDoesNotBypassAuthentication(t *testing.T) {
	db, access, _, _ := newAccessFixture(t)
	course := seedCourse(t, db, 3, true)
	preview := course.Lessons[0]

	result := access.CheckLessonAccess(context.Background(), nil, course.ID, preview.ID)

	assert.False(t, result.HasAccess)
	assert.Equal(t, model.ReasonNotAuthenticated, result.Reason)
}

func TestLessonAccessSequentialUnlock(t *testing.T) {
	db, access, enrollments, _ := newAccessFixture(t)
	course := seedCourse(t, db, 3, false)
	user := seedUser(t, db, "a@example.com")

	_, err := enrollments.Enroll(context.Background(), user.ID, course.ID, nil)
	require.NoError(t, err)

	first := course.Lessons[0]
	second := course.Lessons[1]
	third := course.Lessons[2]

	// Only the first lesson is open before any progress
	assert.True(t, access.CheckLessonAccess(context.Background(), &user.ID, course.ID, first.ID).HasAccess)

	locked := access.CheckLessonAccess(context.Background(), &user.ID, course.ID, second.ID)
	assert.False(t, locked.HasAccess)
	assert.Equal(t, model.ReasonLessonLocked, locked.Reason)

	// Completing the first unlocks the second but not the third
	completeLesson(t, db, user.ID, course.ID, first.ID)

	assert.True(t, access.CheckLessonAccess(context.Background(), &user.ID, course.ID, second.ID).HasAccess)
	assert.False(t, access.CheckLessonAccess(context.Background(), &user.ID, course.ID, third.ID).HasAccess)
}

func TestLessonAccessNonSequentialCourse(t *testing.T) {
	db, access, enrollments, _ := newAccessFixture(t)
	course := seedCourse(t, db, 3, false)
	require.NoError(t, db.Model(course).Update("unlock_sequential", false).Error)
	user := seedUser(t, db, "a@example.com")

	_, err := enrollments.Enroll(context.Background(), user.ID, course.ID, nil)
	require.NoError(t, err)

	// Invalidate the cached sequential copy
	access.directory.InvalidateCourse(course.ID)

	for _, lesson := range course.Lessons {
		result := access.CheckLessonAccess(context.Background(), &user.ID, course.ID, lesson.ID)
		assert.True(t, result.HasAccess, "lesson order %d should be open", lesson.Order)
	}
}

func TestLessonAccessLessonNotFound(t *testing.T) {
	db, access, enrollments, _ := newAccessFixture(t)
	course := seedCourse(t, db, 3, false)
	user := seedUser(t, db, "a@example.com")

	_, err := enrollments.Enroll(context.Background(), user.ID, course.ID, nil)
	require.NoError(t, err)

	result := access.CheckLessonAccess(context.Background(), &user.ID, course.ID, 9999)

	assert.False(t, result.HasAccess)
	assert.Equal(t, model.ReasonLessonNotFound, result.Reason)
}

func TestAccessFailsClosedOnStorageError(t *testing.T) {
	db, access, _, _ := newAccessFixture(t)
	course := seedCourse(t, db, 3, false)
	user := seedUser(t, db, "a@example.com")

	// Kill the connection so every read errors
	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	result := access.CheckCourseAccess(context.Background(), &user.ID, course.ID+1)

	assert.False(t, result.HasAccess)
	assert.Equal(t, model.ReasonVerificationError, result.Reason)
}

func TestEnrollmentPageAccess(t *testing.T) {
	db, access, enrollments, _ := newAccessFixture(t)
	course := seedCourse(t, db, 3, false)
	user := seedUser(t, db, "a@example.com")

	// Anonymous users must sign in before enrolling
	result := access.CheckEnrollmentPageAccess(context.Background(), nil, course.ID)
	assert.False(t, result.HasAccess)
	assert.Equal(t, model.ReasonNotAuthenticated, result.Reason)

	// A signed-in, not yet enrolled user may open the page
	result = access.CheckEnrollmentPageAccess(context.Background(), &user.ID, course.ID)
	assert.True(t, result.HasAccess)
	assert.Empty(t, result.Redirect)

	// An enrolled user is allowed through with a redirect back to the course
	_, err := enrollments.Enroll(context.Background(), user.ID, course.ID, nil)
	require.NoError(t, err)

	result = access.CheckEnrollmentPageAccess(context.Background(), &user.ID, course.ID)
	assert.True(t, result.HasAccess)
	assert.NotEmpty(t, result.Redirect)
}

func TestAccessibleLessonsPreviewsOnlyWhenNotEnrolled(t *testing.T) {
	db, access, _, _ := newAccessFixture(t)
	course := seedCourse(t, db, 4, true)
	user := seedUser(t, db, "a@example.com")

	lessons, err := access.GetAccessibleLessons(context.Background(), &user.ID, course.ID)
	require.NoError(t, err)

	require.Len(t, lessons, 1)
	assert.True(t, lessons[0].IsPreview)
}

func TestAccessibleLessonsPrefixGrowsWithCompletion(t *testing.T) {
	db, access, enrollments, _ := newAccessFixture(t)
	course := seedCourse(t, db, 4, false)
	user := seedUser(t, db, "a@example.com")

	_, err := enrollments.Enroll(context.Background(), user.ID, course.ID, nil)
	require.NoError(t, err)

	lessons, err := access.GetAccessibleLessons(context.Background(), &user.ID, course.ID)
	require.NoError(t, err)
	assert.Len(t, lessons, 1)

	completeLesson(t, db, user.ID, course.ID, course.Lessons[0].ID)
	completeLesson(t, db, user.ID, course.ID, course.Lessons[1].ID)

	lessons, err = access.GetAccessibleLessons(context.Background(), &user.ID, course.ID)
	require.NoError(t, err)
	assert.Len(t, lessons, 3)
}

func TestEnrollmentStatusSummary(t *testing.T) {
	db, access, enrollments, _ := newAccessFixture(t)
	course := seedCourse(t, db, 2, false)
	user := seedUser(t, db, "a@example.com")

	status, err := access.GetUserEnrollmentStatus(context.Background(), nil, course.ID)
	require.NoError(t, err)
	assert.False(t, status.Enrolled)

	_, err = enrollments.Enroll(context.Background(), user.ID, course.ID, nil)
	require.NoError(t, err)

	status, err = access.GetUserEnrollmentStatus(context.Background(), &user.ID, course.ID)
	require.NoError(t, err)
	assert.True(t, status.Enrolled)
	assert.Equal(t, model.EnrollmentActive, status.Status)
	assert.False(t, status.PaymentPending)
}
