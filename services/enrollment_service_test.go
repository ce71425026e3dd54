package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lingodeck/api/model"
)

func newEnrollmentFixture(t *testing.T) (*EnrollmentService, *model.Course, *model.User) {
	t.Helper()
	db := newTestDB(t)
	course := seedCourse(t, db, 3, false)
	user := seedUser(t, db, "learner@example.com")
	return NewEnrollmentService(db, newDirectory(t, db)), course, user
}

func TestEnrollCreatesActiveEnrollment(t *testing.T) {
	svc, course, user := newEnrollmentFixture(t)
	ctx := context.Background()

	enrollment, err := svc.Enroll(ctx, user.ID, course.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, model.EnrollmentActive, enrollment.Status)
	assert.Nil(t, enrollment.AccessExpiresAt)

	enrolled, err := svc.IsEnrolled(ctx, user.ID, course.ID)
	require.NoError(t, err)
	assert.True(t, enrolled)
}

func TestEnrollIncrementsEnrollmentCount(t *testing.T) {
	svc, course, user := newEnrollmentFixture(t)
	ctx := context.Background()

	before := course.EnrollmentCount

	_, err := svc.Enroll(ctx, user.ID, course.ID, nil)
	require.NoError(t, err)

	var reloaded model.Course
	require.NoError(t, svc.db.First(&reloaded, course.ID).Error)
	assert.Equal(t, before+1, reloaded.EnrollmentCount)
}

func TestEnrollTwiceFails(t *testing.T) {
	svc, course, user := newEnrollmentFixture(t)
	ctx := context.Background()

	_, err := svc.Enroll(ctx, user.ID, course.ID, nil)
	require.NoError(t, err)

	_, err = svc.Enroll(ctx, user.ID, course.ID, nil)
	assert.ErrorIs(t, err, ErrAlreadyEnrolled)

	// The counter must not move on the failed attempt.
	var reloaded model.Course
	require.NoError(t, svc.db.First(&reloaded, course.ID).Error)
	assert.Equal(t, course.EnrollmentCount+1, reloaded.EnrollmentCount)
}

func TestEnrollUnknownCourse(t *testing.T) {
	svc, _, user := newEnrollmentFixture(t)

	_, err := svc.Enroll(context.Background(), user.ID, 9999, nil)
	assert.ErrorIs(t, err, ErrCourseNotFound)
}

func TestEnrollStoresPaymentReference(t *testing.T) {
	svc, course, user := newEnrollmentFixture(t)

	paymentID := "pay_abc123"
	enrollment, err := svc.Enroll(context.Background(), user.ID, course.ID, &paymentID)
	require.NoError(t, err)
	require.NotNil(t, enrollment.PaymentID)
	assert.Equal(t, paymentID, *enrollment.PaymentID)
}

func TestSuspendAndReinstate(t *testing.T) {
	svc, course, user := newEnrollmentFixture(t)
	ctx := context.Background()

	enrollment, err := svc.Enroll(ctx, user.ID, course.ID, nil)
	require.NoError(t, err)

	_, err = svc.Suspend(ctx, enrollment.ID)
	require.NoError(t, err)

	var reloaded model.Enrollment
	require.NoError(t, svc.db.First(&reloaded, enrollment.ID).Error)
	assert.Equal(t, model.EnrollmentSuspended, reloaded.Status)

	enrolled, err := svc.IsEnrolled(ctx, user.ID, course.ID)
	require.NoError(t, err)
	assert.False(t, enrolled, "a suspended enrollment is not active")

	_, err = svc.Reinstate(ctx, enrollment.ID)
	require.NoError(t, err)

	require.NoError(t, svc.db.First(&reloaded, enrollment.ID).Error)
	assert.Equal(t, model.EnrollmentActive, reloaded.Status)
}

func TestExpireClosesAccessWindow(t *testing.T) {
	svc, course, user := newEnrollmentFixture(t)
	ctx := context.Background()

	enrollment, err := svc.Enroll(ctx, user.ID, course.ID, nil)
	require.NoError(t, err)

	_, err = svc.Expire(ctx, enrollment.ID)
	require.NoError(t, err)

	var reloaded model.Enrollment
	require.NoError(t, svc.db.First(&reloaded, enrollment.ID).Error)
	assert.Equal(t, model.EnrollmentActive, reloaded.Status, "expiry is a window, not a status")
	require.NotNil(t, reloaded.AccessExpiresAt)
	assert.WithinDuration(t, time.Now(), *reloaded.AccessExpiresAt, 5*time.Second)
	assert.True(t, reloaded.IsExpired(time.Now().Add(time.Minute)))
}

func TestTransitionUnknownEnrollment(t *testing.T) {
	svc, _, _ := newEnrollmentFixture(t)

	_, err := svc.Suspend(context.Background(), 9999)
	assert.ErrorIs(t, err, ErrEnrollmentNotFound)
}

func TestGetReturnsNilWhenNotEnrolled(t *testing.T) {
	svc, course, user := newEnrollmentFixture(t)

	enrollment, err := svc.Get(context.Background(), user.ID, course.ID)
	require.NoError(t, err)
	assert.Nil(t, enrollment)
}

func TestListForUser(t *testing.T) {
	svc, course, user := newEnrollmentFixture(t)
	ctx := context.Background()

	second := &model.Course{
		Title:               "French for Travelers",
		Language:            "fr",
		Level:               "A2",
		CompletionThreshold: 80,
		UnlockSequential:    true,
	}
	require.NoError(t, svc.db.Create(second).Error)

	_, err := svc.Enroll(ctx, user.ID, course.ID, nil)
	require.NoError(t, err)
	_, err = svc.Enroll(ctx, user.ID, second.ID, nil)
	require.NoError(t, err)

	enrollments, err := svc.ListForUser(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, enrollments, 2)
	for _, e := range enrollments {
		assert.NotEmpty(t, e.Course.Title, "courses are preloaded")
	}
}
