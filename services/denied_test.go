package services

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lingodeck/api/model"
)

func TestPresentDenialCoversEveryReason(t *testing.T) {
	reasons := []model.DenialReason{
		model.ReasonNotAuthenticated,
		model.ReasonNotEnrolled,
		model.ReasonPaymentPending,
		model.ReasonSuspended,
		model.ReasonExpired,
		model.ReasonLessonLocked,
		model.ReasonCourseNotFound,
		model.ReasonLessonNotFound,
		model.ReasonVerificationError,
	}

	for _, reason := range reasons {
		view := PresentDenial(model.Deny(reason, 7))

		assert.Equal(t, reason, view.Reason)
		assert.NotEmpty(t, view.Message, "reason %s has no message", reason)
		assert.NotEmpty(t, view.Action.Label, "reason %s has no action label", reason)
		assert.NotEmpty(t, view.Action.Destination, "reason %s has no destination", reason)
		assert.NotEmpty(t, view.Severity, "reason %s has no severity", reason)
	}
}

func TestPresentDenialUnknownReasonFallsBack(t *testing.T) {
	view := PresentDenial(model.Deny(model.DenialReason("weird_new_reason"), 7))

	// An unknown reason renders like a verification error instead of blank
	assert.NotEmpty(t, view.Message)
	assert.NotEmpty(t, view.Action.Label)
	assert.Equal(t, SeverityError, view.Severity)
}

func TestPresentDenialActionsPointAtCourse(t *testing.T) {
	view := PresentDenial(model.Deny(model.ReasonLessonLocked, 42))
	assert.Equal(t, fmt.Sprintf("/courses/%d", 42), view.Action.Destination)

	view = PresentDenial(model.Deny(model.ReasonNotEnrolled, 42))
	assert.Contains(t, view.Action.Destination, "/courses/42")
}

func TestPresentDenialSeverities(t *testing.T) {
	assert.Equal(t, SeverityInfo, PresentDenial(model.Deny(model.ReasonNotAuthenticated, 1)).Severity)
	assert.Equal(t, SeverityError, PresentDenial(model.Deny(model.ReasonSuspended, 1)).Severity)
	assert.Equal(t, SeverityWarning, PresentDenial(model.Deny(model.ReasonExpired, 1)).Severity)
}
