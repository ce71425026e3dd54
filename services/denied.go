package services

import (
	"fmt"

	"github.com/lingodeck/api/model"
)

// Severity of a denial presentation.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// RecoveryAction is the button the UI renders under a denial message.
type RecoveryAction struct {
	Label       string `json:"label"`
	Destination string `json:"destination"`
}

// DeniedView is the display directive for a denied verdict. It is a pure
// function of the verdict; nothing here touches storage.
type DeniedView struct {
	Reason   model.DenialReason `json:"reason"`
	Message  string             `json:"message"`
	Action   RecoveryAction     `json:"action"`
	Severity Severity           `json:"severity"`
}

// PresentDenial maps a denial verdict to its recovery presentation.
// Unknown reasons fall back to the verification_error presentation so
// the UI never renders blank.
func PresentDenial(result model.AccessCheckResult) DeniedView {
	coursePath := fmt.Sprintf("/courses/%d", result.CourseID)

	switch result.Reason {
	case model.ReasonNotAuthenticated:
		return DeniedView{
			Reason:   result.Reason,
			Message:  "Sign in to continue learning.",
			Action:   RecoveryAction{Label: "Sign in", Destination: "/login"},
			Severity: SeverityInfo,
		}
	case model.ReasonNotEnrolled:
		return DeniedView{
			Reason:   result.Reason,
			Message:  "You are not enrolled in this course.",
			Action:   RecoveryAction{Label: "Enroll now", Destination: coursePath + "/enroll"},
			Severity: SeverityInfo,
		}
	case model.ReasonPaymentPending:
		return DeniedView{
			Reason:   result.Reason,
			Message:  "Your payment is still being confirmed.",
			Action:   RecoveryAction{Label: "Check payment status", Destination: "/account/payments"},
			Severity: SeverityWarning,
		}
	case model.ReasonSuspended:
		return DeniedView{
			Reason:   result.Reason,
			Message:  "Your enrollment has been suspended.",
			Action:   RecoveryAction{Label: "Contact support", Destination: "/support"},
			Severity: SeverityError,
		}
	case model.ReasonExpired:
		return DeniedView{
			Reason:   result.Reason,
			Message:  "Your access to this course has expired.",
			Action:   RecoveryAction{Label: "Renew access", Destination: coursePath + "/enroll"},
			Severity: SeverityWarning,
		}
	case model.ReasonLessonLocked:
		return DeniedView{
			Reason:   result.Reason,
			Message:  "Finish the earlier lessons to unlock this one.",
			Action:   RecoveryAction{Label: "Continue learning", Destination: coursePath},
			Severity: SeverityInfo,
		}
	case model.ReasonCourseNotFound, model.ReasonLessonNotFound:
		return DeniedView{
			Reason:   result.Reason,
			Message:  "This content is no longer available.",
			Action:   RecoveryAction{Label: "Browse courses", Destination: "/courses"},
			Severity: SeverityWarning,
		}
	}

	// Includes ReasonVerificationError and anything unmapped.
	return DeniedView{
		Reason:   model.ReasonVerificationError,
		Message:  "Something went wrong while checking your access.",
		Action:   RecoveryAction{Label: "Try again", Destination: coursePath},
		Severity: SeverityError,
	}
}
