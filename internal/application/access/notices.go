package access

import (
	"fmt"
	"time"

	"membergate/internal/domain/entitlement"
	"membergate/internal/shared/biztime"
)

// gracePeriodDays is named in the payment-failed warning; it mirrors the
// billing provider's dunning window before a subscription moves to unpaid.
const gracePeriodDays = 7

// MessageFor renders the direct-message body for a notice kind. The legacy
// grace notice carries a deadline and is rendered by MessageForLegacyGrace.
func MessageFor(notice entitlement.Notice) string {
	switch notice {
	case entitlement.NoticeWelcome:
		return "Welcome aboard! Your membership is active and your member role has been granted. Enjoy the community."
	case entitlement.NoticeRestored:
		return "Thanks for updating your payment. Your membership is active again and your member role has been restored."
	case entitlement.NoticePaymentFailed:
		return fmt.Sprintf("We couldn't process your membership payment. Please update your payment method within %d days to keep your member access.", gracePeriodDays)
	case entitlement.NoticeEnded:
		return "Your membership has ended and your member role has been removed. You can re-subscribe at any time to regain access."
	default:
		return ""
	}
}

// MessageForLegacyGrace renders the grandfather-grant notification.
func MessageForLegacyGrace(deadline time.Time) string {
	return fmt.Sprintf("Your existing member access has been carried over free of charge until %s. Subscribe before then to keep your access after the grace period ends.",
		biztime.FormatInBizTimezone(deadline, "January 2, 2006"))
}
