package subscriptions

import (
	"time"

	"github.com/kairos100/swissluca-backend/pkg/enums"
)

const day = 24 * time.Hour

// Snapshot is the stored subscription state the predicates read.
type Snapshot struct {
	Status enums.SubscriptionStatus
	End    time.Time
}

// HasAccess is true when the status is trial or active and the end lies in the future.
func HasAccess(s Snapshot, now time.Time) bool {
	return s.Status.GrantsAccess() && s.End.After(now)
}

// IsTrialActive is true when the user is on an unexpired trial.
func IsTrialActive(s Snapshot, now time.Time) bool {
	return s.Status == enums.SubscriptionStatusTrial && s.End.After(now)
}

// TrialDaysRemaining returns the whole days left before End, rounded up and
// floored at zero. Only meaningful while IsTrialActive holds.
func TrialDaysRemaining(s Snapshot, now time.Time) int {
	left := s.End.Sub(now)
	if left <= 0 {
		return 0
	}
	days := int(left / day)
	if left%day != 0 {
		days++
	}
	return days
}

// Evaluation is the API projection of the three predicates.
type Evaluation struct {
	Status        enums.SubscriptionStatus `json:"status"`
	End           time.Time                `json:"subscription_end"`
	HasAccess     bool                     `json:"has_access"`
	TrialActive   bool                     `json:"trial_active"`
	DaysRemaining int                      `json:"days_remaining"`
}

// Evaluate reports DaysRemaining only while the trial runs; paying users
// see zero.
func Evaluate(s Snapshot, now time.Time) Evaluation {
	eval := Evaluation{
		Status:      s.Status,
		End:         s.End,
		HasAccess:   HasAccess(s, now),
		TrialActive: IsTrialActive(s, now),
	}
	if eval.TrialActive {
		eval.DaysRemaining = TrialDaysRemaining(s, now)
	}
	return eval
}

// Extend returns the new end for a purchase of plan: the plan period is added
// to the later of now and the current end.
func Extend(currentEnd, now time.Time, plan enums.SubscriptionPlan) time.Time {
	base := now
	if currentEnd.After(now) {
		base = currentEnd
	}
	return base.Add(plan.Period())
}

// Expired reports whether the stored status still claims access the clock no longer grants.
func Expired(s Snapshot, now time.Time) bool {
	return s.Status.GrantsAccess() && !s.End.After(now)
}
