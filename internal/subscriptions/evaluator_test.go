package subscriptions

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kairos100/swissluca-backend/pkg/enums"
)

var now = time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)

func TestTrialDaysRemaining_ThreeDays(t *testing.T) {
	s := Snapshot{Status: enums.SubscriptionStatusTrial, End: now.Add(3 * 24 * time.Hour)}
	assert.True(t, IsTrialActive(s, now))
	assert.Equal(t, 3, TrialDaysRemaining(s, now))
}

func TestTrialDaysRemaining_RoundsUpPartialDay(t *testing.T) {
	s := Snapshot{Status: enums.SubscriptionStatusTrial, End: now.Add(26 * time.Hour)}
	assert.Equal(t, 2, TrialDaysRemaining(s, now))
}

func TestTrialDaysRemaining_FlooredAtZero(t *testing.T) {
	s := Snapshot{Status: enums.SubscriptionStatusTrial, End: now.Add(-48 * time.Hour)}
	assert.Zero(t, TrialDaysRemaining(s, now))
	assert.False(t, IsTrialActive(s, now))
}

func TestHasAccess(t *testing.T) {
	cases := []struct {
		name   string
		status enums.SubscriptionStatus
		end    time.Time
		want   bool
	}{
		{"active future", enums.SubscriptionStatusActive, now.Add(time.Hour), true},
		{"trial future", enums.SubscriptionStatusTrial, now.Add(time.Hour), true},
		{"trial one second ago", enums.SubscriptionStatusTrial, now.Add(-time.Second), false},
		{"active ends now", enums.SubscriptionStatusActive, now, false},
		{"cancelled future", enums.SubscriptionStatusCancelled, now.Add(time.Hour), false},
		{"pending future", enums.SubscriptionStatusPending, now.Add(time.Hour), false},
		{"expired", enums.SubscriptionStatusExpired, now.Add(time.Hour), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, HasAccess(Snapshot{Status: tc.status, End: tc.end}, now))
		})
	}
}

func TestEvaluate(t *testing.T) {
	s := Snapshot{Status: enums.SubscriptionStatusActive, End: now.Add(10 * 24 * time.Hour)}
	eval := Evaluate(s, now)
	assert.True(t, eval.HasAccess)
	assert.False(t, eval.TrialActive)
	assert.Zero(t, eval.DaysRemaining, "no trial countdown for paying users")

	trial := Evaluate(Snapshot{Status: enums.SubscriptionStatusTrial, End: now.Add(36 * time.Hour)}, now)
	assert.True(t, trial.TrialActive)
	assert.Equal(t, 2, trial.DaysRemaining)
}

func TestExtend(t *testing.T) {
	lapsed := now.Add(-5 * 24 * time.Hour)
	assert.Equal(t, now.Add(30*24*time.Hour), Extend(lapsed, now, enums.SubscriptionPlanMonthly))

	running := now.Add(2 * 24 * time.Hour)
	assert.Equal(t, running.Add(365*24*time.Hour), Extend(running, now, enums.SubscriptionPlanYearly))
}

func TestExpired(t *testing.T) {
	assert.True(t, Expired(Snapshot{Status: enums.SubscriptionStatusTrial, End: now}, now))
	assert.False(t, Expired(Snapshot{Status: enums.SubscriptionStatusExpired, End: now}, now))
	assert.False(t, Expired(Snapshot{Status: enums.SubscriptionStatusActive, End: now.Add(time.Minute)}, now))
}
