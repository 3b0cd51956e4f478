package enums

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRejectsUnknownValues(t *testing.T) {
	role, err := ParseRole("partner")
	require.NoError(t, err)
	assert.Equal(t, RolePartner, role)

	_, err = ParseRole("Partner")
	assert.EqualError(t, err, `invalid role "Partner"`)

	_, err = ParsePaymentStatus("refunded")
	assert.EqualError(t, err, `invalid payment status "refunded"`)

	kind, err := ParseRedeemableKind("flash_deal")
	require.NoError(t, err)
	assert.Equal(t, RedeemableKindFlashDeal, kind)
}

func TestPaymentStatusTerminal(t *testing.T) {
	assert.False(t, PaymentStatusPending.Terminal())
	assert.True(t, PaymentStatusSucceeded.Terminal())
	assert.False(t, PaymentStatusFailed.Terminal())
}

func TestSubscriptionPlanPeriods(t *testing.T) {
	assert.Equal(t, 30*24*time.Hour, SubscriptionPlanMonthly.Period())
	assert.Equal(t, 365*24*time.Hour, SubscriptionPlanYearly.Period())
	assert.Zero(t, SubscriptionPlanNone.Period())
	assert.False(t, SubscriptionPlanNone.Purchasable())
	assert.True(t, SubscriptionPlanNone.IsValid())
	assert.False(t, SubscriptionPlan("weekly").Purchasable())
}

func TestSubscriptionStatusAccess(t *testing.T) {
	assert.True(t, SubscriptionStatusTrial.GrantsAccess())
	assert.False(t, SubscriptionStatusPending.GrantsAccess())
}

func TestParseWeekdayIgnoresCase(t *testing.T) {
	day, err := ParseWeekday(" Friday ")
	require.NoError(t, err)
	assert.Equal(t, WeekdayFriday, day)
	assert.Equal(t, WeekdaySunday, WeekdayOf(time.Sunday))
}
