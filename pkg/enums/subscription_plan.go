package enums

import "time"

// SubscriptionPlan is the billing cadence purchased by a user. None marks a
// profile that never bought one.
type SubscriptionPlan string

const (
	SubscriptionPlanMonthly SubscriptionPlan = "monthly"
	SubscriptionPlanYearly  SubscriptionPlan = "yearly"
	SubscriptionPlanNone    SubscriptionPlan = "none"
)

var subscriptionPlans = []SubscriptionPlan{SubscriptionPlanMonthly, SubscriptionPlanYearly, SubscriptionPlanNone}

var planPeriods = map[SubscriptionPlan]time.Duration{
	SubscriptionPlanMonthly: 30 * 24 * time.Hour,
	SubscriptionPlanYearly:  365 * 24 * time.Hour,
}

func (p SubscriptionPlan) String() string    { return string(p) }
func (p SubscriptionPlan) IsValid() bool     { return known(p, subscriptionPlans) }
func (p SubscriptionPlan) Purchasable() bool { return planPeriods[p] > 0 }

// Period is how far one purchase pushes the expiry out; zero for None.
func (p SubscriptionPlan) Period() time.Duration { return planPeriods[p] }

func ParseSubscriptionPlan(value string) (SubscriptionPlan, error) {
	return parse("subscription plan", value, subscriptionPlans)
}
