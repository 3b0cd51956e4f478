package enums

// SubscriptionStatus is the stored subscription state on a user profile.
type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
	SubscriptionStatusPending   SubscriptionStatus = "pending"
	SubscriptionStatusTrial     SubscriptionStatus = "trial"
)

var subscriptionStatuses = []SubscriptionStatus{
	SubscriptionStatusActive,
	SubscriptionStatusExpired,
	SubscriptionStatusCancelled,
	SubscriptionStatusPending,
	SubscriptionStatusTrial,
}

func (s SubscriptionStatus) String() string { return string(s) }
func (s SubscriptionStatus) IsValid() bool  { return known(s, subscriptionStatuses) }

// GrantsAccess is true for statuses that unlock offers until their expiry.
func (s SubscriptionStatus) GrantsAccess() bool {
	return s == SubscriptionStatusActive || s == SubscriptionStatusTrial
}

func ParseSubscriptionStatus(value string) (SubscriptionStatus, error) {
	return parse("subscription status", value, subscriptionStatuses)
}
