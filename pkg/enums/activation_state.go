package enums

// ActivationState is the derived lifecycle position of an offer for one user.
type ActivationState string

const (
	ActivationStateAvailable      ActivationState = "available"
	ActivationStatePaymentPending ActivationState = "payment_pending"
	ActivationStateActivating     ActivationState = "activating"
	ActivationStateBlocked        ActivationState = "blocked"
)

// String implements fmt.Stringer.
func (s ActivationState) String() string {
	return string(s)
}

// Redeemable reports whether a new activation may start from this state.
func (s ActivationState) Redeemable() bool {
	return s == ActivationStateAvailable
}
