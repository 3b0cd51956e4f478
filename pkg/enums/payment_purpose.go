package enums

// PaymentPurpose is stored in payment intent metadata to route webhook events.
type PaymentPurpose string

const (
	PaymentPurposeActivation   PaymentPurpose = "activation"
	PaymentPurposeSubscription PaymentPurpose = "subscription"
)

// String implements fmt.Stringer.
func (p PaymentPurpose) String() string {
	return string(p)
}
