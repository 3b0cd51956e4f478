package enums

// PaymentStatus tracks a recorded payment intent. Succeeded is the only
// terminal state: a declined TWINT intent returns to requires_payment_method
// and can still be paid.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusSucceeded PaymentStatus = "succeeded"
	PaymentStatusFailed    PaymentStatus = "failed"
)

var paymentStatuses = []PaymentStatus{PaymentStatusPending, PaymentStatusSucceeded, PaymentStatusFailed}

func (p PaymentStatus) String() string { return string(p) }
func (p PaymentStatus) IsValid() bool  { return known(p, paymentStatuses) }
func (p PaymentStatus) Terminal() bool { return p == PaymentStatusSucceeded }

func ParsePaymentStatus(value string) (PaymentStatus, error) {
	return parse("payment status", value, paymentStatuses)
}
