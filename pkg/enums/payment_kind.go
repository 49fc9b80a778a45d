package enums

import "fmt"

// PaymentKind distinguishes the two subscription events a payment record
// can represent.
type PaymentKind string

const (
	PaymentKindPayment      PaymentKind = "payment"
	PaymentKindCancellation PaymentKind = "cancellation"
)

var validPaymentKinds = []PaymentKind{
	PaymentKindPayment,
	PaymentKindCancellation,
}

// String implements fmt.Stringer.
func (k PaymentKind) String() string {
	return string(k)
}

// IsValid reports whether the value is known.
func (k PaymentKind) IsValid() bool {
	for _, candidate := range validPaymentKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParsePaymentKind converts raw input into a PaymentKind.
func ParsePaymentKind(value string) (PaymentKind, error) {
	for _, candidate := range validPaymentKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment kind %q", value)
}
