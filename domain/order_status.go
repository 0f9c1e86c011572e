package domain

type OrderStatus string

const (
	// OrderStatusCompleted is the only state a placed order can be in.
	OrderStatusCompleted OrderStatus = "COMPLETED"
)

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted
}

// String representation (for logging)
func (s OrderStatus) String() string {
	return string(s)
}

type PaymentMethod string

const (
	PaymentMethodCash PaymentMethod = "CASH"
	PaymentMethodCard PaymentMethod = "CARD"
)

// ParsePaymentMethod returns CASH for an empty value, like the till does by default.
func ParsePaymentMethod(v string) (PaymentMethod, bool) {
	switch PaymentMethod(v) {
	case "":
		return PaymentMethodCash, true
	case PaymentMethodCash, PaymentMethodCard:
		return PaymentMethod(v), true
	default:
		return "", false
	}
}
