package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderLine keeps the unit price the cart carried at commit time, not the live catalog price.
type OrderLine struct {
	OrderID           string          `json:"order_id"`
	LineNo            int             `json:"line_no"`
	ProductID         string          `json:"product_id"`
	Quantity          int             `json:"quantity"`
	UnitPriceSnapshot decimal.Decimal `json:"unit_price"`
}

func (l OrderLine) Subtotal() decimal.Decimal {
	return l.UnitPriceSnapshot.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type Order struct {
	ID             string          `json:"id"`
	CustomerID     string          `json:"customer_id,omitempty"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	Status         OrderStatus     `json:"status"`
	PaymentMethod  PaymentMethod   `json:"payment_method"`
	IdempotencyKey string          `json:"-"`
	CreatedAt      time.Time       `json:"created_at"`
	Lines          []OrderLine     `json:"lines"`
}

// OrderTotal sums quantity x snapshot price over the lines.
func OrderTotal(lines []OrderLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// OrderPlacedEvent is the payload relayed to the message bus after a commit.
type OrderPlacedEvent struct {
	OrderID       string          `json:"order_id"`
	CustomerID    string          `json:"customer_id,omitempty"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	Lines         []OrderLine     `json:"lines"`
	PlacedAt      time.Time       `json:"placed_at"`
}
