package domain

import "github.com/shopspring/decimal"

// CartLine is owned by the caller until it is submitted.
type CartLine struct {
	ProductID         string          `json:"product_id"`
	Quantity          int             `json:"quantity"`
	UnitPriceSnapshot decimal.Decimal `json:"unit_price"`
}

type PlaceOrderRequest struct {
	Items          []CartLine
	DeclaredTotal  decimal.Decimal
	CustomerID     string
	PaymentMethod  string
	IdempotencyKey string
}

type OrderConfirmation struct {
	OrderID     string
	TotalAmount decimal.Decimal
	Replayed    bool
}
