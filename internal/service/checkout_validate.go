package service

import (
	"slices"
	"strings"

	d "github.com/danirudp/lipos/domain"
)

// productDemand is the total quantity a cart asks for one product, with the cart lines behind it.
type productDemand struct {
	productID string
	quantity  int
	lines     []int // indexes into the request items
}

// validate rejects malformed requests before any I/O.
func validate(req *d.PlaceOrderRequest) (d.PaymentMethod, error) {
	if req == nil || len(req.Items) == 0 {
		return "", emptyCart()
	}

	for _, item := range req.Items {
		if item.ProductID == "" {
			return "", invalidLine("", "product id is required")
		}
		if item.Quantity < 1 {
			return "", invalidLine(item.ProductID, "quantity must be at least 1")
		}
		if item.UnitPriceSnapshot.IsNegative() {
			return "", invalidLine(item.ProductID, "unit price must not be negative")
		}
		// orders store money in cents; a finer snapshot would make the stored total drift
		if !item.UnitPriceSnapshot.Equal(item.UnitPriceSnapshot.Truncate(2)) {
			return "", invalidLine(item.ProductID, "unit price must have at most 2 decimal places")
		}
	}

	method, ok := d.ParsePaymentMethod(req.PaymentMethod)
	if !ok {
		return "", invalidLine("", "unsupported payment method "+req.PaymentMethod)
	}
	return method, nil
}

// aggregate sums quantities per product, keeping first-appearance order.
func aggregate(items []d.CartLine) []productDemand {
	index := make(map[string]int, len(items))
	var demand []productDemand
	for i, item := range items {
		pos, seen := index[item.ProductID]
		if !seen {
			pos = len(demand)
			index[item.ProductID] = pos
			demand = append(demand, productDemand{productID: item.ProductID})
		}
		demand[pos].quantity += item.Quantity
		demand[pos].lines = append(demand[pos].lines, i)
	}
	return demand
}

// lockOrder returns demand sorted by product id. Every commit decrements rows in this order so two
// checkouts touching the same products cannot deadlock on each other.
func lockOrder(demand []productDemand) []productDemand {
	sorted := slices.Clone(demand)
	slices.SortFunc(sorted, func(a, b productDemand) int {
		return strings.Compare(a.productID, b.productID)
	})
	return sorted
}
