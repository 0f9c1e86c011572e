package repository

import (
	"context"
	"fmt"

	"github.com/danirudp/lipos/domain"
	"github.com/shopspring/decimal"
)

const WalkInCustomerID = "walk-in"

// DemoProducts is the catalog a fresh till starts with.
func DemoProducts() []*domain.Product {
	return []*domain.Product{
		{
			Name:          "Wireless Noise Cancelling Headphones",
			Description:   "Premium over-ear headphones with 30h battery life.",
			UnitPrice:     decimal.RequireFromString("299.99"),
			StockQuantity: 50,
			Category:      "Electronics",
			ImageURL:      "https://images.unsplash.com/photo-1505740420928-5e560c06d30e?w=800&q=80",
		},
		{
			Name:          "Mechanical Gaming Keyboard",
			Description:   "RGB backlit, blue switches, compact design.",
			UnitPrice:     decimal.RequireFromString("129.50"),
			StockQuantity: 30,
			Category:      "Electronics",
			ImageURL:      "https://images.unsplash.com/photo-1511467687858-23d96c32e4ae?w=800&q=80",
		},
		{
			Name:          "Smart Watch Series 7",
			Description:   "Health tracking, GPS, waterproof.",
			UnitPrice:     decimal.RequireFromString("399.00"),
			StockQuantity: 25,
			Category:      "Wearables",
			ImageURL:      "https://images.unsplash.com/photo-1523275335684-37898b6baf30?w=800&q=80",
		},
		{
			Name:          "4K Monitor 27-inch",
			Description:   "IPS display, 144Hz refresh rate, HDR support.",
			UnitPrice:     decimal.RequireFromString("450.00"),
			StockQuantity: 15,
			Category:      "Electronics",
			ImageURL:      "https://images.unsplash.com/photo-1527443224154-c4a3942d3acf?w=800&q=80",
		},
		{
			Name:          "Ergonomic Office Chair",
			Description:   "Mesh back, adjustable lumbar support.",
			UnitPrice:     decimal.RequireFromString("199.99"),
			StockQuantity: 10,
			Category:      "Furniture",
			ImageURL:      "https://images.unsplash.com/photo-1592078615290-033ee584e267?w=800&q=80",
		},
		{
			Name:          "USB-C Hub Multiport",
			Description:   "HDMI, USB 3.0, SD Card Reader.",
			UnitPrice:     decimal.RequireFromString("45.99"),
			StockQuantity: 100,
			Category:      "Accessories",
			ImageURL:      "https://images.unsplash.com/photo-1611186871348-b1ce696e52c9?w=800&q=80",
		},
	}
}

// Seed loads the demo catalog and the walk-in customer into an empty database.
// It does nothing when products already exist.
func (r *Repository) Seed(ctx context.Context) error {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&count); err != nil {
		return fmt.Errorf("count products: %w", err)
	}
	if count > 0 {
		return nil
	}

	for _, p := range DemoProducts() {
		if err := r.CreateProduct(ctx, p); err != nil {
			return fmt.Errorf("seed product %q: %w", p.Name, err)
		}
	}

	if err := r.CreateCustomer(ctx, WalkInCustomer()); err != nil && !isUniqueViolation(err) {
		return fmt.Errorf("seed customer: %w", err)
	}
	return nil
}

// WalkInCustomer is the default customer for anonymous sales.
func WalkInCustomer() *domain.Customer {
	return &domain.Customer{
		ID:    WalkInCustomerID,
		Name:  "John Doe (Walk-in)",
		Email: "walkin@example.com",
		Phone: "0771234567",
	}
}
