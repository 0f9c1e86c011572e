package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/danirudp/lipos/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const productColumns = `id, name, description, unit_price, stock_quantity, category, image_url, created_at, updated_at`

func scanProduct(row interface{ Scan(dest ...any) error }) (*domain.Product, error) {
	p := &domain.Product{}
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.UnitPrice,
		&p.StockQuantity,
		&p.Category,
		&p.ImageURL,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	return p, err
}

func (r *Repository) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	p, err := scanProduct(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query product by id: %w", err)
	}
	return p, nil
}

func (r *Repository) ListProducts(ctx context.Context) ([]*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products ORDER BY category, name`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []*domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return products, nil
}

func (r *Repository) CreateProduct(ctx context.Context, p *domain.Product) error {
	if p.StockQuantity < 0 {
		return ErrInvalidStock
	}
	if p.UnitPrice.IsNegative() {
		return ErrInvalidPrice
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := r.now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	query := `INSERT INTO products (` + productColumns + `)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.ExecContext(ctx, query,
		p.ID,
		p.Name,
		p.Description,
		p.UnitPrice.StringFixed(2),
		p.StockQuantity,
		p.Category,
		p.ImageURL,
		p.CreatedAt,
		p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

// Peek returns the current stock without taking any lock.
func (r *Repository) Peek(ctx context.Context, productID string) (int, error) {
	var stock int
	err := r.db.QueryRowContext(ctx, `SELECT stock_quantity FROM products WHERE id = $1`, productID).Scan(&stock)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrProductNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("peek stock: %w", err)
	}
	return stock, nil
}

func (r *Repository) SetStock(ctx context.Context, productID string, quantity int) error {
	if quantity < 0 {
		return ErrInvalidStock
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE products SET stock_quantity = $1, updated_at = $2 WHERE id = $3`,
		quantity, r.now(), productID)
	if err != nil {
		return fmt.Errorf("set stock: %w", err)
	}
	return requireOneRow(res, ErrProductNotFound)
}

func (r *Repository) SetPrice(ctx context.Context, id string, price decimal.Decimal) error {
	if price.IsNegative() {
		return ErrInvalidPrice
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE products SET unit_price = $1, updated_at = $2 WHERE id = $3`,
		price.StringFixed(2), r.now(), id)
	if err != nil {
		return fmt.Errorf("set price: %w", err)
	}
	return requireOneRow(res, ErrProductNotFound)
}

// DeleteProduct refuses to remove a product that any order line still points at.
func (r *Repository) DeleteProduct(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM products
		 WHERE id = $1 AND NOT EXISTS (SELECT 1 FROM order_lines WHERE product_id = $1)`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrProductReferenced
		}
		return fmt.Errorf("delete product: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if n == 1 {
		return nil
	}

	if _, err := r.GetProduct(ctx, id); err != nil {
		return err
	}
	return ErrProductReferenced
}

func conditionalDecrement(ctx context.Context, q querier, productID string, quantity int, at time.Time) (bool, error) {
	res, err := q.ExecContext(ctx,
		`UPDATE products
		 SET stock_quantity = stock_quantity - $1, updated_at = $3
		 WHERE id = $2 AND stock_quantity >= $1`,
		quantity, productID, at)
	if err != nil {
		return false, fmt.Errorf("decrement stock for %s: %w", productID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("decrement stock for %s: %w", productID, err)
	}
	return n == 1, nil
}

func requireOneRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
