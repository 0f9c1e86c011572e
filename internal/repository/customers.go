package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/danirudp/lipos/domain"
	"github.com/google/uuid"
)

func (r *Repository) CreateCustomer(ctx context.Context, c *domain.Customer) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = r.now()
	}

	query := `INSERT INTO customers (id, name, email, phone, created_at) VALUES ($1, $2, $3, $4, $5)`
	if _, err := r.db.ExecContext(ctx, query, c.ID, c.Name, c.Email, c.Phone, c.CreatedAt); err != nil {
		return fmt.Errorf("insert customer: %w", err)
	}
	return nil
}

func (r *Repository) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	query := `SELECT id, name, email, phone, created_at FROM customers WHERE id = $1`

	var c domain.Customer
	err := r.db.QueryRowContext(ctx, query, id).Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCustomerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query customer by id: %w", err)
	}
	return &c, nil
}

func (r *Repository) ListCustomers(ctx context.Context) ([]*domain.Customer, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, email, phone, created_at FROM customers ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query customers: %w", err)
	}
	defer rows.Close()

	var customers []*domain.Customer
	for rows.Next() {
		var c domain.Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan customer row: %w", err)
		}
		customers = append(customers, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return customers, nil
}

// DeleteCustomer refuses to remove a customer with order history.
func (r *Repository) DeleteCustomer(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM customers
		 WHERE id = $1 AND NOT EXISTS (SELECT 1 FROM orders WHERE customer_id = $1)`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrCustomerReferenced
		}
		return fmt.Errorf("delete customer: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete customer: %w", err)
	}
	if n == 1 {
		return nil
	}

	if _, err := r.GetCustomer(ctx, id); err != nil {
		return err
	}
	return ErrCustomerReferenced
}
