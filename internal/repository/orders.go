package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/danirudp/lipos/domain"
)

const orderColumns = `id, customer_id, total_amount, status, payment_method, idempotency_key, created_at`

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func insertOrder(ctx context.Context, q querier, order *domain.Order) error {
	query := `INSERT INTO orders (` + orderColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := q.ExecContext(ctx, query,
		order.ID,
		nullString(order.CustomerID),
		order.TotalAmount.StringFixed(2),
		string(order.Status),
		string(order.PaymentMethod),
		nullString(order.IdempotencyKey),
		order.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) && order.IdempotencyKey != "" {
			return ErrDuplicateIdempotencyKey
		}
		if isForeignKeyViolation(err) {
			return ErrCustomerNotFound
		}
		return fmt.Errorf("insert order: %w", err)
	}

	if len(order.Lines) == 0 {
		return nil
	}

	// one multi-row insert for all lines
	var sb strings.Builder
	sb.WriteString(`INSERT INTO order_lines (order_id, line_no, product_id, quantity, unit_price) VALUES `)
	args := make([]any, 0, len(order.Lines)*5)
	for i, l := range order.Lines {
		if i > 0 {
			sb.WriteString(", ")
		}
		n := i * 5
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d)", n+1, n+2, n+3, n+4, n+5)
		args = append(args, order.ID, l.LineNo, l.ProductID, l.Quantity, l.UnitPriceSnapshot.StringFixed(2))
	}

	if _, err := q.ExecContext(ctx, sb.String(), args...); err != nil {
		if isForeignKeyViolation(err) {
			return ErrProductNotFound
		}
		return fmt.Errorf("insert order lines: %w", err)
	}
	return nil
}

func scanOrder(row interface{ Scan(dest ...any) error }) (*domain.Order, error) {
	var (
		o              domain.Order
		customerID     sql.NullString
		idempotencyKey sql.NullString
		status         string
		paymentMethod  string
	)
	if err := row.Scan(
		&o.ID,
		&customerID,
		&o.TotalAmount,
		&status,
		&paymentMethod,
		&idempotencyKey,
		&o.CreatedAt,
	); err != nil {
		return nil, err
	}
	o.CustomerID = customerID.String
	o.IdempotencyKey = idempotencyKey.String
	o.Status = domain.OrderStatus(status)
	o.PaymentMethod = domain.PaymentMethod(paymentMethod)
	return &o, nil
}

func (r *Repository) GetOrderByID(ctx context.Context, id string) (*domain.Order, error) {
	return r.getOrder(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

func (r *Repository) GetOrderByIdempotencyKey(ctx context.Context, key string) (*domain.Order, error) {
	return r.getOrder(ctx, `SELECT `+orderColumns+` FROM orders WHERE idempotency_key = $1`, key)
}

func (r *Repository) getOrder(ctx context.Context, query string, arg string) (*domain.Order, error) {
	order, err := scanOrder(r.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}

	if err := r.attachLines(ctx, []*domain.Order{order}); err != nil {
		return nil, err
	}
	return order, nil
}

// ListOrders returns the most recent orders first. A non-positive limit means no limit.
func (r *Repository) ListOrders(ctx context.Context, limit int) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}
	return r.listOrders(ctx, query, args...)
}

func (r *Repository) ListOrdersByCustomer(ctx context.Context, customerID string) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE customer_id = $1 ORDER BY created_at DESC, id DESC`
	return r.listOrders(ctx, query, customerID)
}

func (r *Repository) listOrders(ctx context.Context, query string, args ...any) ([]*domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}

	var orders []*domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	// release the connection before loading lines; sqlite runs on a single one
	rows.Close()

	if err := r.attachLines(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *Repository) attachLines(ctx context.Context, orders []*domain.Order) error {
	if len(orders) == 0 {
		return nil
	}

	byID := make(map[string]*domain.Order, len(orders))
	placeholders := make([]string, len(orders))
	args := make([]any, len(orders))
	for i, o := range orders {
		byID[o.ID] = o
		o.Lines = []domain.OrderLine{}
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = o.ID
	}

	query := `SELECT order_id, line_no, product_id, quantity, unit_price FROM order_lines
	          WHERE order_id IN (` + strings.Join(placeholders, ", ") + `)
	          ORDER BY order_id, line_no`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query order lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var l domain.OrderLine
		if err := rows.Scan(&l.OrderID, &l.LineNo, &l.ProductID, &l.Quantity, &l.UnitPriceSnapshot); err != nil {
			return fmt.Errorf("scan order line: %w", err)
		}
		if o, ok := byID[l.OrderID]; ok {
			o.Lines = append(o.Lines, l)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("row iteration error: %w", err)
	}
	return nil
}
