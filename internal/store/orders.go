package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/roach88/pickup/internal/order"
)

const orderColumns = `id, payment_status, qr_status, order_status, created_at, scanned_at,
	served_at, user_id, cafeteria_id, total_amount, payment_type`

// Put replaces the whole snapshot for o.ID and delivers the stored row to
// every subscriber of that order.
func (s *Store) Put(ctx context.Context, o order.Order) error {
	if o.ID == "" {
		return fmt.Errorf("put order: empty id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO orders
		(`+orderColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			payment_status = excluded.payment_status,
			qr_status      = excluded.qr_status,
			order_status   = excluded.order_status,
			created_at     = excluded.created_at,
			scanned_at     = excluded.scanned_at,
			served_at      = excluded.served_at,
			user_id        = excluded.user_id,
			cafeteria_id   = excluded.cafeteria_id,
			total_amount   = excluded.total_amount,
			payment_type   = excluded.payment_type,
			revision       = orders.revision + 1
	`,
		o.ID,
		string(o.PaymentStatus),
		string(o.QRStatus),
		string(o.OrderStatus),
		toMillis(o.CreatedAt),
		toMillis(o.ScannedAt),
		toMillis(o.ServedAt),
		o.UserID,
		o.CafeteriaID,
		o.TotalAmount.String(),
		string(o.PaymentType),
	)
	if err != nil {
		return fmt.Errorf("put order %s: %w", o.ID, err)
	}

	// Subscribers get the row as stored, with times at millisecond precision.
	stored, err := s.Get(ctx, o.ID)
	if err != nil {
		return fmt.Errorf("put order %s: read back: %w", o.ID, err)
	}
	s.publishLocked(stored)
	return nil
}

// Get returns the latest snapshot for id. Unknown ids yield an error wrapping
// order.ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (order.Order, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return order.Order{}, fmt.Errorf("get order %s: %w", id, order.ErrNotFound)
	}
	if err != nil {
		return order.Order{}, fmt.Errorf("get order %s: %w", id, err)
	}
	return o, nil
}

// Revision returns how many times id has been written, or 0 if it never was.
func (s *Store) Revision(ctx context.Context, id string) (int64, error) {
	var rev int64
	err := s.db.QueryRowContext(ctx, `SELECT revision FROM orders WHERE id = ?`, id).Scan(&rev)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("revision %s: %w", id, err)
	}
	return rev, nil
}

// ListByUser returns every order of userID ordered by creation time, then id.
// Returns an empty slice (not nil) if the user has no orders.
func (s *Store) ListByUser(ctx context.Context, userID string) ([]order.Order, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE user_id = ?
		ORDER BY created_at ASC, id COLLATE BINARY ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query orders for user %s: %w", userID, err)
	}
	defer rows.Close()

	orders := []order.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}
	return orders, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(r rowScanner) (order.Order, error) {
	var (
		o                                  order.Order
		payment, qr, status, amount, ptype string
		created, scanned, served           sql.NullInt64
	)
	err := r.Scan(
		&o.ID,
		&payment,
		&qr,
		&status,
		&created,
		&scanned,
		&served,
		&o.UserID,
		&o.CafeteriaID,
		&amount,
		&ptype,
	)
	if err != nil {
		return order.Order{}, err
	}

	o.PaymentStatus = order.ParsePaymentStatus(payment)
	o.QRStatus = order.ParseQRStatus(qr)
	o.OrderStatus = order.ParseStatus(status)
	o.PaymentType = order.ParsePaymentType(ptype)
	o.CreatedAt = fromMillis(created)
	o.ScannedAt = fromMillis(scanned)
	o.ServedAt = fromMillis(served)

	o.TotalAmount, err = decimal.NewFromString(amount)
	if err != nil {
		return order.Order{}, fmt.Errorf("scan order %s: total amount %q: %w", o.ID, amount, err)
	}
	return o, nil
}

// toMillis stores zero times as NULL.
func toMillis(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func fromMillis(v sql.NullInt64) time.Time {
	if !v.Valid {
		return time.Time{}
	}
	return time.UnixMilli(v.Int64).UTC()
}
