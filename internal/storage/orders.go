package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/and161185/coursemart/internal/errs"
	"github.com/and161185/coursemart/internal/model"
	"github.com/jackc/pgx/v5"
)

const orderColumns = `id, provider_order_ref, COALESCE(provider_payment_ref, ''), amount, currency, receipt,
	status, failure_reason, student_id, course_id, created_at, updated_at`

func scanOrder(row pgx.Row) (model.Order, error) {
	var o model.Order
	err := row.Scan(&o.ID, &o.ProviderOrderRef, &o.ProviderPaymentRef, &o.Amount, &o.Currency, &o.Receipt,
		&o.Status, &o.FailureReason, &o.StudentID, &o.CourseID, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

func (store *PostgresStorage) CreateOrder(ctx context.Context, order model.Order) (model.Order, error) {
	query := `
		INSERT INTO orders (id, provider_order_ref, provider_payment_ref, amount, currency, receipt, status, student_id, course_id)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9)
		RETURNING ` + orderColumns

	created, err := scanOrder(store.conn(ctx).QueryRow(ctx, query,
		order.ID, order.ProviderOrderRef, order.ProviderPaymentRef, order.Amount, order.Currency, order.Receipt,
		order.Status, order.StudentID, order.CourseID))
	if err != nil {
		if isUniqueViolation(err) {
			// only the partial index on pending pairs can collide for a fresh uuid
			return model.Order{}, errs.ErrOrderPending
		}
		return model.Order{}, fmt.Errorf("insert order: %w", err)
	}

	return created, nil
}

func (store *PostgresStorage) GetOrderByRef(ctx context.Context, providerOrderRef string) (model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE provider_order_ref = $1`

	order, err := scanOrder(store.conn(ctx).QueryRow(ctx, query, providerOrderRef))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Order{}, errs.ErrOrderNotFound
		}
		return model.Order{}, fmt.Errorf("get order: %w", err)
	}

	return order, nil
}

func (store *PostgresStorage) GetPendingOrder(ctx context.Context, studentID, courseID int64) (model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE student_id = $1 AND course_id = $2 AND status = 'PENDING'`

	order, err := scanOrder(store.conn(ctx).QueryRow(ctx, query, studentID, courseID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Order{}, errs.ErrOrderNotFound
		}
		return model.Order{}, fmt.Errorf("get pending order: %w", err)
	}

	return order, nil
}

// CompleteOrder moves a pending order to COMPLETED. The status predicate
// makes the transition single-shot under concurrent callbacks.
func (store *PostgresStorage) CompleteOrder(ctx context.Context, providerOrderRef, providerPaymentRef string) (model.Order, error) {
	query := `
		UPDATE orders
		SET status = 'COMPLETED', provider_payment_ref = $2, updated_at = NOW()
		WHERE provider_order_ref = $1 AND status = 'PENDING'
		RETURNING ` + orderColumns

	return store.transitionOrder(ctx, query, providerOrderRef, providerPaymentRef)
}

func (store *PostgresStorage) FailOrder(ctx context.Context, providerOrderRef, reason string) (model.Order, error) {
	query := `
		UPDATE orders
		SET status = 'FAILED', failure_reason = $2, updated_at = NOW()
		WHERE provider_order_ref = $1 AND status = 'PENDING'
		RETURNING ` + orderColumns

	return store.transitionOrder(ctx, query, providerOrderRef, reason)
}

func (store *PostgresStorage) transitionOrder(ctx context.Context, query, providerOrderRef, arg string) (model.Order, error) {
	order, err := scanOrder(store.conn(ctx).QueryRow(ctx, query, providerOrderRef, arg))
	if err == nil {
		return order, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return model.Order{}, fmt.Errorf("update order status: %w", err)
	}

	// Если обновление не произошло, заказа нет или он уже не PENDING
	if _, err := store.GetOrderByRef(ctx, providerOrderRef); err != nil {
		return model.Order{}, err
	}
	return model.Order{}, errs.ErrOrderNotPending
}

func (store *PostgresStorage) ListStudentOrders(ctx context.Context, studentID int64) ([]model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE student_id = $1 ORDER BY created_at DESC`

	return store.queryOrders(ctx, query, studentID)
}

func (store *PostgresStorage) ListStalePendingOrders(ctx context.Context, before time.Time) ([]model.Order, error) {
	query := `SELECT ` + orderColumns + `
		FROM orders
		WHERE status = 'PENDING' AND created_at < $1
		ORDER BY created_at ASC
		LIMIT 500`

	return store.queryOrders(ctx, query, before)
}

func (store *PostgresStorage) queryOrders(ctx context.Context, query string, args ...any) ([]model.Order, error) {
	rows, err := store.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration: %w", err)
	}

	return orders, nil
}
