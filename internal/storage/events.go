package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/and161185/coursemart/internal/errs"
	"github.com/and161185/coursemart/internal/model"
	"github.com/jackc/pgx/v5"
)

// RecordPaymentEvent claims a webhook delivery for processing. It reports
// false when the event was already processed or ignored. A failed event, or
// one whose claim is older than model.EventClaimTimeout, is claimed again; a
// live claim held by another delivery yields errs.ErrEventInFlight.
func (store *PostgresStorage) RecordPaymentEvent(ctx context.Context, ev model.PaymentEvent) (bool, error) {
	const query = `
		INSERT INTO payment_events (event_id, event_type, provider_order_ref, signature, payload, status)
		VALUES ($1, $2, $3, $4, $5, 'received')
		ON CONFLICT (event_id) DO UPDATE
			SET attempts = payment_events.attempts + 1, status = 'received', error = '', claimed_at = NOW()
			WHERE payment_events.status = 'failed'
				OR (payment_events.status = 'received' AND payment_events.claimed_at < NOW() - make_interval(secs => $6))
		RETURNING attempts`

	var attempts int
	err := store.conn(ctx).QueryRow(ctx, query,
		ev.EventID, ev.EventType, ev.ProviderOrderRef, ev.Signature, []byte(ev.Payload),
		model.EventClaimTimeout.Seconds()).Scan(&attempts)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return false, fmt.Errorf("record payment event: %w", err)
	}

	var status model.PaymentEventStatus
	err = store.conn(ctx).QueryRow(ctx, `SELECT status FROM payment_events WHERE event_id = $1`, ev.EventID).Scan(&status)
	if err != nil {
		return false, fmt.Errorf("read payment event: %w", err)
	}
	if status == model.EventReceived {
		return false, errs.ErrEventInFlight
	}
	return false, nil
}

func (store *PostgresStorage) SetPaymentEventStatus(ctx context.Context, eventID string, status model.PaymentEventStatus, errMsg string) error {
	const query = `UPDATE payment_events SET status = $2, error = $3 WHERE event_id = $1`

	if _, err := store.conn(ctx).Exec(ctx, query, eventID, status, errMsg); err != nil {
		return fmt.Errorf("update payment event: %w", err)
	}
	return nil
}
