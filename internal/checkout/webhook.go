package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/and161185/coursemart/internal/errs"
	"github.com/and161185/coursemart/internal/gateway"
	"github.com/and161185/coursemart/internal/model"
	"github.com/google/uuid"
)

const (
	EventPaymentCaptured = "payment.captured"
	EventPaymentFailed   = "payment.failed"
	EventOrderPaid       = "order.paid"
)

type webhookEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID               string `json:"id"`
				OrderID          string `json:"order_id"`
				Status           string `json:"status"`
				ErrorDescription string `json:"error_description"`
			} `json:"entity"`
		} `json:"payment"`
		Order struct {
			Entity struct {
				ID     string `json:"id"`
				Status string `json:"status"`
			} `json:"entity"`
		} `json:"order"`
	} `json:"payload"`
}

func (e webhookEvent) orderRef() string {
	if ref := e.Payload.Payment.Entity.OrderID; ref != "" {
		return ref
	}
	return e.Payload.Order.Entity.ID
}

// HandleWebhook applies a provider notification. The body signature stands in
// for the callback signature. A delivery first claims the event id: finished
// events are acknowledged as duplicates, failed ones are applied again, and an
// event claimed by a concurrent delivery is refused with ErrEventInFlight so
// the provider redelivers later. A claim older than model.EventClaimTimeout is
// taken over, so a crashed delivery does not block the event forever.
func (s *Service) HandleWebhook(ctx context.Context, body []byte, signature, eventID string) (model.WebhookOutcome, error) {
	if !gateway.VerifyWebhook(body, signature, s.opts.WebhookSecret) {
		s.logger.Warnw("webhook signature mismatch", "event_id", eventID, "body_size", len(body))
		return model.WebhookOutcome{}, errs.ErrInvalidSignature
	}

	var ev webhookEvent
	if err := json.Unmarshal(body, &ev); err != nil || ev.Event == "" {
		return model.WebhookOutcome{}, fmt.Errorf("%w: malformed webhook body", errs.ErrInvalidArgument)
	}
	if eventID == "" {
		eventID = uuid.NewSHA1(uuid.NameSpaceOID, body).String()
	}

	fresh, err := s.storage.RecordPaymentEvent(ctx, model.PaymentEvent{
		EventID:          eventID,
		EventType:        ev.Event,
		ProviderOrderRef: ev.orderRef(),
		Signature:        signature,
		Payload:          body,
	})
	if errors.Is(err, errs.ErrEventInFlight) {
		s.logger.Infow("webhook event is being handled by another delivery", "event_id", eventID, "event", ev.Event)
		return model.WebhookOutcome{}, err
	}
	if err != nil {
		return model.WebhookOutcome{}, err
	}
	if !fresh {
		s.logger.Infow("duplicate webhook delivery", "event_id", eventID, "event", ev.Event)
		return model.WebhookOutcome{EventID: eventID, Status: model.EventProcessed, Duplicate: true}, nil
	}

	status, note, err := s.apply(ctx, ev)
	if err != nil {
		if setErr := s.storage.SetPaymentEventStatus(ctx, eventID, model.EventFailed, err.Error()); setErr != nil {
			s.logger.Errorw("failed to update webhook event", "event_id", eventID, "error", setErr)
		}
		return model.WebhookOutcome{}, err
	}
	if err := s.storage.SetPaymentEventStatus(ctx, eventID, status, note); err != nil {
		return model.WebhookOutcome{}, err
	}

	s.logger.Infow("webhook handled", "event_id", eventID, "event", ev.Event,
		"provider_order_ref", ev.orderRef(), "status", status)
	return model.WebhookOutcome{EventID: eventID, Status: status}, nil
}

// apply returns the event status to record and an optional note.
func (s *Service) apply(ctx context.Context, ev webhookEvent) (model.PaymentEventStatus, string, error) {
	ref := ev.orderRef()

	switch ev.Event {
	case EventPaymentCaptured, EventOrderPaid:
		paymentRef := ev.Payload.Payment.Entity.ID
		if ref == "" || paymentRef == "" {
			return "", "", fmt.Errorf("%w: %s without order or payment id", errs.ErrInvalidArgument, ev.Event)
		}

		order, err := s.ledger.Get(ctx, ref)
		if errors.Is(err, errs.ErrNotFound) {
			return model.EventIgnored, "unknown order", nil
		}
		if err != nil {
			return "", "", errs.AtStep(errs.StepLookup, err)
		}

		_, err = s.settle(ctx, order, paymentRef)
		if errors.Is(err, errs.ErrInvalidState) {
			s.logger.Errorw("captured payment for an order that cannot be settled, needs manual reconciliation",
				"provider_order_ref", ref, "provider_payment_ref", paymentRef, "order_status", order.Status)
			return model.EventIgnored, err.Error(), nil
		}
		if err != nil {
			return "", "", err
		}
		return model.EventProcessed, "", nil

	case EventPaymentFailed:
		reason := ev.Payload.Payment.Entity.ErrorDescription
		if reason == "" {
			reason = "payment failed"
		}

		_, err := s.ledger.MarkFailed(ctx, ref, reason)
		switch {
		case errors.Is(err, errs.ErrNotFound):
			return model.EventIgnored, "unknown order", nil
		case errors.Is(err, errs.ErrInvalidState):
			// a later attempt may already have succeeded
			return model.EventIgnored, "order already settled", nil
		case err != nil:
			return "", "", err
		}
		return model.EventProcessed, "", nil

	default:
		return model.EventIgnored, "unhandled event type", nil
	}
}
