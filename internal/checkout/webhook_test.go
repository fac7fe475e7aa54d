package checkout

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/and161185/coursemart/internal/errs"
	"github.com/and161185/coursemart/internal/gateway"
	"github.com/and161185/coursemart/internal/model"
	"github.com/stretchr/testify/require"
)

func webhookBody(event, orderRef, paymentRef string) []byte {
	return []byte(fmt.Sprintf(`{"entity":"event","event":%q,"payload":{"payment":{"entity":{"id":%q,"order_id":%q,"status":"captured"}}}}`,
		event, paymentRef, orderRef))
}

func (e *env) deliver(t *testing.T, body []byte, eventID string) (model.WebhookOutcome, error) {
	t.Helper()
	return e.svc.HandleWebhook(context.Background(), body, gateway.SignWebhook(body, webhookSecret), eventID)
}

func TestWebhookCapturedEnrolls(t *testing.T) {
	e := newEnv(t, 500)
	order := e.start(t, student)
	body := webhookBody(EventPaymentCaptured, order.ProviderOrderRef, "pay_1")

	outcome, err := e.deliver(t, body, "evt_1")
	require.NoError(t, err)
	require.Equal(t, model.EventProcessed, outcome.Status)
	require.False(t, outcome.Duplicate)
	require.Equal(t, model.OrderCompleted, e.orderStatus(t, order.ProviderOrderRef))
	require.Len(t, e.store.Enrollments(student, e.course.ID), 1)

	outcome, err = e.deliver(t, body, "evt_1")
	require.NoError(t, err)
	require.True(t, outcome.Duplicate)

	// the client callback arriving after the webhook is a replay
	result, err := e.svc.CompleteCheckout(context.Background(), callback(order, "pay_1", callbackSecret))
	require.NoError(t, err)
	require.True(t, result.Replayed)
	require.Len(t, e.store.Enrollments(student, e.course.ID), 1)
}

func TestWebhookBadSignature(t *testing.T) {
	e := newEnv(t, 500)
	order := e.start(t, student)
	body := webhookBody(EventPaymentCaptured, order.ProviderOrderRef, "pay_1")

	_, err := e.svc.HandleWebhook(context.Background(), body, gateway.SignWebhook(body, "guess"), "evt_1")
	require.ErrorIs(t, err, errs.ErrInvalidSignature)
	require.Equal(t, model.OrderPending, e.orderStatus(t, order.ProviderOrderRef))

	_, recorded := e.store.PaymentEvent("evt_1")
	require.False(t, recorded)
}

func TestWebhookMalformedBody(t *testing.T) {
	e := newEnv(t, 500)

	_, err := e.deliver(t, []byte(`{"event":`), "evt_1")
	require.ErrorIs(t, err, errs.ErrInvalidArgument)
}

func TestWebhookUnknownOrderIgnored(t *testing.T) {
	e := newEnv(t, 500)

	outcome, err := e.deliver(t, webhookBody(EventPaymentCaptured, "order_elsewhere", "pay_1"), "evt_1")
	require.NoError(t, err)
	require.Equal(t, model.EventIgnored, outcome.Status)

	ev, ok := e.store.PaymentEvent("evt_1")
	require.True(t, ok)
	require.Equal(t, model.EventIgnored, ev.Status)
}

func TestWebhookPaymentFailed(t *testing.T) {
	e := newEnv(t, 500)
	order := e.start(t, student)
	body := []byte(fmt.Sprintf(`{"event":"payment.failed","payload":{"payment":{"entity":{"id":"pay_1","order_id":%q,"status":"failed","error_description":"card declined"}}}}`,
		order.ProviderOrderRef))

	outcome, err := e.deliver(t, body, "evt_1")
	require.NoError(t, err)
	require.Equal(t, model.EventProcessed, outcome.Status)

	got, err := e.store.GetOrderByRef(context.Background(), order.ProviderOrderRef)
	require.NoError(t, err)
	require.Equal(t, model.OrderFailed, got.Status)
	require.Equal(t, "card declined", got.FailureReason)

	// capture for a failed order is recorded but cannot enroll
	outcome, err = e.deliver(t, webhookBody(EventPaymentCaptured, order.ProviderOrderRef, "pay_2"), "evt_2")
	require.NoError(t, err)
	require.Equal(t, model.EventIgnored, outcome.Status)
	require.Empty(t, e.store.Enrollments(student, e.course.ID))
}

func TestWebhookUnhandledEvent(t *testing.T) {
	e := newEnv(t, 500)

	outcome, err := e.deliver(t, []byte(`{"event":"refund.created","payload":{}}`), "")
	require.NoError(t, err)
	require.Equal(t, model.EventIgnored, outcome.Status)
	require.NotEmpty(t, outcome.EventID)
}

func TestWebhookFailedEventIsRetried(t *testing.T) {
	e := newEnv(t, 500)
	order := e.start(t, student)
	body := webhookBody(EventOrderPaid, order.ProviderOrderRef, "pay_1")

	e.store.Fail = func(method string) error {
		if method == "AddToRoster" {
			return errors.New("deadlock detected")
		}
		return nil
	}
	_, err := e.deliver(t, body, "evt_1")
	require.Error(t, err)

	ev, ok := e.store.PaymentEvent("evt_1")
	require.True(t, ok)
	require.Equal(t, model.EventFailed, ev.Status)
	require.Equal(t, model.OrderPending, e.orderStatus(t, order.ProviderOrderRef))

	e.store.Fail = nil
	outcome, err := e.deliver(t, body, "evt_1")
	require.NoError(t, err)
	require.Equal(t, model.EventProcessed, outcome.Status)
	require.False(t, outcome.Duplicate)

	ev, _ = e.store.PaymentEvent("evt_1")
	require.Equal(t, 2, ev.Attempts)
	require.Len(t, e.store.Enrollments(student, e.course.ID), 1)
}

func TestWebhookConcurrentDeliveryIsRefused(t *testing.T) {
	e := newEnv(t, 500)
	order := e.start(t, student)
	body := webhookBody(EventPaymentCaptured, order.ProviderOrderRef, "pay_1")

	// another delivery of the same event claimed it and is still working
	fresh, err := e.store.RecordPaymentEvent(context.Background(), model.PaymentEvent{
		EventID: "evt_1", EventType: EventPaymentCaptured, ProviderOrderRef: order.ProviderOrderRef, Payload: body,
	})
	require.NoError(t, err)
	require.True(t, fresh)

	_, err = e.deliver(t, body, "evt_1")
	require.ErrorIs(t, err, errs.ErrEventInFlight)
	require.ErrorIs(t, err, errs.ErrConflict)
	require.Equal(t, model.OrderPending, e.orderStatus(t, order.ProviderOrderRef))
	require.Empty(t, e.store.Enrollments(student, e.course.ID))

	ev, _ := e.store.PaymentEvent("evt_1")
	require.Equal(t, 1, ev.Attempts)
	require.Equal(t, model.EventReceived, ev.Status)
}

func TestWebhookStaleClaimIsTakenOver(t *testing.T) {
	e := newEnv(t, 500)
	order := e.start(t, student)
	body := webhookBody(EventPaymentCaptured, order.ProviderOrderRef, "pay_1")

	claimed := time.Now()
	e.store.Now = func() time.Time { return claimed }
	_, err := e.store.RecordPaymentEvent(context.Background(), model.PaymentEvent{
		EventID: "evt_1", EventType: EventPaymentCaptured, ProviderOrderRef: order.ProviderOrderRef, Payload: body,
	})
	require.NoError(t, err)

	// the claiming delivery died without recording an outcome
	e.store.Now = func() time.Time { return claimed.Add(model.EventClaimTimeout + time.Second) }
	outcome, err := e.deliver(t, body, "evt_1")
	require.NoError(t, err)
	require.Equal(t, model.EventProcessed, outcome.Status)
	require.False(t, outcome.Duplicate)
	require.Len(t, e.store.Enrollments(student, e.course.ID), 1)

	ev, _ := e.store.PaymentEvent("evt_1")
	require.Equal(t, 2, ev.Attempts)
	require.Equal(t, model.EventProcessed, ev.Status)
}
