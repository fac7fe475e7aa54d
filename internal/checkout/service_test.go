package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/and161185/coursemart/internal/catalog"
	"github.com/and161185/coursemart/internal/enrollment"
	"github.com/and161185/coursemart/internal/errs"
	"github.com/and161185/coursemart/internal/gateway"
	"github.com/and161185/coursemart/internal/ledger"
	"github.com/and161185/coursemart/internal/mocks"
	"github.com/and161185/coursemart/internal/model"
	"github.com/and161185/coursemart/internal/testutil"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

const (
	callbackSecret = "callback-secret"
	webhookSecret  = "webhook-secret"
	student        = int64(7)
)

type env struct {
	svc    *Service
	store  *testutil.MemoryStore
	gw     *mocks.MockGateway
	course model.Course
	refs   atomic.Int64
	logs   *observer.ObservedLogs
}

func newEnv(t *testing.T, price float64) *env {
	t.Helper()

	ctrl := gomock.NewController(t)
	observed, logs := observer.New(zapcore.InfoLevel)
	logger := zaptest.NewLogger(t, zaptest.WrapOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return zapcore.NewTee(c, observed)
	}))).Sugar()
	store := testutil.NewMemoryStore()
	gw := mocks.NewMockGateway(ctrl)

	course, err := store.CreateCourse(context.Background(), model.Course{Title: "Go", Price: price, InstructorID: 100})
	require.NoError(t, err)

	svc := NewService(store,
		ledger.New(store, gw, "INR", logger),
		enrollment.New(store, logger),
		catalog.New(store, logger),
		Options{CallbackSecret: callbackSecret, WebhookSecret: webhookSecret, PublicKey: "rzp_test_key"},
		logger)

	return &env{svc: svc, store: store, gw: gw, course: course, logs: logs}
}

// start opens a checkout for the student against a fake provider.
func (e *env) start(t *testing.T, studentID int64) model.Order {
	t.Helper()

	e.gw.EXPECT().
		CreateRemoteOrder(gomock.Any(), gomock.Any(), "INR", gomock.Any()).
		DoAndReturn(func(_ context.Context, amount int64, currency, receipt string) (model.GatewayOrder, error) {
			return model.GatewayOrder{
				ID:       fmt.Sprintf("order_%d", e.refs.Add(1)),
				Amount:   amount,
				Currency: currency,
				Receipt:  receipt,
				Status:   gateway.RemoteCreated,
			}, nil
		})

	session, err := e.svc.StartCheckout(context.Background(), studentID, e.course.ID)
	require.NoError(t, err)
	return session.Order
}

func (e *env) orderStatus(t *testing.T, ref string) model.OrderStatus {
	t.Helper()
	o, err := e.store.GetOrderByRef(context.Background(), ref)
	require.NoError(t, err)
	return o.Status
}

func callback(order model.Order, paymentRef, secret string) model.PaymentCallback {
	return model.PaymentCallback{
		ProviderOrderRef:   order.ProviderOrderRef,
		ProviderPaymentRef: paymentRef,
		Signature:          gateway.Sign(order.ProviderOrderRef, paymentRef, secret),
		StudentID:          order.StudentID,
	}
}

func TestCheckoutHappyPath(t *testing.T) {
	e := newEnv(t, 500)
	ctx := context.Background()

	e.gw.EXPECT().
		CreateRemoteOrder(gomock.Any(), int64(50000), "INR", gomock.Any()).
		Return(model.GatewayOrder{ID: "order_A", Amount: 50000, Currency: "INR", Status: "created"}, nil)

	session, err := e.svc.StartCheckout(ctx, student, e.course.ID)
	require.NoError(t, err)
	require.Equal(t, model.OrderPending, session.Order.Status)
	require.Equal(t, int64(50000), session.Order.Amount)
	require.Equal(t, "rzp_test_key", session.GatewayPublicKey)
	require.Contains(t, string(session.GatewayOrder), `"order_A"`)

	result, err := e.svc.CompleteCheckout(ctx, callback(session.Order, "pay_1", callbackSecret))
	require.NoError(t, err)
	require.False(t, result.Replayed)
	require.Equal(t, model.OrderCompleted, result.Order.Status)
	require.Equal(t, student, result.Enrollment.StudentID)
	require.Equal(t, e.course.ID, result.Enrollment.CourseID)
	require.Equal(t, model.EnrollmentActive, result.Enrollment.Status)
	require.Zero(t, result.Enrollment.Progress)
	require.Equal(t, session.Order.ID, result.Enrollment.OrderID)

	roster, err := e.store.GetRoster(ctx, e.course.ID)
	require.NoError(t, err)
	require.Contains(t, roster, student)
}

func TestStartCheckoutTwiceWhilePending(t *testing.T) {
	e := newEnv(t, 500)
	e.start(t, student)

	_, err := e.svc.StartCheckout(context.Background(), student, e.course.ID)
	require.ErrorIs(t, err, errs.ErrConflict)
}

func TestStartCheckoutAfterEnrollment(t *testing.T) {
	e := newEnv(t, 500)
	order := e.start(t, student)
	_, err := e.svc.CompleteCheckout(context.Background(), callback(order, "pay_1", callbackSecret))
	require.NoError(t, err)

	_, err = e.svc.StartCheckout(context.Background(), student, e.course.ID)
	require.ErrorIs(t, err, errs.ErrAlreadyEnrolled)
}

func TestStartCheckoutGatewayUnavailable(t *testing.T) {
	e := newEnv(t, 500)
	e.gw.EXPECT().
		CreateRemoteOrder(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(model.GatewayOrder{}, fmt.Errorf("%w: connection refused", errs.ErrGatewayUnavailable))

	_, err := e.svc.StartCheckout(context.Background(), student, e.course.ID)
	require.ErrorIs(t, err, errs.ErrGatewayUnavailable)
	require.NotErrorIs(t, err, errs.ErrInvalidSignature)
}

func TestCompleteCheckoutIsIdempotent(t *testing.T) {
	e := newEnv(t, 500)
	order := e.start(t, student)
	cb := callback(order, "pay_1", callbackSecret)

	first, err := e.svc.CompleteCheckout(context.Background(), cb)
	require.NoError(t, err)

	second, err := e.svc.CompleteCheckout(context.Background(), cb)
	require.NoError(t, err)
	require.True(t, second.Replayed)
	require.Equal(t, first.Enrollment.ID, second.Enrollment.ID)
	require.Len(t, e.store.Enrollments(student, e.course.ID), 1)
}

func TestCompleteCheckoutTamperedSignature(t *testing.T) {
	valid := gateway.Sign("order_1", "pay_1", callbackSecret)

	for _, pos := range []int{0, 1, 17, 31, 32, 50, 63} {
		for bit := 0; bit < 5; bit++ {
			t.Run(fmt.Sprintf("char %d bit %d", pos, bit), func(t *testing.T) {
				e := newEnv(t, 500)
				order := e.start(t, student)
				require.Equal(t, "order_1", order.ProviderOrderRef)

				tampered := []byte(valid)
				tampered[pos] ^= 1 << bit

				_, err := e.svc.CompleteCheckout(context.Background(), model.PaymentCallback{
					ProviderOrderRef:   order.ProviderOrderRef,
					ProviderPaymentRef: "pay_1",
					Signature:          string(tampered),
				})
				require.ErrorIs(t, err, errs.ErrInvalidSignature)
				require.Equal(t, model.OrderFailed, e.orderStatus(t, order.ProviderOrderRef))
				require.Empty(t, e.store.Enrollments(student, e.course.ID))
			})
		}
	}
}

func TestCompleteCheckoutWrongSecret(t *testing.T) {
	e := newEnv(t, 500)
	order := e.start(t, student)

	_, err := e.svc.CompleteCheckout(context.Background(), callback(order, "pay_1", "not-the-secret"))
	require.ErrorIs(t, err, errs.ErrInvalidSignature)
	require.False(t, errs.PaymentCaptured(err))

	var se *errs.StepError
	require.True(t, errors.As(err, &se))
	require.Equal(t, errs.StepVerify, se.Step)

	require.Equal(t, model.OrderFailed, e.orderStatus(t, order.ProviderOrderRef))
	require.Empty(t, e.store.Enrollments(student, e.course.ID))

	// a failed order is terminal, even for a genuine confirmation
	_, err = e.svc.CompleteCheckout(context.Background(), callback(order, "pay_1", callbackSecret))
	require.ErrorIs(t, err, errs.ErrInvalidState)
	require.Empty(t, e.store.Enrollments(student, e.course.ID))
}

func TestCompleteCheckoutInvalidSignatureAfterSuccess(t *testing.T) {
	e := newEnv(t, 500)
	order := e.start(t, student)
	_, err := e.svc.CompleteCheckout(context.Background(), callback(order, "pay_1", callbackSecret))
	require.NoError(t, err)

	_, err = e.svc.CompleteCheckout(context.Background(), callback(order, "pay_1", "forged"))
	require.ErrorIs(t, err, errs.ErrInvalidSignature)
	require.Equal(t, model.OrderCompleted, e.orderStatus(t, order.ProviderOrderRef))
}

func TestCompleteCheckoutUnknownOrder(t *testing.T) {
	e := newEnv(t, 500)

	_, err := e.svc.CompleteCheckout(context.Background(), model.PaymentCallback{
		ProviderOrderRef:   "order_missing",
		ProviderPaymentRef: "pay_1",
		Signature:          gateway.Sign("order_missing", "pay_1", callbackSecret),
	})
	require.ErrorIs(t, err, errs.ErrNotFound)

	var se *errs.StepError
	require.True(t, errors.As(err, &se))
	require.Equal(t, errs.StepLookup, se.Step)
}

func TestCompleteCheckoutOtherStudent(t *testing.T) {
	e := newEnv(t, 500)
	order := e.start(t, student)

	cb := callback(order, "pay_1", callbackSecret)
	cb.StudentID = student + 1

	_, err := e.svc.CompleteCheckout(context.Background(), cb)
	require.ErrorIs(t, err, errs.ErrForbidden)
	require.Equal(t, model.OrderPending, e.orderStatus(t, order.ProviderOrderRef))
}

func TestCompleteCheckoutDifferentPaymentAfterSuccess(t *testing.T) {
	e := newEnv(t, 500)
	order := e.start(t, student)
	_, err := e.svc.CompleteCheckout(context.Background(), callback(order, "pay_1", callbackSecret))
	require.NoError(t, err)

	_, err = e.svc.CompleteCheckout(context.Background(), callback(order, "pay_2", callbackSecret))
	require.ErrorIs(t, err, errs.ErrInvalidState)
	require.Len(t, e.store.Enrollments(student, e.course.ID), 1)
}

func TestCompleteCheckoutConcurrentCallbacks(t *testing.T) {
	e := newEnv(t, 500)
	order := e.start(t, student)
	cb := callback(order, "pay_1", callbackSecret)

	const n = 16
	var (
		wg       sync.WaitGroup
		fresh    atomic.Int32
		failures atomic.Int32
		ids      sync.Map
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := e.svc.CompleteCheckout(context.Background(), cb)
			if err != nil {
				failures.Add(1)
				return
			}
			if !result.Replayed {
				fresh.Add(1)
			}
			ids.Store(result.Enrollment.ID, struct{}{})
		}()
	}
	wg.Wait()

	require.Zero(t, failures.Load())
	require.Equal(t, int32(1), fresh.Load())
	require.Len(t, e.store.Enrollments(student, e.course.ID), 1)

	distinct := 0
	ids.Range(func(_, _ any) bool { distinct++; return true })
	require.Equal(t, 1, distinct)
}

func TestCompleteCheckoutEnrollFailureRollsBack(t *testing.T) {
	e := newEnv(t, 500)
	order := e.start(t, student)
	cb := callback(order, "pay_1", callbackSecret)

	e.store.Fail = func(method string) error {
		if method == "CreateEnrollment" {
			return errors.New("connection reset")
		}
		return nil
	}

	_, err := e.svc.CompleteCheckout(context.Background(), cb)
	require.Error(t, err)
	require.True(t, errs.PaymentCaptured(err))
	require.Equal(t, model.OrderPending, e.orderStatus(t, order.ProviderOrderRef))

	e.store.Fail = nil
	result, err := e.svc.CompleteCheckout(context.Background(), cb)
	require.NoError(t, err)
	require.False(t, result.Replayed)
	require.Equal(t, model.OrderCompleted, e.orderStatus(t, order.ProviderOrderRef))
}

func TestCompleteCheckoutExistingEnrollment(t *testing.T) {
	e := newEnv(t, 500)
	order := e.start(t, student)

	existing, err := e.store.CreateEnrollment(context.Background(), model.Enrollment{
		StudentID: student, CourseID: e.course.ID, Status: model.EnrollmentActive,
	})
	require.NoError(t, err)

	result, err := e.svc.CompleteCheckout(context.Background(), callback(order, "pay_1", callbackSecret))
	require.NoError(t, err)
	require.Equal(t, existing.ID, result.Enrollment.ID)
	require.Equal(t, model.OrderCompleted, result.Order.Status)
	require.Len(t, e.store.Enrollments(student, e.course.ID), 1)
}

func TestReplayHealsMissingEnrollment(t *testing.T) {
	e := newEnv(t, 500)
	order := e.start(t, student)

	_, err := e.store.CompleteOrder(context.Background(), order.ProviderOrderRef, "pay_1")
	require.NoError(t, err)

	result, err := e.svc.CompleteCheckout(context.Background(), callback(order, "pay_1", callbackSecret))
	require.NoError(t, err)
	require.True(t, result.Replayed)
	require.Len(t, e.store.Enrollments(student, e.course.ID), 1)
}

func TestCompleteCheckoutRequiresRefs(t *testing.T) {
	e := newEnv(t, 500)

	_, err := e.svc.CompleteCheckout(context.Background(), model.PaymentCallback{ProviderOrderRef: "order_1"})
	require.ErrorIs(t, err, errs.ErrInvalidArgument)
}

func TestClaimFree(t *testing.T) {
	e := newEnv(t, 0)
	ctx := context.Background()

	result, err := e.svc.ClaimFree(ctx, student, e.course.ID)
	require.NoError(t, err)
	require.Equal(t, model.OrderCompleted, result.Order.Status)
	require.Zero(t, result.Order.Amount)
	require.Equal(t, result.Order.ID, result.Enrollment.OrderID)

	_, err = e.svc.ClaimFree(ctx, student, e.course.ID)
	require.ErrorIs(t, err, errs.ErrConflict)
	require.Len(t, e.store.Enrollments(student, e.course.ID), 1)

	orders, err := e.svc.Orders(ctx, student)
	require.NoError(t, err)
	require.Len(t, orders, 1)
}

func TestClaimFreeRejectsPaidCourse(t *testing.T) {
	e := newEnv(t, 500)

	_, err := e.svc.ClaimFree(context.Background(), student, e.course.ID)
	require.ErrorIs(t, err, errs.ErrInvalidArgument)
	require.Empty(t, e.store.Enrollments(student, e.course.ID))
}

func TestOrdersEmpty(t *testing.T) {
	e := newEnv(t, 500)

	orders, err := e.svc.Orders(context.Background(), student)
	require.NoError(t, err)
	require.NotNil(t, orders)
	require.Empty(t, orders)
}

func TestCompleteCheckoutPaidAfterExpiry(t *testing.T) {
	e := newEnv(t, 500)
	ctx := context.Background()
	order := e.start(t, student)

	// the sweeper failed the order just before the student paid
	_, err := e.store.FailOrder(ctx, order.ProviderOrderRef, ledger.ReasonExpired)
	require.NoError(t, err)

	_, err = e.svc.CompleteCheckout(ctx, callback(order, "pay_late", callbackSecret))
	require.ErrorIs(t, err, errs.ErrInvalidState)
	require.True(t, errs.PaymentCaptured(err))

	alerts := e.logs.FilterLevelExact(zapcore.ErrorLevel).FilterField(zap.String("provider_payment_ref", "pay_late"))
	require.Equal(t, 1, alerts.Len())
	require.Contains(t, alerts.All()[0].Message, "needs manual reconciliation")
	require.Empty(t, e.store.Enrollments(student, e.course.ID))
}
