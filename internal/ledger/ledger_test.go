package ledger

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/and161185/coursemart/internal/errs"
	"github.com/and161185/coursemart/internal/mocks"
	"github.com/and161185/coursemart/internal/model"
	"github.com/and161185/coursemart/internal/testutil"
	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func setup(t *testing.T) (*Ledger, *testutil.MemoryStore, *mocks.MockGateway) {
	ctrl := gomock.NewController(t)
	gw := mocks.NewMockGateway(ctrl)
	store := testutil.NewMemoryStore()
	logger := zaptest.NewLogger(t).Sugar()

	return New(store, gw, "INR", logger), store, gw
}

func addCourse(t *testing.T, store *testutil.MemoryStore, price float64) model.Course {
	course, err := store.CreateCourse(context.Background(), model.Course{Title: "Go", Price: price, InstructorID: 1})
	require.NoError(t, err)
	return course
}

func TestCreateOrder(t *testing.T) {
	l, store, gw := setup(t)
	course := addCourse(t, store, 500)

	gw.EXPECT().
		CreateRemoteOrder(gomock.Any(), int64(50000), "INR", gomock.Any()).
		DoAndReturn(func(_ context.Context, amount int64, currency, receipt string) (model.GatewayOrder, error) {
			require.True(t, strings.HasPrefix(receipt, "rcpt_7_"))
			return model.GatewayOrder{ID: "order_A", Amount: amount, Currency: currency, Receipt: receipt, Status: "created"}, nil
		})

	order, remote, err := l.CreateOrder(context.Background(), 7, course.ID)
	require.NoError(t, err)
	require.Equal(t, model.OrderPending, order.Status)
	require.Equal(t, int64(50000), order.Amount)
	require.Equal(t, "order_A", order.ProviderOrderRef)
	require.Equal(t, remote.Receipt, order.Receipt)
	require.NotEqual(t, uuid.Nil, order.ID)
}

func TestCreateOrderTwiceWhilePending(t *testing.T) {
	l, store, gw := setup(t)
	course := addCourse(t, store, 99.99)

	gw.EXPECT().
		CreateRemoteOrder(gomock.Any(), int64(9999), "INR", gomock.Any()).
		Return(model.GatewayOrder{ID: "order_A", Status: "created"}, nil).
		Times(1)

	_, _, err := l.CreateOrder(context.Background(), 7, course.ID)
	require.NoError(t, err)

	_, _, err = l.CreateOrder(context.Background(), 7, course.ID)
	require.ErrorIs(t, err, errs.ErrConflict)
	require.ErrorIs(t, err, errs.ErrOrderPending)
}

func TestCreateOrderRejections(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(t *testing.T, store *testutil.MemoryStore) int64
		wantErr error
	}{
		{
			name:    "missing course",
			prepare: func(t *testing.T, store *testutil.MemoryStore) int64 { return 404 },
			wantErr: errs.ErrNotFound,
		},
		{
			name: "inactive course",
			prepare: func(t *testing.T, store *testutil.MemoryStore) int64 {
				c := addCourse(t, store, 10)
				require.NoError(t, store.DeactivateCourse(context.Background(), c.ID))
				return c.ID
			},
			wantErr: errs.ErrNotFound,
		},
		{
			name: "already enrolled",
			prepare: func(t *testing.T, store *testutil.MemoryStore) int64 {
				c := addCourse(t, store, 10)
				_, err := store.CreateEnrollment(context.Background(), model.Enrollment{
					StudentID: 7, CourseID: c.ID, Status: model.EnrollmentActive,
				})
				require.NoError(t, err)
				return c.ID
			},
			wantErr: errs.ErrAlreadyEnrolled,
		},
		{
			name:    "free course",
			prepare: func(t *testing.T, store *testutil.MemoryStore) int64 { return addCourse(t, store, 0).ID },
			wantErr: errs.ErrFreeCourse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, store, _ := setup(t)
			courseID := tt.prepare(t, store)

			_, _, err := l.CreateOrder(context.Background(), 7, courseID)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCreateOrderGatewayDown(t *testing.T) {
	l, store, gw := setup(t)
	course := addCourse(t, store, 500)

	gw.EXPECT().
		CreateRemoteOrder(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(model.GatewayOrder{}, errs.ErrGatewayUnavailable)

	_, _, err := l.CreateOrder(context.Background(), 7, course.ID)
	require.ErrorIs(t, err, errs.ErrGatewayUnavailable)

	orders, err := store.ListStudentOrders(context.Background(), 7)
	require.NoError(t, err)
	require.Empty(t, orders)
}

func TestMarkTransitionsAreSingleShot(t *testing.T) {
	l, store, gw := setup(t)
	course := addCourse(t, store, 500)
	gw.EXPECT().CreateRemoteOrder(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(model.GatewayOrder{ID: "order_A"}, nil)

	_, _, err := l.CreateOrder(context.Background(), 7, course.ID)
	require.NoError(t, err)

	order, err := l.MarkCompleted(context.Background(), "order_A", "pay_1")
	require.NoError(t, err)
	require.Equal(t, model.OrderCompleted, order.Status)
	require.Equal(t, "pay_1", order.ProviderPaymentRef)

	_, err = l.MarkCompleted(context.Background(), "order_A", "pay_1")
	require.ErrorIs(t, err, errs.ErrInvalidState)

	_, err = l.MarkFailed(context.Background(), "order_A", "late failure")
	require.ErrorIs(t, err, errs.ErrInvalidState)

	_, err = l.MarkCompleted(context.Background(), "order_unknown", "pay_1")
	require.ErrorIs(t, err, errs.ErrNotFound)

	got, err := l.Get(context.Background(), "order_A")
	require.NoError(t, err)
	require.Equal(t, model.OrderCompleted, got.Status)
}

func TestRecordFree(t *testing.T) {
	l, store, _ := setup(t)
	course := addCourse(t, store, 0)

	order, err := l.RecordFree(context.Background(), 7, course.ID)
	require.NoError(t, err)
	require.Equal(t, model.OrderCompleted, order.Status)
	require.Zero(t, order.Amount)
	require.True(t, strings.HasPrefix(order.ProviderOrderRef, "free_"))

	orders, err := l.ListForStudent(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, orders, 1)
}

func TestExpire(t *testing.T) {
	tests := []struct {
		name        string
		remote      model.GatewayOrder
		remoteErr   error
		wantExpired bool
		wantErr     bool
		wantStatus  model.OrderStatus
	}{
		{name: "unpaid", remote: model.GatewayOrder{ID: "order_A", Status: "attempted"}, wantExpired: true, wantStatus: model.OrderFailed},
		{name: "unknown on provider", remoteErr: errs.ErrNotFound, wantExpired: true, wantStatus: model.OrderFailed},
		{name: "paid", remote: model.GatewayOrder{ID: "order_A", Status: "paid"}, wantStatus: model.OrderPending},
		{name: "gateway down", remoteErr: errs.ErrGatewayUnavailable, wantErr: true, wantStatus: model.OrderPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, store, gw := setup(t)
			course := addCourse(t, store, 500)
			gw.EXPECT().CreateRemoteOrder(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
				Return(model.GatewayOrder{ID: "order_A"}, nil)
			gw.EXPECT().FetchOrder(gomock.Any(), "order_A").Return(tt.remote, tt.remoteErr)

			_, _, err := l.CreateOrder(context.Background(), 7, course.ID)
			require.NoError(t, err)
			store.SetOrderCreatedAt("order_A", time.Now().Add(-time.Hour))

			stale, err := l.ListStale(context.Background(), time.Now().Add(-30*time.Minute))
			require.NoError(t, err)
			require.Len(t, stale, 1)

			expired, err := l.Expire(context.Background(), stale[0])
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			require.Equal(t, tt.wantExpired, expired)

			got, err := l.Get(context.Background(), "order_A")
			require.NoError(t, err)
			require.Equal(t, tt.wantStatus, got.Status)
			if tt.wantStatus == model.OrderFailed {
				require.Equal(t, ReasonExpired, got.FailureReason)
			}
		})
	}
}

func TestExpireAlreadySettled(t *testing.T) {
	l, store, gw := setup(t)
	course := addCourse(t, store, 500)
	gw.EXPECT().CreateRemoteOrder(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(model.GatewayOrder{ID: "order_A"}, nil)
	gw.EXPECT().FetchOrder(gomock.Any(), "order_A").Return(model.GatewayOrder{}, errors.New("boom"))

	order, _, err := l.CreateOrder(context.Background(), 7, course.ID)
	require.NoError(t, err)

	_, err = l.MarkCompleted(context.Background(), "order_A", "pay_1")
	require.NoError(t, err)

	// a plain fetch error aborts before touching the row
	expired, err := l.Expire(context.Background(), order)
	require.Error(t, err)
	require.False(t, expired)

	gw.EXPECT().FetchOrder(gomock.Any(), "order_A").Return(model.GatewayOrder{}, errs.ErrNotFound)
	expired, err = l.Expire(context.Background(), order)
	require.NoError(t, err)
	require.False(t, expired)
}
