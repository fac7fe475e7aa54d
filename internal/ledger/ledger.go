// Package ledger tracks payment-provider orders through PENDING, COMPLETED
// and FAILED.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/and161185/coursemart/internal/errs"
	"github.com/and161185/coursemart/internal/gateway"
	"github.com/and161185/coursemart/internal/model"
	"github.com/and161185/coursemart/internal/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const ReasonExpired = "expired"

type Storage interface {
	GetCourse(ctx context.Context, id int64) (model.Course, error)
	FindEnrollment(ctx context.Context, studentID, courseID int64) (model.Enrollment, error)
	GetPendingOrder(ctx context.Context, studentID, courseID int64) (model.Order, error)
	CreateOrder(ctx context.Context, order model.Order) (model.Order, error)
	GetOrderByRef(ctx context.Context, providerOrderRef string) (model.Order, error)
	CompleteOrder(ctx context.Context, providerOrderRef, providerPaymentRef string) (model.Order, error)
	FailOrder(ctx context.Context, providerOrderRef, reason string) (model.Order, error)
	ListStudentOrders(ctx context.Context, studentID int64) ([]model.Order, error)
	ListStalePendingOrders(ctx context.Context, before time.Time) ([]model.Order, error)
}

type Gateway interface {
	CreateRemoteOrder(ctx context.Context, amount int64, currency, receipt string) (model.GatewayOrder, error)
	FetchOrder(ctx context.Context, providerOrderRef string) (model.GatewayOrder, error)
}

type Ledger struct {
	storage  Storage
	gateway  Gateway
	currency string
	logger   *zap.SugaredLogger
}

func New(storage Storage, gateway Gateway, currency string, logger *zap.SugaredLogger) *Ledger {
	return &Ledger{
		storage:  storage,
		gateway:  gateway,
		currency: currency,
		logger:   logger,
	}
}

// CreateOrder opens a checkout for the pair: one remote order, one PENDING row.
func (l *Ledger) CreateOrder(ctx context.Context, studentID, courseID int64) (model.Order, model.GatewayOrder, error) {
	course, err := l.storage.GetCourse(ctx, courseID)
	if err != nil {
		return model.Order{}, model.GatewayOrder{}, err
	}
	if !course.Active {
		return model.Order{}, model.GatewayOrder{}, errs.ErrCourseNotFound
	}

	if _, err := l.storage.FindEnrollment(ctx, studentID, courseID); err == nil {
		return model.Order{}, model.GatewayOrder{}, errs.ErrAlreadyEnrolled
	} else if !errors.Is(err, errs.ErrNotFound) {
		return model.Order{}, model.GatewayOrder{}, err
	}

	if _, err := l.storage.GetPendingOrder(ctx, studentID, courseID); err == nil {
		return model.Order{}, model.GatewayOrder{}, errs.ErrOrderPending
	} else if !errors.Is(err, errs.ErrNotFound) {
		return model.Order{}, model.GatewayOrder{}, err
	}

	amount := utils.ToMinorUnits(course.Price)
	if amount == 0 {
		return model.Order{}, model.GatewayOrder{}, errs.ErrFreeCourse
	}

	id := uuid.New()
	receipt := utils.Receipt(studentID, courseID, id)

	remote, err := l.gateway.CreateRemoteOrder(ctx, amount, l.currency, receipt)
	if err != nil {
		return model.Order{}, model.GatewayOrder{}, fmt.Errorf("create remote order: %w", err)
	}

	order, err := l.storage.CreateOrder(ctx, model.Order{
		ID:               id,
		ProviderOrderRef: remote.ID,
		Amount:           amount,
		Currency:         l.currency,
		Receipt:          receipt,
		Status:           model.OrderPending,
		StudentID:        studentID,
		CourseID:         courseID,
	})
	if err != nil {
		// the remote order is left unpaid and expires on the provider side
		l.logger.Warnw("remote order created but not persisted", "provider_order_ref", remote.ID, "error", err)
		return model.Order{}, model.GatewayOrder{}, err
	}

	l.logger.Infow("order created", "order_id", order.ID, "provider_order_ref", order.ProviderOrderRef,
		"student_id", studentID, "course_id", courseID, "amount", amount)

	return order, remote, nil
}

// RecordFree stores a completed zero-amount order for a free course.
func (l *Ledger) RecordFree(ctx context.Context, studentID, courseID int64) (model.Order, error) {
	id := uuid.New()
	return l.storage.CreateOrder(ctx, model.Order{
		ID:                 id,
		ProviderOrderRef:   "free_" + id.String(),
		ProviderPaymentRef: "free",
		Currency:           l.currency,
		Receipt:            utils.Receipt(studentID, courseID, id),
		Status:             model.OrderCompleted,
		StudentID:          studentID,
		CourseID:           courseID,
	})
}

func (l *Ledger) MarkCompleted(ctx context.Context, providerOrderRef, providerPaymentRef string) (model.Order, error) {
	return l.storage.CompleteOrder(ctx, providerOrderRef, providerPaymentRef)
}

func (l *Ledger) MarkFailed(ctx context.Context, providerOrderRef, reason string) (model.Order, error) {
	order, err := l.storage.FailOrder(ctx, providerOrderRef, reason)
	if err != nil {
		return model.Order{}, err
	}

	l.logger.Infow("order failed", "provider_order_ref", providerOrderRef, "reason", reason)
	return order, nil
}

func (l *Ledger) Get(ctx context.Context, providerOrderRef string) (model.Order, error) {
	return l.storage.GetOrderByRef(ctx, providerOrderRef)
}

func (l *Ledger) ListForStudent(ctx context.Context, studentID int64) ([]model.Order, error) {
	return l.storage.ListStudentOrders(ctx, studentID)
}

func (l *Ledger) ListStale(ctx context.Context, before time.Time) ([]model.Order, error) {
	return l.storage.ListStalePendingOrders(ctx, before)
}

// Expire fails a stale PENDING order unless the provider reports it paid.
// Paid orders stay PENDING so the webhook or a manual retry can settle them.
func (l *Ledger) Expire(ctx context.Context, order model.Order) (bool, error) {
	remote, err := l.gateway.FetchOrder(ctx, order.ProviderOrderRef)
	switch {
	case err == nil && remote.Status == gateway.RemotePaid:
		l.logger.Errorw("stale order is paid on provider side, needs reconciliation",
			"provider_order_ref", order.ProviderOrderRef, "student_id", order.StudentID, "course_id", order.CourseID)
		return false, nil
	case err != nil && !errors.Is(err, errs.ErrNotFound):
		return false, fmt.Errorf("fetch remote order %s: %w", order.ProviderOrderRef, err)
	}

	if _, err := l.MarkFailed(ctx, order.ProviderOrderRef, ReasonExpired); err != nil {
		if errors.Is(err, errs.ErrInvalidState) {
			// settled while we were looking
			return false, nil
		}
		return false, err
	}
	return true, nil
}
