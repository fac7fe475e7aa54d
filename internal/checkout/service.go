// Package checkout turns verified payment confirmations into enrollments.
//
// A checkout goes PENDING -> COMPLETED -> enrolled, or PENDING -> FAILED.
// Marking the order completed and creating the enrollment happen in one
// storage transaction, so an order is never left COMPLETED without access.
// Errors carry the step that produced them (see errs.StepError); failures at
// the complete or enroll steps mean the provider already captured the money.
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
	"go.uber.org/zap"
)

const ReasonInvalidSignature = "invalid signature"

type Ledger interface {
	CreateOrder(ctx context.Context, studentID, courseID int64) (model.Order, model.GatewayOrder, error)
	RecordFree(ctx context.Context, studentID, courseID int64) (model.Order, error)
	Get(ctx context.Context, providerOrderRef string) (model.Order, error)
	MarkCompleted(ctx context.Context, providerOrderRef, providerPaymentRef string) (model.Order, error)
	MarkFailed(ctx context.Context, providerOrderRef, reason string) (model.Order, error)
	ListForStudent(ctx context.Context, studentID int64) ([]model.Order, error)
}

type Registry interface {
	Enroll(ctx context.Context, studentID, courseID int64, orderID uuid.UUID) (model.Enrollment, error)
	Find(ctx context.Context, studentID, courseID int64) (model.Enrollment, error)
}

type Catalog interface {
	Get(ctx context.Context, id int64) (model.Course, error)
}

// Storage is the part of persistence the service drives directly: the
// transaction boundary and the webhook audit log.
type Storage interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
	RecordPaymentEvent(ctx context.Context, ev model.PaymentEvent) (bool, error)
	SetPaymentEventStatus(ctx context.Context, eventID string, status model.PaymentEventStatus, errMsg string) error
}

type Options struct {
	// CallbackSecret authenticates client-relayed checkout confirmations.
	CallbackSecret string
	// WebhookSecret authenticates provider webhook bodies.
	WebhookSecret string
	// PublicKey is handed to the browser checkout widget.
	PublicKey string
}

type Service struct {
	storage  Storage
	ledger   Ledger
	registry Registry
	catalog  Catalog
	opts     Options
	logger   *zap.SugaredLogger
}

func NewService(storage Storage, ledger Ledger, registry Registry, catalog Catalog, opts Options, logger *zap.SugaredLogger) *Service {
	return &Service{
		storage:  storage,
		ledger:   ledger,
		registry: registry,
		catalog:  catalog,
		opts:     opts,
		logger:   logger,
	}
}

func (s *Service) StartCheckout(ctx context.Context, studentID, courseID int64) (model.CheckoutSession, error) {
	order, remote, err := s.ledger.CreateOrder(ctx, studentID, courseID)
	if err != nil {
		return model.CheckoutSession{}, err
	}

	payload := remote.Payload
	if len(payload) == 0 {
		payload, err = json.Marshal(remote)
		if err != nil {
			return model.CheckoutSession{}, fmt.Errorf("encode gateway order: %w", err)
		}
	}

	return model.CheckoutSession{
		Order:            order,
		GatewayOrder:     payload,
		GatewayPublicKey: s.opts.PublicKey,
	}, nil
}

// CompleteCheckout reconciles a client-relayed payment confirmation.
// Repeating a successful call returns the same enrollment with Replayed set.
func (s *Service) CompleteCheckout(ctx context.Context, cb model.PaymentCallback) (model.CheckoutResult, error) {
	if cb.ProviderOrderRef == "" || cb.ProviderPaymentRef == "" {
		return model.CheckoutResult{}, fmt.Errorf("%w: order and payment references are required", errs.ErrInvalidArgument)
	}

	order, err := s.ledger.Get(ctx, cb.ProviderOrderRef)
	if err != nil {
		return model.CheckoutResult{}, errs.AtStep(errs.StepLookup, err)
	}
	if cb.StudentID != 0 && order.StudentID != cb.StudentID {
		return model.CheckoutResult{}, errs.AtStep(errs.StepLookup,
			fmt.Errorf("%w: order belongs to another student", errs.ErrForbidden))
	}

	if !gateway.VerifySignature(cb.ProviderOrderRef, cb.ProviderPaymentRef, cb.Signature, s.opts.CallbackSecret) {
		s.logger.Warnw("payment signature mismatch",
			"provider_order_ref", cb.ProviderOrderRef, "provider_payment_ref", cb.ProviderPaymentRef,
			"student_id", order.StudentID, "course_id", order.CourseID, "order_status", order.Status)

		if order.Status == model.OrderPending {
			if _, err := s.ledger.MarkFailed(ctx, order.ProviderOrderRef, ReasonInvalidSignature); err != nil &&
				!errors.Is(err, errs.ErrInvalidState) {
				s.logger.Errorw("failed to mark order failed", "provider_order_ref", order.ProviderOrderRef, "error", err)
			}
		}
		return model.CheckoutResult{}, errs.AtStep(errs.StepVerify, errs.ErrInvalidSignature)
	}

	result, err := s.settle(ctx, order, cb.ProviderPaymentRef)
	if errors.Is(err, errs.ErrInvalidState) {
		// the signature is genuine, so the provider holds money for this order
		s.logger.Errorw("verified payment for an order that cannot be settled, needs manual reconciliation",
			"provider_order_ref", cb.ProviderOrderRef, "provider_payment_ref", cb.ProviderPaymentRef,
			"student_id", order.StudentID, "course_id", order.CourseID, "order_status", order.Status)
	}
	return result, err
}

// settle completes an order whose payment is known to be genuine.
func (s *Service) settle(ctx context.Context, order model.Order, paymentRef string) (model.CheckoutResult, error) {
	switch order.Status {
	case model.OrderCompleted:
		return s.replay(ctx, order, paymentRef)
	case model.OrderFailed:
		return model.CheckoutResult{}, errs.AtStep(errs.StepComplete, errs.ErrOrderNotPending)
	}

	var result model.CheckoutResult
	err := s.storage.InTx(ctx, func(ctx context.Context) error {
		completed, err := s.ledger.MarkCompleted(ctx, order.ProviderOrderRef, paymentRef)
		if err != nil {
			return errs.AtStep(errs.StepComplete, err)
		}

		enrollment, err := s.registry.Enroll(ctx, completed.StudentID, completed.CourseID, completed.ID)
		if errors.Is(err, errs.ErrConflict) {
			enrollment, err = s.registry.Find(ctx, completed.StudentID, completed.CourseID)
		}
		if err != nil {
			return errs.AtStep(errs.StepEnroll, err)
		}

		result = model.CheckoutResult{Order: completed, Enrollment: enrollment}
		return nil
	})

	if errors.Is(err, errs.ErrInvalidState) {
		// another callback settled the order first
		current, getErr := s.ledger.Get(ctx, order.ProviderOrderRef)
		if getErr != nil {
			return model.CheckoutResult{}, errs.AtStep(errs.StepLookup, getErr)
		}
		if current.Status == model.OrderCompleted {
			return s.replay(ctx, current, paymentRef)
		}
		return model.CheckoutResult{}, err
	}
	if err != nil {
		// the signature already proved the payment, so any failure from here
		// on leaves captured money without access
		err = errs.AtStep(errs.StepEnroll, err)
		s.logger.Errorw("payment captured but enrollment not created, order left pending for retry",
			"provider_order_ref", order.ProviderOrderRef, "provider_payment_ref", paymentRef, "error", err)
		return model.CheckoutResult{}, err
	}

	s.logger.Infow("checkout completed",
		"provider_order_ref", order.ProviderOrderRef, "student_id", order.StudentID,
		"course_id", order.CourseID, "enrollment_id", result.Enrollment.ID)
	return result, nil
}

// replay answers a repeated confirmation for an already completed order.
func (s *Service) replay(ctx context.Context, order model.Order, paymentRef string) (model.CheckoutResult, error) {
	if order.ProviderPaymentRef != paymentRef {
		return model.CheckoutResult{}, errs.AtStep(errs.StepComplete,
			fmt.Errorf("%w: order was settled by another payment", errs.ErrInvalidState))
	}

	enrollment, err := s.registry.Find(ctx, order.StudentID, order.CourseID)
	if errors.Is(err, errs.ErrNotFound) {
		s.logger.Errorw("completed order without enrollment, enrolling now",
			"provider_order_ref", order.ProviderOrderRef, "student_id", order.StudentID, "course_id", order.CourseID)

		enrollment, err = s.registry.Enroll(ctx, order.StudentID, order.CourseID, order.ID)
		if errors.Is(err, errs.ErrConflict) {
			enrollment, err = s.registry.Find(ctx, order.StudentID, order.CourseID)
		}
	}
	if err != nil {
		return model.CheckoutResult{}, errs.AtStep(errs.StepEnroll, err)
	}

	return model.CheckoutResult{Order: order, Enrollment: enrollment, Replayed: true}, nil
}

func (s *Service) Orders(ctx context.Context, studentID int64) ([]model.Order, error) {
	orders, err := s.ledger.ListForStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []model.Order{}
	}
	return orders, nil
}
