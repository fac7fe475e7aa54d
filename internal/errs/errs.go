package errs

import (
	"errors"
	"fmt"
)

// Failure classes. Handlers map these to HTTP statuses; concrete errors below
// wrap one of them so errors.Is matches both.
var (
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrInvalidSignature   = errors.New("invalid payment signature")
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidState       = errors.New("invalid state")
)

var ErrUserNotFound = fmt.Errorf("user %w", ErrNotFound)
var ErrCourseNotFound = fmt.Errorf("course %w", ErrNotFound)
var ErrOrderNotFound = fmt.Errorf("order %w", ErrNotFound)
var ErrEnrollmentNotFound = fmt.Errorf("enrollment %w", ErrNotFound)

var ErrInvalidToken = errors.New("invalid token")
var ErrEmailTaken = fmt.Errorf("email already registered: %w", ErrConflict)
var ErrAlreadyEnrolled = fmt.Errorf("already enrolled in course: %w", ErrConflict)
var ErrOrderPending = fmt.Errorf("checkout already in progress for course: %w", ErrConflict)
var ErrOrderNotPending = fmt.Errorf("order is not pending: %w", ErrInvalidState)
var ErrNotEnrolled = fmt.Errorf("enrollment required: %w", ErrForbidden)
var ErrFreeCourse = fmt.Errorf("course is free, claim it instead: %w", ErrInvalidArgument)
var ErrPaidCourse = fmt.Errorf("course is not free: %w", ErrInvalidArgument)
var ErrEventInFlight = fmt.Errorf("webhook event is being processed: %w", ErrConflict)

// Step names a stage of checkout reconciliation.
type Step string

const (
	StepLookup   Step = "lookup"
	StepVerify   Step = "verify"
	StepComplete Step = "complete"
	StepEnroll   Step = "enroll"
)

// StepError records which reconciliation step produced Err.
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("checkout %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

func AtStep(step Step, err error) error {
	if err == nil {
		return nil
	}
	var se *StepError
	if errors.As(err, &se) {
		return err
	}
	return &StepError{Step: step, Err: err}
}

// PaymentCaptured reports whether err happened after the provider confirmed
// the payment, i.e. money moved but access may not have been granted yet.
func PaymentCaptured(err error) bool {
	var se *StepError
	if !errors.As(err, &se) {
		return false
	}
	return se.Step == StepComplete || se.Step == StepEnroll
}
