package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSentinelsWrapClasses(t *testing.T) {
	require.ErrorIs(t, ErrCourseNotFound, ErrNotFound)
	require.ErrorIs(t, ErrAlreadyEnrolled, ErrConflict)
	require.ErrorIs(t, ErrOrderPending, ErrConflict)
	require.ErrorIs(t, ErrOrderNotPending, ErrInvalidState)
	require.ErrorIs(t, ErrNotEnrolled, ErrForbidden)
	require.NotErrorIs(t, ErrCourseNotFound, ErrConflict)
}

func TestAtStep(t *testing.T) {
	require.NoError(t, AtStep(StepLookup, nil))

	err := AtStep(StepEnroll, fmt.Errorf("insert: %w", ErrAlreadyEnrolled))
	require.ErrorIs(t, err, ErrConflict)

	var se *StepError
	require.True(t, errors.As(err, &se))
	require.Equal(t, StepEnroll, se.Step)
	require.Equal(t, "checkout enroll: insert: already enrolled in course: conflict", err.Error())

	// the innermost step wins
	again := AtStep(StepComplete, err)
	require.True(t, errors.As(again, &se))
	require.Equal(t, StepEnroll, se.Step)
}

func TestPaymentCaptured(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"plain error", errors.New("boom"), false},
		{"lookup", AtStep(StepLookup, ErrOrderNotFound), false},
		{"verify", AtStep(StepVerify, ErrInvalidSignature), false},
		{"complete", AtStep(StepComplete, errors.New("db down")), true},
		{"enroll", AtStep(StepEnroll, errors.New("db down")), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, PaymentCaptured(tt.err))
		})
	}
}
