package checkout

import (
	"context"
	"errors"

	"github.com/and161185/coursemart/internal/errs"
	"github.com/and161185/coursemart/internal/model"
	"github.com/and161185/coursemart/internal/utils"
)

// ClaimFree enrolls a student into a zero-price course. It still writes a
// completed zero-amount order so every enrollment points at one.
func (s *Service) ClaimFree(ctx context.Context, studentID, courseID int64) (model.CheckoutResult, error) {
	course, err := s.catalog.Get(ctx, courseID)
	if err != nil {
		return model.CheckoutResult{}, err
	}
	if utils.ToMinorUnits(course.Price) != 0 {
		return model.CheckoutResult{}, errs.ErrPaidCourse
	}

	if _, err := s.registry.Find(ctx, studentID, courseID); err == nil {
		return model.CheckoutResult{}, errs.ErrAlreadyEnrolled
	} else if !errors.Is(err, errs.ErrNotFound) {
		return model.CheckoutResult{}, err
	}

	var result model.CheckoutResult
	err = s.storage.InTx(ctx, func(ctx context.Context) error {
		order, err := s.ledger.RecordFree(ctx, studentID, courseID)
		if err != nil {
			return err
		}
		enrollment, err := s.registry.Enroll(ctx, studentID, courseID, order.ID)
		if err != nil {
			return err
		}
		result = model.CheckoutResult{Order: order, Enrollment: enrollment}
		return nil
	})
	if err != nil {
		return model.CheckoutResult{}, err
	}

	s.logger.Infow("free course claimed", "student_id", studentID, "course_id", courseID,
		"enrollment_id", result.Enrollment.ID)
	return result, nil
}
