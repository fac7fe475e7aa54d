// Package enrollment is the source of truth for course access, progress and
// ratings.
package enrollment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/and161185/coursemart/internal/errs"
	"github.com/and161185/coursemart/internal/model"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Storage interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetCourse(ctx context.Context, id int64) (model.Course, error)
	CreateEnrollment(ctx context.Context, e model.Enrollment) (model.Enrollment, error)
	AddToRoster(ctx context.Context, courseID, studentID int64) error
	GetEnrollment(ctx context.Context, id int64) (model.Enrollment, error)
	FindEnrollment(ctx context.Context, studentID, courseID int64) (model.Enrollment, error)
	SetEnrollmentRating(ctx context.Context, id int64, rating *int, review *string) (model.Enrollment, error)
	SetEnrollmentProgress(ctx context.Context, id int64, progress int, status model.EnrollmentStatus, accessedAt time.Time) (model.Enrollment, error)
	LockCourse(ctx context.Context, courseID int64) error
	RecomputeCourseRating(ctx context.Context, courseID int64) (float64, int, error)
	ListStudentEnrollments(ctx context.Context, studentID int64) ([]model.Enrollment, error)
	ListCourseReviews(ctx context.Context, courseID int64) ([]model.Review, error)
}

type Registry struct {
	storage Storage
	logger  *zap.SugaredLogger
	now     func() time.Time
}

func New(storage Storage, logger *zap.SugaredLogger) *Registry {
	return &Registry{storage: storage, logger: logger, now: time.Now}
}

// Enroll grants access and mirrors the student into the course roster.
// A second call for the same pair fails with ErrAlreadyEnrolled.
func (r *Registry) Enroll(ctx context.Context, studentID, courseID int64, orderID uuid.UUID) (model.Enrollment, error) {
	var created model.Enrollment
	err := r.storage.InTx(ctx, func(ctx context.Context) error {
		e, err := r.storage.CreateEnrollment(ctx, model.Enrollment{
			StudentID: studentID,
			CourseID:  courseID,
			OrderID:   orderID,
			Status:    model.EnrollmentActive,
		})
		if err != nil {
			return err
		}
		if err := r.storage.AddToRoster(ctx, courseID, studentID); err != nil {
			return fmt.Errorf("add to roster: %w", err)
		}
		created = e
		return nil
	})
	if err != nil {
		return model.Enrollment{}, err
	}

	r.logger.Infow("student enrolled", "student_id", studentID, "course_id", courseID, "enrollment_id", created.ID)
	return created, nil
}

func (r *Registry) Find(ctx context.Context, studentID, courseID int64) (model.Enrollment, error) {
	return r.storage.FindEnrollment(ctx, studentID, courseID)
}

// SubmitRating stores the student's rating and review and refreshes the
// course aggregate in the same transaction. Rating transactions of one course
// are serialised by the course row lock.
func (r *Registry) SubmitRating(ctx context.Context, studentID, courseID int64, rating int, review string) (model.Enrollment, error) {
	if rating < 1 || rating > 5 {
		return model.Enrollment{}, fmt.Errorf("%w: rating must be between 1 and 5", errs.ErrInvalidArgument)
	}

	e, err := r.storage.FindEnrollment(ctx, studentID, courseID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return model.Enrollment{}, errs.ErrNotEnrolled
		}
		return model.Enrollment{}, err
	}
	if e.Status == model.EnrollmentCancelled {
		return model.Enrollment{}, errs.ErrNotEnrolled
	}

	var reviewPtr *string
	if text := strings.TrimSpace(review); text != "" {
		reviewPtr = &text
	}

	var updated model.Enrollment
	err = r.storage.InTx(ctx, func(ctx context.Context) error {
		if err := r.storage.LockCourse(ctx, courseID); err != nil {
			return err
		}
		updated, err = r.storage.SetEnrollmentRating(ctx, e.ID, &rating, reviewPtr)
		if err != nil {
			return err
		}
		_, _, err = r.storage.RecomputeCourseRating(ctx, courseID)
		return err
	})
	if err != nil {
		return model.Enrollment{}, err
	}

	return updated, nil
}

// DeleteReview clears rating and review. Only the owner or an admin may.
func (r *Registry) DeleteReview(ctx context.Context, enrollmentID int64, requester model.User) (model.Enrollment, error) {
	e, err := r.storage.GetEnrollment(ctx, enrollmentID)
	if err != nil {
		return model.Enrollment{}, err
	}
	if e.StudentID != requester.ID && !requester.IsAdmin() {
		return model.Enrollment{}, fmt.Errorf("%w: review belongs to another student", errs.ErrForbidden)
	}

	var updated model.Enrollment
	err = r.storage.InTx(ctx, func(ctx context.Context) error {
		if err := r.storage.LockCourse(ctx, e.CourseID); err != nil {
			return err
		}
		updated, err = r.storage.SetEnrollmentRating(ctx, e.ID, nil, nil)
		if err != nil {
			return err
		}
		_, _, err = r.storage.RecomputeCourseRating(ctx, e.CourseID)
		return err
	})
	if err != nil {
		return model.Enrollment{}, err
	}

	r.logger.Infow("review deleted", "enrollment_id", enrollmentID, "requester_id", requester.ID)
	return updated, nil
}

func (r *Registry) UpdateProgress(ctx context.Context, enrollmentID, studentID int64, progress int) (model.Enrollment, error) {
	if progress < 0 || progress > 100 {
		return model.Enrollment{}, fmt.Errorf("%w: progress must be between 0 and 100", errs.ErrInvalidArgument)
	}

	e, err := r.storage.GetEnrollment(ctx, enrollmentID)
	if err != nil {
		return model.Enrollment{}, err
	}
	if e.StudentID != studentID {
		return model.Enrollment{}, fmt.Errorf("%w: enrollment belongs to another student", errs.ErrForbidden)
	}
	if e.Status == model.EnrollmentCancelled {
		return model.Enrollment{}, fmt.Errorf("%w: enrollment is cancelled", errs.ErrInvalidState)
	}

	status := e.Status
	if progress == 100 {
		status = model.EnrollmentCompleted
	}

	return r.storage.SetEnrollmentProgress(ctx, e.ID, progress, status, r.now())
}

func (r *Registry) ListForStudent(ctx context.Context, studentID int64) ([]model.Enrollment, error) {
	return r.storage.ListStudentEnrollments(ctx, studentID)
}

func (r *Registry) ListReviews(ctx context.Context, courseID int64) ([]model.Review, error) {
	if _, err := r.storage.GetCourse(ctx, courseID); err != nil {
		return nil, err
	}
	return r.storage.ListCourseReviews(ctx, courseID)
}
