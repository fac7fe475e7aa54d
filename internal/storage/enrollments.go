package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/and161185/coursemart/internal/errs"
	"github.com/and161185/coursemart/internal/model"
	"github.com/jackc/pgx/v5"
)

const enrollmentColumns = `id, student_id, course_id, order_id, status, progress, rating, review,
	enrolled_at, last_accessed_at`

func scanEnrollment(row pgx.Row) (model.Enrollment, error) {
	var e model.Enrollment
	err := row.Scan(&e.ID, &e.StudentID, &e.CourseID, &e.OrderID, &e.Status, &e.Progress, &e.Rating, &e.Review,
		&e.EnrolledAt, &e.LastAccessedAt)
	return e, err
}

// CreateEnrollment inserts the enrollment unless the pair already exists.
// ON CONFLICT keeps a surrounding transaction usable after a duplicate.
func (store *PostgresStorage) CreateEnrollment(ctx context.Context, e model.Enrollment) (model.Enrollment, error) {
	query := `
		INSERT INTO enrollments (student_id, course_id, order_id, status, progress)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (student_id, course_id) DO NOTHING
		RETURNING ` + enrollmentColumns

	created, err := scanEnrollment(store.conn(ctx).QueryRow(ctx, query,
		e.StudentID, e.CourseID, e.OrderID, e.Status, e.Progress))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isUniqueViolation(err) {
			return model.Enrollment{}, errs.ErrAlreadyEnrolled
		}
		return model.Enrollment{}, fmt.Errorf("insert enrollment: %w", err)
	}

	return created, nil
}

func (store *PostgresStorage) GetEnrollment(ctx context.Context, id int64) (model.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE id = $1`

	return store.getEnrollment(ctx, query, id)
}

func (store *PostgresStorage) FindEnrollment(ctx context.Context, studentID, courseID int64) (model.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE student_id = $1 AND course_id = $2`

	return store.getEnrollment(ctx, query, studentID, courseID)
}

func (store *PostgresStorage) getEnrollment(ctx context.Context, query string, args ...any) (model.Enrollment, error) {
	e, err := scanEnrollment(store.conn(ctx).QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Enrollment{}, errs.ErrEnrollmentNotFound
		}
		return model.Enrollment{}, fmt.Errorf("get enrollment: %w", err)
	}
	return e, nil
}

// SetEnrollmentRating stores rating and review; nil clears them.
func (store *PostgresStorage) SetEnrollmentRating(ctx context.Context, id int64, rating *int, review *string) (model.Enrollment, error) {
	query := `
		UPDATE enrollments
		SET rating = $2, review = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + enrollmentColumns

	return store.getEnrollment(ctx, query, id, rating, review)
}

func (store *PostgresStorage) SetEnrollmentProgress(ctx context.Context, id int64, progress int, status model.EnrollmentStatus, accessedAt time.Time) (model.Enrollment, error) {
	query := `
		UPDATE enrollments
		SET progress = $2, status = $3, last_accessed_at = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + enrollmentColumns

	return store.getEnrollment(ctx, query, id, progress, status, accessedAt)
}

func (store *PostgresStorage) ListStudentEnrollments(ctx context.Context, studentID int64) ([]model.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE student_id = $1 ORDER BY enrolled_at DESC`

	rows, err := store.conn(ctx).Query(ctx, query, studentID)
	if err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	defer rows.Close()

	var list []model.Enrollment
	for rows.Next() {
		e, err := scanEnrollment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan enrollment: %w", err)
		}
		list = append(list, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return list, nil
}

func (store *PostgresStorage) ListCourseReviews(ctx context.Context, courseID int64) ([]model.Review, error) {
	const query = `
		SELECT e.id, e.student_id, u.name, e.rating, COALESCE(e.review, ''), e.updated_at
		FROM enrollments e
		JOIN users u ON u.id = e.student_id
		WHERE e.course_id = $1 AND e.rating IS NOT NULL
		ORDER BY e.updated_at DESC`

	rows, err := store.conn(ctx).Query(ctx, query, courseID)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	var list []model.Review
	for rows.Next() {
		var r model.Review
		if err := rows.Scan(&r.EnrollmentID, &r.StudentID, &r.StudentName, &r.Rating, &r.Review, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		list = append(list, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return list, nil
}

func (store *PostgresStorage) ListCourseStudents(ctx context.Context, courseID int64) ([]model.StudentProgress, error) {
	const query = `
		SELECT e.id, e.student_id, u.name, u.email, e.enrolled_at, e.progress, e.status
		FROM enrollments e
		JOIN users u ON u.id = e.student_id
		WHERE e.course_id = $1
		ORDER BY e.enrolled_at, e.id`

	rows, err := store.conn(ctx).Query(ctx, query, courseID)
	if err != nil {
		return nil, fmt.Errorf("list course students: %w", err)
	}
	defer rows.Close()

	var list []model.StudentProgress
	for rows.Next() {
		var p model.StudentProgress
		if err := rows.Scan(&p.EnrollmentID, &p.StudentID, &p.Name, &p.Email, &p.EnrolledAt, &p.Progress, &p.Status); err != nil {
			return nil, fmt.Errorf("scan student progress: %w", err)
		}
		list = append(list, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return list, nil
}
