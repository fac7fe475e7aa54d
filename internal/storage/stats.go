package storage

import (
	"context"
	"fmt"

	"github.com/and161185/coursemart/internal/model"
)

func (store *PostgresStorage) PlatformStats(ctx context.Context) (model.PlatformStats, error) {
	const query = `
		SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM courses WHERE active),
			(SELECT COUNT(*) FROM enrollments),
			(SELECT COUNT(*) FROM enrollments WHERE rating IS NOT NULL),
			(SELECT COUNT(*) FROM orders WHERE status = 'PENDING'),
			(SELECT COALESCE(SUM(amount), 0)::BIGINT FROM orders WHERE status = 'COMPLETED')`

	var s model.PlatformStats
	err := store.conn(ctx).QueryRow(ctx, query).Scan(
		&s.TotalUsers, &s.TotalCourses, &s.TotalEnrollments, &s.TotalReviews, &s.PendingOrders, &s.RevenueMinor)
	if err != nil {
		return model.PlatformStats{}, fmt.Errorf("get platform stats: %w", err)
	}

	return s, nil
}

func (store *PostgresStorage) InstructorStats(ctx context.Context, instructorID int64) (model.InstructorStats, error) {
	const query = `
		SELECT
			(SELECT COUNT(*) FROM courses WHERE instructor_id = $1),
			(SELECT COUNT(*) FROM enrollments e JOIN courses c ON c.id = e.course_id WHERE c.instructor_id = $1),
			(SELECT COUNT(DISTINCT e.student_id) FROM enrollments e JOIN courses c ON c.id = e.course_id WHERE c.instructor_id = $1),
			(SELECT COALESCE(SUM(o.amount), 0)::BIGINT FROM orders o JOIN courses c ON c.id = o.course_id
				WHERE c.instructor_id = $1 AND o.status = 'COMPLETED')`

	var s model.InstructorStats
	err := store.conn(ctx).QueryRow(ctx, query, instructorID).Scan(
		&s.Courses, &s.TotalEnrollments, &s.TotalStudents, &s.RevenueMinor)
	if err != nil {
		return model.InstructorStats{}, fmt.Errorf("get instructor stats: %w", err)
	}

	return s, nil
}

func (store *PostgresStorage) CourseRevenue(ctx context.Context, courseID int64) (int64, error) {
	const query = `
		SELECT COALESCE(SUM(amount), 0)::BIGINT
		FROM orders
		WHERE course_id = $1 AND status = 'COMPLETED'`

	var revenue int64
	if err := store.conn(ctx).QueryRow(ctx, query, courseID).Scan(&revenue); err != nil {
		return 0, fmt.Errorf("get course revenue: %w", err)
	}
	return revenue, nil
}
