package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/and161185/coursemart/internal/errs"
	"github.com/and161185/coursemart/internal/model"
	"github.com/jackc/pgx/v5"
)

const courseColumns = `id, title, description, category, tags, price, instructor_id,
	rating_avg, rating_count, active, created_at, updated_at`

const maxSearchResults = 50

func scanCourse(row pgx.Row) (model.Course, error) {
	var c model.Course
	err := row.Scan(&c.ID, &c.Title, &c.Description, &c.Category, &c.Tags, &c.Price, &c.InstructorID,
		&c.RatingAvg, &c.RatingCount, &c.Active, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (store *PostgresStorage) CreateCourse(ctx context.Context, course model.Course) (model.Course, error) {
	query := `
		INSERT INTO courses (title, description, category, tags, price, instructor_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + courseColumns

	if course.Tags == nil {
		course.Tags = []string{}
	}

	created, err := scanCourse(store.conn(ctx).QueryRow(ctx, query,
		course.Title, course.Description, course.Category, course.Tags, course.Price, course.InstructorID))
	if err != nil {
		return model.Course{}, fmt.Errorf("insert course: %w", err)
	}

	return created, nil
}

func (store *PostgresStorage) GetCourse(ctx context.Context, id int64) (model.Course, error) {
	query := `SELECT ` + courseColumns + ` FROM courses WHERE id = $1`

	course, err := scanCourse(store.conn(ctx).QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Course{}, errs.ErrCourseNotFound
		}
		return model.Course{}, fmt.Errorf("get course: %w", err)
	}

	return course, nil
}

func (store *PostgresStorage) UpdateCourse(ctx context.Context, course model.Course) (model.Course, error) {
	query := `
		UPDATE courses
		SET title = $2, description = $3, category = $4, tags = $5, price = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + courseColumns

	if course.Tags == nil {
		course.Tags = []string{}
	}

	updated, err := scanCourse(store.conn(ctx).QueryRow(ctx, query,
		course.ID, course.Title, course.Description, course.Category, course.Tags, course.Price))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Course{}, errs.ErrCourseNotFound
		}
		return model.Course{}, fmt.Errorf("update course: %w", err)
	}

	return updated, nil
}

func (store *PostgresStorage) DeactivateCourse(ctx context.Context, id int64) error {
	const query = `UPDATE courses SET active = FALSE, updated_at = NOW() WHERE id = $1`

	tag, err := store.conn(ctx).Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("deactivate course: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrCourseNotFound
	}

	return nil
}

func (store *PostgresStorage) SearchCourses(ctx context.Context, q model.CourseQuery) ([]model.Course, error) {
	var where []string
	var args []any

	where = append(where, "active")
	if q.Query != "" {
		args = append(args, "%"+q.Query+"%")
		where = append(where, fmt.Sprintf("(title ILIKE $%d OR description ILIKE $%d)", len(args), len(args)))
	}
	if q.Category != "" {
		args = append(args, q.Category)
		where = append(where, fmt.Sprintf("category = $%d", len(args)))
	}
	if q.PriceMin != nil {
		args = append(args, *q.PriceMin)
		where = append(where, fmt.Sprintf("price >= $%d", len(args)))
	}
	if q.PriceMax != nil {
		args = append(args, *q.PriceMax)
		where = append(where, fmt.Sprintf("price <= $%d", len(args)))
	}

	orderBy := "created_at DESC, id DESC"
	switch q.Sort {
	case model.SortPriceAsc:
		orderBy = "price ASC, id ASC"
	case model.SortPriceDesc:
		orderBy = "price DESC, id ASC"
	case model.SortRating:
		orderBy = "rating_avg DESC, rating_count DESC, id ASC"
	}

	limit := q.Limit
	if limit <= 0 || limit > maxSearchResults {
		limit = maxSearchResults
	}
	args = append(args, limit)

	query := fmt.Sprintf(`SELECT %s FROM courses WHERE %s ORDER BY %s LIMIT $%d`,
		courseColumns, strings.Join(where, " AND "), orderBy, len(args))

	rows, err := store.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search courses: %w", err)
	}
	defer rows.Close()

	var courses []model.Course
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, fmt.Errorf("scan course: %w", err)
		}
		courses = append(courses, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration: %w", err)
	}

	return courses, nil
}

// ListInstructorCourses returns every course of the instructor, newest first,
// including deactivated ones.
func (store *PostgresStorage) ListInstructorCourses(ctx context.Context, instructorID int64) ([]model.Course, error) {
	query := `SELECT ` + courseColumns + ` FROM courses WHERE instructor_id = $1 ORDER BY created_at DESC, id DESC`

	rows, err := store.conn(ctx).Query(ctx, query, instructorID)
	if err != nil {
		return nil, fmt.Errorf("list instructor courses: %w", err)
	}
	defer rows.Close()

	var courses []model.Course
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, fmt.Errorf("scan course: %w", err)
		}
		courses = append(courses, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration: %w", err)
	}

	return courses, nil
}

// LockCourse takes a row lock on the course until the surrounding transaction
// ends. Rating writers take it first so that each recompute sees the ratings
// committed by the one before it.
func (store *PostgresStorage) LockCourse(ctx context.Context, courseID int64) error {
	const query = `SELECT 1 FROM courses WHERE id = $1 FOR UPDATE`

	var one int
	err := store.conn(ctx).QueryRow(ctx, query, courseID).Scan(&one)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return errs.ErrCourseNotFound
		}
		return fmt.Errorf("lock course: %w", err)
	}
	return nil
}

// RecomputeCourseRating rebuilds the aggregate from enrollments; the stored
// columns are never incremented in place.
func (store *PostgresStorage) RecomputeCourseRating(ctx context.Context, courseID int64) (float64, int, error) {
	const query = `
		UPDATE courses c
		SET rating_avg = COALESCE(agg.avg, 0), rating_count = agg.cnt, updated_at = NOW()
		FROM (
			SELECT AVG(rating)::DOUBLE PRECISION AS avg, COUNT(rating) AS cnt
			FROM enrollments
			WHERE course_id = $1 AND rating IS NOT NULL
		) agg
		WHERE c.id = $1
		RETURNING c.rating_avg, c.rating_count`

	var avg float64
	var count int
	err := store.conn(ctx).QueryRow(ctx, query, courseID).Scan(&avg, &count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, 0, errs.ErrCourseNotFound
		}
		return 0, 0, fmt.Errorf("recompute rating: %w", err)
	}

	return avg, count, nil
}

func (store *PostgresStorage) AddToRoster(ctx context.Context, courseID, studentID int64) error {
	const query = `
		INSERT INTO course_roster (course_id, student_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`

	if _, err := store.conn(ctx).Exec(ctx, query, courseID, studentID); err != nil {
		return fmt.Errorf("add to roster: %w", err)
	}
	return nil
}

func (store *PostgresStorage) GetRoster(ctx context.Context, courseID int64) ([]int64, error) {
	const query = `SELECT student_id FROM course_roster WHERE course_id = $1 ORDER BY added_at, student_id`

	rows, err := store.conn(ctx).Query(ctx, query, courseID)
	if err != nil {
		return nil, fmt.Errorf("get roster: %w", err)
	}

	roster, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("scan roster: %w", err)
	}
	return roster, nil
}

func (store *PostgresStorage) ListCourseIDs(ctx context.Context) ([]int64, error) {
	const query = `SELECT id FROM courses ORDER BY id`

	rows, err := store.conn(ctx).Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list course ids: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("scan course id: %w", err)
	}
	return ids, nil
}
