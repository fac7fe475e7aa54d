// Package catalog owns course records, search and the aggregate rating.
package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/and161185/coursemart/internal/errs"
	"github.com/and161185/coursemart/internal/model"
	"go.uber.org/zap"
)

type Storage interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
	CreateCourse(ctx context.Context, course model.Course) (model.Course, error)
	GetCourse(ctx context.Context, id int64) (model.Course, error)
	UpdateCourse(ctx context.Context, course model.Course) (model.Course, error)
	DeactivateCourse(ctx context.Context, id int64) error
	SearchCourses(ctx context.Context, q model.CourseQuery) ([]model.Course, error)
	LockCourse(ctx context.Context, courseID int64) error
	RecomputeCourseRating(ctx context.Context, courseID int64) (float64, int, error)
	GetRoster(ctx context.Context, courseID int64) ([]int64, error)
	ListCourseIDs(ctx context.Context) ([]int64, error)
	PlatformStats(ctx context.Context) (model.PlatformStats, error)
	ListInstructorCourses(ctx context.Context, instructorID int64) ([]model.Course, error)
	InstructorStats(ctx context.Context, instructorID int64) (model.InstructorStats, error)
	CourseRevenue(ctx context.Context, courseID int64) (int64, error)
	ListCourseStudents(ctx context.Context, courseID int64) ([]model.StudentProgress, error)
}

type Catalog struct {
	storage Storage
	logger  *zap.SugaredLogger
}

func New(storage Storage, logger *zap.SugaredLogger) *Catalog {
	return &Catalog{storage: storage, logger: logger}
}

// Get returns active courses only; deactivated ones look deleted.
func (c *Catalog) Get(ctx context.Context, id int64) (model.Course, error) {
	course, err := c.storage.GetCourse(ctx, id)
	if err != nil {
		return model.Course{}, err
	}
	if !course.Active {
		return model.Course{}, errs.ErrCourseNotFound
	}
	return course, nil
}

func (c *Catalog) Search(ctx context.Context, q model.CourseQuery) ([]model.Course, error) {
	if q.PriceMin != nil && q.PriceMax != nil && *q.PriceMin > *q.PriceMax {
		return nil, fmt.Errorf("%w: priceMin is greater than priceMax", errs.ErrInvalidArgument)
	}
	switch q.Sort {
	case "", model.SortNewest, model.SortPriceAsc, model.SortPriceDesc, model.SortRating:
	default:
		return nil, fmt.Errorf("%w: unknown sort %q", errs.ErrInvalidArgument, q.Sort)
	}
	q.Query = strings.TrimSpace(q.Query)

	courses, err := c.storage.SearchCourses(ctx, q)
	if err != nil {
		return nil, err
	}
	if courses == nil {
		courses = []model.Course{}
	}
	return courses, nil
}

func (c *Catalog) Create(ctx context.Context, instructor model.User, in model.CourseInput) (model.Course, error) {
	if instructor.Role != model.RoleInstructor && !instructor.IsAdmin() {
		return model.Course{}, fmt.Errorf("%w: only instructors can create courses", errs.ErrForbidden)
	}

	course, err := c.storage.CreateCourse(ctx, model.Course{
		Title:        in.Title,
		Description:  in.Description,
		Category:     in.Category,
		Tags:         in.Tags,
		Price:        in.Price,
		InstructorID: instructor.ID,
	})
	if err != nil {
		return model.Course{}, err
	}

	c.logger.Infow("course created", "course_id", course.ID, "instructor_id", instructor.ID)
	return course, nil
}

func (c *Catalog) Update(ctx context.Context, id int64, requester model.User, in model.CourseInput) (model.Course, error) {
	course, err := c.owned(ctx, id, requester)
	if err != nil {
		return model.Course{}, err
	}

	course.Title = in.Title
	course.Description = in.Description
	course.Category = in.Category
	course.Tags = in.Tags
	course.Price = in.Price

	return c.storage.UpdateCourse(ctx, course)
}

// Deactivate hides the course from search and checkout. Existing
// enrollments keep working.
func (c *Catalog) Deactivate(ctx context.Context, id int64, requester model.User) error {
	if _, err := c.owned(ctx, id, requester); err != nil {
		return err
	}
	if err := c.storage.DeactivateCourse(ctx, id); err != nil {
		return err
	}

	c.logger.Infow("course deactivated", "course_id", id, "requester_id", requester.ID)
	return nil
}

func (c *Catalog) Roster(ctx context.Context, id int64, requester model.User) ([]int64, error) {
	if _, err := c.owned(ctx, id, requester); err != nil {
		return nil, err
	}

	roster, err := c.storage.GetRoster(ctx, id)
	if err != nil {
		return nil, err
	}
	if roster == nil {
		roster = []int64{}
	}
	return roster, nil
}

func (c *Catalog) owned(ctx context.Context, id int64, requester model.User) (model.Course, error) {
	course, err := c.Get(ctx, id)
	if err != nil {
		return model.Course{}, err
	}
	if course.InstructorID != requester.ID && !requester.IsAdmin() {
		return model.Course{}, fmt.Errorf("%w: course belongs to another instructor", errs.ErrForbidden)
	}
	return course, nil
}

// RecomputeRating takes the same course lock as rating writers, otherwise a
// recompute racing a new rating could store an outdated average.
func (c *Catalog) RecomputeRating(ctx context.Context, id int64) (float64, int, error) {
	var avg float64
	var count int
	err := c.storage.InTx(ctx, func(ctx context.Context) error {
		if err := c.storage.LockCourse(ctx, id); err != nil {
			return err
		}
		var err error
		avg, count, err = c.storage.RecomputeCourseRating(ctx, id)
		return err
	})
	if err != nil {
		return 0, 0, err
	}
	return avg, count, nil
}

// RecomputeAll refreshes every course aggregate and returns how many were
// touched.
func (c *Catalog) RecomputeAll(ctx context.Context) (int, error) {
	ids, err := c.storage.ListCourseIDs(ctx)
	if err != nil {
		return 0, err
	}

	for i, id := range ids {
		if _, _, err := c.RecomputeRating(ctx, id); err != nil {
			return i, fmt.Errorf("recompute course %d: %w", id, err)
		}
	}
	return len(ids), nil
}

func (c *Catalog) Stats(ctx context.Context) (model.PlatformStats, error) {
	return c.storage.PlatformStats(ctx)
}

// Dashboard summarises the requester's own courses.
func (c *Catalog) Dashboard(ctx context.Context, instructor model.User) (model.InstructorDashboard, error) {
	stats, err := c.storage.InstructorStats(ctx, instructor.ID)
	if err != nil {
		return model.InstructorDashboard{}, err
	}
	courses, err := c.storage.ListInstructorCourses(ctx, instructor.ID)
	if err != nil {
		return model.InstructorDashboard{}, err
	}
	if courses == nil {
		courses = []model.Course{}
	}

	return model.InstructorDashboard{InstructorStats: stats, CoursesList: courses}, nil
}

// Analytics reports enrollment progress of one course. Deactivated courses are
// included; a course of another instructor looks missing.
func (c *Catalog) Analytics(ctx context.Context, id int64, requester model.User) (model.CourseAnalytics, error) {
	course, err := c.storage.GetCourse(ctx, id)
	if err != nil {
		return model.CourseAnalytics{}, err
	}
	if course.InstructorID != requester.ID && !requester.IsAdmin() {
		return model.CourseAnalytics{}, errs.ErrCourseNotFound
	}

	students, err := c.storage.ListCourseStudents(ctx, id)
	if err != nil {
		return model.CourseAnalytics{}, err
	}
	if students == nil {
		students = []model.StudentProgress{}
	}
	revenue, err := c.storage.CourseRevenue(ctx, id)
	if err != nil {
		return model.CourseAnalytics{}, err
	}

	return model.CourseAnalytics{
		CourseID:         course.ID,
		TotalEnrollments: int64(len(students)),
		AverageRating:    course.RatingAvg,
		RatingCount:      course.RatingCount,
		RevenueMinor:     revenue,
		Students:         students,
	}, nil
}
