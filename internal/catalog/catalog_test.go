package catalog

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/and161185/coursemart/internal/errs"
	"github.com/and161185/coursemart/internal/model"
	"github.com/and161185/coursemart/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var (
	instructor = model.User{ID: 100, Role: model.RoleInstructor}
	other      = model.User{ID: 101, Role: model.RoleInstructor}
	admin      = model.User{ID: 1, Role: model.RoleAdmin}
	student    = model.User{ID: 7, Role: model.RoleStudent}
)

func setup(t *testing.T) (*Catalog, *testutil.MemoryStore) {
	store := testutil.NewMemoryStore()
	return New(store, zaptest.NewLogger(t).Sugar()), store
}

func TestCreateRequiresInstructor(t *testing.T) {
	c, _ := setup(t)
	in := model.CourseInput{Title: "Go basics", Price: 500}

	_, err := c.Create(context.Background(), student, in)
	require.ErrorIs(t, err, errs.ErrForbidden)

	course, err := c.Create(context.Background(), instructor, in)
	require.NoError(t, err)
	require.Equal(t, instructor.ID, course.InstructorID)
	require.True(t, course.Active)
}

func TestUpdateOwnership(t *testing.T) {
	c, _ := setup(t)
	ctx := context.Background()

	course, err := c.Create(ctx, instructor, model.CourseInput{Title: "Go basics", Price: 500})
	require.NoError(t, err)

	_, err = c.Update(ctx, course.ID, other, model.CourseInput{Title: "Stolen", Price: 1})
	require.ErrorIs(t, err, errs.ErrForbidden)

	updated, err := c.Update(ctx, course.ID, admin, model.CourseInput{Title: "Go advanced", Price: 750})
	require.NoError(t, err)
	require.Equal(t, "Go advanced", updated.Title)
	require.Equal(t, 750.0, updated.Price)
}

func TestDeactivateHidesCourse(t *testing.T) {
	c, _ := setup(t)
	ctx := context.Background()

	course, err := c.Create(ctx, instructor, model.CourseInput{Title: "Go basics", Price: 500})
	require.NoError(t, err)

	require.ErrorIs(t, c.Deactivate(ctx, course.ID, other), errs.ErrForbidden)
	require.NoError(t, c.Deactivate(ctx, course.ID, instructor))

	_, err = c.Get(ctx, course.ID)
	require.ErrorIs(t, err, errs.ErrNotFound)

	found, err := c.Search(ctx, model.CourseQuery{})
	require.NoError(t, err)
	require.Empty(t, found)
}

func TestSearch(t *testing.T) {
	c, _ := setup(t)
	ctx := context.Background()

	for _, in := range []model.CourseInput{
		{Title: "Go basics", Category: "programming", Price: 500},
		{Title: "Advanced Go", Category: "programming", Price: 1500},
		{Title: "Watercolor", Category: "art", Price: 200},
	} {
		_, err := c.Create(ctx, instructor, in)
		require.NoError(t, err)
	}

	minPrice, maxPrice := 300.0, 2000.0
	tests := []struct {
		name   string
		query  model.CourseQuery
		titles []string
	}{
		{name: "text", query: model.CourseQuery{Query: " go "}, titles: []string{"Advanced Go", "Go basics"}},
		{name: "category", query: model.CourseQuery{Category: "art"}, titles: []string{"Watercolor"}},
		{name: "price range ascending", query: model.CourseQuery{PriceMin: &minPrice, PriceMax: &maxPrice, Sort: model.SortPriceAsc},
			titles: []string{"Go basics", "Advanced Go"}},
		{name: "price descending", query: model.CourseQuery{Sort: model.SortPriceDesc},
			titles: []string{"Advanced Go", "Go basics", "Watercolor"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			found, err := c.Search(ctx, tt.query)
			require.NoError(t, err)

			var titles []string
			for _, course := range found {
				titles = append(titles, course.Title)
			}
			require.Equal(t, tt.titles, titles)
		})
	}
}

func TestSearchRejectsBadInput(t *testing.T) {
	c, _ := setup(t)
	lo, hi := 100.0, 10.0

	_, err := c.Search(context.Background(), model.CourseQuery{PriceMin: &lo, PriceMax: &hi})
	require.ErrorIs(t, err, errs.ErrInvalidArgument)

	_, err = c.Search(context.Background(), model.CourseQuery{Sort: "popularity"})
	require.ErrorIs(t, err, errs.ErrInvalidArgument)
}

func TestRosterAndRecompute(t *testing.T) {
	c, store := setup(t)
	ctx := context.Background()

	course, err := c.Create(ctx, instructor, model.CourseInput{Title: "Go basics", Price: 500})
	require.NoError(t, err)

	for student, rating := range map[int64]int{7: 5, 8: 3} {
		e, err := store.CreateEnrollment(ctx, model.Enrollment{StudentID: student, CourseID: course.ID, Status: model.EnrollmentActive})
		require.NoError(t, err)
		require.NoError(t, store.AddToRoster(ctx, course.ID, student))
		r := rating
		_, err = store.SetEnrollmentRating(ctx, e.ID, &r, nil)
		require.NoError(t, err)
	}

	roster, err := c.Roster(ctx, course.ID, instructor)
	require.NoError(t, err)
	require.ElementsMatch(t, []int64{7, 8}, roster)

	_, err = c.Roster(ctx, course.ID, student)
	require.ErrorIs(t, err, errs.ErrForbidden)

	n, err := c.RecomputeAll(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	got, err := c.Get(ctx, course.ID)
	require.NoError(t, err)
	require.Equal(t, 4.0, got.RatingAvg)
	require.Equal(t, 2, got.RatingCount)

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), stats.TotalEnrollments)
	require.Equal(t, int64(2), stats.TotalReviews)
}

func TestRecomputeRatingHoldsCourseLock(t *testing.T) {
	c, store := setup(t)
	ctx := context.Background()

	course, err := c.Create(ctx, instructor, model.CourseInput{Title: "Go basics", Price: 500})
	require.NoError(t, err)

	store.Fail = func(method string) error {
		if method == "LockCourse" {
			return errors.New("lock timeout")
		}
		return nil
	}
	_, _, err = c.RecomputeRating(ctx, course.ID)
	require.ErrorContains(t, err, "lock timeout")

	store.Fail = nil
	_, _, err = c.RecomputeRating(ctx, course.ID+100)
	require.ErrorIs(t, err, errs.ErrCourseNotFound)
}

// sell records a paid order and the enrollment it grants.
func sell(t *testing.T, store *testutil.MemoryStore, studentID int64, course model.Course, status model.OrderStatus) {
	t.Helper()
	ctx := context.Background()

	order, err := store.CreateOrder(ctx, model.Order{
		ID:               uuid.New(),
		ProviderOrderRef: fmt.Sprintf("order_%d_%d", studentID, course.ID),
		Receipt:          fmt.Sprintf("rcpt_%d_%d", studentID, course.ID),
		Amount:           int64(course.Price * 100),
		Status:           model.OrderPending,
		StudentID:        studentID,
		CourseID:         course.ID,
	})
	require.NoError(t, err)

	if status == model.OrderFailed {
		_, err = store.FailOrder(ctx, order.ProviderOrderRef, "declined")
		require.NoError(t, err)
		return
	}
	_, err = store.CompleteOrder(ctx, order.ProviderOrderRef, "pay_"+order.ProviderOrderRef)
	require.NoError(t, err)
	_, err = store.CreateEnrollment(ctx, model.Enrollment{
		StudentID: studentID, CourseID: course.ID, OrderID: order.ID, Status: model.EnrollmentActive,
	})
	require.NoError(t, err)
}

func TestDashboard(t *testing.T) {
	c, store := setup(t)
	ctx := context.Background()

	goCourse, err := c.Create(ctx, instructor, model.CourseInput{Title: "Go basics", Price: 500})
	require.NoError(t, err)
	rustCourse, err := c.Create(ctx, instructor, model.CourseInput{Title: "Rust basics", Price: 300})
	require.NoError(t, err)
	foreign, err := c.Create(ctx, other, model.CourseInput{Title: "Watercolor", Price: 900})
	require.NoError(t, err)

	sell(t, store, 7, goCourse, model.OrderCompleted)
	sell(t, store, 8, goCourse, model.OrderCompleted)
	sell(t, store, 7, rustCourse, model.OrderCompleted)
	sell(t, store, 9, rustCourse, model.OrderFailed)
	sell(t, store, 7, foreign, model.OrderCompleted)

	// deactivated courses still count
	require.NoError(t, c.Deactivate(ctx, rustCourse.ID, instructor))

	d, err := c.Dashboard(ctx, instructor)
	require.NoError(t, err)
	require.Equal(t, int64(2), d.Courses)
	require.Equal(t, int64(3), d.TotalEnrollments)
	require.Equal(t, int64(2), d.TotalStudents)
	require.Equal(t, int64(50000+50000+30000), d.RevenueMinor)
	require.Len(t, d.CoursesList, 2)
	require.Equal(t, rustCourse.ID, d.CoursesList[0].ID)

	empty, err := c.Dashboard(ctx, model.User{ID: 555, Role: model.RoleInstructor})
	require.NoError(t, err)
	require.Zero(t, empty.Courses)
	require.NotNil(t, empty.CoursesList)
}

func TestAnalytics(t *testing.T) {
	c, store := setup(t)
	ctx := context.Background()

	sam, err := store.CreateUser(ctx, model.User{Email: "sam@example.com", Name: "Sam", Role: model.RoleStudent}, "hash")
	require.NoError(t, err)

	course, err := c.Create(ctx, instructor, model.CourseInput{Title: "Go basics", Price: 500})
	require.NoError(t, err)
	sell(t, store, sam.ID, course, model.OrderCompleted)
	sell(t, store, sam.ID+1, course, model.OrderFailed)

	e, err := store.FindEnrollment(ctx, sam.ID, course.ID)
	require.NoError(t, err)
	_, err = store.SetEnrollmentProgress(ctx, e.ID, 40, model.EnrollmentActive, store.Now())
	require.NoError(t, err)
	rating := 4
	_, err = store.SetEnrollmentRating(ctx, e.ID, &rating, nil)
	require.NoError(t, err)
	_, _, err = c.RecomputeRating(ctx, course.ID)
	require.NoError(t, err)

	a, err := c.Analytics(ctx, course.ID, instructor)
	require.NoError(t, err)
	require.Equal(t, int64(1), a.TotalEnrollments)
	require.Equal(t, 4.0, a.AverageRating)
	require.Equal(t, int64(50000), a.RevenueMinor)
	require.Len(t, a.Students, 1)
	require.Equal(t, "Sam", a.Students[0].Name)
	require.Equal(t, "sam@example.com", a.Students[0].Email)
	require.Equal(t, 40, a.Students[0].Progress)
	require.Equal(t, model.EnrollmentActive, a.Students[0].Status)

	_, err = c.Analytics(ctx, course.ID, other)
	require.ErrorIs(t, err, errs.ErrCourseNotFound)

	_, err = c.Analytics(ctx, course.ID, admin)
	require.NoError(t, err)

	require.NoError(t, c.Deactivate(ctx, course.ID, instructor))
	a, err = c.Analytics(ctx, course.ID, instructor)
	require.NoError(t, err)
	require.Equal(t, int64(1), a.TotalEnrollments)
}
