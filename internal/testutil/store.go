// Package testutil provides an in-memory stand-in for the PostgreSQL storage
// with the same method set and error contract.
package testutil

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/and161185/coursemart/internal/errs"
	"github.com/and161185/coursemart/internal/model"
)

type txKey struct{}

type state struct {
	users       map[int64]model.User
	hashes      map[int64]string
	courses     map[int64]model.Course
	roster      map[int64][]int64
	orders      map[string]model.Order
	enrollments map[int64]model.Enrollment
	events      map[string]model.PaymentEvent
	nextID      int64
}

func (s state) clone() state {
	c := state{
		users:       make(map[int64]model.User, len(s.users)),
		hashes:      make(map[int64]string, len(s.hashes)),
		courses:     make(map[int64]model.Course, len(s.courses)),
		roster:      make(map[int64][]int64, len(s.roster)),
		orders:      make(map[string]model.Order, len(s.orders)),
		enrollments: make(map[int64]model.Enrollment, len(s.enrollments)),
		events:      make(map[string]model.PaymentEvent, len(s.events)),
		nextID:      s.nextID,
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.hashes {
		c.hashes[k] = v
	}
	for k, v := range s.courses {
		c.courses[k] = v
	}
	for k, v := range s.roster {
		c.roster[k] = append([]int64(nil), v...)
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.enrollments {
		c.enrollments[k] = v
	}
	for k, v := range s.events {
		c.events[k] = v
	}
	return c
}

// MemoryStore is safe for concurrent use. Transactions are serialised and
// rolled back by restoring a snapshot.
type MemoryStore struct {
	mu   sync.Mutex
	txMu sync.Mutex
	s    state

	// Fail, when set, is consulted at the start of every method; a non-nil
	// result is returned as that method's error.
	Fail func(method string) error

	Now func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		s: state{
			users:       map[int64]model.User{},
			hashes:      map[int64]string{},
			courses:     map[int64]model.Course{},
			roster:      map[int64][]int64{},
			orders:      map[string]model.Order{},
			enrollments: map[int64]model.Enrollment{},
			events:      map[string]model.PaymentEvent{},
		},
		Now: time.Now,
	}
}

func (m *MemoryStore) fail(method string) error {
	if m.Fail == nil {
		return nil
	}
	return m.Fail(method)
}

func (m *MemoryStore) id() int64 {
	m.s.nextID++
	return m.s.nextID
}

func (m *MemoryStore) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}
	if err := m.fail("InTx"); err != nil {
		return err
	}

	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	snapshot := m.s.clone()
	m.mu.Unlock()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		m.mu.Lock()
		m.s = snapshot
		m.mu.Unlock()
		return err
	}
	return nil
}

// Users

func (m *MemoryStore) CreateUser(ctx context.Context, user model.User, passwordHash string) (model.User, error) {
	if err := m.fail("CreateUser"); err != nil {
		return model.User{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.s.users {
		if u.Email == user.Email {
			return model.User{}, errs.ErrEmailTaken
		}
	}
	user.ID = m.id()
	user.CreatedAt = m.Now()
	m.s.users[user.ID] = user
	m.s.hashes[user.ID] = passwordHash
	return user, nil
}

func (m *MemoryStore) GetUserByEmail(ctx context.Context, email string) (model.User, string, error) {
	if err := m.fail("GetUserByEmail"); err != nil {
		return model.User{}, "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.s.users {
		if u.Email == email {
			return u, m.s.hashes[u.ID], nil
		}
	}
	return model.User{}, "", errs.ErrUserNotFound
}

func (m *MemoryStore) GetUserByID(ctx context.Context, id int64) (model.User, error) {
	if err := m.fail("GetUserByID"); err != nil {
		return model.User{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.s.users[id]
	if !ok {
		return model.User{}, errs.ErrUserNotFound
	}
	return u, nil
}

func (m *MemoryStore) SetUserRole(ctx context.Context, email string, role model.Role) (model.User, error) {
	if err := m.fail("SetUserRole"); err != nil {
		return model.User{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, u := range m.s.users {
		if u.Email == email {
			u.Role = role
			m.s.users[id] = u
			return u, nil
		}
	}
	return model.User{}, errs.ErrUserNotFound
}

// Courses

func (m *MemoryStore) CreateCourse(ctx context.Context, course model.Course) (model.Course, error) {
	if err := m.fail("CreateCourse"); err != nil {
		return model.Course{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	course.ID = m.id()
	course.Active = true
	course.CreatedAt = m.Now()
	course.UpdatedAt = course.CreatedAt
	if course.Tags == nil {
		course.Tags = []string{}
	}
	m.s.courses[course.ID] = course
	return course, nil
}

func (m *MemoryStore) GetCourse(ctx context.Context, id int64) (model.Course, error) {
	if err := m.fail("GetCourse"); err != nil {
		return model.Course{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.s.courses[id]
	if !ok {
		return model.Course{}, errs.ErrCourseNotFound
	}
	return c, nil
}

func (m *MemoryStore) UpdateCourse(ctx context.Context, course model.Course) (model.Course, error) {
	if err := m.fail("UpdateCourse"); err != nil {
		return model.Course{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.s.courses[course.ID]
	if !ok {
		return model.Course{}, errs.ErrCourseNotFound
	}
	c.Title = course.Title
	c.Description = course.Description
	c.Category = course.Category
	c.Tags = course.Tags
	c.Price = course.Price
	c.UpdatedAt = m.Now()
	m.s.courses[c.ID] = c
	return c, nil
}

func (m *MemoryStore) DeactivateCourse(ctx context.Context, id int64) error {
	if err := m.fail("DeactivateCourse"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.s.courses[id]
	if !ok {
		return errs.ErrCourseNotFound
	}
	c.Active = false
	m.s.courses[id] = c
	return nil
}

func (m *MemoryStore) SearchCourses(ctx context.Context, q model.CourseQuery) ([]model.Course, error) {
	if err := m.fail("SearchCourses"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	needle := strings.ToLower(q.Query)
	var out []model.Course
	for _, c := range m.s.courses {
		if !c.Active {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(c.Title), needle) &&
			!strings.Contains(strings.ToLower(c.Description), needle) {
			continue
		}
		if q.Category != "" && c.Category != q.Category {
			continue
		}
		if q.PriceMin != nil && c.Price < *q.PriceMin {
			continue
		}
		if q.PriceMax != nil && c.Price > *q.PriceMax {
			continue
		}
		out = append(out, c)
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch q.Sort {
		case model.SortPriceAsc:
			if a.Price != b.Price {
				return a.Price < b.Price
			}
			return a.ID < b.ID
		case model.SortPriceDesc:
			if a.Price != b.Price {
				return a.Price > b.Price
			}
			return a.ID < b.ID
		case model.SortRating:
			if a.RatingAvg != b.RatingAvg {
				return a.RatingAvg > b.RatingAvg
			}
			return a.ID < b.ID
		default:
			return a.ID > b.ID
		}
	})

	limit := q.Limit
	if limit <= 0 || limit > 50 {
		limit = 50
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// LockCourse only checks the course exists: transactions are already serialised.
func (m *MemoryStore) LockCourse(ctx context.Context, courseID int64) error {
	if err := m.fail("LockCourse"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.s.courses[courseID]; !ok {
		return errs.ErrCourseNotFound
	}
	return nil
}

func (m *MemoryStore) RecomputeCourseRating(ctx context.Context, courseID int64) (float64, int, error) {
	if err := m.fail("RecomputeCourseRating"); err != nil {
		return 0, 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.s.courses[courseID]
	if !ok {
		return 0, 0, errs.ErrCourseNotFound
	}

	var sum, count int
	for _, e := range m.s.enrollments {
		if e.CourseID == courseID && e.Rating != nil {
			sum += *e.Rating
			count++
		}
	}
	c.RatingAvg = 0
	if count > 0 {
		c.RatingAvg = float64(sum) / float64(count)
	}
	c.RatingCount = count
	m.s.courses[courseID] = c
	return c.RatingAvg, c.RatingCount, nil
}

func (m *MemoryStore) AddToRoster(ctx context.Context, courseID, studentID int64) error {
	if err := m.fail("AddToRoster"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range m.s.roster[courseID] {
		if id == studentID {
			return nil
		}
	}
	m.s.roster[courseID] = append(m.s.roster[courseID], studentID)
	return nil
}

func (m *MemoryStore) GetRoster(ctx context.Context, courseID int64) ([]int64, error) {
	if err := m.fail("GetRoster"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]int64(nil), m.s.roster[courseID]...), nil
}

func (m *MemoryStore) ListCourseIDs(ctx context.Context) ([]int64, error) {
	if err := m.fail("ListCourseIDs"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]int64, 0, len(m.s.courses))
	for id := range m.s.courses {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// Orders

func (m *MemoryStore) CreateOrder(ctx context.Context, order model.Order) (model.Order, error) {
	if err := m.fail("CreateOrder"); err != nil {
		return model.Order{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, o := range m.s.orders {
		if o.ProviderOrderRef == order.ProviderOrderRef || o.Receipt == order.Receipt {
			return model.Order{}, errs.ErrOrderPending
		}
		if order.Status == model.OrderPending && o.Status == model.OrderPending &&
			o.StudentID == order.StudentID && o.CourseID == order.CourseID {
			return model.Order{}, errs.ErrOrderPending
		}
	}
	order.CreatedAt = m.Now()
	order.UpdatedAt = order.CreatedAt
	m.s.orders[order.ProviderOrderRef] = order
	return order, nil
}

func (m *MemoryStore) GetOrderByRef(ctx context.Context, providerOrderRef string) (model.Order, error) {
	if err := m.fail("GetOrderByRef"); err != nil {
		return model.Order{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.s.orders[providerOrderRef]
	if !ok {
		return model.Order{}, errs.ErrOrderNotFound
	}
	return o, nil
}

func (m *MemoryStore) GetPendingOrder(ctx context.Context, studentID, courseID int64) (model.Order, error) {
	if err := m.fail("GetPendingOrder"); err != nil {
		return model.Order{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, o := range m.s.orders {
		if o.Status == model.OrderPending && o.StudentID == studentID && o.CourseID == courseID {
			return o, nil
		}
	}
	return model.Order{}, errs.ErrOrderNotFound
}

func (m *MemoryStore) CompleteOrder(ctx context.Context, providerOrderRef, providerPaymentRef string) (model.Order, error) {
	if err := m.fail("CompleteOrder"); err != nil {
		return model.Order{}, err
	}
	return m.transition(providerOrderRef, func(o *model.Order) {
		o.Status = model.OrderCompleted
		o.ProviderPaymentRef = providerPaymentRef
	})
}

func (m *MemoryStore) FailOrder(ctx context.Context, providerOrderRef, reason string) (model.Order, error) {
	if err := m.fail("FailOrder"); err != nil {
		return model.Order{}, err
	}
	return m.transition(providerOrderRef, func(o *model.Order) {
		o.Status = model.OrderFailed
		o.FailureReason = reason
	})
}

func (m *MemoryStore) transition(ref string, apply func(o *model.Order)) (model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.s.orders[ref]
	if !ok {
		return model.Order{}, errs.ErrOrderNotFound
	}
	if o.Status != model.OrderPending {
		return model.Order{}, errs.ErrOrderNotPending
	}
	apply(&o)
	o.UpdatedAt = m.Now()
	m.s.orders[ref] = o
	return o, nil
}

func (m *MemoryStore) ListStudentOrders(ctx context.Context, studentID int64) ([]model.Order, error) {
	if err := m.fail("ListStudentOrders"); err != nil {
		return nil, err
	}
	return m.filterOrders(func(o model.Order) bool { return o.StudentID == studentID }), nil
}

func (m *MemoryStore) ListStalePendingOrders(ctx context.Context, before time.Time) ([]model.Order, error) {
	if err := m.fail("ListStalePendingOrders"); err != nil {
		return nil, err
	}
	return m.filterOrders(func(o model.Order) bool {
		return o.Status == model.OrderPending && o.CreatedAt.Before(before)
	}), nil
}

func (m *MemoryStore) filterOrders(keep func(model.Order) bool) []model.Order {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []model.Order
	for _, o := range m.s.orders {
		if keep(o) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// SetOrderCreatedAt backdates an order so expiry can be exercised.
func (m *MemoryStore) SetOrderCreatedAt(providerOrderRef string, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o := m.s.orders[providerOrderRef]
	o.CreatedAt = at
	m.s.orders[providerOrderRef] = o
}

// Enrollments

func (m *MemoryStore) CreateEnrollment(ctx context.Context, e model.Enrollment) (model.Enrollment, error) {
	if err := m.fail("CreateEnrollment"); err != nil {
		return model.Enrollment{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.s.enrollments {
		if existing.StudentID == e.StudentID && existing.CourseID == e.CourseID {
			return model.Enrollment{}, errs.ErrAlreadyEnrolled
		}
	}
	e.ID = m.id()
	e.EnrolledAt = m.Now()
	e.LastAccessedAt = e.EnrolledAt
	m.s.enrollments[e.ID] = e
	return e, nil
}

func (m *MemoryStore) GetEnrollment(ctx context.Context, id int64) (model.Enrollment, error) {
	if err := m.fail("GetEnrollment"); err != nil {
		return model.Enrollment{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.s.enrollments[id]
	if !ok {
		return model.Enrollment{}, errs.ErrEnrollmentNotFound
	}
	return e, nil
}

func (m *MemoryStore) FindEnrollment(ctx context.Context, studentID, courseID int64) (model.Enrollment, error) {
	if err := m.fail("FindEnrollment"); err != nil {
		return model.Enrollment{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range m.s.enrollments {
		if e.StudentID == studentID && e.CourseID == courseID {
			return e, nil
		}
	}
	return model.Enrollment{}, errs.ErrEnrollmentNotFound
}

func (m *MemoryStore) SetEnrollmentRating(ctx context.Context, id int64, rating *int, review *string) (model.Enrollment, error) {
	if err := m.fail("SetEnrollmentRating"); err != nil {
		return model.Enrollment{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.s.enrollments[id]
	if !ok {
		return model.Enrollment{}, errs.ErrEnrollmentNotFound
	}
	e.Rating = rating
	e.Review = review
	m.s.enrollments[id] = e
	return e, nil
}

func (m *MemoryStore) SetEnrollmentProgress(ctx context.Context, id int64, progress int, status model.EnrollmentStatus, accessedAt time.Time) (model.Enrollment, error) {
	if err := m.fail("SetEnrollmentProgress"); err != nil {
		return model.Enrollment{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.s.enrollments[id]
	if !ok {
		return model.Enrollment{}, errs.ErrEnrollmentNotFound
	}
	e.Progress = progress
	e.Status = status
	e.LastAccessedAt = accessedAt
	m.s.enrollments[id] = e
	return e, nil
}

func (m *MemoryStore) ListStudentEnrollments(ctx context.Context, studentID int64) ([]model.Enrollment, error) {
	if err := m.fail("ListStudentEnrollments"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []model.Enrollment
	for _, e := range m.s.enrollments {
		if e.StudentID == studentID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *MemoryStore) ListCourseReviews(ctx context.Context, courseID int64) ([]model.Review, error) {
	if err := m.fail("ListCourseReviews"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []model.Review
	for _, e := range m.s.enrollments {
		if e.CourseID != courseID || e.Rating == nil {
			continue
		}
		r := model.Review{
			EnrollmentID: e.ID,
			StudentID:    e.StudentID,
			StudentName:  m.s.users[e.StudentID].Name,
			Rating:       *e.Rating,
			UpdatedAt:    e.LastAccessedAt,
		}
		if e.Review != nil {
			r.Review = *e.Review
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EnrollmentID < out[j].EnrollmentID })
	return out, nil
}

func (m *MemoryStore) ListCourseStudents(ctx context.Context, courseID int64) ([]model.StudentProgress, error) {
	if err := m.fail("ListCourseStudents"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []model.StudentProgress
	for _, e := range m.s.enrollments {
		if e.CourseID != courseID {
			continue
		}
		u := m.s.users[e.StudentID]
		out = append(out, model.StudentProgress{
			EnrollmentID: e.ID,
			StudentID:    e.StudentID,
			Name:         u.Name,
			Email:        u.Email,
			EnrolledAt:   e.EnrolledAt,
			Progress:     e.Progress,
			Status:       e.Status,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EnrollmentID < out[j].EnrollmentID })
	return out, nil
}

// Enrollments returns every enrollment for the pair, for invariant checks.
func (m *MemoryStore) Enrollments(studentID, courseID int64) []model.Enrollment {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []model.Enrollment
	for _, e := range m.s.enrollments {
		if e.StudentID == studentID && e.CourseID == courseID {
			out = append(out, e)
		}
	}
	return out
}

// Payment events

func (m *MemoryStore) RecordPaymentEvent(ctx context.Context, ev model.PaymentEvent) (bool, error) {
	if err := m.fail("RecordPaymentEvent"); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.Now()
	if existing, ok := m.s.events[ev.EventID]; ok {
		switch existing.Status {
		case model.EventFailed:
		case model.EventReceived:
			if now.Sub(existing.ClaimedAt) <= model.EventClaimTimeout {
				return false, errs.ErrEventInFlight
			}
		default:
			return false, nil
		}
		existing.Attempts++
		existing.Status = model.EventReceived
		existing.Error = ""
		existing.ClaimedAt = now
		m.s.events[ev.EventID] = existing
		return true, nil
	}

	ev.Status = model.EventReceived
	ev.Attempts = 1
	ev.ReceivedAt = now
	ev.ClaimedAt = now
	m.s.events[ev.EventID] = ev
	return true, nil
}

func (m *MemoryStore) SetPaymentEventStatus(ctx context.Context, eventID string, status model.PaymentEventStatus, errMsg string) error {
	if err := m.fail("SetPaymentEventStatus"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	ev := m.s.events[eventID]
	ev.Status = status
	ev.Error = errMsg
	m.s.events[eventID] = ev
	return nil
}

func (m *MemoryStore) PaymentEvent(eventID string) (model.PaymentEvent, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ev, ok := m.s.events[eventID]
	return ev, ok
}

// Stats

func (m *MemoryStore) PlatformStats(ctx context.Context) (model.PlatformStats, error) {
	if err := m.fail("PlatformStats"); err != nil {
		return model.PlatformStats{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var s model.PlatformStats
	s.TotalUsers = int64(len(m.s.users))
	for _, c := range m.s.courses {
		if c.Active {
			s.TotalCourses++
		}
	}
	for _, e := range m.s.enrollments {
		s.TotalEnrollments++
		if e.Rating != nil {
			s.TotalReviews++
		}
	}
	for _, o := range m.s.orders {
		switch o.Status {
		case model.OrderPending:
			s.PendingOrders++
		case model.OrderCompleted:
			s.RevenueMinor += o.Amount
		}
	}
	return s, nil
}

func (m *MemoryStore) ListInstructorCourses(ctx context.Context, instructorID int64) ([]model.Course, error) {
	if err := m.fail("ListInstructorCourses"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []model.Course
	for _, c := range m.s.courses {
		if c.InstructorID == instructorID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *MemoryStore) InstructorStats(ctx context.Context, instructorID int64) (model.InstructorStats, error) {
	if err := m.fail("InstructorStats"); err != nil {
		return model.InstructorStats{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var s model.InstructorStats
	owned := map[int64]bool{}
	for _, c := range m.s.courses {
		if c.InstructorID == instructorID {
			owned[c.ID] = true
			s.Courses++
		}
	}
	students := map[int64]bool{}
	for _, e := range m.s.enrollments {
		if owned[e.CourseID] {
			s.TotalEnrollments++
			students[e.StudentID] = true
		}
	}
	s.TotalStudents = int64(len(students))
	for _, o := range m.s.orders {
		if owned[o.CourseID] && o.Status == model.OrderCompleted {
			s.RevenueMinor += o.Amount
		}
	}
	return s, nil
}

func (m *MemoryStore) CourseRevenue(ctx context.Context, courseID int64) (int64, error) {
	if err := m.fail("CourseRevenue"); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var revenue int64
	for _, o := range m.s.orders {
		if o.CourseID == courseID && o.Status == model.OrderCompleted {
			revenue += o.Amount
		}
	}
	return revenue, nil
}
