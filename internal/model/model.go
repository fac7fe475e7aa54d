package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleStudent    Role = "student"
	RoleInstructor Role = "instructor"
	RoleAdmin      Role = "admin"
)

type User struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

type Course struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Category     string    `json:"category"`
	Tags         []string  `json:"tags"`
	Price        float64   `json:"price"`
	InstructorID int64     `json:"instructor_id"`
	RatingAvg    float64   `json:"rating"`
	RatingCount  int       `json:"rating_count"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderCompleted OrderStatus = "COMPLETED"
	OrderFailed    OrderStatus = "FAILED"
)

type Order struct {
	ID                 uuid.UUID   `json:"id"`
	ProviderOrderRef   string      `json:"provider_order_ref"`
	ProviderPaymentRef string      `json:"provider_payment_ref,omitempty"`
	Amount             int64       `json:"amount"`
	Currency           string      `json:"currency"`
	Receipt            string      `json:"receipt"`
	Status             OrderStatus `json:"status"`
	FailureReason      string      `json:"failure_reason,omitempty"`
	StudentID          int64       `json:"student_id"`
	CourseID           int64       `json:"course_id"`
	CreatedAt          time.Time   `json:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at"`
}

type EnrollmentStatus string

const (
	EnrollmentActive    EnrollmentStatus = "active"
	EnrollmentCompleted EnrollmentStatus = "completed"
	EnrollmentCancelled EnrollmentStatus = "cancelled"
)

type Enrollment struct {
	ID             int64            `json:"id"`
	StudentID      int64            `json:"student_id"`
	CourseID       int64            `json:"course_id"`
	OrderID        uuid.UUID        `json:"order_id"`
	Status         EnrollmentStatus `json:"status"`
	Progress       int              `json:"progress"`
	Rating         *int             `json:"rating,omitempty"`
	Review         *string          `json:"review,omitempty"`
	EnrolledAt     time.Time        `json:"enrolled_at"`
	LastAccessedAt time.Time        `json:"last_accessed_at"`
}

// Review is the public projection of a rated enrollment.
type Review struct {
	EnrollmentID int64     `json:"enrollment_id"`
	StudentID    int64     `json:"student_id"`
	StudentName  string    `json:"student_name"`
	Rating       int       `json:"rating"`
	Review       string    `json:"review,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// GatewayOrder is the provider's view of an order.
type GatewayOrder struct {
	ID       string          `json:"id"`
	Amount   int64           `json:"amount"`
	Currency string          `json:"currency"`
	Receipt  string          `json:"receipt"`
	Status   string          `json:"status"`
	Payload  json.RawMessage `json:"-"`
}

type CheckoutSession struct {
	Order            Order           `json:"order"`
	GatewayOrder     json.RawMessage `json:"gatewayOrder,omitempty"`
	GatewayPublicKey string          `json:"gatewayPublicKey"`
}

// PaymentCallback is the client-side confirmation relayed after checkout.
// StudentID is zero when the caller is not a student session.
type PaymentCallback struct {
	ProviderOrderRef   string
	ProviderPaymentRef string
	Signature          string
	StudentID          int64
}

type CheckoutResult struct {
	Order      Order      `json:"order"`
	Enrollment Enrollment `json:"enrollment"`
	Replayed   bool       `json:"replayed"`
}

type PaymentEventStatus string

const (
	EventReceived  PaymentEventStatus = "received"
	EventProcessed PaymentEventStatus = "processed"
	EventIgnored   PaymentEventStatus = "ignored"
	EventFailed    PaymentEventStatus = "failed"
)

// EventClaimTimeout is how long a received webhook event stays claimed by the
// delivery that recorded it. After that a redelivery may take it over.
const EventClaimTimeout = 5 * time.Minute

type PaymentEvent struct {
	EventID          string             `json:"event_id"`
	EventType        string             `json:"event_type"`
	ProviderOrderRef string             `json:"provider_order_ref,omitempty"`
	Signature        string             `json:"-"`
	Payload          json.RawMessage    `json:"payload"`
	Status           PaymentEventStatus `json:"status"`
	Error            string             `json:"error,omitempty"`
	Attempts         int                `json:"attempts"`
	ReceivedAt       time.Time          `json:"received_at"`
	ClaimedAt        time.Time          `json:"claimed_at"`
}

type WebhookOutcome struct {
	EventID   string             `json:"event_id"`
	Status    PaymentEventStatus `json:"status"`
	Duplicate bool               `json:"duplicate,omitempty"`
}

type PlatformStats struct {
	TotalUsers       int64 `json:"totalUsers"`
	TotalCourses     int64 `json:"totalCourses"`
	TotalEnrollments int64 `json:"totalEnrollments"`
	TotalReviews     int64 `json:"totalReviews"`
	PendingOrders    int64 `json:"pendingOrders"`
	RevenueMinor     int64 `json:"revenueMinor"`
}

// InstructorStats aggregates over every course of one instructor, deactivated
// ones included. Revenue counts completed orders only.
type InstructorStats struct {
	Courses          int64 `json:"courses"`
	TotalEnrollments int64 `json:"totalEnrollments"`
	TotalStudents    int64 `json:"totalStudents"`
	RevenueMinor     int64 `json:"revenueMinor"`
}

type InstructorDashboard struct {
	InstructorStats
	CoursesList []Course `json:"coursesList"`
}

type StudentProgress struct {
	EnrollmentID int64            `json:"enrollmentId"`
	StudentID    int64            `json:"studentId"`
	Name         string           `json:"name"`
	Email        string           `json:"email"`
	EnrolledAt   time.Time        `json:"enrolledAt"`
	Progress     int              `json:"progress"`
	Status       EnrollmentStatus `json:"status"`
}

type CourseAnalytics struct {
	CourseID         int64             `json:"courseId"`
	TotalEnrollments int64             `json:"totalEnrollments"`
	AverageRating    float64           `json:"averageRating"`
	RatingCount      int               `json:"ratingCount"`
	RevenueMinor     int64             `json:"revenueMinor"`
	Students         []StudentProgress `json:"students"`
}
