package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/and161185/coursemart/internal/config"
	"github.com/and161185/coursemart/internal/deps"
	"github.com/and161185/coursemart/internal/middleware"
	"github.com/and161185/coursemart/internal/model"
	chiMiddleware "github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"
)

type UserStore interface {
	CreateUser(ctx context.Context, user model.User, passwordHash string) (model.User, error)
	GetUserByEmail(ctx context.Context, email string) (model.User, string, error)
	GetUserByID(ctx context.Context, id int64) (model.User, error)
}

type Catalog interface {
	Get(ctx context.Context, id int64) (model.Course, error)
	Search(ctx context.Context, q model.CourseQuery) ([]model.Course, error)
	Create(ctx context.Context, instructor model.User, in model.CourseInput) (model.Course, error)
	Update(ctx context.Context, id int64, requester model.User, in model.CourseInput) (model.Course, error)
	Deactivate(ctx context.Context, id int64, requester model.User) error
	Roster(ctx context.Context, id int64, requester model.User) ([]int64, error)
	Dashboard(ctx context.Context, instructor model.User) (model.InstructorDashboard, error)
	Analytics(ctx context.Context, id int64, requester model.User) (model.CourseAnalytics, error)
	Stats(ctx context.Context) (model.PlatformStats, error)
}

type Registry interface {
	SubmitRating(ctx context.Context, studentID, courseID int64, rating int, review string) (model.Enrollment, error)
	DeleteReview(ctx context.Context, enrollmentID int64, requester model.User) (model.Enrollment, error)
	UpdateProgress(ctx context.Context, enrollmentID, studentID int64, progress int) (model.Enrollment, error)
	ListForStudent(ctx context.Context, studentID int64) ([]model.Enrollment, error)
	ListReviews(ctx context.Context, courseID int64) ([]model.Review, error)
}

type Checkout interface {
	StartCheckout(ctx context.Context, studentID, courseID int64) (model.CheckoutSession, error)
	CompleteCheckout(ctx context.Context, cb model.PaymentCallback) (model.CheckoutResult, error)
	HandleWebhook(ctx context.Context, body []byte, signature, eventID string) (model.WebhookOutcome, error)
	ClaimFree(ctx context.Context, studentID, courseID int64) (model.CheckoutResult, error)
	Orders(ctx context.Context, studentID int64) ([]model.Order, error)
}

type OrderExpirer interface {
	ListStale(ctx context.Context, before time.Time) ([]model.Order, error)
	Expire(ctx context.Context, order model.Order) (bool, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// Services bundles what the handlers call into. Orders and Health may be nil.
type Services struct {
	Users    UserStore
	Catalog  Catalog
	Registry Registry
	Checkout Checkout
	Orders   OrderExpirer
	Health   Pinger
}

type Server struct {
	services Services
	config   *config.Config
	deps     *deps.Deps
}

func NewServer(services Services, config *config.Config, deps *deps.Deps) *Server {
	return &Server{
		services: services,
		config:   config,
		deps:     deps,
	}
}

func (srv *Server) buildRouter() http.Handler {
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   srv.config.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "Content-Encoding"},
		ExposedHeaders:   []string{"Authorization"},
		AllowCredentials: true,
	})

	router := chi.NewRouter()
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.StripSlashes)
	router.Use(chiMiddleware.Recoverer)
	router.Use(middleware.LogMiddleware(srv.deps.Logger))
	router.Use(corsHandler.Handler)
	router.Use(middleware.DecompressMiddleware)
	router.Use(middleware.CompressMiddleware(srv.deps.Logger))

	router.Get("/api/health", srv.HealthHandler)
	router.Post("/api/auth/register", srv.RegisterHandler)
	router.Post("/api/auth/login", srv.LoginHandler)

	router.Get("/api/courses", srv.SearchCoursesHandler)
	router.Get("/api/courses/{id}", srv.GetCourseHandler)
	router.Get("/api/courses/{id}/reviews", srv.ListReviewsHandler)

	// provider callback, authenticated by body signature
	router.Post("/api/payment/webhook", srv.WebhookHandler)

	// авторизованные ручки
	router.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware(srv.services.Users, srv.deps.TokenManager))

		r.Post("/api/payment/create-order", srv.CreateOrderHandler)
		r.Post("/api/payment/verify", srv.VerifyPaymentHandler)
		r.Get("/api/payment/orders", srv.ListOrdersHandler)

		r.Post("/api/enrollments/free/{courseId}", srv.ClaimFreeHandler)
		r.Get("/api/enrollments/mine", srv.MyEnrollmentsHandler)
		r.Put("/api/enrollments/{id}/progress", srv.UpdateProgressHandler)
		r.Delete("/api/enrollments/{id}/review", srv.DeleteReviewHandler)
		r.Post("/api/courses/{id}/rating", srv.SubmitRatingHandler)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(model.RoleInstructor, model.RoleAdmin))

			r.Post("/api/courses", srv.CreateCourseHandler)
			r.Put("/api/courses/{id}", srv.UpdateCourseHandler)
			r.Delete("/api/courses/{id}", srv.DeleteCourseHandler)
			r.Get("/api/courses/{id}/roster", srv.RosterHandler)

			r.Get("/api/instructor/dashboard", srv.InstructorDashboardHandler)
			r.Get("/api/instructor/courses/{id}/analytics", srv.CourseAnalyticsHandler)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(model.RoleAdmin))

			r.Get("/api/admin/stats", srv.StatsHandler)
			r.Delete("/api/admin/reviews/{enrollmentId}", srv.AdminDeleteReviewHandler)
		})
	})

	return router
}

func (srv *Server) Run(ctx context.Context) error {
	router := srv.buildRouter()

	server := &http.Server{
		Addr:              srv.config.RunAddress,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	if srv.services.Orders != nil && srv.config.SweepInterval > 0 {
		go srv.OrdersExpiryControl(ctx)
	}

	srv.deps.Logger.Infof("server started on %s", srv.config.RunAddress)

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
