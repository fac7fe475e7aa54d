package server

import (
	"net/http"
	"strconv"

	"github.com/and161185/coursemart/internal/model"
)

func (srv *Server) SearchCoursesHandler(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	q := model.CourseQuery{
		Query:    params.Get("query"),
		Category: params.Get("category"),
		Sort:     params.Get("sort"),
	}

	for name, dst := range map[string]**float64{"priceMin": &q.PriceMin, "priceMax": &q.PriceMax} {
		raw := params.Get(name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 {
			writeStatus(w, http.StatusBadRequest, "invalid "+name)
			return
		}
		*dst = &v
	}

	if raw := params.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			writeStatus(w, http.StatusBadRequest, "invalid limit")
			return
		}
		q.Limit = limit
	}

	courses, err := srv.services.Catalog.Search(r.Context(), q)
	if err != nil {
		srv.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, courses)
}

func (srv *Server) GetCourseHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	course, err := srv.services.Catalog.Get(r.Context(), id)
	if err != nil {
		srv.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, course)
}

func (srv *Server) ListReviewsHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	reviews, err := srv.services.Registry.ListReviews(r.Context(), id)
	if err != nil {
		srv.writeError(w, r, err)
		return
	}
	if reviews == nil {
		reviews = []model.Review{}
	}

	writeJSON(w, http.StatusOK, reviews)
}

func (srv *Server) CreateCourseHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := srv.currentUser(w, r)
	if !ok {
		return
	}

	var in model.CourseInput
	if !srv.decode(w, r, &in) {
		return
	}

	course, err := srv.services.Catalog.Create(r.Context(), user, in)
	if err != nil {
		srv.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, course)
}

func (srv *Server) UpdateCourseHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := srv.currentUser(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	var in model.CourseInput
	if !srv.decode(w, r, &in) {
		return
	}

	course, err := srv.services.Catalog.Update(r.Context(), id, user, in)
	if err != nil {
		srv.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, course)
}

func (srv *Server) DeleteCourseHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := srv.currentUser(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	if err := srv.services.Catalog.Deactivate(r.Context(), id, user); err != nil {
		srv.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

func (srv *Server) RosterHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := srv.currentUser(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	roster, err := srv.services.Catalog.Roster(r.Context(), id, user)
	if err != nil {
		srv.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"courseId": id, "students": roster})
}

func (srv *Server) InstructorDashboardHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := srv.currentUser(w, r)
	if !ok {
		return
	}

	dashboard, err := srv.services.Catalog.Dashboard(r.Context(), user)
	if err != nil {
		srv.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dashboard)
}

func (srv *Server) CourseAnalyticsHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := srv.currentUser(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	analytics, err := srv.services.Catalog.Analytics(r.Context(), id, user)
	if err != nil {
		srv.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, analytics)
}

func (srv *Server) SubmitRatingHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := srv.currentUser(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	var req model.RatingRequest
	if !srv.decode(w, r, &req) {
		return
	}

	enrollment, err := srv.services.Registry.SubmitRating(r.Context(), user.ID, id, req.Rating, req.Review)
	if err != nil {
		srv.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, enrollment)
}
