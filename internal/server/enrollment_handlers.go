package server

import (
	"net/http"

	"github.com/and161185/coursemart/internal/model"
)

func (srv *Server) ClaimFreeHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := srv.currentUser(w, r)
	if !ok {
		return
	}
	courseID, ok := idParam(w, r, "courseId")
	if !ok {
		return
	}

	result, err := srv.services.Checkout.ClaimFree(r.Context(), user.ID, courseID)
	if err != nil {
		srv.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, struct {
		Success bool `json:"success"`
		model.CheckoutResult
	}{true, result})
}

func (srv *Server) MyEnrollmentsHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := srv.currentUser(w, r)
	if !ok {
		return
	}

	enrollments, err := srv.services.Registry.ListForStudent(r.Context(), user.ID)
	if err != nil {
		srv.writeError(w, r, err)
		return
	}
	if enrollments == nil {
		enrollments = []model.Enrollment{}
	}

	writeJSON(w, http.StatusOK, enrollments)
}

func (srv *Server) UpdateProgressHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := srv.currentUser(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	var req model.ProgressRequest
	if !srv.decode(w, r, &req) {
		return
	}

	enrollment, err := srv.services.Registry.UpdateProgress(r.Context(), id, user.ID, *req.Progress)
	if err != nil {
		srv.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, enrollment)
}

func (srv *Server) DeleteReviewHandler(w http.ResponseWriter, r *http.Request) {
	srv.deleteReview(w, r, "id")
}

func (srv *Server) AdminDeleteReviewHandler(w http.ResponseWriter, r *http.Request) {
	srv.deleteReview(w, r, "enrollmentId")
}

func (srv *Server) deleteReview(w http.ResponseWriter, r *http.Request, param string) {
	user, ok := srv.currentUser(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r, param)
	if !ok {
		return
	}

	enrollment, err := srv.services.Registry.DeleteReview(r.Context(), id, user)
	if err != nil {
		srv.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, enrollment)
}

func (srv *Server) StatsHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := srv.services.Catalog.Stats(r.Context())
	if err != nil {
		srv.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}
