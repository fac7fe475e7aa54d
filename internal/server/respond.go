package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/and161185/coursemart/internal/errs"
	"github.com/and161185/coursemart/internal/middleware"
	"github.com/and161185/coursemart/internal/model"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

const maxBodySize = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeStatus(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{"success": false, "error": msg})
}

// errorStatus maps the failure class of err to an HTTP status and the message
// shown to the caller.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, errs.ErrInvalidSignature):
		return http.StatusBadRequest, "payment signature verification failed, the payment was not accepted"
	case errors.Is(err, errs.ErrGatewayUnavailable):
		return http.StatusServiceUnavailable, "payment gateway is unavailable, please try again later"
	case errors.Is(err, errs.ErrInvalidArgument):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, errs.ErrForbidden):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, errs.ErrConflict), errors.Is(err, errs.ErrInvalidState):
		return http.StatusConflict, err.Error()
	case errs.PaymentCaptured(err):
		return http.StatusInternalServerError, "payment received but enrollment is not finished yet, please retry shortly"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func (srv *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := errorStatus(err)
	if status >= http.StatusInternalServerError {
		srv.deps.Logger.Errorf("%s %s: %v", r.Method, r.URL.Path, err)
	}
	writeStatus(w, status, msg)
}

// decode reads a JSON body into dst and validates it. It writes the error
// response itself and reports whether the handler may go on.
func (srv *Server) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(dst); err != nil {
		writeStatus(w, http.StatusBadRequest, "bad request")
		return false
	}

	if err := srv.deps.Validator.Struct(dst); err != nil {
		writeStatus(w, http.StatusUnprocessableEntity, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid input"
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s: %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s: %s", fe.Field(), fe.Tag()))
		}
	}
	return "invalid input: " + strings.Join(parts, ", ")
}

func (srv *Server) currentUser(w http.ResponseWriter, r *http.Request) (model.User, bool) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeStatus(w, http.StatusUnauthorized, "unauthorized")
	}
	return user, ok
}

func idParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeStatus(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}
