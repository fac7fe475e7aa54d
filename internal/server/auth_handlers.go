package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/and161185/coursemart/internal/errs"
	"github.com/and161185/coursemart/internal/model"
	"golang.org/x/crypto/bcrypt"
)

func (srv *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if srv.services.Health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := srv.services.Health.Ping(ctx); err != nil {
			srv.deps.Logger.Warnf("health check: %v", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (srv *Server) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterRequest
	if !srv.decode(w, r, &req) {
		return
	}
	if req.Role == "" {
		req.Role = model.RoleStudent
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeStatus(w, http.StatusInternalServerError, "hash error")
		return
	}

	user, err := srv.services.Users.CreateUser(r.Context(), model.User{
		Email: strings.ToLower(strings.TrimSpace(req.Email)),
		Name:  strings.TrimSpace(req.Name),
		Role:  req.Role,
	}, string(hash))
	if err != nil {
		srv.writeError(w, r, err)
		return
	}

	srv.respondWithToken(w, http.StatusCreated, user)
}

func (srv *Server) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var creds model.Credentials
	if !srv.decode(w, r, &creds) {
		return
	}

	user, hash, err := srv.services.Users.GetUserByEmail(r.Context(), strings.ToLower(strings.TrimSpace(creds.Email)))
	if err != nil {
		if errors.Is(err, errs.ErrUserNotFound) {
			writeStatus(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		srv.writeError(w, r, err)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(creds.Password)); err != nil {
		writeStatus(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	srv.respondWithToken(w, http.StatusOK, user)
}

func (srv *Server) respondWithToken(w http.ResponseWriter, status int, user model.User) {
	token, err := srv.deps.TokenManager.GenerateToken(user.ID)
	if err != nil {
		writeStatus(w, http.StatusInternalServerError, "token error")
		return
	}

	w.Header().Set("Authorization", "Bearer "+token)
	writeJSON(w, status, map[string]interface{}{"success": true, "token": token, "user": user})
}
