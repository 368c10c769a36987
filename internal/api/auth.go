package api

import (
	"net/http"
	"strings"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/JakeFAU/magazine-cms/internal/auth"
	"github.com/JakeFAU/magazine-cms/internal/validation"
)

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token string    `json:"token"`
	User  auth.User `json:"user"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	session, ok := s.signIn(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, loginResponse{Token: session.AccessToken, User: session.User})
}

func (s *Server) adminLogin(w http.ResponseWriter, r *http.Request) {
	session, ok := s.signIn(w, r)
	if !ok {
		return
	}
	if s.deps.Admins == nil {
		s.writeError(w, http.StatusInternalServerError, "Admin functionality not available", nil)
		return
	}
	isAdmin, err := s.deps.Admins.IsAdmin(r.Context(), session.User.ID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Internal server error", err)
		return
	}
	if !isAdmin {
		s.logger.Info("admin login refused", zap.String("email", session.User.Email))
		s.writeError(w, http.StatusForbidden, "User is not an admin", nil)
		return
	}
	user := session.User
	user.IsAdmin = true
	s.writeJSON(w, http.StatusOK, loginResponse{Token: session.AccessToken, User: user})
}

// signIn validates the login body and exchanges it for a session. It writes
// the error response itself and reports whether the caller should continue.
func (s *Server) signIn(w http.ResponseWriter, r *http.Request) (auth.Session, bool) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Email and password are required", err)
		return auth.Session{}, false
	}
	req.Email = strings.TrimSpace(req.Email)
	if err := validation.Struct(req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Email and password are required", err)
		return auth.Session{}, false
	}
	if s.deps.Authenticator == nil {
		s.writeError(w, http.StatusServiceUnavailable, "Authentication is not configured", nil)
		return auth.Session{}, false
	}

	session, err := s.deps.Authenticator.SignInWithPassword(r.Context(), req.Email, req.Password)
	if err != nil {
		s.logger.Info("login failed", zap.String("email", req.Email), zap.Error(err))
		switch status := statusFor(err); status {
		case http.StatusUnauthorized:
			s.writeError(w, status, "Invalid login credentials", err)
		case http.StatusServiceUnavailable:
			s.writeError(w, status, "Authentication service unavailable", err)
		default:
			s.writeError(w, http.StatusInternalServerError, "Internal server error", err)
		}
		return auth.Session{}, false
	}
	s.logger.Info("login succeeded", zap.String("email", req.Email))
	return session, true
}
