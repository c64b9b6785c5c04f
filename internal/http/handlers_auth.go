package http

import (
	"errors"
	"net/http"
	"time"

	"depositos/internal/auth"
	"depositos/internal/core"
	applog "depositos/internal/log"
)

type loginRequest struct {
	Password string `json:"password"`
}

type loginResponse struct {
	Success   bool      `json:"success"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)

	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		FromError(r, err).Write(w)
		return
	}

	sess, err := s.auth.Login(r.Context(), req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidPassword) {
			s.appMetrics.loginsFailed.Add(1)
		}
		FromError(r, err).Write(w)
		return
	}
	s.appMetrics.loginsOK.Add(1)

	NewJSONResponse().Body(loginResponse{
		Success:   true,
		Token:     sess.Token,
		ExpiresAt: sess.ExpiresAt,
	}).Write(w)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.auth.Logout(r)
	NewJSONResponse().Body(map[string]bool{"success": true}).Write(w)
}

func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(s.deposits.Members()).Write(w)
}

func (s *Server) handleUpsertMember(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)

	var m core.Member
	if err := decodeJSON(r, &m); err != nil {
		FromError(r, err).Write(w)
		return
	}
	m.ID = sanitizeInput(m.ID)
	m.FirstName = sanitizeInput(m.FirstName)

	saved, err := s.deposits.UpsertMember(r.Context(), m)
	if err != nil {
		s.logger.WarnContext(r.Context(), "Member rejected",
			applog.FieldMemberID, m.ID,
			applog.FieldError, err.Error(),
			applog.FieldErrorType, applog.ErrorTypeValidation)
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().Body(saved).Write(w)
}
