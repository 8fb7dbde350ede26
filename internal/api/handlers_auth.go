// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ManuGH/wsguard/internal/auth"
	xglog "github.com/ManuGH/wsguard/internal/log"
	"github.com/ManuGH/wsguard/internal/session"
)

const maxBodyBytes = 1 << 16

type loginRequest struct {
	User     string `json:"user"`
	Password string `json:"password"`
}

type passwordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

type sessionResponse struct {
	User      string    `json:"user"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// isAuthFailure reports errors that map to 401 rather than 500.
func isAuthFailure(err error) bool {
	return errors.Is(err, auth.ErrUnknownUser) ||
		errors.Is(err, auth.ErrInvalidCredentials) ||
		errors.Is(err, session.ErrNotFound) ||
		errors.Is(err, session.ErrInvalid) ||
		errors.Is(err, session.ErrEmptyKey)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return false
	}
	return true
}

func (s *Server) cookieName() string {
	if name := s.deps.Config.Get().Session.CookieName; name != "" {
		return name
	}
	return auth.DefaultSessionCookie
}

func (s *Server) setSessionCookie(w http.ResponseWriter, r *http.Request, rec *session.Record) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName(),
		Value:    rec.Key,
		Path:     "/",
		Expires:  rec.ExpiresAt,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName(),
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.User == "" || req.Password == "" {
		writeBadRequest(w, "user and password are required")
		return
	}
	rec, err := s.deps.Sessions.Login(r.Context(), req.User, req.Password)
	if err != nil {
		if isAuthFailure(err) {
			writeUnauthorized(w)
			return
		}
		logger := xglog.WithContext(r.Context(), s.logger)
		logger.Error().Err(err).Msg("login failed")
		writeInternal(w)
		return
	}
	s.setSessionCookie(w, r, rec)
	writeJSON(w, http.StatusOK, sessionResponse{User: rec.User, UserID: rec.UserID, ExpiresAt: rec.ExpiresAt})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	key := auth.ExtractSessionToken(r, s.cookieName())
	if key != "" {
		if err := s.deps.Sessions.Logout(r.Context(), key); err != nil {
			logger := xglog.WithContext(r.Context(), s.logger)
			logger.Error().Err(err).Msg("logout failed")
			writeInternal(w)
			return
		}
	}
	s.clearSessionCookie(w, r)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePassword(w http.ResponseWriter, r *http.Request) {
	key := auth.ExtractSessionToken(r, s.cookieName())
	if key == "" {
		writeUnauthorized(w)
		return
	}
	var req passwordRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.NewPassword == "" {
		writeBadRequest(w, "new_password is required")
		return
	}
	rec, err := s.deps.Sessions.ChangePassword(r.Context(), key, req.OldPassword, req.NewPassword)
	if err != nil {
		if isAuthFailure(err) {
			writeUnauthorized(w)
			return
		}
		logger := xglog.WithContext(r.Context(), s.logger)
		logger.Error().Err(err).Msg("password change failed")
		writeInternal(w)
		return
	}
	s.setSessionCookie(w, r, rec)
	writeJSON(w, http.StatusOK, sessionResponse{User: rec.User, UserID: rec.UserID, ExpiresAt: rec.ExpiresAt})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	_, rec, err := s.deps.Sessions.Resolve(r.Context(), auth.ExtractSessionToken(r, s.cookieName()))
	if err != nil {
		if isAuthFailure(err) {
			writeUnauthorized(w)
			return
		}
		writeInternal(w)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{User: rec.User, UserID: rec.UserID, ExpiresAt: rec.ExpiresAt})
}
