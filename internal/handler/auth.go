package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/duochat/internal/auth"
	"github.com/duochat/internal/logger"
	"github.com/duochat/internal/middleware"
	"github.com/duochat/internal/model"
)

// Authenticator is implemented by service.AuthService.
type Authenticator interface {
	Signup(ctx context.Context, username, password, firstName, lastName string) (*model.User, error)
	Login(ctx context.Context, username, password string) (*model.User, error)
}

type AuthHandler struct {
	svc          Authenticator
	jwtSecret    []byte
	tokenTTL     time.Duration
	secureCookie bool
}

func NewAuthHandler(svc Authenticator, jwtSecret []byte, tokenTTL time.Duration, secureCookie bool) *AuthHandler {
	return &AuthHandler{svc: svc, jwtSecret: jwtSecret, tokenTTL: tokenTTL, secureCookie: secureCookie}
}

type signupRequest struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	u, err := h.svc.Signup(r.Context(), req.Username, req.Password, req.FirstName, req.LastName)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if err := h.setAuthCookie(w, u.ID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}
	writeJSON(w, http.StatusOK, u.ToPublic())
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	u, err := h.svc.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if err := h.setAuthCookie(w, u.ID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}
	writeJSON(w, http.StatusOK, u.ToPublic())
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.TokenCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *AuthHandler) setAuthCookie(w http.ResponseWriter, userID string) error {
	token, err := auth.GenerateToken(userID, h.jwtSecret, h.tokenTTL)
	if err != nil {
		logger.Errorf("generate token user=%s: %v", userID, err)
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.TokenCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.tokenTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}
