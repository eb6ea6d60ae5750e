package httpapi

import (
	"net/http"
	"strings"
	"time"

	"eshop.dev/internal/audit"
	"eshop.dev/internal/auth"
	"eshop.dev/internal/obs"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type sessionResponse struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	ExpiresAt        time.Time `json:"expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
	Roles            []string  `json:"roles"`
	Email            string    `json:"email"`
}

func sessionPayload(s *auth.Session) sessionResponse {
	return sessionResponse{
		AccessToken:      s.Tokens.AccessToken,
		RefreshToken:     s.Tokens.RefreshToken,
		ExpiresAt:        s.Tokens.AccessExpiresAt,
		RefreshExpiresAt: s.Tokens.RefreshExpiresAt,
		Roles:            s.Roles,
		Email:            s.Identity.Email,
	}
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	identity, err := a.svc.Register(r.Context(), req)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.register", map[string]any{
		"identity_id": identity.ID,
		"email":       identity.Email,
	})
	writeJSON(w, http.StatusOK, identity)
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	session, err := a.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		obs.CountLogin("denied")
		handleAuthError(w, r, err)
		return
	}
	obs.CountLogin("ok")
	obs.CountTokenIssued("access")
	obs.CountTokenIssued("refresh")
	_ = audit.LogEvent(r.Context(), "auth.login", map[string]any{
		"identity_id": session.Identity.ID,
	})
	writeJSON(w, http.StatusOK, sessionPayload(session))
}

func (a *API) handleRefreshToken(w http.ResponseWriter, r *http.Request) {
	var req refreshTokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.RefreshToken) == "" {
		writeError(w, r, http.StatusBadRequest, "refresh token is required")
		return
	}
	session, err := a.svc.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	obs.CountTokenIssued("access")
	obs.CountTokenIssued("refresh")
	_ = audit.LogEvent(r.Context(), "auth.refresh", map[string]any{
		"identity_id": session.Identity.ID,
	})
	writeJSON(w, http.StatusOK, sessionPayload(session))
}
