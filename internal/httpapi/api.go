// Package httpapi is the REST boundary of the service. It owns routing,
// middleware and the mapping from auth errors to status codes; all domain
// behavior lives in internal/auth.
package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"eshop.dev/internal/auth"
	"eshop.dev/internal/obs"
)

// ReadyProbe checks downstream readiness (database ping).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP layer.
type API struct {
	readyProbe ReadyProbe
	version    string
	svc        *auth.Service
	gate       *auth.Gate

	rateBurst  int
	ratePerSec int
}

// New constructs the API over the auth service and gate.
func New(rp ReadyProbe, version string, svc *auth.Service, gate *auth.Gate) *API {
	return &API{
		readyProbe: rp,
		version:    version,
		svc:        svc,
		gate:       gate,
		rateBurst:  20,
		ratePerSec: 10,
	}
}

// SetRateLimit overrides the per-IP rate limit before Handler is built.
func (a *API) SetRateLimit(burst, perSec int) {
	if burst > 0 {
		a.rateBurst = burst
	}
	if perSec > 0 {
		a.ratePerSec = perSec
	}
}

// Handler builds the routed handler wrapped with metrics instrumentation.
func (a *API) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(LoggingJSON)
	r.Use(SecurityHeaders)
	r.Use(func(next http.Handler) http.Handler {
		return RateLimit(next, a.rateBurst, a.ratePerSec)
	})
	r.Use(func(next http.Handler) http.Handler {
		return MaxBodyBytes(next, 1<<20)
	})

	r.Get("/healthz", a.handleHealthz)
	r.Get("/readyz", a.handleReady)
	r.Method(http.MethodGet, "/metrics", obs.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/info", a.handleInfo)

		r.Post("/auth/register", a.handleRegister)
		r.Post("/auth/login", a.handleLogin)
		r.Post("/auth/refresh-token", a.handleRefreshToken)

		// Everything below requires a valid bearer token.
		r.Group(func(r chi.Router) {
			r.Use(a.withAuth)

			r.Get("/roles", a.handleListRoles)
			r.Get("/roles/{id}", a.handleGetRole)
			r.Get("/users/{id}/roles", a.handleIdentityRoles)
			r.Put("/users/{id}", a.handleUpdateProfile)

			r.Group(func(r chi.Router) {
				r.Use(a.requireRole(auth.RoleAdmin))

				r.Post("/admin/assign-role", a.handleAssignRole)
				r.Post("/admin/remove-role", a.handleRemoveRole)
				r.Get("/admin/users", a.handleListIdentities)
				r.Post("/admin/roles", a.handleCreateRole)
				r.Put("/admin/roles/{id}", a.handleUpdateRole)
				r.Delete("/admin/roles/{id}", a.handleDeleteRole)
				r.Delete("/users/{id}", a.handleDeleteIdentity)
			})
		})
	})

	return obs.Instrument(r)
}

// --- ops handlers ---

func (a *API) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "eshop-api",
		"version": a.version,
	})
}

func (a *API) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func (a *API) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "eshop-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

// handleAuthError converts auth subsystem errors into responses. Storage and
// signing failures collapse into a generic 500; the detail is logged, never
// returned.
func handleAuthError(w http.ResponseWriter, r *http.Request, err error) {
	if ve, ok := auth.AsValidation(err); ok {
		payload := map[string]any{
			"error":  "invalid input",
			"fields": ve.Fields,
		}
		if rid := RequestIDFromContext(r.Context()); rid != "" {
			payload["request_id"] = rid
		}
		writeJSON(w, http.StatusBadRequest, payload)
		return
	}
	switch {
	case errors.Is(err, auth.ErrConflict):
		writeError(w, r, http.StatusBadRequest, "already exists")
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, r, http.StatusUnauthorized, "invalid email or password")
	case errors.Is(err, auth.ErrInvalidToken):
		writeError(w, r, http.StatusUnauthorized, "invalid or expired token")
	case errors.Is(err, auth.ErrUnauthenticated):
		writeError(w, r, http.StatusUnauthorized, "unauthenticated")
	case errors.Is(err, auth.ErrForbidden):
		writeError(w, r, http.StatusForbidden, "forbidden")
	case errors.Is(err, auth.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "not found")
	default:
		obs.LogEvent("error", "auth_operation_failed", map[string]any{
			"path":  r.URL.Path,
			"error": err.Error(),
		})
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func pathID(r *http.Request) string {
	return strings.TrimSpace(chi.URLParam(r, "id"))
}
