package httpapi

import (
	"net/http"

	"eshop.dev/internal/audit"
	"eshop.dev/internal/auth"
)

func (a *API) handleIdentityRoles(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	if id == "" {
		writeError(w, r, http.StatusBadRequest, "identity id is required")
		return
	}
	// Resolve the identity first so an unknown id is a 404 rather than an
	// empty role list.
	if _, err := a.svc.GetIdentity(r.Context(), id); err != nil {
		handleAuthError(w, r, err)
		return
	}
	roles, err := a.svc.RolesOf(r.Context(), id)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	names := make([]string, 0, len(roles))
	for _, role := range roles {
		names = append(names, role.Name)
	}
	writeJSON(w, http.StatusOK, map[string]any{"roles": names})
}

func (a *API) handleListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := a.svc.ListRoles(r.Context())
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"roles": roles})
}

func (a *API) handleGetRole(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	if id == "" {
		writeError(w, r, http.StatusBadRequest, "role id is required")
		return
	}
	role, err := a.svc.GetRole(r.Context(), id)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, role)
}

// handleUpdateProfile lets an identity edit its own profile; admins may edit
// anyone's.
func (a *API) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	if id == "" {
		writeError(w, r, http.StatusBadRequest, "identity id is required")
		return
	}
	callerID, _ := auth.IdentityIDFromContext(r.Context())
	if callerID != id && !auth.HasRole(r.Context(), auth.RoleAdmin) {
		writeError(w, r, http.StatusForbidden, "forbidden")
		return
	}
	var upd auth.ProfileUpdate
	if err := decodeJSON(w, r, &upd); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	identity, err := a.svc.UpdateProfile(r.Context(), id, upd)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.profile.update", map[string]any{
		"identity_id": id,
	})
	writeJSON(w, http.StatusOK, identity)
}
