package httpapi

import (
	"net/http"
	"strings"

	"eshop.dev/internal/audit"
)

type roleAssignmentRequest struct {
	IdentityID string `json:"identity_id"`
	RoleID     string `json:"role_id"`
}

type createRoleRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (a *API) handleAssignRole(w http.ResponseWriter, r *http.Request) {
	var req roleAssignmentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.IdentityID) == "" || strings.TrimSpace(req.RoleID) == "" {
		writeError(w, r, http.StatusBadRequest, "identity_id and role_id are required")
		return
	}
	if err := a.svc.AssignRole(r.Context(), req.IdentityID, req.RoleID); err != nil {
		handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "rbac.role.assign", map[string]any{
		"identity_id": req.IdentityID,
		"role_id":     req.RoleID,
	})
	writeJSON(w, http.StatusOK, map[string]any{"status": "assigned"})
}

func (a *API) handleRemoveRole(w http.ResponseWriter, r *http.Request) {
	var req roleAssignmentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.IdentityID) == "" || strings.TrimSpace(req.RoleID) == "" {
		writeError(w, r, http.StatusBadRequest, "identity_id and role_id are required")
		return
	}
	if err := a.svc.UnassignRole(r.Context(), req.IdentityID, req.RoleID); err != nil {
		handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "rbac.role.unassign", map[string]any{
		"identity_id": req.IdentityID,
		"role_id":     req.RoleID,
	})
	writeJSON(w, http.StatusOK, map[string]any{"status": "removed"})
}

func (a *API) handleCreateRole(w http.ResponseWriter, r *http.Request) {
	var req createRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	role, err := a.svc.CreateRole(r.Context(), req.Name, req.Description)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "rbac.role.create", map[string]any{
		"role_id": role.ID,
		"name":    role.Name,
	})
	writeJSON(w, http.StatusOK, role)
}

func (a *API) handleUpdateRole(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	if id == "" {
		writeError(w, r, http.StatusBadRequest, "role id is required")
		return
	}
	var req createRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	role, err := a.svc.UpdateRole(r.Context(), id, req.Name, req.Description)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "rbac.role.update", map[string]any{
		"role_id": role.ID,
		"name":    role.Name,
	})
	writeJSON(w, http.StatusOK, role)
}

func (a *API) handleDeleteRole(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	if id == "" {
		writeError(w, r, http.StatusBadRequest, "role id is required")
		return
	}
	if err := a.svc.DeleteRole(r.Context(), id); err != nil {
		handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "rbac.role.delete", map[string]any{
		"role_id": id,
	})
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}

func (a *API) handleListIdentities(w http.ResponseWriter, r *http.Request) {
	identities, err := a.svc.ListIdentities(r.Context())
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": identities})
}

func (a *API) handleDeleteIdentity(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	if id == "" {
		writeError(w, r, http.StatusBadRequest, "identity id is required")
		return
	}
	if err := a.svc.DeleteIdentity(r.Context(), id); err != nil {
		handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "rbac.identity.delete", map[string]any{
		"identity_id": id,
	})
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}
