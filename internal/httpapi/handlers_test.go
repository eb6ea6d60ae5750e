package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"eshop.dev/internal/auth"
)

const testSigningKey = "0123456789abcdef0123456789abcdef"

type apiClient struct {
	baseURL string
	client  *http.Client
	store   *auth.MemStore
	t       *testing.T
}

func newTestAPI(t *testing.T) *apiClient {
	t.Helper()

	store := auth.NewMemStore()
	if err := auth.NewBootstrapper(store, "admin1@gmail.com", "Admin@123").Run(context.Background()); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	issuer, err := auth.NewIssuer([]byte(testSigningKey))
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	refresh := auth.NewRefreshManager(store.Identities())
	svc, err := auth.NewService(store, issuer, refresh)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	api := New(ReadyProbe{}, "test", svc, auth.NewGate(issuer))
	api.SetRateLimit(1000, 1000)

	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	return &apiClient{
		baseURL: srv.URL,
		client:  srv.Client(),
		store:   store,
		t:       t,
	}
}

func (c *apiClient) do(method, path string, body any, headers map[string]string) *http.Response {
	c.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	return resp
}

func (c *apiClient) post(path string, body any, headers map[string]string) *http.Response {
	return c.do(http.MethodPost, path, body, headers)
}

func (c *apiClient) get(path string, headers map[string]string) *http.Response {
	return c.do(http.MethodGet, path, nil, headers)
}

func (c *apiClient) register(email string) {
	c.t.Helper()
	resp := c.post("/v1/auth/register", map[string]any{
		"email":      email,
		"password":   "P@ssw0rd1",
		"first_name": "Test",
		"last_name":  "User",
	}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.t.Fatalf("register %s: unexpected status %d", email, resp.StatusCode)
	}
}

func (c *apiClient) login(email, password string) sessionResponse {
	c.t.Helper()
	resp := c.post("/v1/auth/login", map[string]any{
		"email":    email,
		"password": password,
	}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.t.Fatalf("login %s: unexpected status %d", email, resp.StatusCode)
	}
	var payload sessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		c.t.Fatalf("decode session: %v", err)
	}
	if payload.AccessToken == "" || payload.RefreshToken == "" {
		c.t.Fatal("session payload missing tokens")
	}
	return payload
}

func bearerHeader(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func decode[T any](t *testing.T, r *http.Response) T {
	t.Helper()
	defer r.Body.Close()
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestHealthz(t *testing.T) {
	api := newTestAPI(t)
	resp := api.get("/healthz", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	payload := decode[map[string]any](t, resp)
	if payload["status"] != "ok" {
		t.Fatalf("unexpected health payload: %v", payload)
	}
}

func TestRegisterLoginRefreshFlow(t *testing.T) {
	api := newTestAPI(t)
	api.register("alice@example.com")

	session := api.login("alice@example.com", "P@ssw0rd1")
	if len(session.Roles) != 1 || session.Roles[0] != auth.RoleUser {
		t.Fatalf("expected baseline User role, got %v", session.Roles)
	}
	if !session.RefreshExpiresAt.After(session.ExpiresAt) {
		t.Fatal("refresh expiry must be later than access expiry")
	}

	resp := api.post("/v1/auth/refresh-token", map[string]any{
		"refresh_token": session.RefreshToken,
	}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refresh: expected 200, got %d", resp.StatusCode)
	}
	rotated := decode[sessionResponse](t, resp)
	if rotated.RefreshToken == session.RefreshToken {
		t.Fatal("refresh token was not rotated")
	}

	// The superseded token must be rejected.
	resp = api.post("/v1/auth/refresh-token", map[string]any{
		"refresh_token": session.RefreshToken,
	}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("stale refresh: expected 401, got %d", resp.StatusCode)
	}
}

func TestRegisterValidation(t *testing.T) {
	api := newTestAPI(t)

	resp := api.post("/v1/auth/register", map[string]any{
		"email":    "not-an-email",
		"password": "short",
	}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	payload := decode[struct {
		Error  string `json:"error"`
		Fields []struct {
			Field   string `json:"field"`
			Message string `json:"message"`
		} `json:"fields"`
	}](t, resp)
	seen := map[string]bool{}
	for _, f := range payload.Fields {
		seen[f.Field] = true
	}
	if !seen["email"] || !seen["password"] {
		t.Fatalf("expected email and password field errors, got %+v", payload)
	}
}

func TestRegisterDuplicateEmailReturns400(t *testing.T) {
	api := newTestAPI(t)
	api.register("bob@example.com")

	resp := api.post("/v1/auth/register", map[string]any{
		"email":      "BOB@example.com",
		"password":   "P@ssw0rd1",
		"first_name": "Bob",
		"last_name":  "Jones",
	}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for duplicate email, got %d", resp.StatusCode)
	}
}

func TestLoginBadCredentials(t *testing.T) {
	api := newTestAPI(t)
	api.register("carol@example.com")

	resp := api.post("/v1/auth/login", map[string]any{
		"email":    "carol@example.com",
		"password": "wrong",
	}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	api := newTestAPI(t)

	resp := api.get("/v1/roles", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("no token: expected 401, got %d", resp.StatusCode)
	}

	resp = api.get("/v1/roles", bearerHeader("garbage"))
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("garbage token: expected 401, got %d", resp.StatusCode)
	}
}

func TestAdminRoutesForbiddenForUser(t *testing.T) {
	api := newTestAPI(t)
	api.register("dave@example.com")
	session := api.login("dave@example.com", "P@ssw0rd1")

	resp := api.get("/v1/admin/users", bearerHeader(session.AccessToken))
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}

	resp = api.post("/v1/admin/assign-role", map[string]any{
		"identity_id": "x", "role_id": "y",
	}, bearerHeader(session.AccessToken))
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("assign-role: expected 403, got %d", resp.StatusCode)
	}
}

func TestAdminAssignRoleFlow(t *testing.T) {
	api := newTestAPI(t)
	api.register("eve@example.com")
	admin := api.login("admin1@gmail.com", "Admin@123")

	// Resolve ids via admin listings.
	resp := api.get("/v1/admin/users", bearerHeader(admin.AccessToken))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list users: expected 200, got %d", resp.StatusCode)
	}
	users := decode[struct {
		Users []auth.Identity `json:"users"`
	}](t, resp)
	var eveID string
	for _, u := range users.Users {
		if u.Email == "eve@example.com" {
			eveID = u.ID
		}
	}
	if eveID == "" {
		t.Fatal("registered identity missing from listing")
	}

	resp = api.get("/v1/roles", bearerHeader(admin.AccessToken))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list roles: expected 200, got %d", resp.StatusCode)
	}
	catalog := decode[struct {
		Roles []auth.Role `json:"roles"`
	}](t, resp)
	var adminRoleID string
	for _, role := range catalog.Roles {
		if role.Name == auth.RoleAdmin {
			adminRoleID = role.ID
		}
	}
	if adminRoleID == "" {
		t.Fatal("Admin role missing from catalog")
	}

	resp = api.post("/v1/admin/assign-role", map[string]any{
		"identity_id": eveID, "role_id": adminRoleID,
	}, bearerHeader(admin.AccessToken))
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("assign: expected 200, got %d", resp.StatusCode)
	}

	// Assigning the held role again conflicts.
	resp = api.post("/v1/admin/assign-role", map[string]any{
		"identity_id": eveID, "role_id": adminRoleID,
	}, bearerHeader(admin.AccessToken))
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("duplicate assign: expected 400, got %d", resp.StatusCode)
	}

	// Roles land in the next issued token.
	eve := api.login("eve@example.com", "P@ssw0rd1")
	resp = api.get("/v1/admin/users", bearerHeader(eve.AccessToken))
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("promoted user: expected 200, got %d", resp.StatusCode)
	}

	resp = api.get("/v1/users/"+eveID+"/roles", bearerHeader(eve.AccessToken))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("identity roles: expected 200, got %d", resp.StatusCode)
	}
	held := decode[struct {
		Roles []string `json:"roles"`
	}](t, resp)
	if len(held.Roles) != 2 {
		t.Fatalf("expected [Admin User], got %v", held.Roles)
	}

	resp = api.post("/v1/admin/remove-role", map[string]any{
		"identity_id": eveID, "role_id": adminRoleID,
	}, bearerHeader(admin.AccessToken))
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("remove: expected 200, got %d", resp.StatusCode)
	}
	resp = api.post("/v1/admin/remove-role", map[string]any{
		"identity_id": eveID, "role_id": adminRoleID,
	}, bearerHeader(admin.AccessToken))
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("second remove: expected 404, got %d", resp.StatusCode)
	}
}

func TestAdminCreateRole(t *testing.T) {
	api := newTestAPI(t)
	admin := api.login("admin1@gmail.com", "Admin@123")

	resp := api.post("/v1/admin/roles", map[string]any{
		"name":        "Support",
		"description": "Customer support staff",
	}, bearerHeader(admin.AccessToken))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	role := decode[auth.Role](t, resp)
	if role.ID == "" || role.Name != "Support" {
		t.Fatalf("unexpected role payload: %+v", role)
	}

	resp = api.post("/v1/admin/roles", map[string]any{
		"name": "support",
	}, bearerHeader(admin.AccessToken))
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("duplicate role: expected 400, got %d", resp.StatusCode)
	}
}

func TestAdminUpdateAndDeleteRole(t *testing.T) {
	api := newTestAPI(t)
	admin := api.login("admin1@gmail.com", "Admin@123")

	resp := api.post("/v1/admin/roles", map[string]any{
		"name": "Support",
	}, bearerHeader(admin.AccessToken))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create: expected 200, got %d", resp.StatusCode)
	}
	role := decode[auth.Role](t, resp)

	resp = api.do(http.MethodPut, "/v1/admin/roles/"+role.ID, map[string]any{
		"name":        "Helpdesk",
		"description": "First-line support",
	}, bearerHeader(admin.AccessToken))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update: expected 200, got %d", resp.StatusCode)
	}
	renamed := decode[auth.Role](t, resp)
	if renamed.Name != "Helpdesk" || renamed.Description != "First-line support" {
		t.Fatalf("unexpected updated role: %+v", renamed)
	}

	// Renaming onto a seeded role's name conflicts.
	resp = api.do(http.MethodPut, "/v1/admin/roles/"+role.ID, map[string]any{
		"name": "admin",
	}, bearerHeader(admin.AccessToken))
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("rename collision: expected 400, got %d", resp.StatusCode)
	}

	resp = api.do(http.MethodDelete, "/v1/admin/roles/"+role.ID, nil, bearerHeader(admin.AccessToken))
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", resp.StatusCode)
	}
	resp = api.do(http.MethodDelete, "/v1/admin/roles/"+role.ID, nil, bearerHeader(admin.AccessToken))
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("second delete: expected 404, got %d", resp.StatusCode)
	}
	resp = api.get("/v1/roles/"+role.ID, bearerHeader(admin.AccessToken))
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("deleted role lookup: expected 404, got %d", resp.StatusCode)
	}
}

func TestRoleMutationForbiddenForUser(t *testing.T) {
	api := newTestAPI(t)
	api.register("ray@example.com")
	user := api.login("ray@example.com", "P@ssw0rd1")
	admin := api.login("admin1@gmail.com", "Admin@123")

	resp := api.post("/v1/admin/roles", map[string]any{"name": "Support"}, bearerHeader(admin.AccessToken))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create: expected 200, got %d", resp.StatusCode)
	}
	role := decode[auth.Role](t, resp)

	resp = api.do(http.MethodPut, "/v1/admin/roles/"+role.ID, map[string]any{
		"name": "Hijacked",
	}, bearerHeader(user.AccessToken))
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("update as user: expected 403, got %d", resp.StatusCode)
	}
	resp = api.do(http.MethodDelete, "/v1/admin/roles/"+role.ID, nil, bearerHeader(user.AccessToken))
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("delete as user: expected 403, got %d", resp.StatusCode)
	}
}

func TestUpdateProfileSelfOrAdmin(t *testing.T) {
	api := newTestAPI(t)
	api.register("frank@example.com")
	frank := api.login("frank@example.com", "P@ssw0rd1")
	api.register("gina@example.com")
	gina := api.login("gina@example.com", "P@ssw0rd1")

	ident, err := api.store.Identities().FindByEmail(context.Background(), "frank@example.com")
	if err != nil {
		t.Fatalf("find frank: %v", err)
	}

	resp := api.do(http.MethodPut, "/v1/users/"+ident.ID, map[string]any{
		"first_name": "Franklin",
		"last_name":  "Grimes",
	}, bearerHeader(frank.AccessToken))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("self update: expected 200, got %d", resp.StatusCode)
	}
	updated := decode[auth.Identity](t, resp)
	if updated.FirstName != "Franklin" {
		t.Fatalf("profile not applied: %+v", updated)
	}

	// Another plain user may not touch the profile.
	resp = api.do(http.MethodPut, "/v1/users/"+ident.ID, map[string]any{
		"first_name": "Hijack",
		"last_name":  "Attempt",
	}, bearerHeader(gina.AccessToken))
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("foreign update: expected 403, got %d", resp.StatusCode)
	}

	// Admins may.
	admin := api.login("admin1@gmail.com", "Admin@123")
	resp = api.do(http.MethodPut, "/v1/users/"+ident.ID, map[string]any{
		"first_name": "Frank",
		"last_name":  "Grimes",
	}, bearerHeader(admin.AccessToken))
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin update: expected 200, got %d", resp.StatusCode)
	}
}

func TestAdminDeleteIdentity(t *testing.T) {
	api := newTestAPI(t)
	api.register("hank@example.com")
	admin := api.login("admin1@gmail.com", "Admin@123")

	ident, err := api.store.Identities().FindByEmail(context.Background(), "hank@example.com")
	if err != nil {
		t.Fatalf("find hank: %v", err)
	}

	resp := api.do(http.MethodDelete, "/v1/users/"+ident.ID, nil, bearerHeader(admin.AccessToken))
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", resp.StatusCode)
	}
	resp = api.do(http.MethodDelete, "/v1/users/"+ident.ID, nil, bearerHeader(admin.AccessToken))
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("second delete: expected 404, got %d", resp.StatusCode)
	}

	if _, err := api.store.Identities().FindByEmail(context.Background(), "hank@example.com"); err == nil {
		t.Fatal("identity survived deletion")
	}
}

func TestRefreshTokenRequired(t *testing.T) {
	api := newTestAPI(t)
	resp := api.post("/v1/auth/refresh-token", map[string]any{"refresh_token": ""}, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	api := newTestAPI(t)
	resp := api.post("/v1/auth/login", map[string]any{
		"email":    "x@example.com",
		"password": "P@ssw0rd1",
		"extra":    true,
	}, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", resp.StatusCode)
	}
}
