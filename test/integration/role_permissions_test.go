package integration

import (
	"encoding/json"
	"net/http"
	"sort"
	"testing"

	"go-tenant-rbac-service/internal/domain"
)

// seedAdmin creates a user holding the full admin permission set and logs
// them in.
func seedAdmin(t *testing.T, env *testEnv, email string) domain.User {
	t.Helper()
	var perms []domain.Permission
	for _, pair := range [][2]string{
		{"user", "read"}, {"user", "write"},
		{"role", "read"}, {"role", "write"}, {"role", "assign"},
		{"permission", "read"}, {"permission", "write"},
		{"tenant", "read"}, {"tenant", "write"},
	} {
		perms = append(perms, seedPermission(t, env.DB, pair[0], pair[1], domain.ScopeGlobal, nil))
	}
	admin := seedRole(t, env.DB, "admin", domain.ScopeGlobal, nil, true, perms...)
	user := seedUser(t, env.DB, email, admin)
	login(t, env, email)
	return user
}

func rolePermissionKeys(t *testing.T, env *testEnv, roleID uint) []string {
	t.Helper()
	resp, body := doJSON(t, env.Client, http.MethodGet, env.BaseURL+"/api/v1/roles/"+itoa(roleID)+"/permissions", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 listing role permissions, got %d", resp.StatusCode)
	}
	var perms []struct {
		Resource string `json:"resource"`
		Action   string `json:"action"`
	}
	if err := json.Unmarshal(body.Data, &perms); err != nil {
		t.Fatalf("decode role permissions: %v", err)
	}
	keys := make([]string, 0, len(perms))
	for _, p := range perms {
		keys = append(keys, p.Resource+":"+p.Action)
	}
	sort.Strings(keys)
	return keys
}

func TestReplaceRolePermissionsIsExact(t *testing.T) {
	env, closeFn := newTestEnv(t)
	defer closeFn()
	seedAdmin(t, env, "admin@example.com")

	p1 := seedPermission(t, env.DB, "order", "read", domain.ScopeGlobal, nil)
	p2 := seedPermission(t, env.DB, "order", "write", domain.ScopeGlobal, nil)
	p3 := seedPermission(t, env.DB, "invoice", "read", domain.ScopeGlobal, nil)
	role := seedRole(t, env.DB, "clerk", domain.ScopeGlobal, nil, false)

	resp, _ := doJSON(t, env.Client, http.MethodPut, env.BaseURL+"/api/v1/roles/"+itoa(role.ID)+"/permissions", map[string]any{
		"permission_ids": []uint{p1.ID, p2.ID},
	}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 assigning permissions, got %d", resp.StatusCode)
	}
	if got := rolePermissionKeys(t, env, role.ID); len(got) != 2 || got[0] != "order:read" || got[1] != "order:write" {
		t.Fatalf("unexpected grant set after first replace: %v", got)
	}

	// Replacing with a different set leaves only the new grants.
	resp, _ = doJSON(t, env.Client, http.MethodPut, env.BaseURL+"/api/v1/roles/"+itoa(role.ID)+"/permissions", map[string]any{
		"permission_ids": []uint{p3.ID},
	}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 replacing permissions, got %d", resp.StatusCode)
	}
	if got := rolePermissionKeys(t, env, role.ID); len(got) != 1 || got[0] != "invoice:read" {
		t.Fatalf("unexpected grant set after second replace: %v", got)
	}

	// An empty list clears the grant set entirely.
	resp, _ = doJSON(t, env.Client, http.MethodPut, env.BaseURL+"/api/v1/roles/"+itoa(role.ID)+"/permissions", map[string]any{
		"permission_ids": []uint{},
	}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 clearing permissions, got %d", resp.StatusCode)
	}
	if got := rolePermissionKeys(t, env, role.ID); len(got) != 0 {
		t.Fatalf("expected empty grant set, got %v", got)
	}
}

func TestReplaceRolePermissionsUnknownPermissionRejected(t *testing.T) {
	env, closeFn := newTestEnv(t)
	defer closeFn()
	seedAdmin(t, env, "admin@example.com")

	p1 := seedPermission(t, env.DB, "order", "read", domain.ScopeGlobal, nil)
	role := seedRole(t, env.DB, "clerk", domain.ScopeGlobal, nil, false, p1)

	resp, body := doJSON(t, env.Client, http.MethodPut, env.BaseURL+"/api/v1/roles/"+itoa(role.ID)+"/permissions", map[string]any{
		"permission_ids": []uint{p1.ID, 999999},
	}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown permission id, got %d", resp.StatusCode)
	}
	if body.Error == nil || body.Error.Code != "BAD_REQUEST" {
		t.Fatalf("expected BAD_REQUEST envelope, got %#v", body.Error)
	}

	// The failed replace must not have touched the existing grant set.
	if got := rolePermissionKeys(t, env, role.ID); len(got) != 1 || got[0] != "order:read" {
		t.Fatalf("grant set changed by failed replace: %v", got)
	}
}

func TestSystemRoleMutationsRejected(t *testing.T) {
	env, closeFn := newTestEnv(t)
	defer closeFn()
	seedAdmin(t, env, "admin@example.com")

	system := seedRole(t, env.DB, "platform-admin", domain.ScopeGlobal, nil, true)
	p1 := seedPermission(t, env.DB, "order", "read", domain.ScopeGlobal, nil)

	resp, body := doJSON(t, env.Client, http.MethodPut, env.BaseURL+"/api/v1/roles/"+itoa(system.ID)+"/permissions", map[string]any{
		"permission_ids": []uint{p1.ID},
	}, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for system role grant replace, got %d", resp.StatusCode)
	}
	if body.Error == nil || body.Error.Code != "SYSTEM_ROLE_PROTECTED" {
		t.Fatalf("expected SYSTEM_ROLE_PROTECTED envelope, got %#v", body.Error)
	}

	resp, body = doJSON(t, env.Client, http.MethodPut, env.BaseURL+"/api/v1/roles/"+itoa(system.ID), map[string]any{
		"name": "renamed",
	}, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for system role update, got %d", resp.StatusCode)
	}

	resp, body = doJSON(t, env.Client, http.MethodDelete, env.BaseURL+"/api/v1/roles/"+itoa(system.ID), nil, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for system role delete, got %d", resp.StatusCode)
	}
	if body.Error == nil || body.Error.Code != "SYSTEM_ROLE_PROTECTED" {
		t.Fatalf("expected SYSTEM_ROLE_PROTECTED envelope, got %#v", body.Error)
	}
}

func TestRoleCrudThroughAdminSurface(t *testing.T) {
	env, closeFn := newTestEnv(t)
	defer closeFn()
	seedAdmin(t, env, "admin@example.com")

	p1 := seedPermission(t, env.DB, "order", "read", domain.ScopeGlobal, nil)

	resp, body := doJSON(t, env.Client, http.MethodPost, env.BaseURL+"/api/v1/roles", map[string]any{
		"name":           "clerk",
		"display_name":   "Clerk",
		"scope":          "GLOBAL",
		"permission_ids": []uint{p1.ID},
	}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 creating role, got %d", resp.StatusCode)
	}
	var created struct {
		ID uint `json:"id"`
	}
	if err := json.Unmarshal(body.Data, &created); err != nil || created.ID == 0 {
		t.Fatalf("decode created role: err=%v id=%d", err, created.ID)
	}
	if got := rolePermissionKeys(t, env, created.ID); len(got) != 1 || got[0] != "order:read" {
		t.Fatalf("unexpected initial grant set: %v", got)
	}

	// Duplicate name in the same scope conflicts.
	resp, body = doJSON(t, env.Client, http.MethodPost, env.BaseURL+"/api/v1/roles", map[string]any{
		"name":  "clerk",
		"scope": "GLOBAL",
	}, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate role, got %d", resp.StatusCode)
	}
	if body.Error == nil || body.Error.Code != "CONFLICT" {
		t.Fatalf("expected CONFLICT envelope, got %#v", body.Error)
	}

	resp, _ = doJSON(t, env.Client, http.MethodDelete, env.BaseURL+"/api/v1/roles/"+itoa(created.ID), nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 deleting role, got %d", resp.StatusCode)
	}
	resp, body = doJSON(t, env.Client, http.MethodGet, env.BaseURL+"/api/v1/roles/"+itoa(created.ID), nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", resp.StatusCode)
	}
}

func TestMissingPermissionOnAdminSurfaceForbidden(t *testing.T) {
	env, closeFn := newTestEnv(t)
	defer closeFn()

	// A user without role:read gets 403, not an empty list.
	reportRead := seedPermission(t, env.DB, "report", "read", domain.ScopeGlobal, nil)
	auditor := seedRole(t, env.DB, "auditor", domain.ScopeGlobal, nil, false, reportRead)
	seedUser(t, env.DB, "auditor@example.com", auditor)
	login(t, env, "auditor@example.com")

	resp, body := doJSON(t, env.Client, http.MethodGet, env.BaseURL+"/api/v1/roles/", nil, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 without role:read, got %d", resp.StatusCode)
	}
	if body.Error == nil || body.Error.Code != "FORBIDDEN" {
		t.Fatalf("expected FORBIDDEN envelope, got %#v", body.Error)
	}
}
