package integration

import (
	"encoding/json"
	"net/http"
	"sort"
	"testing"

	"go-tenant-rbac-service/internal/domain"
)

func myPermissions(t *testing.T, env *testEnv, tenantHeader string) []string {
	t.Helper()
	headers := map[string]string{}
	if tenantHeader != "" {
		headers["X-Tenant-ID"] = tenantHeader
	}
	resp, body := doJSON(t, env.Client, http.MethodGet, env.BaseURL+"/api/v1/me/permissions", nil, headers)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from me/permissions, got %d", resp.StatusCode)
	}
	var payload struct {
		Permissions []string `json:"permissions"`
	}
	if err := json.Unmarshal(body.Data, &payload); err != nil {
		t.Fatalf("decode permissions payload: %v", err)
	}
	return payload.Permissions
}

func checkAccess(t *testing.T, env *testEnv, tenantHeader, resource, action string) bool {
	t.Helper()
	headers := map[string]string{}
	if tenantHeader != "" {
		headers["X-Tenant-ID"] = tenantHeader
	}
	url := env.BaseURL + "/api/v1/access/check?resource=" + resource + "&action=" + action
	resp, body := doJSON(t, env.Client, http.MethodGet, url, nil, headers)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from access check, got %d", resp.StatusCode)
	}
	var payload struct {
		Allowed bool `json:"allowed"`
	}
	if err := json.Unmarshal(body.Data, &payload); err != nil {
		t.Fatalf("decode check payload: %v", err)
	}
	return payload.Allowed
}

func TestGlobalRolePermissionsApplyEverywhere(t *testing.T) {
	env, closeFn := newTestEnv(t)
	defer closeFn()

	reportRead := seedPermission(t, env.DB, "report", "read", domain.ScopeGlobal, nil)
	auditor := seedRole(t, env.DB, "auditor", domain.ScopeGlobal, nil, false, reportRead)
	seedUser(t, env.DB, "auditor@example.com", auditor)
	login(t, env, "auditor@example.com")

	perms := myPermissions(t, env, "")
	if len(perms) != 1 || perms[0] != "report:read" {
		t.Fatalf("expected [report:read], got %v", perms)
	}

	if !checkAccess(t, env, "", "report", "read") {
		t.Fatal("expected report:read to be allowed")
	}
	if checkAccess(t, env, "", "report", "write") {
		t.Fatal("expected report:write to be denied")
	}

	// Exact matching only: a prefix of a granted key is not a grant.
	if checkAccess(t, env, "", "report", "rea") {
		t.Fatal("expected partial action to be denied")
	}
}

func TestTenantScopedResolutionIsolatesTenants(t *testing.T) {
	env, closeFn := newTestEnv(t)
	defer closeFn()

	acme := seedTenant(t, env.DB, "acme")
	globex := seedTenant(t, env.DB, "globex")

	orderRead1 := seedPermission(t, env.DB, "order", "read", domain.ScopeTenant, uintPtr(acme.ID))
	orderWrite1 := seedPermission(t, env.DB, "order", "write", domain.ScopeTenant, uintPtr(acme.ID))
	orderRead2 := seedPermission(t, env.DB, "order", "read", domain.ScopeTenant, uintPtr(globex.ID))

	editor := seedRole(t, env.DB, "editor", domain.ScopeTenant, uintPtr(acme.ID), false, orderRead1, orderWrite1)
	viewer := seedRole(t, env.DB, "viewer", domain.ScopeTenant, uintPtr(globex.ID), false, orderRead2)

	user := seedUser(t, env.DB, "member@example.com")
	seedMembership(t, env.DB, user.ID, acme.ID, editor.ID, true)
	seedMembership(t, env.DB, user.ID, globex.ID, viewer.ID, false)
	login(t, env, "member@example.com")

	gotAcme := myPermissions(t, env, itoa(acme.ID))
	sort.Strings(gotAcme)
	if len(gotAcme) != 2 || gotAcme[0] != "order:read" || gotAcme[1] != "order:write" {
		t.Fatalf("unexpected acme permissions: %v", gotAcme)
	}

	gotGlobex := myPermissions(t, env, itoa(globex.ID))
	if len(gotGlobex) != 1 || gotGlobex[0] != "order:read" {
		t.Fatalf("unexpected globex permissions: %v", gotGlobex)
	}

	if !checkAccess(t, env, itoa(acme.ID), "order", "write") {
		t.Fatal("expected order:write in acme")
	}
	if checkAccess(t, env, itoa(globex.ID), "order", "write") {
		t.Fatal("order:write must not leak into globex")
	}
}

func TestAggregateResolutionUnionsAllMemberships(t *testing.T) {
	env, closeFn := newTestEnv(t)
	defer closeFn()

	acme := seedTenant(t, env.DB, "acme")
	globex := seedTenant(t, env.DB, "globex")

	orderRead1 := seedPermission(t, env.DB, "order", "read", domain.ScopeTenant, uintPtr(acme.ID))
	orderWrite1 := seedPermission(t, env.DB, "order", "write", domain.ScopeTenant, uintPtr(acme.ID))
	invoiceRead2 := seedPermission(t, env.DB, "invoice", "read", domain.ScopeTenant, uintPtr(globex.ID))
	reportRead := seedPermission(t, env.DB, "report", "read", domain.ScopeGlobal, nil)

	editor := seedRole(t, env.DB, "editor", domain.ScopeTenant, uintPtr(acme.ID), false, orderRead1, orderWrite1)
	viewer := seedRole(t, env.DB, "viewer", domain.ScopeTenant, uintPtr(globex.ID), false, invoiceRead2)
	auditor := seedRole(t, env.DB, "auditor", domain.ScopeGlobal, nil, false, reportRead)

	user := seedUser(t, env.DB, "multi@example.com", auditor)
	seedMembership(t, env.DB, user.ID, acme.ID, editor.ID, true)
	seedMembership(t, env.DB, user.ID, globex.ID, viewer.ID, false)
	login(t, env, "multi@example.com")

	// No tenant header selects the aggregate across every membership plus
	// global grants.
	got := myPermissions(t, env, "")
	want := []string{"invoice:read", "order:read", "order:write", "report:read"}
	sort.Strings(got)
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestMalformedTenantHeaderRejected(t *testing.T) {
	env, closeFn := newTestEnv(t)
	defer closeFn()

	reportRead := seedPermission(t, env.DB, "report", "read", domain.ScopeGlobal, nil)
	auditor := seedRole(t, env.DB, "auditor", domain.ScopeGlobal, nil, false, reportRead)
	seedUser(t, env.DB, "auditor@example.com", auditor)
	login(t, env, "auditor@example.com")

	resp, body := doJSON(t, env.Client, http.MethodGet, env.BaseURL+"/api/v1/me/permissions", nil, map[string]string{
		"X-Tenant-ID": "not-a-number",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed tenant header, got %d", resp.StatusCode)
	}
	if body.Error == nil || body.Error.Code != "BAD_REQUEST" {
		t.Fatalf("expected BAD_REQUEST envelope, got %#v", body.Error)
	}
}

func TestInactiveRoleContributesNothing(t *testing.T) {
	env, closeFn := newTestEnv(t)
	defer closeFn()

	reportRead := seedPermission(t, env.DB, "report", "read", domain.ScopeGlobal, nil)
	retired := seedRole(t, env.DB, "retired", domain.ScopeGlobal, nil, false, reportRead)
	if err := env.DB.Model(&domain.Role{}).Where("id = ?", retired.ID).Update("is_active", false).Error; err != nil {
		t.Fatalf("deactivate role: %v", err)
	}
	seedUser(t, env.DB, "inactive@example.com", retired)
	login(t, env, "inactive@example.com")

	perms := myPermissions(t, env, "")
	if len(perms) != 0 {
		t.Fatalf("expected no permissions from inactive role, got %v", perms)
	}
}
