package domain

import "time"

// Scope determines whether a role or permission applies platform-wide or
// only inside a single tenant.
type Scope string

const (
	ScopeGlobal Scope = "GLOBAL"
	ScopeTenant Scope = "TENANT"
)

func (s Scope) Valid() bool {
	return s == ScopeGlobal || s == ScopeTenant
}

type Permission struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Name        string `gorm:"size:128;not null;index:idx_permission_name_scope,unique" json:"name"`
	DisplayName string `gorm:"size:128" json:"display_name"`
	Description string `gorm:"size:255" json:"description"`
	Resource    string `gorm:"size:64;not null;index:idx_permission_pair" json:"resource"`
	Action      string `gorm:"size:64;not null;index:idx_permission_pair" json:"action"`
	Scope       Scope  `gorm:"size:16;not null;default:GLOBAL;index:idx_permission_name_scope,unique" json:"scope"`
	// TenantID is set iff Scope is TENANT.
	TenantID  *uint     `gorm:"index:idx_permission_name_scope,unique" json:"tenant_id,omitempty"`
	IsActive  bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Key is the exact resource:action pair used by authorization checks.
func (p Permission) Key() string {
	return p.Resource + ":" + p.Action
}

// InTenant reports whether the permission is visible in the given tenant
// context: GLOBAL always, TENANT only for its own tenant.
func (p Permission) InTenant(tenantID uint) bool {
	if p.Scope == ScopeGlobal {
		return true
	}
	return p.TenantID != nil && *p.TenantID == tenantID
}

type RolePermission struct {
	RoleID       uint      `gorm:"primaryKey"`
	PermissionID uint      `gorm:"primaryKey"`
	GrantedBy    uint      `json:"granted_by"`
	CreatedAt    time.Time `json:"created_at"`
}
