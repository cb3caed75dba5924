package domain

import "time"

type Role struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Name        string `gorm:"size:64;not null;index:idx_role_name_scope,unique" json:"name"`
	DisplayName string `gorm:"size:128" json:"display_name"`
	Description string `gorm:"size:255" json:"description"`
	// System roles are platform defaults and are rejected by every mutation
	// path before any write.
	IsSystemRole bool  `gorm:"not null;default:false" json:"is_system_role"`
	Scope        Scope `gorm:"size:16;not null;default:GLOBAL;index:idx_role_name_scope,unique" json:"scope"`
	// TenantID is set iff Scope is TENANT.
	TenantID    *uint        `gorm:"index:idx_role_name_scope,unique" json:"tenant_id,omitempty"`
	IsActive    bool         `gorm:"not null;default:true" json:"is_active"`
	Permissions []Permission `gorm:"many2many:role_permissions" json:"permissions,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// UserRole binds a user to a GLOBAL-scoped role independent of any tenant
// membership.
type UserRole struct {
	UserID    uint      `gorm:"primaryKey"`
	RoleID    uint      `gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
}
