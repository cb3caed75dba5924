package domain

import "time"

type Tenant struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Name          string    `gorm:"uniqueIndex;size:100;not null" json:"name"`
	DisplayName   string    `gorm:"size:128" json:"display_name"`
	Description   string    `gorm:"size:512" json:"description"`
	LogoObjectKey string    `gorm:"size:255" json:"logo_object_key,omitempty"`
	IsActive      bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// UserTenant is the membership join of user x tenant with exactly one role
// per tenant per user. At most one membership per user carries IsPrimary.
type UserTenant struct {
	UserID    uint      `gorm:"primaryKey" json:"user_id"`
	TenantID  uint      `gorm:"primaryKey" json:"tenant_id"`
	RoleID    uint      `gorm:"not null;index" json:"role_id"`
	IsPrimary bool      `gorm:"not null;default:false;index" json:"is_primary"`
	JoinedAt  time.Time `gorm:"autoCreateTime" json:"joined_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
