package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AdminRole is a back-office privilege. It is deliberately a different type
// from AppRole: a profile with Role=admin holds no back-office rights by itself.
type AdminRole string

const (
	AdminRoleNone   AdminRole = ""
	AdminRoleAdmin  AdminRole = "admin"
	AdminRoleEditor AdminRole = "editor"
)

// Valid reports whether r can be stored as an administrative role record.
func (r AdminRole) Valid() bool {
	return r == AdminRoleAdmin || r == AdminRoleEditor
}

// UserRole grants a back-office role to a user. A user may hold several.
type UserRole struct {
	ID     string    `gorm:"type:char(36);primaryKey" json:"id"`
	UserID string    `gorm:"type:char(36);not null;index:ux_user_roles_user_role,unique,priority:1" json:"user_id"`
	Role   AdminRole `gorm:"type:varchar(20);not null;index:ux_user_roles_user_role,unique,priority:2" json:"role"`
}

func (r *UserRole) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}
