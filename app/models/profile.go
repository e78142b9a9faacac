package models

import (
	"errors"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// AppRole is the customer-facing role stored on a profile.
type AppRole string

const (
	RoleTitular    AppRole = "titular"
	RoleDependente AppRole = "dependente"
	RoleAdmin      AppRole = "admin"
	RoleEditor     AppRole = "editor"
)

var ErrInvalidCPF = errors.New("cpf must have 11 digits")

// Profile extends an Account with customer data. ID equals the account ID.
// Dependents point at their titular via TitularID.
type Profile struct {
	ID        string    `gorm:"type:char(36);primaryKey" json:"id"`
	FullName  string    `gorm:"type:varchar(150);not null" json:"full_name" validate:"required,min=2,max=150"`
	CPF       *string   `gorm:"type:varchar(11);default:null" json:"cpf" validate:"omitempty,len=11,numeric"`
	Phone     *string   `gorm:"type:varchar(20);default:null" json:"phone" validate:"omitempty,max=20"`
	AvatarURL *string   `gorm:"type:varchar(255);default:null" json:"avatar_url" validate:"omitempty,max=255"`
	PlanID    *string   `gorm:"type:char(36);index;default:null" json:"plan_id"`
	Role      AppRole   `gorm:"type:varchar(20);not null;default:'titular'" json:"role" validate:"oneof=titular dependente admin editor"`
	TitularID *string   `gorm:"type:char(36);index;default:null" json:"titular_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *Profile) Validate() error {
	return validator.New().Struct(p)
}

// IsDependent reports whether the profile is linked to a titular.
func (p *Profile) IsDependent() bool {
	return p.TitularID != nil && *p.TitularID != ""
}

// ProfileUpdate carries the fields a customer may edit on their own profile.
// Nil fields are left untouched.
type ProfileUpdate struct {
	FullName  *string `json:"full_name" validate:"omitempty,min=2,max=150"`
	CPF       *string `json:"cpf"`
	Phone     *string `json:"phone" validate:"omitempty,max=20"`
	AvatarURL *string `json:"avatar_url" validate:"omitempty,max=255"`
}

// Fields returns the column map for a partial update, normalizing CPF to digits.
func (u ProfileUpdate) Fields() (map[string]interface{}, error) {
	if err := validator.New().Struct(u); err != nil {
		return nil, err
	}
	fields := map[string]interface{}{}
	if u.FullName != nil {
		fields["full_name"] = strings.TrimSpace(*u.FullName)
	}
	if u.CPF != nil {
		cpf := NullableDigits(*u.CPF)
		if cpf != nil && len(*cpf) != 11 {
			return nil, ErrInvalidCPF
		}
		fields["cpf"] = cpf
	}
	if u.Phone != nil {
		fields["phone"] = nullableString(*u.Phone)
	}
	if u.AvatarURL != nil {
		fields["avatar_url"] = nullableString(*u.AvatarURL)
	}
	return fields, nil
}

// OnlyDigits strips everything but 0-9.
func OnlyDigits(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}

// NullableDigits returns nil for inputs without digits.
func NullableDigits(s string) *string {
	d := OnlyDigits(s)
	if d == "" {
		return nil
	}
	return &d
}

func nullableString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
