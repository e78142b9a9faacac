package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Partner is a business offering discounts to plan holders.
type Partner struct {
	ID           string    `gorm:"type:char(36);primaryKey" json:"id"`
	Slug         string    `gorm:"type:varchar(191);uniqueIndex;not null" json:"slug" validate:"required,max=191"`
	Name         string    `gorm:"type:varchar(150);not null" json:"name" validate:"required,max=150"`
	Category     string    `gorm:"type:varchar(100);not null;index" json:"category" validate:"required,max=100"`
	Description  *string   `gorm:"type:text" json:"description"`
	DiscountText *string   `gorm:"type:varchar(255);default:null" json:"discount_text"`
	LogoURL      *string   `gorm:"type:varchar(500);default:null" json:"logo_url"`
	WebsiteURL   *string   `gorm:"type:varchar(500);default:null" json:"website_url" validate:"omitempty,url"`
	City         *string   `gorm:"type:varchar(100);default:null" json:"city"`
	State        *string   `gorm:"type:varchar(2);default:null;index" json:"state" validate:"omitempty,len=2"`
	IsActive     bool      `gorm:"default:true;index" json:"is_active"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *Partner) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

func (p *Partner) Validate() error {
	return validator.New().Struct(p)
}
