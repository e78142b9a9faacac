package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Plan is a funeral-benefit plan offered to customers. Read-only for customers.
type Plan struct {
	ID            string         `gorm:"type:char(36);primaryKey" json:"id"`
	Slug          string         `gorm:"type:varchar(50);uniqueIndex;not null" json:"slug"`
	Name          string         `gorm:"type:varchar(100);not null" json:"name"`
	Type          string         `gorm:"type:varchar(50);not null" json:"type"`
	Price         float64        `gorm:"type:decimal(10,2);not null" json:"price"`
	MaxDependents int            `gorm:"not null;default:0" json:"max_dependents"`
	Features      datatypes.JSON `gorm:"type:json" json:"features"`
	IsActive      bool           `gorm:"default:true;index" json:"is_active"`
	CreatedAt     time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *Plan) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// FeatureList decodes Features as a list of strings. Any other shape yields nil.
func (p *Plan) FeatureList() []string {
	if len(p.Features) == 0 {
		return nil
	}
	var out []string
	if err := json.Unmarshal(p.Features, &out); err != nil {
		return nil
	}
	return out
}
