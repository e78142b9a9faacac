package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ObituaryStatus string

const (
	ObituaryDraft     ObituaryStatus = "rascunho"
	ObituaryPublished ObituaryStatus = "publicado"
	ObituaryArchived  ObituaryStatus = "arquivado"
)

type Obituary struct {
	ID              string         `gorm:"type:char(36);primaryKey" json:"id"`
	Slug            string         `gorm:"type:varchar(191);uniqueIndex;not null" json:"slug" validate:"required,max=191"`
	FullName        string         `gorm:"type:varchar(150);not null" json:"full_name" validate:"required,max=150"`
	BirthDate       *time.Time     `gorm:"type:date;default:null" json:"birth_date"`
	DeathDate       time.Time      `gorm:"type:date;not null" json:"death_date" validate:"required"`
	Biography       *string        `gorm:"type:text" json:"biography"`
	PhotoURL        *string        `gorm:"type:varchar(500);default:null" json:"photo_url"`
	FuneralLocation *string        `gorm:"type:varchar(255);default:null" json:"funeral_location"`
	FuneralDatetime *time.Time     `gorm:"default:null" json:"funeral_datetime"`
	VideoStreamURL  *string        `gorm:"type:varchar(500);default:null" json:"video_stream_url"`
	VideoPassword   *string        `gorm:"type:varchar(100);default:null" json:"-"`
	Status          ObituaryStatus `gorm:"type:varchar(20);not null;default:'rascunho';index" json:"status" validate:"oneof=rascunho publicado arquivado"`
	PublishedAt     *time.Time     `gorm:"default:null" json:"published_at"`
	CreatedAt       time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

func (o *Obituary) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	return nil
}

func (o *Obituary) Validate() error {
	return validator.New().Struct(o)
}

// ApplyStatus moves the obituary to status and stamps PublishedAt the first
// time it is published.
func (o *Obituary) ApplyStatus(status ObituaryStatus, now time.Time) {
	o.Status = status
	if status == ObituaryPublished && o.PublishedAt == nil {
		o.PublishedAt = &now
	}
}
