package repository

import (
	"context"
	"strings"

	"github.com/ManuelReschke/Amparo/app/models"
	"gorm.io/gorm"
)

type partnerRepository struct {
	db *gorm.DB
}

// NewPartnerRepository creates a new partner repository instance
func NewPartnerRepository(db *gorm.DB) PartnerRepository {
	return &partnerRepository{db: db}
}

func (r *partnerRepository) Create(ctx context.Context, partner *models.Partner) error {
	return r.db.WithContext(ctx).Create(partner).Error
}

func (r *partnerRepository) GetByID(ctx context.Context, id string) (*models.Partner, error) {
	var p models.Partner
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (r *partnerRepository) ListActive(ctx context.Context, filter PartnerFilter) ([]models.Partner, error) {
	q := r.db.WithContext(ctx).Where("is_active = ?", true)
	if c := strings.TrimSpace(filter.Category); c != "" {
		q = q.Where("category = ?", c)
	}
	if s := strings.TrimSpace(filter.State); s != "" {
		q = q.Where("state = ?", strings.ToUpper(s))
	}
	var list []models.Partner
	err := q.Order("name ASC").Find(&list).Error
	return list, err
}

func (r *partnerRepository) ListAll(ctx context.Context) ([]models.Partner, error) {
	var list []models.Partner
	err := r.db.WithContext(ctx).Order("name ASC").Find(&list).Error
	return list, err
}

func (r *partnerRepository) Update(ctx context.Context, partner *models.Partner) error {
	return r.db.WithContext(ctx).Save(partner).Error
}

func (r *partnerRepository) Delete(ctx context.Context, id string) error {
	tx := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Partner{})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *partnerRepository) SlugExistsExceptID(ctx context.Context, slug, id string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Partner{}).Where("slug = ? AND id <> ?", slug, id).Count(&count).Error
	return count > 0, err
}

func (r *partnerRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Partner{}).Count(&count).Error
	return count, err
}
