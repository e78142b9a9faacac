package repository

import (
	"context"

	"github.com/ManuelReschke/Amparo/app/models"
	"gorm.io/gorm"
)

type obituaryRepository struct {
	db *gorm.DB
}

// NewObituaryRepository creates a new obituary repository instance
func NewObituaryRepository(db *gorm.DB) ObituaryRepository {
	return &obituaryRepository{db: db}
}

func (r *obituaryRepository) Create(ctx context.Context, obituary *models.Obituary) error {
	return r.db.WithContext(ctx).Create(obituary).Error
}

func (r *obituaryRepository) GetByID(ctx context.Context, id string) (*models.Obituary, error) {
	var o models.Obituary
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&o).Error; err != nil {
		return nil, translate(err)
	}
	return &o, nil
}

func (r *obituaryRepository) GetPublishedBySlug(ctx context.Context, slug string) (*models.Obituary, error) {
	var o models.Obituary
	err := r.db.WithContext(ctx).Where("slug = ? AND status = ?", slug, models.ObituaryPublished).First(&o).Error
	if err != nil {
		return nil, translate(err)
	}
	return &o, nil
}

// ListPublished returns published obituaries, most recent deaths first
func (r *obituaryRepository) ListPublished(ctx context.Context, offset, limit int) ([]models.Obituary, error) {
	var list []models.Obituary
	err := r.db.WithContext(ctx).
		Where("status = ?", models.ObituaryPublished).
		Order("death_date DESC").
		Offset(offset).Limit(limit).
		Find(&list).Error
	return list, err
}

func (r *obituaryRepository) ListAll(ctx context.Context) ([]models.Obituary, error) {
	var list []models.Obituary
	err := r.db.WithContext(ctx).Order("created_at DESC").Find(&list).Error
	return list, err
}

func (r *obituaryRepository) Update(ctx context.Context, obituary *models.Obituary) error {
	return r.db.WithContext(ctx).Save(obituary).Error
}

func (r *obituaryRepository) Delete(ctx context.Context, id string) error {
	tx := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Obituary{})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *obituaryRepository) SlugExistsExceptID(ctx context.Context, slug, id string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Obituary{}).Where("slug = ? AND id <> ?", slug, id).Count(&count).Error
	return count > 0, err
}

func (r *obituaryRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Obituary{}).Count(&count).Error
	return count, err
}
