package repository

import (
	"context"
	"fmt"

	"github.com/ManuelReschke/Amparo/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type userRoleRepository struct {
	db *gorm.DB
}

// NewUserRoleRepository creates a new administrative role repository instance
func NewUserRoleRepository(db *gorm.DB) UserRoleRepository {
	return &userRoleRepository{db: db}
}

func (r *userRoleRepository) ListByUser(ctx context.Context, userID string) ([]models.UserRole, error) {
	var roles []models.UserRole
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Find(&roles).Error
	return roles, err
}

func (r *userRoleRepository) ListAll(ctx context.Context) ([]models.UserRole, error) {
	var roles []models.UserRole
	err := r.db.WithContext(ctx).Order("user_id ASC").Find(&roles).Error
	return roles, err
}

// Grant is idempotent: granting a role the user already holds is a no-op.
func (r *userRoleRepository) Grant(ctx context.Context, userID string, role models.AdminRole) error {
	if !role.Valid() {
		return fmt.Errorf("invalid administrative role %q", role)
	}
	record := &models.UserRole{UserID: userID, Role: role}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "role"}},
		DoNothing: true,
	}).Create(record).Error
}

func (r *userRoleRepository) Revoke(ctx context.Context, userID string, role models.AdminRole) error {
	return r.db.WithContext(ctx).Where("user_id = ? AND role = ?", userID, role).Delete(&models.UserRole{}).Error
}
