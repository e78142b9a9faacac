package repository

import (
	"context"
	"errors"

	"github.com/ManuelReschke/Amparo/app/models"
	"gorm.io/gorm"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("record not found")

// AccountRepository defines the interface for identity account operations
type AccountRepository interface {
	Create(ctx context.Context, account *models.Account) error
	GetByID(ctx context.Context, id string) (*models.Account, error)
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	GetByRecoveryToken(ctx context.Context, token string) (*models.Account, error)
	Update(ctx context.Context, account *models.Account) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, offset, limit int) ([]models.Account, error)
}

// ProfileRepository defines the interface for customer profile operations
type ProfileRepository interface {
	Create(ctx context.Context, profile *models.Profile) error
	GetByID(ctx context.Context, id string) (*models.Profile, error)
	Update(ctx context.Context, id string, fields map[string]interface{}) error
	ListDependents(ctx context.Context, titularID string) ([]models.Profile, error)
	CountDependents(ctx context.Context, titularID string) (int64, error)
	ListByIDs(ctx context.Context, ids []string) ([]models.Profile, error)
	List(ctx context.Context, offset, limit int) ([]models.Profile, error)
	Count(ctx context.Context) (int64, error)
}

// PlanRepository defines the interface for plan lookups
type PlanRepository interface {
	GetByID(ctx context.Context, id string) (*models.Plan, error)
	GetBySlug(ctx context.Context, slug string) (*models.Plan, error)
	ListActive(ctx context.Context) ([]models.Plan, error)
}

// UserRoleRepository defines the interface for administrative role records
type UserRoleRepository interface {
	ListByUser(ctx context.Context, userID string) ([]models.UserRole, error)
	ListAll(ctx context.Context) ([]models.UserRole, error)
	Grant(ctx context.Context, userID string, role models.AdminRole) error
	Revoke(ctx context.Context, userID string, role models.AdminRole) error
}

// PaymentRepository defines the interface for payment history
type PaymentRepository interface {
	Create(ctx context.Context, payment *models.Payment) error
	ListByUser(ctx context.Context, userID string) ([]models.Payment, error)
}

// ObituaryRepository defines the interface for obituary operations
type ObituaryRepository interface {
	Create(ctx context.Context, obituary *models.Obituary) error
	GetByID(ctx context.Context, id string) (*models.Obituary, error)
	GetPublishedBySlug(ctx context.Context, slug string) (*models.Obituary, error)
	ListPublished(ctx context.Context, offset, limit int) ([]models.Obituary, error)
	ListAll(ctx context.Context) ([]models.Obituary, error)
	Update(ctx context.Context, obituary *models.Obituary) error
	Delete(ctx context.Context, id string) error
	SlugExistsExceptID(ctx context.Context, slug, id string) (bool, error)
	Count(ctx context.Context) (int64, error)
}

// PartnerRepository defines the interface for partner operations
type PartnerRepository interface {
	Create(ctx context.Context, partner *models.Partner) error
	GetByID(ctx context.Context, id string) (*models.Partner, error)
	ListActive(ctx context.Context, filter PartnerFilter) ([]models.Partner, error)
	ListAll(ctx context.Context) ([]models.Partner, error)
	Update(ctx context.Context, partner *models.Partner) error
	Delete(ctx context.Context, id string) error
	SlugExistsExceptID(ctx context.Context, slug, id string) (bool, error)
	Count(ctx context.Context) (int64, error)
}

// PartnerFilter narrows the public partner listing. Empty fields match all.
type PartnerFilter struct {
	Category string
	State    string
}

// Repositories struct holds all repository instances
type Repositories struct {
	Account  AccountRepository
	Profile  ProfileRepository
	Plan     PlanRepository
	UserRole UserRoleRepository
	Payment  PaymentRepository
	Obituary ObituaryRepository
	Partner  PartnerRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Account:  NewAccountRepository(db),
		Profile:  NewProfileRepository(db),
		Plan:     NewPlanRepository(db),
		UserRole: NewUserRoleRepository(db),
		Payment:  NewPaymentRepository(db),
		Obituary: NewObituaryRepository(db),
		Partner:  NewPartnerRepository(db),
	}
}

// translate maps driver-level not-found errors to ErrNotFound.
func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
