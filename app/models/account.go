package models

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// RecoveryTokenTTL bounds how long a password recovery link stays usable.
const RecoveryTokenTTL = time.Hour

// Account is the identity record behind a login. It is owned by the identity
// provider; the customer-facing data lives in Profile under the same ID.
type Account struct {
	ID               string     `gorm:"type:char(36);primaryKey" json:"id"`
	Email            string     `gorm:"uniqueIndex;type:varchar(200)" json:"email" validate:"required,email,max=200"`
	PasswordHash     string     `gorm:"type:text" json:"-"`
	EmailConfirmedAt *time.Time `gorm:"default:null" json:"email_confirmed_at"`
	RecoveryToken    string     `gorm:"type:varchar(100);index;default:null" json:"-"`
	RecoverySentAt   *time.Time `gorm:"default:null" json:"-"`
	LastSignInAt     *time.Time `gorm:"default:null" json:"last_sign_in_at"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (a *Account) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.Email = NormalizeEmail(a.Email)
	return nil
}

func (a *Account) Validate() error {
	return validator.New().Struct(a)
}

// NewAccount builds an unsaved account with a hashed password.
func NewAccount(email, password string) (*Account, error) {
	a := &Account{
		ID:    uuid.NewString(),
		Email: NormalizeEmail(email),
	}
	if err := a.SetPassword(password); err != nil {
		return nil, err
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)

	return string(bytes), err
}

// CheckPassword verifies if the provided password matches the stored hash
func (a *Account) CheckPassword(password string) bool {
	if a.PasswordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)) == nil
}

func (a *Account) SetPassword(password string) error {
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	a.PasswordHash = hash
	return nil
}

// GenerateRecoveryToken creates a random token and stamps RecoverySentAt
func (a *Account) GenerateRecoveryToken() error {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return err
	}
	a.RecoveryToken = hex.EncodeToString(b)
	now := time.Now()
	a.RecoverySentAt = &now
	return nil
}

// IsRecoveryTokenValid checks token equality and expiry
func (a *Account) IsRecoveryTokenValid(token string, now time.Time) bool {
	if a.RecoveryToken == "" || a.RecoverySentAt == nil || token == "" {
		return false
	}
	if a.RecoveryToken != token {
		return false
	}
	return now.Sub(*a.RecoverySentAt) < RecoveryTokenTTL
}

func (a *Account) ClearRecovery() {
	a.RecoveryToken = ""
	a.RecoverySentAt = nil
}

// GenerateTemporaryPassword returns a random password for accounts created on
// someone else's behalf (dependents). The owner is expected to reset it.
func GenerateTemporaryPassword() (string, error) {
	b := make([]byte, 9)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b) + "A1!", nil
}
