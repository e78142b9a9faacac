package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"

	"github.com/ManuelReschke/Amparo/app/models"
	"github.com/ManuelReschke/Amparo/app/repository"
)

var (
	ErrInvalidCredentials   = errors.New("Invalid login credentials")
	ErrNoSession            = errors.New("no active session")
	ErrEmailTaken           = errors.New("User already registered")
	ErrWeakPassword         = errors.New("Password must have at least 8 characters, one uppercase letter and one number")
	ErrPasswordTooShort     = errors.New("Password should be at least 6 characters")
	ErrMissingFields        = errors.New("email, password and full name are required")
	ErrInvalidRecoveryToken = errors.New("Recovery link is invalid or has expired")
	ErrInvalidMagicLink     = errors.New("Email link is invalid or has expired")
)

// UserMessage turns a provider error into the text shown to the customer.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrInvalidCredentials) {
		return "Email ou senha incorretos"
	}
	return err.Error()
}

// AccountStore is the persistence the identity provider owns.
type AccountStore interface {
	Create(ctx context.Context, account *models.Account) error
	GetByID(ctx context.Context, id string) (*models.Account, error)
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	GetByRecoveryToken(ctx context.Context, token string) (*models.Account, error)
	Update(ctx context.Context, account *models.Account) error
	Delete(ctx context.Context, id string) error
}

// ProfileCreator creates the customer profile that accompanies every new account.
type ProfileCreator interface {
	Create(ctx context.Context, profile *models.Profile) error
}

type Config struct {
	Secret       []byte
	SessionTTL   time.Duration
	MagicLinkTTL time.Duration
}

// Service is the identity provider: accounts, session tokens and auth-state events.
type Service struct {
	accounts    AccountStore
	profiles    ProfileCreator
	tokens      TokenStore
	hub         *Hub
	broadcaster Broadcaster
	cfg         Config
	now         func() time.Time
}

func NewService(accounts AccountStore, profiles ProfileCreator, tokens TokenStore, hub *Hub, cfg Config) *Service {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = time.Hour
	}
	if cfg.MagicLinkTTL <= 0 {
		cfg.MagicLinkTTL = time.Hour
	}
	return &Service{
		accounts: accounts,
		profiles: profiles,
		tokens:   tokens,
		hub:      hub,
		cfg:      cfg,
		now:      time.Now,
	}
}

// SetBroadcaster enables cross-instance delivery of events.
func (s *Service) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

func (s *Service) Hub() *Hub {
	return s.hub
}

// Client returns the provider view scoped to one browser session key.
func (s *Service) Client(key string) *Client {
	return &Client{svc: s, key: key}
}

// CheckPasswordStrength applies the signup policy.
func CheckPasswordStrength(password string) error {
	if len(password) < 8 {
		return ErrWeakPassword
	}
	var upper, digit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !upper || !digit {
		return ErrWeakPassword
	}
	return nil
}

// SignUp creates an account and its titular profile. It does not sign in.
// ProfileOption shapes the profile created alongside a new account.
type ProfileOption func(*models.Profile)

func (s *Service) SignUp(ctx context.Context, email, password, fullName string, opts ...ProfileOption) (*models.Account, error) {
	email = models.NormalizeEmail(email)
	fullName = strings.TrimSpace(fullName)
	if email == "" || password == "" || fullName == "" {
		return nil, ErrMissingFields
	}
	if err := CheckPasswordStrength(password); err != nil {
		return nil, err
	}

	switch _, err := s.accounts.GetByEmail(ctx, email); {
	case err == nil:
		return nil, ErrEmailTaken
	case !errors.Is(err, repository.ErrNotFound):
		return nil, fmt.Errorf("lookup account: %w", err)
	}

	account, err := models.NewAccount(email, password)
	if err != nil {
		return nil, err
	}
	if err := s.createWithProfile(ctx, account, fullName, opts...); err != nil {
		return nil, err
	}
	log.Infof("[Identity] account %s created", account.ID)
	return account, nil
}

// createWithProfile removes the account again when its profile cannot be
// stored, so a failed signup leaves the email free for a retry.
func (s *Service) createWithProfile(ctx context.Context, account *models.Account, fullName string, opts ...ProfileOption) error {
	if err := s.accounts.Create(ctx, account); err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	profile := &models.Profile{ID: account.ID, FullName: fullName, Role: models.RoleTitular}
	for _, opt := range opts {
		opt(profile)
	}
	profile.ID = account.ID
	if err := s.profiles.Create(ctx, profile); err != nil {
		if derr := s.accounts.Delete(context.WithoutCancel(ctx), account.ID); derr != nil {
			log.Errorf("[Identity] rollback of account %s failed: %v", account.ID, derr)
		}
		return fmt.Errorf("create profile: %w", err)
	}
	return nil
}

// SignIn verifies a password and binds a new session to key.
func (s *Service) SignIn(ctx context.Context, key, email, password string) (*Session, error) {
	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !account.CheckPassword(password) {
		return nil, ErrInvalidCredentials
	}
	return s.startSession(ctx, key, account, EventSignedIn)
}

// SignInWithEmail binds a session for an already verified email (social login),
// creating the account on first use.
func (s *Service) SignInWithEmail(ctx context.Context, key, email, fullName string) (*Session, error) {
	email = models.NormalizeEmail(email)
	account, err := s.accounts.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		now := s.now()
		account = &models.Account{ID: uuid.NewString(), Email: email, EmailConfirmedAt: &now}
		if strings.TrimSpace(fullName) == "" {
			fullName = email
		}
		if err := s.createWithProfile(ctx, account, strings.TrimSpace(fullName)); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}
	return s.startSession(ctx, key, account, EventSignedIn)
}

// RequestMagicLink returns a one-hour sign-in token for email, or "" when no
// such account exists.
func (s *Service) RequestMagicLink(ctx context.Context, email string) (string, error) {
	account, err := s.accounts.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	token, _, err := s.signToken(account.ID, account.Email, "", purposeMagicLink, s.cfg.MagicLinkTTL)
	return token, err
}

func (s *Service) SignInWithMagicLink(ctx context.Context, key, token string) (*Session, error) {
	claims, err := s.parseToken(token, purposeMagicLink)
	if err != nil {
		return nil, ErrInvalidMagicLink
	}
	account, err := s.accounts.GetByID(ctx, claims.Subject)
	if err != nil {
		return nil, ErrInvalidMagicLink
	}
	if account.EmailConfirmedAt == nil {
		now := s.now()
		account.EmailConfirmedAt = &now
	}
	return s.startSession(ctx, key, account, EventSignedIn)
}

func (s *Service) startSession(ctx context.Context, key string, account *models.Account, event Event) (*Session, error) {
	session, err := s.issue(ctx, key, account.ID, account.Email)
	if err != nil {
		return nil, err
	}
	now := s.now()
	account.LastSignInAt = &now
	if err := s.accounts.Update(ctx, account); err != nil {
		log.Warnf("[Identity] could not stamp last sign-in for %s: %v", account.ID, err)
	}
	s.emit(ctx, key, event, session)
	return session, nil
}

func (s *Service) issue(ctx context.Context, key, userID, email string) (*Session, error) {
	raw, expiresAt, err := s.signToken(userID, email, key, purposeSession, s.cfg.SessionTTL)
	if err != nil {
		return nil, err
	}
	if err := s.tokens.Save(ctx, key, raw, s.cfg.SessionTTL); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}
	return &Session{UserID: userID, Email: email, RawToken: raw, ExpiresAt: expiresAt}, nil
}

// GetSession returns the live session bound to key, or nil when there is none.
// Expired and tampered tokens read as no session.
func (s *Service) GetSession(ctx context.Context, key string) (*Session, error) {
	raw, err := s.tokens.Load(ctx, key)
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return nil, nil
	}
	claims, err := s.parseToken(raw, purposeSession)
	if err != nil || claims.SessionKey != key {
		log.Debugf("[Identity] discarding unusable token for %s: %v", key, err)
		_ = s.tokens.Delete(ctx, key)
		return nil, nil
	}
	return &Session{
		UserID:    claims.Subject,
		Email:     claims.Email,
		RawToken:  raw,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Refresh reissues the token bound to key with a new expiry.
func (s *Service) Refresh(ctx context.Context, key string) (*Session, error) {
	current, err := s.GetSession(ctx, key)
	if err != nil {
		return nil, err
	}
	if !current.HasUser() {
		return nil, ErrNoSession
	}
	session, err := s.issue(ctx, key, current.UserID, current.Email)
	if err != nil {
		return nil, err
	}
	s.emit(ctx, key, EventTokenRefreshed, session)
	return session, nil
}

func (s *Service) SignOut(ctx context.Context, key string) error {
	if err := s.tokens.Delete(ctx, key); err != nil {
		return err
	}
	s.emit(ctx, key, EventSignedOut, nil)
	return nil
}

// RequestPasswordRecovery stores a recovery token on the account and returns it
// so the caller can mail the link. Unknown emails yield "" and no error.
func (s *Service) RequestPasswordRecovery(ctx context.Context, email string) (string, error) {
	account, err := s.accounts.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if err := account.GenerateRecoveryToken(); err != nil {
		return "", err
	}
	if err := s.accounts.Update(ctx, account); err != nil {
		return "", err
	}
	return account.RecoveryToken, nil
}

// ResetPassword consumes a recovery token, signs key in and sets the new password.
// Listeners see PASSWORD_RECOVERY followed by USER_UPDATED.
func (s *Service) ResetPassword(ctx context.Context, key, token, newPassword string) (*Session, error) {
	if len(newPassword) < 6 {
		return nil, ErrPasswordTooShort
	}
	account, err := s.accounts.GetByRecoveryToken(ctx, token)
	if err != nil || !account.IsRecoveryTokenValid(token, s.now()) {
		return nil, ErrInvalidRecoveryToken
	}

	session, err := s.issue(ctx, key, account.ID, account.Email)
	if err != nil {
		return nil, err
	}
	s.emit(ctx, key, EventPasswordRecovery, session)

	if err := account.SetPassword(newPassword); err != nil {
		return nil, err
	}
	account.ClearRecovery()
	if account.EmailConfirmedAt == nil {
		now := s.now()
		account.EmailConfirmedAt = &now
	}
	if err := s.accounts.Update(ctx, account); err != nil {
		return nil, err
	}
	s.emit(ctx, key, EventUserUpdated, session)
	return session, nil
}

func (s *Service) emit(ctx context.Context, key string, event Event, session *Session) {
	s.hub.Publish(key, event, session)
	if s.broadcaster == nil {
		return
	}
	if err := s.broadcaster.Broadcast(ctx, key, event, session); err != nil {
		log.Warnf("[Identity] broadcast %s failed: %v", event, err)
	}
}
