package authstate

import (
	"context"
	"time"

	"github.com/ManuelReschke/Amparo/app/models"
	"github.com/ManuelReschke/Amparo/internal/pkg/billing"
	"github.com/ManuelReschke/Amparo/internal/pkg/identity"
)

// IdentityClient is the identity provider scoped to one browser session.
type IdentityClient interface {
	OnAuthStateChange(fn identity.Listener) *identity.Subscription
	GetSession(ctx context.Context) (*identity.Session, error)
	SignOut(ctx context.Context) error
}

type ProfileStore interface {
	GetByID(ctx context.Context, id string) (*models.Profile, error)
}

type PlanStore interface {
	GetByID(ctx context.Context, id string) (*models.Plan, error)
}

type RoleStore interface {
	ListByUser(ctx context.Context, userID string) ([]models.UserRole, error)
}

// SubscriptionChecker asks the payment provider for the session's subscription.
type SubscriptionChecker interface {
	CheckSubscription(ctx context.Context, session *identity.Session) (*billing.StatusResponse, error)
}

// Deps are the collaborators shared by every container.
type Deps struct {
	Profiles      ProfileStore
	Plans         PlanStore
	Roles         RoleStore
	Subscriptions SubscriptionChecker

	// CheckInterval is the period of the subscription sync while signed in.
	CheckInterval time.Duration
	// FetchTimeout bounds each profile, role and subscription call.
	FetchTimeout time.Duration
}

func (d Deps) withDefaults() Deps {
	if d.CheckInterval <= 0 {
		d.CheckInterval = 60 * time.Second
	}
	if d.FetchTimeout <= 0 {
		d.FetchTimeout = 10 * time.Second
	}
	return d
}
