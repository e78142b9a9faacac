package authstate

import (
	"github.com/ManuelReschke/Amparo/app/models"
	"github.com/ManuelReschke/Amparo/internal/pkg/billing"
	"github.com/ManuelReschke/Amparo/internal/pkg/entitlements"
	"github.com/ManuelReschke/Amparo/internal/pkg/identity"
)

type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Snapshot is a consistent copy of a container's state. Profile and Plan are
// shared with the container and must be treated as read-only.
type Snapshot struct {
	Session               *identity.Session          `json:"-"`
	User                  *User                      `json:"user"`
	Profile               *models.Profile            `json:"profile"`
	Plan                  *models.Plan               `json:"plan"`
	AdminRole             models.AdminRole           `json:"admin_role"`
	Flags                 entitlements.Flags         `json:"flags"`
	Subscription          billing.SubscriptionStatus `json:"subscription"`
	IsLoading             bool                       `json:"is_loading"`
	IsSubscriptionLoading bool                       `json:"is_subscription_loading"`
	RoleLoading           bool                       `json:"role_loading"`
	ProfileLoading        bool                       `json:"profile_loading"`
}

func (s Snapshot) HasUser() bool {
	return s.User != nil
}

// Settled reports that no session, profile or role resolution is pending.
// Subscription checks are not awaited.
func Settled(s Snapshot) bool {
	return !s.IsLoading && !s.RoleLoading && !s.ProfileLoading
}
