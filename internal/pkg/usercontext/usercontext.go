package usercontext

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/Amparo/internal/pkg/authstate"
)

// UserContext represents the complete user context for a request
type UserContext struct {
	AuthKey    string             `json:"-"`
	UserID     string             `json:"user_id"`
	Email      string             `json:"email"`
	IsLoggedIn bool               `json:"is_logged_in"`
	State      authstate.Snapshot `json:"state"`
}

// New builds the context for a browser from its auth-state snapshot.
func New(authKey string, snap authstate.Snapshot) UserContext {
	uc := UserContext{AuthKey: authKey, State: snap}
	if snap.User != nil {
		uc.UserID = snap.User.ID
		uc.Email = snap.User.Email
		uc.IsLoggedIn = true
	}
	return uc
}

// GetUserContext retrieves the user context from fiber context
// Returns a default anonymous context if none is set
func GetUserContext(c *fiber.Ctx) UserContext {
	if ctx, ok := c.Locals(KeyUserContext).(UserContext); ok {
		return ctx
	}
	return UserContext{}
}

// Set stores uc for the rest of the request.
func Set(c *fiber.Ctx, uc UserContext) {
	c.Locals(KeyUserContext, uc)
}

// Container returns the browser's auth-state container, or nil on routes
// that skip the user context middleware.
func Container(c *fiber.Ctx) *authstate.Container {
	if ct, ok := c.Locals(KeyContainer).(*authstate.Container); ok {
		return ct
	}
	return nil
}

// IsLoggedIn checks if the current user is logged in
func IsLoggedIn(c *fiber.Ctx) bool {
	return GetUserContext(c).IsLoggedIn
}

// IsBackOfficeAdmin reports the administrative admin role, not Profile.Role.
func IsBackOfficeAdmin(c *fiber.Ctx) bool {
	return GetUserContext(c).State.Flags.IsBackOfficeAdmin
}

// GetUserID returns the current user's ID, or "" if not logged in
func GetUserID(c *fiber.Ctx) string {
	return GetUserContext(c).UserID
}

func GetEmail(c *fiber.Ctx) string {
	return GetUserContext(c).Email
}
