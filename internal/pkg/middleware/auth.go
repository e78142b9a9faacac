package middleware

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/Amparo/internal/pkg/access"
	"github.com/ManuelReschke/Amparo/internal/pkg/authstate"
	"github.com/ManuelReschke/Amparo/internal/pkg/usercontext"
)

// AwaitTimeout bounds how long a guard waits for the auth state to settle
// before answering with a loading response.
var AwaitTimeout = 1500 * time.Millisecond

// settle waits for pending session, profile and role resolution and refreshes
// the request's user context with the result.
func settle(c *fiber.Ctx) authstate.Snapshot {
	uc := usercontext.GetUserContext(c)
	container := usercontext.Container(c)
	if container == nil {
		return uc.State
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), AwaitTimeout)
	defer cancel()
	snap, _ := container.Await(ctx, authstate.Settled)
	usercontext.Set(c, usercontext.New(uc.AuthKey, snap))
	return snap
}

func stateOf(s authstate.Snapshot) access.State {
	return access.State{
		AuthLoading:    s.IsLoading,
		RoleLoading:    s.RoleLoading,
		ProfileLoading: s.ProfileLoading,
		HasUser:        s.HasUser(),
		Flags:          s.Flags,
	}
}

// RequireCustomer guards dashboard pages. Dependents are sent to the
// dashboard home from titular-only pages.
func RequireCustomer(requireTitular bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		d := access.Customer(stateOf(settle(c)), requireTitular, c.OriginalURL())
		return page(c, d)
	}
}

// RequireAdmin guards back-office pages. requireAdmin limits the page to the
// administrative admin role.
func RequireAdmin(requireAdmin bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		d := access.Admin(stateOf(settle(c)), requireAdmin)
		return page(c, d)
	}
}

// RequireAPICustomer is RequireCustomer for JSON routes: 401 without a user,
// 403 when the route is out of reach.
func RequireAPICustomer(requireTitular bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		st := stateOf(settle(c))
		return api(c, st, access.Customer(st, requireTitular, c.OriginalURL()))
	}
}

func RequireAPIAdmin(requireAdmin bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		st := stateOf(settle(c))
		return api(c, st, access.Admin(st, requireAdmin))
	}
}

func page(c *fiber.Ctx, d access.Decision) error {
	switch d.Outcome {
	case access.Allowed:
		return c.Next()
	case access.Redirect:
		return c.Redirect(d.Target, fiber.StatusSeeOther)
	default:
		c.Set(fiber.HeaderRetryAfter, "1")
		c.Status(fiber.StatusServiceUnavailable)
		if err := c.Render("loading", fiber.Map{"From": c.OriginalURL()}); err != nil {
			return c.SendString("Carregando...")
		}
		return nil
	}
}

func api(c *fiber.Ctx, st access.State, d access.Decision) error {
	switch {
	case d.Outcome == access.Allowed:
		return c.Next()
	case d.Outcome == access.Loading:
		c.Set(fiber.HeaderRetryAfter, "1")
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error":   "loading",
			"message": "auth state is still loading",
		})
	case !st.HasUser:
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":   "unauthorized",
			"message": "login required",
		})
	default:
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error":   "forbidden",
			"message": "insufficient role",
		})
	}
}
