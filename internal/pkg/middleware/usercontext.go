package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/Amparo/internal/pkg/authstate"
	"github.com/ManuelReschke/Amparo/internal/pkg/session"
	"github.com/ManuelReschke/Amparo/internal/pkg/usercontext"
)

// Paths that never touch the app session: Goth keeps its own store under
// /auth/, webhooks are server to server, static files need no user.
var skipUserContext = []string{"/auth/", "/api/v1/webhooks/", "/static/", "/docs"}

// NewUserContextMiddleware attaches the browser's auth-state container and a
// snapshot of it to every request. Browsers without an auth key are anonymous
// and get no container; keys are only issued on sign-in.
func NewUserContextMiddleware(registry *authstate.Registry) fiber.Handler {
	return func(c *fiber.Ctx) error {
		for _, prefix := range skipUserContext {
			if strings.HasPrefix(c.Path(), prefix) {
				return c.Next()
			}
		}

		key, ok, err := session.ExistingAuthKey(c)
		if err != nil {
			log.Warnf("[Session] %v", err)
		}
		if !ok {
			usercontext.Set(c, usercontext.UserContext{})
			return c.Next()
		}

		container := registry.Get(key)
		c.Locals(usercontext.KeyContainer, container)
		usercontext.Set(c, usercontext.New(key, container.Snapshot()))
		return c.Next()
	}
}
