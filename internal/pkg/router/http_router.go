package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/Amparo/app/controllers"
	"github.com/ManuelReschke/Amparo/internal/pkg/middleware"
	"github.com/ManuelReschke/Amparo/internal/pkg/oauth"
	"github.com/ManuelReschke/Amparo/internal/pkg/session"
)

type HttpRouter struct {
	deps *controllers.Deps
	// csrf is shared with the API router so one token serves forms and XHR.
	csrf fiber.Handler
	// skipSetup leaves the session store and oauth providers alone, for tests
	// that install their own.
	skipSetup bool
}

func (h *HttpRouter) InstallRouter(app *fiber.App) {
	if !h.skipSetup {
		// init session
		session.NewSessionStore()

		// init oauth providers
		oauth.Setup()
	}

	// Apply UserContext middleware globally as first middleware
	app.Use(middleware.NewUserContextMiddleware(h.deps.Registry))

	h.registerPublicRoutes(app)
	h.registerCSRFProtectedRoutes(app)
}

func NewHttpRouter(deps *controllers.Deps) *HttpRouter {
	return &HttpRouter{
		deps: deps,
		// Tokens live in Redis database 3 so every instance accepts them
		csrf: newCSRF(session.RedisStorage(3)),
	}
}
