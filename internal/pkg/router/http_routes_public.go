package router

import (
	"github.com/gofiber/fiber/v2"
	gothfiber "github.com/shareed2k/goth_fiber"

	"github.com/ManuelReschke/Amparo/app/controllers"
	"github.com/ManuelReschke/Amparo/internal/pkg/oauth"
)

func (h *HttpRouter) registerPublicRoutes(app *fiber.App) {
	// Social OAuth
	if oauth.Enabled() {
		oc := controllers.NewOAuthController(h.deps)
		app.Get("/auth/:provider", gothfiber.BeginAuthHandler)
		app.Get("/auth/:provider/callback", oc.Callback)
	}
}
