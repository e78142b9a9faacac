package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/Amparo/app/controllers"
)

type Router interface {
	InstallRouter(app *fiber.App)
}

func InstallRouter(app *fiber.App, deps *controllers.Deps) {
	// HttpRouter goes first: it initializes the session store, oauth providers
	// and the global UserContext middleware the API guards depend on.
	web := NewHttpRouter(deps)
	setup(app, web, NewApiRouter(deps, web.csrf))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
