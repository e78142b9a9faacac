package router

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/csrf"

	"github.com/ManuelReschke/Amparo/app/controllers"
	"github.com/ManuelReschke/Amparo/internal/pkg/constants"
	"github.com/ManuelReschke/Amparo/internal/pkg/env"
	"github.com/ManuelReschke/Amparo/internal/pkg/middleware"
)

// csrfHeader carries the token on API calls made by the pages.
const csrfHeader = "X-Csrf-Token"

// newCSRF builds the token middleware. A nil storage keeps tokens in memory.
func newCSRF(storage fiber.Storage) fiber.Handler {
	conf := csrf.Config{
		ContextKey:     "csrf",
		CookieName:     "csrf_",
		CookieSameSite: "Lax",
		Expiration:     1 * time.Hour,
		CookieSecure:   !env.IsDev(),
		Extractor:      tokenFromHeaderOrForm,
		Next: func(c *fiber.Ctx) bool {
			return strings.HasPrefix(c.Path(), constants.APIPrefix+"/webhooks/")
		},
	}
	if storage != nil {
		conf.Storage = storage
	}
	return csrf.New(conf)
}

func tokenFromHeaderOrForm(c *fiber.Ctx) (string, error) {
	if token, err := csrf.CsrfFromHeader(csrfHeader)(c); err == nil {
		return token, nil
	}
	return csrf.CsrfFromForm("_csrf")(c)
}

func (h *HttpRouter) registerCSRFProtectedRoutes(app *fiber.App) {
	auth := controllers.NewAuthController(h.deps)
	public := controllers.NewPublicController(h.deps)
	dashboard := controllers.NewDashboardController(h.deps)
	dependents := controllers.NewDependentsController(h.deps)
	admin := controllers.NewAdminController(h.deps)

	group := app.Group("", h.csrf)
	group.Get(constants.RouteHome, public.Home)

	group.Get(constants.RouteLogin, auth.ShowLogin)
	group.Post(constants.RouteLogin, auth.Login)
	group.Get(constants.RouteMagicLink, auth.MagicLinkCallback)
	group.Post(constants.RouteMagicLink, auth.RequestMagicLink)
	group.Get(constants.RouteSignup, auth.ShowSignup)
	group.Post(constants.RouteSignup, auth.Signup)
	group.Get(constants.RouteForgotPassword, auth.ShowForgotPassword)
	group.Post(constants.RouteForgotPassword, auth.ForgotPassword)
	group.Get(constants.RouteResetPassword, auth.ShowResetPassword)
	group.Post(constants.RouteResetPassword, auth.ResetPassword)
	group.Post(constants.RouteLogout, auth.Logout)

	customer := middleware.RequireCustomer(false)
	titular := middleware.RequireCustomer(true)
	group.Get(constants.RouteDashboard, customer, dashboard.Index)
	group.Post(constants.RouteDashboard+"/perfil", customer, dashboard.UpdateProfileForm)
	group.Get(constants.RouteFinance, customer, dashboard.Finance)
	group.Get(constants.RouteCard, customer, dashboard.Card)
	group.Get(constants.RouteCardPDF, customer, dashboard.CardPDF)
	group.Get(constants.RouteDependents, titular, dependents.Page)
	group.Post(constants.RouteDependents, titular, dependents.AddForm)
	group.Post(constants.RouteDependents+"/:id/remover", titular, dependents.RemoveForm)

	group.Get(constants.RouteAdmin, middleware.RequireAdmin(false), admin.Index)
	group.Get(constants.RouteAdminUsers, middleware.RequireAdmin(true), admin.UsersPage)
}
