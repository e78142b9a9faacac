package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/ManuelReschke/Amparo/app/controllers"
	"github.com/ManuelReschke/Amparo/internal/pkg/env"
	"github.com/ManuelReschke/Amparo/internal/pkg/middleware"
)

type ApiRouter struct {
	deps *controllers.Deps
	csrf fiber.Handler
}

func (h *ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New(limiter.Config{
		Max:        env.GetEnvInt("API_RATE_LIMIT", 120),
		Expiration: time.Minute,
	}))
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	v1 := api.Group("/v1")

	// Billing provider webhooks (no CSRF, signature-verified in controller)
	billing := controllers.NewBillingController(h.deps)
	v1.Post("/webhooks/stripe", billing.StripeWebhook)

	secured := v1.Group("", h.csrf)
	h.registerPublic(secured)
	h.registerCustomer(secured)
	h.registerAdmin(secured)
}

func (h *ApiRouter) registerPublic(v1 fiber.Router) {
	public := controllers.NewPublicController(h.deps)
	auth := controllers.NewAuthController(h.deps)

	v1.Get("/plans", public.Plans)
	v1.Get("/partners", public.Partners)
	v1.Get("/obituaries", public.Obituaries)
	v1.Get("/obituaries/:slug", public.Obituary)

	v1.Get("/auth/session", auth.Session)
	v1.Post("/auth/refresh", middleware.RequireAPICustomer(false), auth.Refresh)
}

func (h *ApiRouter) registerCustomer(v1 fiber.Router) {
	dashboard := controllers.NewDashboardController(h.deps)
	dependents := controllers.NewDependentsController(h.deps)

	me := v1.Group("/me", middleware.RequireAPICustomer(false))
	me.Get("/profile", dashboard.GetProfile)
	me.Patch("/profile", dashboard.UpdateProfile)
	me.Post("/avatar", dashboard.UploadAvatar)
	me.Get("/payments", dashboard.Payments)
	me.Get("/card", dashboard.GetCard)
	me.Get("/subscription", dashboard.Subscription)
	me.Post("/subscription/check", dashboard.CheckSubscription)

	titular := middleware.RequireAPICustomer(true)
	me.Get("/dependents", titular, dependents.List)
	me.Post("/dependents", titular, dependents.Add)
	me.Delete("/dependents/:id", titular, dependents.Remove)

	billing := v1.Group("/billing", titular)
	billing.Post("/checkout", dashboard.Checkout)
	billing.Post("/portal", dashboard.Portal)
}

func (h *ApiRouter) registerAdmin(v1 fiber.Router) {
	admin := controllers.NewAdminController(h.deps)

	group := v1.Group("/admin", middleware.RequireAPIAdmin(false))
	group.Get("/stats", admin.Stats)

	group.Get("/obituaries", admin.ListObituaries)
	group.Post("/obituaries", admin.CreateObituary)
	group.Put("/obituaries/:id", admin.UpdateObituary)
	group.Delete("/obituaries/:id", admin.DeleteObituary)

	group.Get("/partners", admin.ListPartners)
	group.Post("/partners", admin.CreatePartner)
	group.Put("/partners/:id", admin.UpdatePartner)
	group.Delete("/partners/:id", admin.DeletePartner)

	adminOnly := middleware.RequireAPIAdmin(true)
	group.Get("/users", adminOnly, admin.Users)
	group.Put("/users/:id/role", adminOnly, admin.SetRole)
}

func NewApiRouter(deps *controllers.Deps, csrf fiber.Handler) *ApiRouter {
	return &ApiRouter{deps: deps, csrf: csrf}
}
