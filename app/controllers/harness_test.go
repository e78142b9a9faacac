package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	fibersession "github.com/gofiber/fiber/v2/middleware/session"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/Amparo/app/models"
	"github.com/ManuelReschke/Amparo/app/repository"
	"github.com/ManuelReschke/Amparo/internal/pkg/authstate"
	"github.com/ManuelReschke/Amparo/internal/pkg/billing"
	"github.com/ManuelReschke/Amparo/internal/pkg/identity"
	"github.com/ManuelReschke/Amparo/internal/pkg/middleware"
	"github.com/ManuelReschke/Amparo/internal/pkg/session"
)

const testPassword = "Senha123"

type noSubscription struct{}

func (noSubscription) CheckSubscription(context.Context, *identity.Session) (*billing.StatusResponse, error) {
	return &billing.StatusResponse{}, nil
}

type testEnv struct {
	app      *fiber.App
	svc      *identity.Service
	registry *authstate.Registry

	accounts   *memAccounts
	profiles   *memProfiles
	plans      memPlans
	roles      *memRoles
	payments   *memPayments
	obituaries *memObituaries
	partners   *memPartners
	billing    *fakeBilling
	webhooks   *fakeWebhooks
	images     *fakeImages
	mailer     *fakeMailer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	session.UseStore(fibersession.New())
	t.Cleanup(func() { session.UseStore(nil) })

	e := &testEnv{
		accounts: &memAccounts{byID: map[string]models.Account{}},
		profiles: &memProfiles{byID: map[string]models.Profile{}},
		plans: memPlans{
			"plan-individual": {ID: "plan-individual", Slug: "individual", Name: "Individual", Price: 49.9, MaxDependents: 0, IsActive: true},
			"plan-familiar":   {ID: "plan-familiar", Slug: "familiar", Name: "Familiar", Price: 89.9, MaxDependents: 1, IsActive: true},
		},
		roles:      &memRoles{roles: map[string]map[models.AdminRole]bool{}},
		payments:   &memPayments{byUser: map[string][]models.Payment{}},
		obituaries: &memObituaries{byID: map[string]models.Obituary{}},
		partners:   &memPartners{byID: map[string]models.Partner{}},
		billing:    &fakeBilling{configured: true, emails: map[string]string{}},
		webhooks:   &fakeWebhooks{seen: map[string]uint{}, processed: map[uint]error{}, failed: map[uint]error{}},
		images:     &fakeImages{},
		mailer:     &fakeMailer{},
	}

	e.svc = identity.NewService(e.accounts, e.profiles, identity.NewMemoryTokenStore(), identity.NewHub(),
		identity.Config{Secret: []byte("test-secret")})
	e.registry = authstate.NewRegistry(authstate.Deps{
		Profiles:      e.profiles,
		Plans:         e.plans,
		Roles:         e.roles,
		Subscriptions: noSubscription{},
		CheckInterval: time.Hour,
		FetchTimeout:  time.Second,
	}, func(key string) authstate.IdentityClient { return e.svc.Client(key) }, time.Minute)
	t.Cleanup(e.registry.Close)

	deps := &Deps{
		Repos: &repository.Repositories{
			Account:  e.accounts,
			Profile:  e.profiles,
			Plan:     e.plans,
			UserRole: e.roles,
			Payment:  e.payments,
			Obituary: e.obituaries,
			Partner:  e.partners,
		},
		Identity: e.svc,
		Registry: e.registry,
		Billing:  e.billing,
		Webhooks: e.webhooks,
		Images:   e.images,
		Mailer:   e.mailer,
		BaseURL:  "https://amparo.test",
	}
	e.app = newTestApp(deps, e.registry)
	return e
}

func newTestApp(deps *Deps, registry *authstate.Registry) *fiber.App {
	auth := NewAuthController(deps)
	public := NewPublicController(deps)
	dashboard := NewDashboardController(deps)
	dependents := NewDependentsController(deps)
	admin := NewAdminController(deps)
	billingCtl := NewBillingController(deps)

	app := fiber.New()
	app.Use(middleware.NewUserContextMiddleware(registry))

	app.Post("/login", auth.Login)
	app.Post("/logout", auth.Logout)
	app.Post("/recuperar-senha", auth.ForgotPassword)
	app.Post("/redefinir-senha", auth.ResetPassword)
	app.Get("/dashboard/carteirinha/pdf", middleware.RequireCustomer(false), dashboard.CardPDF)

	v1 := app.Group("/api/v1")
	v1.Post("/webhooks/stripe", billingCtl.StripeWebhook)
	v1.Get("/plans", public.Plans)
	v1.Get("/partners", public.Partners)
	v1.Get("/obituaries/:slug", public.Obituary)
	v1.Get("/auth/session", auth.Session)

	customer := middleware.RequireAPICustomer(false)
	titular := middleware.RequireAPICustomer(true)
	v1.Get("/me/profile", customer, dashboard.GetProfile)
	v1.Patch("/me/profile", customer, dashboard.UpdateProfile)
	v1.Post("/me/avatar", customer, dashboard.UploadAvatar)
	v1.Get("/me/payments", customer, dashboard.Payments)
	v1.Get("/me/card", customer, dashboard.GetCard)
	v1.Get("/me/dependents", titular, dependents.List)
	v1.Post("/me/dependents", titular, dependents.Add)
	v1.Delete("/me/dependents/:id", titular, dependents.Remove)
	v1.Post("/billing/checkout", titular, dashboard.Checkout)
	v1.Post("/billing/portal", titular, dashboard.Portal)

	staff := middleware.RequireAPIAdmin(false)
	adminOnly := middleware.RequireAPIAdmin(true)
	v1.Get("/admin/stats", staff, admin.Stats)
	v1.Post("/admin/obituaries", staff, admin.CreateObituary)
	v1.Put("/admin/obituaries/:id", staff, admin.UpdateObituary)
	v1.Post("/admin/partners", staff, admin.CreatePartner)
	v1.Get("/admin/users", adminOnly, admin.Users)
	v1.Put("/admin/users/:id/role", adminOnly, admin.SetRole)
	return app
}

// user creates an account whose profile is then adjusted by edit.
func (e *testEnv) user(t *testing.T, email string, edit func(p *models.Profile)) string {
	t.Helper()
	a, err := e.svc.SignUp(context.Background(), email, testPassword, strings.Split(email, "@")[0])
	require.NoError(t, err)
	if edit != nil {
		e.profiles.mu.Lock()
		p := e.profiles.byID[a.ID]
		edit(&p)
		e.profiles.byID[a.ID] = p
		e.profiles.mu.Unlock()
	}
	return a.ID
}

func withPlan(planID string) func(p *models.Profile) {
	return func(p *models.Profile) { p.PlanID = &planID }
}

// browser keeps cookies between requests like a real one.
type browser struct {
	t       *testing.T
	app     *fiber.App
	cookies map[string]string
}

func (e *testEnv) browser(t *testing.T) *browser {
	return &browser{t: t, app: e.app, cookies: map[string]string{}}
}

func (b *browser) do(req *http.Request) *http.Response {
	b.t.Helper()
	for name, value := range b.cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}
	resp, err := b.app.Test(req, 5000)
	require.NoError(b.t, err)
	for _, c := range resp.Cookies() {
		b.cookies[c.Name] = c.Value
	}
	return resp
}

func (b *browser) get(path string) *http.Response {
	return b.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (b *browser) form(path string, values url.Values) *http.Response {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationForm)
	return b.do(req)
}

func (b *browser) json(method, path string, body any) *http.Response {
	b.t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(b.t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return b.do(req)
}

func (b *browser) multipart(method, path string, fields map[string]string, fileField, fileName string, file []byte) *http.Response {
	b.t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(b.t, w.WriteField(k, v))
	}
	if fileField != "" {
		fw, err := w.CreateFormFile(fileField, fileName)
		require.NoError(b.t, err)
		_, err = fw.Write(file)
		require.NoError(b.t, err)
	}
	require.NoError(b.t, w.Close())
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(fiber.HeaderContentType, w.FormDataContentType())
	return b.do(req)
}

func (b *browser) login(email string) {
	b.t.Helper()
	resp := b.form("/login", url.Values{"email": {email}, "password": {testPassword}})
	require.Equal(b.t, fiber.StatusSeeOther, resp.StatusCode)
	require.NotEqual(b.t, "/login", resp.Header.Get(fiber.HeaderLocation))
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}
