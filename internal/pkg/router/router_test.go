package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	fibersession "github.com/gofiber/fiber/v2/middleware/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/Amparo/app/controllers"
	"github.com/ManuelReschke/Amparo/app/models"
	"github.com/ManuelReschke/Amparo/app/repository"
	"github.com/ManuelReschke/Amparo/internal/pkg/authstate"
	"github.com/ManuelReschke/Amparo/internal/pkg/billing"
	"github.com/ManuelReschke/Amparo/internal/pkg/identity"
	"github.com/ManuelReschke/Amparo/internal/pkg/session"
)

// anonymous is a browser that never signs in.
type anonymous struct{}

func (anonymous) OnAuthStateChange(identity.Listener) *identity.Subscription {
	return &identity.Subscription{}
}
func (anonymous) GetSession(context.Context) (*identity.Session, error) { return nil, nil }
func (anonymous) SignOut(context.Context) error                         { return nil }

type noProfiles struct{}

func (noProfiles) GetByID(context.Context, string) (*models.Profile, error) {
	return nil, repository.ErrNotFound
}

type noPlans struct{}

func (noPlans) GetByID(context.Context, string) (*models.Plan, error) {
	return nil, repository.ErrNotFound
}

type noRoles struct{}

func (noRoles) ListByUser(context.Context, string) ([]models.UserRole, error) { return nil, nil }

type noSubscription struct{}

func (noSubscription) CheckSubscription(context.Context, *identity.Session) (*billing.StatusResponse, error) {
	return &billing.StatusResponse{}, nil
}

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	session.UseStore(fibersession.New())
	t.Cleanup(func() { session.UseStore(nil) })

	registry := authstate.NewRegistry(authstate.Deps{
		Profiles:      noProfiles{},
		Plans:         noPlans{},
		Roles:         noRoles{},
		Subscriptions: noSubscription{},
		CheckInterval: time.Hour,
	}, func(string) authstate.IdentityClient { return anonymous{} }, time.Minute)
	t.Cleanup(registry.Close)

	deps := &controllers.Deps{Registry: registry}
	web := &HttpRouter{deps: deps, csrf: newCSRF(nil), skipSetup: true}

	app := fiber.New()
	setup(app, web, NewApiRouter(deps, web.csrf))
	return app
}

func do(t *testing.T, app *fiber.App, method, path string) *http.Response {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(method, path, nil), 5000)
	require.NoError(t, err)
	return resp
}

func TestGuardedPageRedirectsToLogin(t *testing.T) {
	app := newTestApp(t)

	resp := do(t, app, fiber.MethodGet, "/dashboard/financeiro")
	assert.Equal(t, fiber.StatusSeeOther, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get(fiber.HeaderLocation), "/login"))

	resp = do(t, app, fiber.MethodGet, "/admin")
	assert.Equal(t, fiber.StatusSeeOther, resp.StatusCode)
}

func TestGuardedAPIAnswersUnauthorized(t *testing.T) {
	app := newTestApp(t)

	assert.Equal(t, fiber.StatusUnauthorized, do(t, app, fiber.MethodGet, "/api/v1/me/profile").StatusCode)
	assert.Equal(t, fiber.StatusUnauthorized, do(t, app, fiber.MethodGet, "/api/v1/admin/stats").StatusCode)
}

func TestUnsafeMethodsNeedCSRFToken(t *testing.T) {
	app := newTestApp(t)

	assert.Equal(t, fiber.StatusForbidden, do(t, app, fiber.MethodPost, "/login").StatusCode)
	assert.Equal(t, fiber.StatusForbidden, do(t, app, fiber.MethodPost, "/api/v1/me/dependents").StatusCode)
}

func TestAPIRoot(t *testing.T) {
	app := newTestApp(t)
	assert.Equal(t, fiber.StatusOK, do(t, app, fiber.MethodGet, "/api/").StatusCode)
}
