package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	gothfiber "github.com/shareed2k/goth_fiber"

	"github.com/ManuelReschke/Amparo/internal/pkg/constants"
	"github.com/ManuelReschke/Amparo/internal/pkg/identity"
	"github.com/ManuelReschke/Amparo/internal/pkg/session"
)

// OAuthController completes social sign-in. Accounts are matched on the
// provider-verified email and created on first use.
type OAuthController struct {
	deps *Deps
}

func NewOAuthController(deps *Deps) *OAuthController {
	return &OAuthController{deps: deps}
}

func (oc *OAuthController) Callback(c *fiber.Ctx) error {
	u, err := gothfiber.CompleteUserAuth(c)
	if err != nil {
		log.Warnf("[OAuth] complete auth: %v", err)
		return flashError(c, "Não foi possível entrar com o Google.", constants.RouteLogin)
	}
	if u.Email == "" {
		return flashError(c, "Sua conta Google não informou um email.", constants.RouteLogin)
	}

	key := session.NewAuthKey()
	name := firstNonEmpty(u.Name, u.FirstName+" "+u.LastName, u.NickName)
	if _, err := oc.deps.Identity.SignInWithEmail(c.UserContext(), key, u.Email, name); err != nil {
		log.Errorf("[OAuth] sign in %s: %v", u.Email, err)
		return flashError(c, identity.UserMessage(err), constants.RouteLogin)
	}
	if err := bindBrowser(c, oc.deps, key); err != nil {
		log.Errorf("[OAuth] session unavailable: %v", err)
		return flashError(c, genericProblem, constants.RouteLogin)
	}
	return c.Redirect(constants.RouteDashboard, fiber.StatusSeeOther)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" && v != " " {
			return v
		}
	}
	return ""
}
