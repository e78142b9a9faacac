package controllers

import (
	"context"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/Amparo/internal/pkg/access"
	"github.com/ManuelReschke/Amparo/internal/pkg/constants"
	"github.com/ManuelReschke/Amparo/internal/pkg/env"
	"github.com/ManuelReschke/Amparo/internal/pkg/identity"
	"github.com/ManuelReschke/Amparo/internal/pkg/mail"
	"github.com/ManuelReschke/Amparo/internal/pkg/oauth"
	"github.com/ManuelReschke/Amparo/internal/pkg/session"
	"github.com/ManuelReschke/Amparo/internal/pkg/usercontext"
)

const genericProblem = "Houve um problema. Tente novamente."

// AuthController serves the sign-in, sign-up and recovery pages.
type AuthController struct {
	deps *Deps
}

func NewAuthController(deps *Deps) *AuthController {
	return &AuthController{deps: deps}
}

func (ac *AuthController) ShowLogin(c *fiber.Ctx) error {
	if usercontext.IsLoggedIn(c) {
		return c.Redirect(access.SafeReturnPath(c.Query("from"), constants.RouteDashboard), fiber.StatusSeeOther)
	}
	data := viewData(c, "Entrar")
	data["From"] = c.Query("from")
	data["GoogleEnabled"] = oauth.Enabled()
	return c.Render("auth/login", data, "layouts/main")
}

func (ac *AuthController) Login(c *fiber.Ctx) error {
	from := c.FormValue("from")
	back := loginPath(from)

	key := session.NewAuthKey()
	email := strings.TrimSpace(c.FormValue("email"))
	if _, err := ac.deps.Identity.SignIn(c.UserContext(), key, email, c.FormValue("password")); err != nil {
		return flashError(c, identity.UserMessage(err), back)
	}
	if err := bindBrowser(c, ac.deps, key); err != nil {
		log.Errorf("[Auth] session unavailable: %v", err)
		return flashError(c, genericProblem, back)
	}
	return flashSuccess(c, "Bem-vindo de volta!", access.SafeReturnPath(from, constants.RouteDashboard))
}

func (ac *AuthController) ShowSignup(c *fiber.Ctx) error {
	if usercontext.IsLoggedIn(c) {
		return c.Redirect(constants.RouteDashboard, fiber.StatusSeeOther)
	}
	data := viewData(c, "Cadastro")
	data["HCaptchaSitekey"] = env.GetEnv("HCAPTCHA_SITEKEY", "")
	return c.Render("auth/signup", data, "layouts/main")
}

// Signup creates the account with its titular profile and signs the browser in.
func (ac *AuthController) Signup(c *fiber.Ctx) error {
	ctx := c.UserContext()

	if ac.deps.Captcha != nil && ac.deps.Captcha.Enabled() {
		ok, err := ac.deps.Captcha.Verify(ctx, c.FormValue("h-captcha-response"))
		if err != nil || !ok {
			log.Warnf("[Auth] captcha rejected: %v", err)
			return flashError(c, "Confirme que você não é um robô.", constants.RouteSignup)
		}
	}

	if c.FormValue("password") != c.FormValue("password_confirm") {
		return flashError(c, "As senhas não coincidem.", constants.RouteSignup)
	}

	email := c.FormValue("email")
	account, err := ac.deps.Identity.SignUp(ctx, email, c.FormValue("password"), c.FormValue("full_name"))
	if err != nil {
		return flashError(c, identity.UserMessage(err), constants.RouteSignup)
	}

	key := session.NewAuthKey()
	if _, err := ac.deps.Identity.SignIn(ctx, key, account.Email, c.FormValue("password")); err != nil {
		return flashError(c, identity.UserMessage(err), constants.RouteLogin)
	}
	if err := bindBrowser(c, ac.deps, key); err != nil {
		log.Errorf("[Auth] session unavailable after signup of %s: %v", account.ID, err)
		return flashSuccess(c, "Conta criada! Faça login para continuar.", constants.RouteLogin)
	}
	return flashSuccess(c, "Conta criada com sucesso!", constants.RouteDashboard)
}

func (ac *AuthController) ShowForgotPassword(c *fiber.Ctx) error {
	return c.Render("auth/forgot", viewData(c, "Recuperar senha"), "layouts/main")
}

// ForgotPassword mails a recovery link. The response never reveals whether the email exists.
func (ac *AuthController) ForgotPassword(c *fiber.Ctx) error {
	email := strings.TrimSpace(c.FormValue("email"))
	token, err := ac.deps.Identity.RequestPasswordRecovery(c.UserContext(), email)
	if err != nil {
		log.Errorf("[Auth] password recovery for %q: %v", email, err)
		return flashError(c, genericProblem, constants.RouteForgotPassword)
	}
	if token != "" {
		link := ac.deps.BaseURL + constants.RouteResetPassword + "?token=" + url.QueryEscape(token)
		if msg, err := mail.PasswordRecovery(link); err != nil {
			log.Errorf("[Auth] render recovery mail: %v", err)
		} else if err := mail.Deliver(ac.deps.Mailer, email, msg); err != nil {
			log.Errorf("[Auth] send recovery mail: %v", err)
		}
	}
	return flashSuccess(c, "Se o email estiver cadastrado, você receberá um link para redefinir a senha.", constants.RouteLogin)
}

func (ac *AuthController) ShowResetPassword(c *fiber.Ctx) error {
	token := c.Query("token")
	if token == "" {
		return flashError(c, identity.ErrInvalidRecoveryToken.Error(), constants.RouteForgotPassword)
	}
	data := viewData(c, "Nova senha")
	data["Token"] = token
	return c.Render("auth/reset", data, "layouts/main")
}

func (ac *AuthController) ResetPassword(c *fiber.Ctx) error {
	token := c.FormValue("token")
	back := constants.RouteResetPassword + "?token=" + url.QueryEscape(token)

	if c.FormValue("password") != c.FormValue("password_confirm") {
		return flashError(c, "As senhas não coincidem.", back)
	}
	key := session.NewAuthKey()
	if _, err := ac.deps.Identity.ResetPassword(c.UserContext(), key, token, c.FormValue("password")); err != nil {
		return flashError(c, identity.UserMessage(err), back)
	}
	if err := bindBrowser(c, ac.deps, key); err != nil {
		log.Errorf("[Auth] session unavailable: %v", err)
		return flashSuccess(c, "Senha alterada! Faça login para continuar.", constants.RouteLogin)
	}
	return flashSuccess(c, "Senha alterada com sucesso!", constants.RouteDashboard)
}

// RequestMagicLink mails a one-time sign-in link.
func (ac *AuthController) RequestMagicLink(c *fiber.Ctx) error {
	email := strings.TrimSpace(c.FormValue("email"))
	token, err := ac.deps.Identity.RequestMagicLink(c.UserContext(), email)
	if err != nil {
		log.Errorf("[Auth] magic link for %q: %v", email, err)
		return flashError(c, genericProblem, constants.RouteLogin)
	}
	if token != "" {
		link := ac.deps.BaseURL + constants.RouteMagicLink + "?token=" + url.QueryEscape(token)
		if msg, err := mail.MagicLink(link); err != nil {
			log.Errorf("[Auth] render magic link mail: %v", err)
		} else if err := mail.Deliver(ac.deps.Mailer, email, msg); err != nil {
			log.Errorf("[Auth] send magic link mail: %v", err)
		}
	}
	return flashSuccess(c, "Enviamos um link de acesso para o seu email.", constants.RouteLogin)
}

func (ac *AuthController) MagicLinkCallback(c *fiber.Ctx) error {
	key := session.NewAuthKey()
	if _, err := ac.deps.Identity.SignInWithMagicLink(c.UserContext(), key, c.Query("token")); err != nil {
		return flashError(c, identity.UserMessage(err), constants.RouteLogin)
	}
	if err := bindBrowser(c, ac.deps, key); err != nil {
		log.Errorf("[Auth] session unavailable: %v", err)
		return flashError(c, genericProblem, constants.RouteLogin)
	}
	return c.Redirect(constants.RouteDashboard, fiber.StatusSeeOther)
}

// Logout clears local state even when the provider call fails.
func (ac *AuthController) Logout(c *fiber.Ctx) error {
	var err error
	key, ok, _ := session.ExistingAuthKey(c)
	if ct := usercontext.Container(c); ct != nil {
		err = ct.SignOut(c.UserContext())
	} else if ok {
		err = ac.deps.Identity.SignOut(c.UserContext(), key)
	}
	if err != nil {
		log.Warnf("[Auth] sign out: %v", err)
	}
	if ok && ac.deps.Registry != nil {
		ac.deps.Registry.Remove(key)
	}
	if err := session.Clear(c); err != nil {
		log.Warnf("[Auth] clear session: %v", err)
	}
	return flashSuccess(c, "Você saiu da sua conta.", constants.RouteLogin)
}

// Session returns the caller's auth state as JSON.
func (ac *AuthController) Session(c *fiber.Ctx) error {
	return c.JSON(usercontext.GetUserContext(c))
}

// Refresh reissues the session token with a new expiry.
func (ac *AuthController) Refresh(c *fiber.Ctx) error {
	key, ok, err := session.ExistingAuthKey(c)
	if err != nil {
		return internalError(c, "refresh session", err)
	}
	if !ok {
		return apiError(c, fiber.StatusUnauthorized, "unauthorized", identity.UserMessage(identity.ErrNoSession))
	}
	sess, err := ac.deps.Identity.Refresh(c.UserContext(), key)
	if err != nil {
		return apiError(c, fiber.StatusUnauthorized, "unauthorized", identity.UserMessage(err))
	}
	return c.JSON(fiber.Map{"expires_at": sess.ExpiresAt})
}

// bindBrowser stores a key the provider just signed in under a rotated
// browser session. Whatever the browser held before is signed out.
func bindBrowser(c *fiber.Ctx, deps *Deps, key string) error {
	ctx := context.WithoutCancel(c.UserContext())
	previous, err := session.BindAuthKey(c, key)
	if err != nil {
		if serr := deps.Identity.SignOut(ctx, key); serr != nil {
			log.Warnf("[Auth] drop unbound session: %v", serr)
		}
		return err
	}
	if previous == "" || previous == key {
		return nil
	}
	if err := deps.Identity.SignOut(ctx, previous); err != nil {
		log.Warnf("[Auth] sign out replaced session: %v", err)
	}
	if deps.Registry != nil {
		deps.Registry.Remove(previous)
	}
	return nil
}

func loginPath(from string) string {
	if from == "" {
		return constants.RouteLogin
	}
	return access.LoginURL(from)
}
