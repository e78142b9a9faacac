package controllers

import (
	"errors"
	"html/template"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/Amparo/app/models"
	"github.com/ManuelReschke/Amparo/internal/pkg/authstate"
	"github.com/ManuelReschke/Amparo/internal/pkg/billing"
	"github.com/ManuelReschke/Amparo/internal/pkg/constants"
	"github.com/ManuelReschke/Amparo/internal/pkg/membershipcard"
	"github.com/ManuelReschke/Amparo/internal/pkg/storage"
	"github.com/ManuelReschke/Amparo/internal/pkg/usercontext"
)

// DashboardController serves the signed-in customer area.
type DashboardController struct {
	deps *Deps
	now  func() time.Time
}

func NewDashboardController(deps *Deps) *DashboardController {
	return &DashboardController{deps: deps, now: time.Now}
}

// current returns the settled state of the caller. Guards run first, so the
// container is always present here.
func current(c *fiber.Ctx) authstate.Snapshot {
	if ct := usercontext.Container(c); ct != nil {
		return ct.Snapshot()
	}
	return usercontext.GetUserContext(c).State
}

func (dc *DashboardController) Index(c *fiber.Ctx) error {
	if c.Query("checkout") == "success" {
		if ct := usercontext.Container(c); ct != nil {
			if _, err := ct.CheckSubscription(c.UserContext()); err != nil {
				log.Warnf("[Dashboard] subscription check after checkout: %v", err)
			}
		}
	}
	snap := current(c)
	data := viewData(c, "Minha conta")
	data["State"] = snap
	data["Plans"] = billing.Plans()
	return c.Render("dashboard/index", data, "layouts/main")
}

func (dc *DashboardController) Finance(c *fiber.Ctx) error {
	summary, err := dc.paymentSummary(c)
	if err != nil {
		log.Errorf("[Dashboard] payments for %s: %v", usercontext.GetUserID(c), err)
		return flashError(c, "Não foi possível carregar seus pagamentos.", constants.RouteDashboard)
	}
	data := viewData(c, "Financeiro")
	data["Summary"] = summary
	return c.Render("dashboard/finance", data, "layouts/main")
}

func (dc *DashboardController) Card(c *fiber.Ctx) error {
	snap := current(c)
	data := viewData(c, "Carteirinha")
	card, err := membershipcard.Issue(usercontext.GetUserID(c), snap.Profile, snap.Plan, dc.now())
	if err == nil {
		data["Card"] = card
		if qr, err := membershipcard.QRDataURL(card); err == nil {
			data["QRImage"] = template.URL(qr)
		} else {
			log.Warnf("[Dashboard] qr code for %s: %v", usercontext.GetUserID(c), err)
		}
	}
	return c.Render("dashboard/card", data, "layouts/main")
}

// CardPDF downloads the printable membership card.
func (dc *DashboardController) CardPDF(c *fiber.Ctx) error {
	snap := current(c)
	card, err := membershipcard.Issue(usercontext.GetUserID(c), snap.Profile, snap.Plan, dc.now())
	if errors.Is(err, membershipcard.ErrIncomplete) {
		return flashError(c, "Você ainda não possui um plano ativo.", constants.RouteCard)
	}
	var doc []byte
	if err == nil {
		doc, err = membershipcard.PDF(card)
	}
	if err != nil {
		log.Errorf("[Dashboard] card pdf for %s: %v", usercontext.GetUserID(c), err)
		return flashError(c, "Não foi possível gerar a carteirinha.", constants.RouteCard)
	}
	c.Attachment(card.FileName)
	c.Set(fiber.HeaderContentType, "application/pdf")
	return c.Send(doc)
}

// UpdateProfileForm handles the profile form on the dashboard page.
func (dc *DashboardController) UpdateProfileForm(c *fiber.Ctx) error {
	update := models.ProfileUpdate{}
	for field, dst := range map[string]**string{
		"full_name": &update.FullName,
		"cpf":       &update.CPF,
		"phone":     &update.Phone,
	} {
		if c.Request().PostArgs().Has(field) {
			val := c.FormValue(field)
			*dst = &val
		}
	}
	if err := dc.applyProfileUpdate(c, update); err != nil {
		return flashError(c, profileErrorMessage(err), constants.RouteDashboard)
	}
	return flashSuccess(c, "Perfil atualizado!", constants.RouteDashboard)
}

func (dc *DashboardController) applyProfileUpdate(c *fiber.Ctx, update models.ProfileUpdate) error {
	fields, err := update.Fields()
	if err != nil {
		return err
	}
	if len(fields) == 0 {
		return nil
	}
	if err := dc.deps.Repos.Profile.Update(c.UserContext(), usercontext.GetUserID(c), fields); err != nil {
		return err
	}
	refreshProfile(c)
	return nil
}

func profileErrorMessage(err error) string {
	if errors.Is(err, models.ErrInvalidCPF) {
		return "CPF deve ter 11 dígitos."
	}
	return "Não foi possível atualizar o perfil."
}

// API

func (dc *DashboardController) GetProfile(c *fiber.Ctx) error {
	snap := current(c)
	return c.JSON(fiber.Map{
		"profile": snap.Profile,
		"plan":    snap.Plan,
		"flags":   snap.Flags,
	})
}

func (dc *DashboardController) UpdateProfile(c *fiber.Ctx) error {
	var update models.ProfileUpdate
	if err := c.BodyParser(&update); err != nil {
		return badRequest(c, "Corpo da requisição inválido.")
	}
	update.AvatarURL = nil
	if err := dc.applyProfileUpdate(c, update); err != nil {
		log.Warnf("[Dashboard] profile update for %s: %v", usercontext.GetUserID(c), err)
		return badRequest(c, profileErrorMessage(err))
	}
	return dc.GetProfile(c)
}

func (dc *DashboardController) UploadAvatar(c *fiber.Ctx) error {
	url, err := saveUpload(c, dc.deps.Images, "avatar", storage.KindAvatar)
	if err != nil {
		return uploadError(c, err)
	}
	snap := current(c)
	if err := dc.deps.Repos.Profile.Update(c.UserContext(), usercontext.GetUserID(c), map[string]interface{}{"avatar_url": &url}); err != nil {
		dc.deps.Images.Remove(c.UserContext(), url)
		return internalError(c, "store avatar", err)
	}
	if snap.Profile != nil && snap.Profile.AvatarURL != nil {
		dc.deps.Images.Remove(c.UserContext(), *snap.Profile.AvatarURL)
	}
	refreshProfile(c)
	return c.JSON(fiber.Map{"avatar_url": url})
}

func (dc *DashboardController) paymentSummary(c *fiber.Ctx) (models.PaymentSummary, error) {
	payments, err := dc.deps.Repos.Payment.ListByUser(c.UserContext(), usercontext.GetUserID(c))
	if err != nil {
		return models.PaymentSummary{}, err
	}
	return models.SummarizePayments(payments), nil
}

func (dc *DashboardController) Payments(c *fiber.Ctx) error {
	summary, err := dc.paymentSummary(c)
	if err != nil {
		return internalError(c, "list payments", err)
	}
	return c.JSON(summary)
}

func (dc *DashboardController) GetCard(c *fiber.Ctx) error {
	snap := current(c)
	card, err := membershipcard.Issue(usercontext.GetUserID(c), snap.Profile, snap.Plan, dc.now())
	if errors.Is(err, membershipcard.ErrIncomplete) {
		return apiError(c, fiber.StatusConflict, "no_plan", "Você ainda não possui um plano ativo.")
	}
	if err != nil {
		return internalError(c, "issue card", err)
	}
	return c.JSON(card)
}

func (dc *DashboardController) Subscription(c *fiber.Ctx) error {
	snap := current(c)
	return c.JSON(fiber.Map{
		"subscription":            snap.Subscription,
		"is_subscription_loading": snap.IsSubscriptionLoading,
	})
}

// CheckSubscription asks the provider now. On failure the last known status is returned.
func (dc *DashboardController) CheckSubscription(c *fiber.Ctx) error {
	ct := usercontext.Container(c)
	if ct == nil {
		return apiError(c, fiber.StatusUnauthorized, "unauthorized", "Sessão expirada.")
	}
	status, err := ct.CheckSubscription(c.UserContext())
	resp := fiber.Map{"subscription": status}
	if err != nil {
		resp["error"] = "check_failed"
	}
	return c.JSON(resp)
}

type checkoutRequest struct {
	Plan string `json:"plan" form:"plan"`
}

// Checkout starts a subscription checkout for one of the catalogue plans.
func (dc *DashboardController) Checkout(c *fiber.Ctx) error {
	if dc.deps.Billing == nil || !dc.deps.Billing.Configured() {
		return apiError(c, fiber.StatusServiceUnavailable, "billing_unavailable", "Pagamentos indisponíveis no momento.")
	}
	var req checkoutRequest
	if err := c.BodyParser(&req); err != nil || req.Plan == "" {
		return badRequest(c, "Informe o plano.")
	}
	if billing.PriceIDOf(req.Plan) == "" {
		return badRequest(c, "Plano desconhecido.")
	}

	base := dc.deps.BaseURL + constants.RouteDashboard
	url, err := dc.deps.Billing.CreateCheckoutSession(c.UserContext(), usercontext.GetEmail(c), req.Plan,
		base+"?checkout=success", base+"?checkout=cancel")
	if err != nil {
		return internalError(c, "create checkout", err)
	}
	return c.JSON(fiber.Map{"url": url})
}

// Portal opens the provider's customer portal.
func (dc *DashboardController) Portal(c *fiber.Ctx) error {
	if dc.deps.Billing == nil || !dc.deps.Billing.Configured() {
		return apiError(c, fiber.StatusServiceUnavailable, "billing_unavailable", "Pagamentos indisponíveis no momento.")
	}
	url, err := dc.deps.Billing.CreatePortalSession(c.UserContext(), usercontext.GetEmail(c), dc.deps.BaseURL+constants.RouteFinance)
	if errors.Is(err, billing.ErrNoCustomer) {
		return apiError(c, fiber.StatusNotFound, "no_customer", "Nenhuma assinatura encontrada.")
	}
	if err != nil {
		return internalError(c, "create portal", err)
	}
	return c.JSON(fiber.Map{"url": url})
}
