package controllers

import (
	"context"
	"errors"
	"net/url"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/Amparo/app/models"
	"github.com/ManuelReschke/Amparo/internal/pkg/constants"
	"github.com/ManuelReschke/Amparo/internal/pkg/entitlements"
	"github.com/ManuelReschke/Amparo/internal/pkg/identity"
	"github.com/ManuelReschke/Amparo/internal/pkg/mail"
	"github.com/ManuelReschke/Amparo/internal/pkg/usercontext"
)

var (
	errDependentLimit   = errors.New("Limite de dependentes do seu plano atingido")
	errNotYourDependent = errors.New("Dependente não encontrado")
)

// DependentsController lets a titular manage the dependents on their plan.
// Every route is titular-only.
type DependentsController struct {
	deps  *Deps
	locks titularLocks
}

// titularLocks serializes dependent changes per titular so the plan limit
// check and the insert cannot interleave.
type titularLocks struct {
	mu      sync.Mutex
	entries map[string]*titularLock
}

type titularLock struct {
	sync.Mutex
	refs int
}

func (l *titularLocks) lock(id string) func() {
	l.mu.Lock()
	if l.entries == nil {
		l.entries = map[string]*titularLock{}
	}
	e, ok := l.entries[id]
	if !ok {
		e = &titularLock{}
		l.entries[id] = e
	}
	e.refs++
	l.mu.Unlock()

	e.Lock()
	return func() {
		e.Unlock()
		l.mu.Lock()
		if e.refs--; e.refs == 0 {
			delete(l.entries, id)
		}
		l.mu.Unlock()
	}
}

func NewDependentsController(deps *Deps) *DependentsController {
	return &DependentsController{deps: deps}
}

type newDependent struct {
	FullName string `json:"full_name" form:"full_name"`
	Email    string `json:"email" form:"email"`
	CPF      string `json:"cpf" form:"cpf"`
}

func (dc *DependentsController) Page(c *fiber.Ctx) error {
	snap := current(c)
	list, err := dc.deps.Repos.Profile.ListDependents(c.UserContext(), usercontext.GetUserID(c))
	if err != nil {
		log.Errorf("[Dependents] list for %s: %v", usercontext.GetUserID(c), err)
		return flashError(c, "Não foi possível carregar seus dependentes.", constants.RouteDashboard)
	}
	data := viewData(c, "Dependentes")
	data["Dependents"] = list
	data["Plan"] = snap.Plan
	data["CanAdd"] = entitlements.CanAddDependent(snap.Plan, len(list))
	return c.Render("dashboard/dependents", data, "layouts/main")
}

func (dc *DependentsController) AddForm(c *fiber.Ctx) error {
	var in newDependent
	if err := c.BodyParser(&in); err != nil {
		return flashError(c, "Dados inválidos.", constants.RouteDependents)
	}
	if _, err := dc.add(c, in); err != nil {
		return flashError(c, dependentMessage(err), constants.RouteDependents)
	}
	return flashSuccess(c, "Dependente adicionado. Um email foi enviado para o dependente acessar a conta.", constants.RouteDependents)
}

func (dc *DependentsController) RemoveForm(c *fiber.Ctx) error {
	if err := dc.remove(c, c.Params("id")); err != nil {
		return flashError(c, dependentMessage(err), constants.RouteDependents)
	}
	return flashSuccess(c, "O dependente foi desvinculado do seu plano.", constants.RouteDependents)
}

// API

func (dc *DependentsController) List(c *fiber.Ctx) error {
	snap := current(c)
	list, err := dc.deps.Repos.Profile.ListDependents(c.UserContext(), usercontext.GetUserID(c))
	if err != nil {
		return internalError(c, "list dependents", err)
	}
	max := 0
	if snap.Plan != nil {
		max = snap.Plan.MaxDependents
	}
	return c.JSON(fiber.Map{
		"dependents":     list,
		"max_dependents": max,
		"can_add":        entitlements.CanAddDependent(snap.Plan, len(list)),
	})
}

func (dc *DependentsController) Add(c *fiber.Ctx) error {
	var in newDependent
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "Corpo da requisição inválido.")
	}
	profile, err := dc.add(c, in)
	switch {
	case errors.Is(err, errDependentLimit):
		return apiError(c, fiber.StatusConflict, "dependent_limit", err.Error())
	case errors.Is(err, identity.ErrEmailTaken):
		return apiError(c, fiber.StatusConflict, "email_taken", dependentMessage(err))
	case errors.Is(err, models.ErrInvalidCPF), errors.Is(err, identity.ErrMissingFields):
		return badRequest(c, dependentMessage(err))
	case err != nil:
		return internalError(c, "add dependent", err)
	}
	return c.Status(fiber.StatusCreated).JSON(profile)
}

func (dc *DependentsController) Remove(c *fiber.Ctx) error {
	err := dc.remove(c, c.Params("id"))
	switch {
	case errors.Is(err, errNotYourDependent):
		return notFound(c, err.Error())
	case err != nil:
		return internalError(c, "remove dependent", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// add creates the dependent's account with a random password, links the new
// profile to the caller and mails a link where the dependent sets a password.
// The profile is created already linked, so a failure leaves no account behind.
func (dc *DependentsController) add(c *fiber.Ctx, in newDependent) (*models.Profile, error) {
	ctx := c.UserContext()
	titularID := usercontext.GetUserID(c)
	snap := current(c)

	cpf := models.NullableDigits(in.CPF)
	if cpf != nil && len(*cpf) != 11 {
		return nil, models.ErrInvalidCPF
	}

	unlock := dc.locks.lock(titularID)
	defer unlock()

	count, err := dc.deps.Repos.Profile.CountDependents(ctx, titularID)
	if err != nil {
		return nil, err
	}
	if !entitlements.CanAddDependent(snap.Plan, int(count)) {
		return nil, errDependentLimit
	}

	password, err := models.GenerateTemporaryPassword()
	if err != nil {
		return nil, err
	}
	var profile *models.Profile
	account, err := dc.deps.Identity.SignUp(ctx, in.Email, password, in.FullName, func(p *models.Profile) {
		p.Role = models.RoleDependente
		p.TitularID = &titularID
		p.CPF = cpf
		if snap.Plan != nil {
			p.PlanID = &snap.Plan.ID
		}
		profile = p
	})
	if err != nil {
		return nil, err
	}

	titularName := ""
	if snap.Profile != nil {
		titularName = snap.Profile.FullName
	}
	dc.invite(ctx, account.Email, profile.FullName, titularName)
	log.Infof("[Dependents] %s added dependent %s", titularID, account.ID)
	return profile, nil
}

func (dc *DependentsController) invite(ctx context.Context, email, name, titular string) {
	token, err := dc.deps.Identity.RequestPasswordRecovery(ctx, email)
	if err != nil || token == "" {
		log.Errorf("[Dependents] recovery token for %s: %v", email, err)
		return
	}
	link := dc.deps.BaseURL + constants.RouteResetPassword + "?token=" + url.QueryEscape(token)
	msg, err := mail.DependentInvitation(name, titular, link)
	if err != nil {
		log.Errorf("[Dependents] render invitation: %v", err)
		return
	}
	if err := mail.Deliver(dc.deps.Mailer, email, msg); err != nil {
		log.Errorf("[Dependents] send invitation to %s: %v", email, err)
	}
}

// remove unlinks a dependent. The dependent's account is kept and becomes a
// titular; plan_id is left alone since only billing changes it.
func (dc *DependentsController) remove(c *fiber.Ctx, dependentID string) error {
	ctx := c.UserContext()
	unlock := dc.locks.lock(usercontext.GetUserID(c))
	defer unlock()

	profile, err := dc.deps.Repos.Profile.GetByID(ctx, dependentID)
	if isNotFound(err) {
		return errNotYourDependent
	}
	if err != nil {
		return err
	}
	if profile.TitularID == nil || *profile.TitularID != usercontext.GetUserID(c) {
		return errNotYourDependent
	}

	var none *string
	fields := map[string]interface{}{
		"titular_id": none,
		"role":       models.RoleTitular,
	}
	if err := dc.deps.Repos.Profile.Update(ctx, dependentID, fields); err != nil {
		return err
	}
	if dc.deps.Registry != nil {
		dc.deps.Registry.RefreshProfileForUser(ctx, dependentID)
	}
	return nil
}

func dependentMessage(err error) string {
	switch {
	case errors.Is(err, errDependentLimit), errors.Is(err, errNotYourDependent):
		return err.Error()
	case errors.Is(err, models.ErrInvalidCPF):
		return "CPF deve ter 11 dígitos."
	case errors.Is(err, identity.ErrEmailTaken):
		return "Este email já está cadastrado."
	case errors.Is(err, identity.ErrMissingFields):
		return "Informe nome e email do dependente."
	}
	log.Errorf("[Dependents] %v", err)
	return "Erro ao salvar o dependente."
}
