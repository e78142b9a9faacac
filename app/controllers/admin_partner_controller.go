package controllers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/Amparo/app/models"
	"github.com/ManuelReschke/Amparo/internal/pkg/storage"
)

type partnerInput struct {
	Name         string `json:"name" form:"name"`
	Category     string `json:"category" form:"category"`
	Description  string `json:"description" form:"description"`
	DiscountText string `json:"discount_text" form:"discount_text"`
	WebsiteURL   string `json:"website_url" form:"website_url"`
	City         string `json:"city" form:"city"`
	State        string `json:"state" form:"state"`
	IsActive     *bool  `json:"is_active" form:"is_active"`
}

func (in partnerInput) apply(p *models.Partner) string {
	name, category := optional(in.Name), optional(in.Category)
	if name == nil || category == nil {
		return "Preencha nome e categoria."
	}
	p.Name = *name
	p.Category = *category
	p.Description = optional(in.Description)
	p.DiscountText = optional(in.DiscountText)
	p.WebsiteURL = optional(in.WebsiteURL)
	p.City = optional(in.City)
	p.State = optional(strings.ToUpper(in.State))
	if in.IsActive != nil {
		p.IsActive = *in.IsActive
	}
	p.Slug = models.Slugify(p.Name)
	return ""
}

func (ac *AdminController) ListPartners(c *fiber.Ctx) error {
	list, err := ac.deps.Repos.Partner.ListAll(c.UserContext())
	if err != nil {
		return internalError(c, "list partners", err)
	}
	return c.JSON(fiber.Map{"partners": list})
}

func (ac *AdminController) CreatePartner(c *fiber.Ctx) error {
	return ac.savePartner(c, &models.Partner{IsActive: true}, true)
}

func (ac *AdminController) UpdatePartner(c *fiber.Ctx) error {
	p, err := ac.deps.Repos.Partner.GetByID(c.UserContext(), c.Params("id"))
	if isNotFound(err) {
		return notFound(c, "Parceiro não encontrado.")
	}
	if err != nil {
		return internalError(c, "get partner", err)
	}
	return ac.savePartner(c, p, false)
}

func (ac *AdminController) savePartner(c *fiber.Ctx, p *models.Partner, create bool) error {
	ctx := c.UserContext()
	var in partnerInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "Corpo da requisição inválido.")
	}
	if msg := in.apply(p); msg != "" {
		return badRequest(c, msg)
	}
	if err := p.Validate(); err != nil {
		return badRequest(c, "Dados do parceiro inválidos.")
	}

	taken, err := ac.deps.Repos.Partner.SlugExistsExceptID(ctx, p.Slug, p.ID)
	if err != nil {
		return internalError(c, "check partner slug", err)
	}
	if taken {
		return apiError(c, fiber.StatusConflict, "slug_taken", "Já existe um parceiro com este nome.")
	}

	logo, err := optionalUpload(c, ac.deps.Images, "logo", storage.KindPartnerLogo)
	if err != nil {
		return uploadError(c, err)
	}
	var oldLogo *string
	if logo != "" {
		oldLogo = p.LogoURL
		p.LogoURL = &logo
	}

	if create {
		err = ac.deps.Repos.Partner.Create(ctx, p)
	} else {
		err = ac.deps.Repos.Partner.Update(ctx, p)
	}
	if err != nil {
		if logo != "" {
			ac.deps.Images.Remove(ctx, logo)
		}
		return internalError(c, "save partner", err)
	}
	if oldLogo != nil {
		ac.deps.Images.Remove(ctx, *oldLogo)
	}

	status := fiber.StatusOK
	if create {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(p)
}

func (ac *AdminController) DeletePartner(c *fiber.Ctx) error {
	ctx := c.UserContext()
	p, err := ac.deps.Repos.Partner.GetByID(ctx, c.Params("id"))
	if isNotFound(err) {
		return notFound(c, "Parceiro não encontrado.")
	}
	if err != nil {
		return internalError(c, "get partner", err)
	}
	if err := ac.deps.Repos.Partner.Delete(ctx, p.ID); err != nil {
		return internalError(c, "delete partner", err)
	}
	if p.LogoURL != nil && ac.deps.Images != nil {
		ac.deps.Images.Remove(ctx, *p.LogoURL)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
