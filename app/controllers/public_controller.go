package controllers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/Amparo/app/repository"
)

// PublicController serves content visible without signing in.
type PublicController struct {
	deps *Deps
}

func NewPublicController(deps *Deps) *PublicController {
	return &PublicController{deps: deps}
}

func (pc *PublicController) Home(c *fiber.Ctx) error {
	data := viewData(c, "Amparo")
	plans, err := pc.deps.Repos.Plan.ListActive(c.UserContext())
	if err != nil {
		log.Errorf("[Public] list plans: %v", err)
	}
	data["Plans"] = plans
	return c.Render("home", data, "layouts/main")
}

func (pc *PublicController) Plans(c *fiber.Ctx) error {
	plans, err := pc.deps.Repos.Plan.ListActive(c.UserContext())
	if err != nil {
		return internalError(c, "list plans", err)
	}
	return c.JSON(fiber.Map{"plans": plans})
}

func (pc *PublicController) Partners(c *fiber.Ctx) error {
	filter := repository.PartnerFilter{
		Category: strings.TrimSpace(c.Query("category")),
		State:    strings.ToUpper(strings.TrimSpace(c.Query("state"))),
	}
	partners, err := pc.deps.Repos.Partner.ListActive(c.UserContext(), filter)
	if err != nil {
		return internalError(c, "list partners", err)
	}
	return c.JSON(fiber.Map{"partners": partners})
}

func (pc *PublicController) Obituaries(c *fiber.Ctx) error {
	offset, limit := pagination(c)
	list, err := pc.deps.Repos.Obituary.ListPublished(c.UserContext(), offset, limit)
	if err != nil {
		return internalError(c, "list obituaries", err)
	}
	return c.JSON(fiber.Map{"obituaries": list})
}

func (pc *PublicController) Obituary(c *fiber.Ctx) error {
	o, err := pc.deps.Repos.Obituary.GetPublishedBySlug(c.UserContext(), c.Params("slug"))
	if isNotFound(err) {
		return notFound(c, "Obituário não encontrado.")
	}
	if err != nil {
		return internalError(c, "get obituary", err)
	}
	return c.JSON(o)
}
