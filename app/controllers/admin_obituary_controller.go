package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/Amparo/app/models"
	"github.com/ManuelReschke/Amparo/internal/pkg/storage"
)

type obituaryInput struct {
	FullName        string `json:"full_name" form:"full_name"`
	BirthDate       string `json:"birth_date" form:"birth_date"`
	DeathDate       string `json:"death_date" form:"death_date"`
	Biography       string `json:"biography" form:"biography"`
	FuneralLocation string `json:"funeral_location" form:"funeral_location"`
	FuneralDatetime string `json:"funeral_datetime" form:"funeral_datetime"`
	VideoStreamURL  string `json:"video_stream_url" form:"video_stream_url"`
	VideoPassword   string `json:"video_password" form:"video_password"`
	Status          string `json:"status" form:"status"`
}

// apply copies the input onto o and derives the slug from name and year of death.
func (in obituaryInput) apply(o *models.Obituary) string {
	death, err := parseDate(in.DeathDate)
	if err != nil || death == nil {
		return "Preencha nome e data de falecimento."
	}
	birth, err := parseDate(in.BirthDate)
	if err != nil {
		return "Data de nascimento inválida."
	}
	funeral, err := parseLocalDateTime(in.FuneralDatetime)
	if err != nil {
		return "Data do velório inválida."
	}
	name := optional(in.FullName)
	if name == nil {
		return "Preencha nome e data de falecimento."
	}

	o.FullName = *name
	o.DeathDate = *death
	o.BirthDate = birth
	o.Biography = optional(in.Biography)
	o.FuneralLocation = optional(in.FuneralLocation)
	o.FuneralDatetime = funeral
	o.VideoStreamURL = optional(in.VideoStreamURL)
	o.VideoPassword = optional(in.VideoPassword)
	o.Slug = models.ObituarySlug(o.FullName, o.DeathDate)
	return ""
}

// adminObituary exposes the stream password, which the public JSON hides.
type adminObituary struct {
	models.Obituary
	VideoPassword *string `json:"video_password"`
}

func toAdminObituary(o models.Obituary) adminObituary {
	return adminObituary{Obituary: o, VideoPassword: o.VideoPassword}
}

func (ac *AdminController) ListObituaries(c *fiber.Ctx) error {
	list, err := ac.deps.Repos.Obituary.ListAll(c.UserContext())
	if err != nil {
		return internalError(c, "list obituaries", err)
	}
	out := make([]adminObituary, 0, len(list))
	for _, o := range list {
		out = append(out, toAdminObituary(o))
	}
	return c.JSON(fiber.Map{"obituaries": out})
}

func (ac *AdminController) CreateObituary(c *fiber.Ctx) error {
	o := &models.Obituary{Status: models.ObituaryDraft}
	return ac.saveObituary(c, o, true)
}

func (ac *AdminController) UpdateObituary(c *fiber.Ctx) error {
	o, err := ac.deps.Repos.Obituary.GetByID(c.UserContext(), c.Params("id"))
	if isNotFound(err) {
		return notFound(c, "Obituário não encontrado.")
	}
	if err != nil {
		return internalError(c, "get obituary", err)
	}
	return ac.saveObituary(c, o, false)
}

func (ac *AdminController) saveObituary(c *fiber.Ctx, o *models.Obituary, create bool) error {
	ctx := c.UserContext()
	var in obituaryInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "Corpo da requisição inválido.")
	}
	if msg := in.apply(o); msg != "" {
		return badRequest(c, msg)
	}
	if in.Status != "" {
		o.ApplyStatus(models.ObituaryStatus(in.Status), ac.now())
	}
	if err := o.Validate(); err != nil {
		return badRequest(c, "Dados do obituário inválidos.")
	}

	taken, err := ac.deps.Repos.Obituary.SlugExistsExceptID(ctx, o.Slug, o.ID)
	if err != nil {
		return internalError(c, "check obituary slug", err)
	}
	if taken {
		return apiError(c, fiber.StatusConflict, "slug_taken", "Já existe um obituário com este nome e ano.")
	}

	photo, err := optionalUpload(c, ac.deps.Images, "photo", storage.KindObituaryPhoto)
	if err != nil {
		return uploadError(c, err)
	}
	var oldPhoto *string
	if photo != "" {
		oldPhoto = o.PhotoURL
		o.PhotoURL = &photo
	} else if c.FormValue("remove_photo") == "true" {
		oldPhoto = o.PhotoURL
		o.PhotoURL = nil
	}

	if create {
		err = ac.deps.Repos.Obituary.Create(ctx, o)
	} else {
		err = ac.deps.Repos.Obituary.Update(ctx, o)
	}
	if err != nil {
		if photo != "" {
			ac.deps.Images.Remove(ctx, photo)
		}
		return internalError(c, "save obituary", err)
	}
	if oldPhoto != nil && ac.deps.Images != nil {
		ac.deps.Images.Remove(ctx, *oldPhoto)
	}

	status := fiber.StatusOK
	if create {
		status = fiber.StatusCreated
		log.Infof("[Admin] obituary %s created", o.Slug)
	}
	return c.Status(status).JSON(toAdminObituary(*o))
}

func (ac *AdminController) DeleteObituary(c *fiber.Ctx) error {
	ctx := c.UserContext()
	o, err := ac.deps.Repos.Obituary.GetByID(ctx, c.Params("id"))
	if isNotFound(err) {
		return notFound(c, "Obituário não encontrado.")
	}
	if err != nil {
		return internalError(c, "get obituary", err)
	}
	if err := ac.deps.Repos.Obituary.Delete(ctx, o.ID); err != nil {
		return internalError(c, "delete obituary", err)
	}
	if o.PhotoURL != nil && ac.deps.Images != nil {
		ac.deps.Images.Remove(ctx, *o.PhotoURL)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
