package controllers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/sujit-baniya/flash"

	"github.com/ManuelReschke/Amparo/app/repository"
	"github.com/ManuelReschke/Amparo/internal/pkg/avatar"
	"github.com/ManuelReschke/Amparo/internal/pkg/usercontext"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func apiError(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"error":   code,
		"message": message,
	})
}

func badRequest(c *fiber.Ctx, message string) error {
	return apiError(c, fiber.StatusBadRequest, "bad_request", message)
}

func notFound(c *fiber.Ctx, message string) error {
	return apiError(c, fiber.StatusNotFound, "not_found", message)
}

func internalError(c *fiber.Ctx, where string, err error) error {
	log.Errorf("[HTTP] %s: %v", where, err)
	return apiError(c, fiber.StatusInternalServerError, "internal_error", "Erro interno. Tente novamente.")
}

func flashError(c *fiber.Ctx, message, redirect string) error {
	fm := fiber.Map{
		"type":    "error",
		"message": message,
	}
	return flash.WithError(c, fm).Redirect(redirect)
}

func flashSuccess(c *fiber.Ctx, message, redirect string) error {
	fm := fiber.Map{
		"type":    "success",
		"message": message,
	}
	return flash.WithSuccess(c, fm).Redirect(redirect)
}

// viewData is the base map every page template receives.
func viewData(c *fiber.Ctx, title string) fiber.Map {
	uc := usercontext.GetUserContext(c)
	return fiber.Map{
		"Title":      title,
		"Flash":      flash.Get(c),
		"CSRF":       csrfToken(c),
		"User":       uc,
		"IsLoggedIn": uc.IsLoggedIn,
		"AvatarURL":  avatar.URL(uc.State.Profile, uc.Email, avatar.DefaultSize),
	}
}

func csrfToken(c *fiber.Ctx) string {
	if t, ok := c.Locals("csrf").(string); ok {
		return t
	}
	return ""
}

// refreshProfile re-reads the caller's profile so the next request sees the change.
func refreshProfile(c *fiber.Ctx) {
	if ct := usercontext.Container(c); ct != nil {
		ct.RefreshProfile(c.UserContext())
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound)
}

// pagination reads ?page= and ?limit=, both 1-based and clamped.
func pagination(c *fiber.Ctx) (offset, limit int) {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	if page < 1 {
		page = 1
	}
	limit, _ = strconv.Atoi(c.Query("limit", strconv.Itoa(defaultPageSize)))
	if limit < 1 || limit > maxPageSize {
		limit = defaultPageSize
	}
	return (page - 1) * limit, limit
}
