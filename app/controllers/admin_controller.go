package controllers

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/Amparo/app/models"
	"github.com/ManuelReschke/Amparo/internal/pkg/entitlements"
	"github.com/ManuelReschke/Amparo/internal/pkg/usercontext"
)

// AdminController serves the back-office shell and the user administration,
// which is reserved to administrators.
type AdminController struct {
	deps *Deps
	now  func() time.Time
}

func NewAdminController(deps *Deps) *AdminController {
	return &AdminController{deps: deps, now: time.Now}
}

type adminStats struct {
	Obituaries int64  `json:"obituaries"`
	Partners   int64  `json:"partners"`
	Users      *int64 `json:"users,omitempty"`
}

// stats counts content. The user count is only shown to administrators.
func (ac *AdminController) stats(c *fiber.Ctx) (adminStats, error) {
	ctx := c.UserContext()
	var s adminStats
	var err error
	if s.Obituaries, err = ac.deps.Repos.Obituary.Count(ctx); err != nil {
		return s, err
	}
	if s.Partners, err = ac.deps.Repos.Partner.Count(ctx); err != nil {
		return s, err
	}
	if usercontext.IsBackOfficeAdmin(c) {
		users, err := ac.deps.Repos.Profile.Count(ctx)
		if err != nil {
			return s, err
		}
		s.Users = &users
	}
	return s, nil
}

func (ac *AdminController) Index(c *fiber.Ctx) error {
	data := viewData(c, "Administração")
	s, err := ac.stats(c)
	if err != nil {
		log.Errorf("[Admin] stats: %v", err)
	}
	data["Stats"] = s
	return c.Render("admin/index", data, "layouts/main")
}

func (ac *AdminController) UsersPage(c *fiber.Ctx) error {
	data := viewData(c, "Usuários")
	users, err := ac.listUsers(c)
	if err != nil {
		log.Errorf("[Admin] list users: %v", err)
	}
	data["Users"] = users
	return c.Render("admin/users", data, "layouts/main")
}

// API

func (ac *AdminController) Stats(c *fiber.Ctx) error {
	s, err := ac.stats(c)
	if err != nil {
		return internalError(c, "admin stats", err)
	}
	return c.JSON(s)
}

type adminUser struct {
	models.Profile
	AdminRole models.AdminRole `json:"admin_role"`
}

func (ac *AdminController) listUsers(c *fiber.Ctx) ([]adminUser, error) {
	ctx := c.UserContext()
	offset, limit := pagination(c)
	profiles, err := ac.deps.Repos.Profile.List(ctx, offset, limit)
	if err != nil {
		return nil, err
	}
	records, err := ac.deps.Repos.UserRole.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	byUser := map[string][]models.AdminRole{}
	for _, r := range records {
		byUser[r.UserID] = append(byUser[r.UserID], r.Role)
	}

	users := make([]adminUser, 0, len(profiles))
	for _, p := range profiles {
		users = append(users, adminUser{Profile: p, AdminRole: entitlements.HighestAdminRole(byUser[p.ID])})
	}
	return users, nil
}

func (ac *AdminController) Users(c *fiber.Ctx) error {
	users, err := ac.listUsers(c)
	if err != nil {
		return internalError(c, "list users", err)
	}
	return c.JSON(fiber.Map{"users": users})
}

type setRoleRequest struct {
	Role string `json:"role" form:"role"`
}

// SetRole replaces the user's administrative role. "none" revokes both roles.
func (ac *AdminController) SetRole(c *fiber.Ctx) error {
	var req setRoleRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Corpo da requisição inválido.")
	}
	role := models.AdminRole(strings.TrimSpace(req.Role))
	if req.Role == "none" {
		role = models.AdminRoleNone
	}
	if role != models.AdminRoleNone && !role.Valid() {
		return badRequest(c, "Role inválida.")
	}

	ctx := c.UserContext()
	userID := c.Params("id")
	if _, err := ac.deps.Repos.Profile.GetByID(ctx, userID); err != nil {
		if isNotFound(err) {
			return notFound(c, "Usuário não encontrado.")
		}
		return internalError(c, "get user", err)
	}

	for _, r := range []models.AdminRole{models.AdminRoleAdmin, models.AdminRoleEditor} {
		if err := ac.deps.Repos.UserRole.Revoke(ctx, userID, r); err != nil {
			return internalError(c, "revoke role", err)
		}
	}
	if role != models.AdminRoleNone {
		if err := ac.deps.Repos.UserRole.Grant(ctx, userID, role); err != nil {
			return internalError(c, "grant role", err)
		}
	}
	log.Infof("[Admin] %s set role of %s to %q", usercontext.GetUserID(c), userID, role)

	if ac.deps.Registry != nil {
		ac.deps.Registry.RefreshAdminRoleForUser(ctx, userID)
	}
	return c.JSON(fiber.Map{"user_id": userID, "admin_role": role})
}

func parseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// parseLocalDateTime accepts the value of an <input type="datetime-local">.
func parseLocalDateTime(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{"2006-01-02T15:04", "2006-01-02T15:04:05", time.RFC3339} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return &t, nil
		}
	}
	return nil, errors.New("invalid date time")
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
