package entitlements

import "github.com/ManuelReschke/Amparo/app/models"

// Flags are the capabilities derived from a profile and the user's
// administrative role. IsAdmin reflects the customer-facing profile role only;
// back-office access is decided by AdminRole.
type Flags struct {
	IsTitular         bool             `json:"is_titular"`
	IsDependente      bool             `json:"is_dependente"`
	IsAdmin           bool             `json:"is_admin"`
	AdminRole         models.AdminRole `json:"admin_role"`
	IsBackOfficeAdmin bool             `json:"is_backoffice_admin"`
	IsEditor          bool             `json:"is_editor"`
	IsAdminOrEditor   bool             `json:"is_admin_or_editor"`
}

// Classify derives Flags. A nil profile yields no customer-facing flags.
func Classify(profile *models.Profile, adminRole models.AdminRole) Flags {
	var f Flags
	if profile != nil {
		f.IsTitular = profile.Role == models.RoleTitular
		f.IsDependente = profile.Role == models.RoleDependente
		f.IsAdmin = profile.Role == models.RoleAdmin
	}
	if adminRole.Valid() {
		f.AdminRole = adminRole
	}
	f.IsBackOfficeAdmin = f.AdminRole == models.AdminRoleAdmin
	f.IsEditor = f.AdminRole == models.AdminRoleEditor
	f.IsAdminOrEditor = f.AdminRole != models.AdminRoleNone
	return f
}

// HighestAdminRole reduces role records with precedence admin > editor > none.
func HighestAdminRole(roles []models.AdminRole) models.AdminRole {
	best := models.AdminRoleNone
	for _, r := range roles {
		switch r {
		case models.AdminRoleAdmin:
			return models.AdminRoleAdmin
		case models.AdminRoleEditor:
			best = models.AdminRoleEditor
		}
	}
	return best
}

// CanAddDependent reports whether a titular on plan may link one more dependent.
// Without a plan no dependents are allowed.
func CanAddDependent(plan *models.Plan, current int) bool {
	if plan == nil {
		return false
	}
	return current < plan.MaxDependents
}
