// Package access decides whether a request may render a route class.
// Every function here is pure: the same State always yields the same Decision.
package access

import (
	"net/url"

	"github.com/ManuelReschke/Amparo/internal/pkg/constants"
	"github.com/ManuelReschke/Amparo/internal/pkg/entitlements"
)

type Outcome int

const (
	Loading Outcome = iota
	Allowed
	Redirect
)

func (o Outcome) String() string {
	switch o {
	case Allowed:
		return "allowed"
	case Redirect:
		return "redirect"
	default:
		return "loading"
	}
}

// Decision is a guard's verdict. Target is set only for Redirect.
type Decision struct {
	Outcome Outcome
	Target  string
}

var (
	allow   = Decision{Outcome: Allowed}
	loading = Decision{Outcome: Loading}
)

func redirect(target string) Decision {
	return Decision{Outcome: Redirect, Target: target}
}

// State is what a guard needs to know about the current request.
type State struct {
	AuthLoading    bool
	RoleLoading    bool
	ProfileLoading bool
	HasUser        bool
	Flags          entitlements.Flags
}

// Public always allows.
func Public() Decision {
	return allow
}

// Customer guards the dashboard. from is the path to return to after login.
func Customer(st State, requireTitular bool, from string) Decision {
	if st.AuthLoading || (requireTitular && st.HasUser && st.ProfileLoading) {
		return loading
	}
	if !st.HasUser {
		return redirect(LoginURL(from))
	}
	if requireTitular && st.Flags.IsDependente {
		return redirect(constants.RouteDashboard)
	}
	return allow
}

// Admin guards the back office. requireAdmin restricts the route to the admin
// role; editors are sent to the back-office home instead.
func Admin(st State, requireAdmin bool) Decision {
	if st.AuthLoading || (st.HasUser && st.RoleLoading) {
		return loading
	}
	if !st.HasUser {
		return redirect(constants.RouteLogin)
	}
	if requireAdmin && !st.Flags.IsBackOfficeAdmin {
		if st.Flags.IsAdminOrEditor {
			return redirect(constants.RouteAdmin)
		}
		return redirect(constants.RouteDashboard)
	}
	if !st.Flags.IsAdminOrEditor {
		return redirect(constants.RouteDashboard)
	}
	return allow
}

// LoginURL returns the login route carrying from as the post-login target.
func LoginURL(from string) string {
	if from == "" || from == constants.RouteLogin {
		return constants.RouteLogin
	}
	return constants.RouteLogin + "?from=" + url.QueryEscape(from)
}

// SafeReturnPath accepts only local absolute paths as post-login targets.
func SafeReturnPath(from, fallback string) string {
	if len(from) < 1 || from[0] != '/' || (len(from) > 1 && (from[1] == '/' || from[1] == '\\')) {
		return fallback
	}
	u, err := url.Parse(from)
	if err != nil || u.IsAbs() || u.Host != "" {
		return fallback
	}
	return from
}
