package constants

// Static route constants
const (
	UploadsRoute = "/uploads"
	StaticRoute  = "/static"
)

// Page routes
const (
	RouteHome           = "/"
	RouteLogin          = "/login"
	RouteSignup         = "/cadastro"
	RouteLogout         = "/logout"
	RouteForgotPassword = "/recuperar-senha"
	RouteResetPassword  = "/redefinir-senha"
	RouteMagicLink      = "/login/link"
	RouteDashboard      = "/dashboard"
	RouteDependents     = "/dashboard/dependentes"
	RouteFinance        = "/dashboard/financeiro"
	RouteCard           = "/dashboard/carteirinha"
	RouteCardPDF        = "/dashboard/carteirinha/pdf"
	RouteAdmin          = "/admin"
	RouteAdminUsers     = "/admin/usuarios"
)

// API routes
const (
	APIPrefix = "/api/v1"
)
