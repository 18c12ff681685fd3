package server

const (
	RouteRegister       = "/api/auth/register"
	RouteLogin          = "/api/auth/login"
	RouteRefresh        = "/api/auth/refresh"
	RouteRevoke         = "/api/auth/revoke"
	RouteConfirmEmail   = "/api/auth/confirm-email"
	RouteForgotPassword = "/api/auth/forgot-password"
	RouteResetPassword  = "/api/auth/reset-password"

	RouteProfile         = "/api/profile"
	RouteProfilePassword = "/api/profile/password"
)

func (s *Server) initRoutes() {
	api := s.APIMiddleware()

	s.RegisterRouteHandler("POST "+RouteRegister, ChainMiddleware(s.RegisterHandler(), api...))
	s.RegisterRouteHandler("POST "+RouteLogin, ChainMiddleware(s.LoginHandler(), api...))
	s.RegisterRouteHandler("POST "+RouteRefresh, ChainMiddleware(s.RefreshHandler(), api...))
	s.RegisterRouteHandler("POST "+RouteConfirmEmail, ChainMiddleware(s.ConfirmEmailHandler(), api...))
	s.RegisterRouteHandler("POST "+RouteForgotPassword, ChainMiddleware(s.ForgotPasswordHandler(), api...))
	s.RegisterRouteHandler("POST "+RouteResetPassword, ChainMiddleware(s.ResetPasswordHandler(), api...))

	authed := append(s.APIMiddleware(), s.RequireBearerAuth())
	s.RegisterRouteHandler("POST "+RouteRevoke, ChainMiddleware(s.RevokeHandler(), authed...))
	s.RegisterRouteHandler("GET "+RouteProfile, ChainMiddleware(s.GetProfileHandler(), authed...))
	s.RegisterRouteHandler("PUT "+RouteProfile, ChainMiddleware(s.UpdateProfileHandler(), authed...))
	s.RegisterRouteHandler("DELETE "+RouteProfile, ChainMiddleware(s.DeleteProfileHandler(), authed...))
	s.RegisterRouteHandler("POST "+RouteProfilePassword, ChainMiddleware(s.ChangePasswordHandler(), authed...))
}
