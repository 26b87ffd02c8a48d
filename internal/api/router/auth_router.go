package router

import (
	"net/http"

	"support-chat-backend/internal/api"
	"support-chat-backend/internal/api/endpoints"
	"support-chat-backend/internal/api/middleware"
)

func AuthRoutes(prefix string) api.RouteRegistrar {
	return func(mux *http.ServeMux, s *api.APIServer) {
		authEndpoints := endpoints.NewAuthEndpoints(s.Auth())
		requireAgent := middleware.RequireAgent(s.Auth())

		mux.HandleFunc(prefix+"/auth/request-otp", s.MakeHTTPHandleFunc(authEndpoints.RequestOTP))
		mux.HandleFunc(prefix+"/auth/verify-otp", s.MakeHTTPHandleFunc(authEndpoints.VerifyOTP))
		mux.HandleFunc(prefix+"/auth/logout", s.MakeHTTPHandleFunc(authEndpoints.Logout, requireAgent))
		mux.HandleFunc(prefix+"/auth/me", s.MakeHTTPHandleFunc(authEndpoints.Me, requireAgent))
	}
}
