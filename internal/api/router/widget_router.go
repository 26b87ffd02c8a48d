package router

import (
	"net/http"

	"support-chat-backend/internal/api"
	"support-chat-backend/internal/api/endpoints"
)

func WidgetPublicRoutes(prefix string) api.RouteRegistrar {
	return func(mux *http.ServeMux, s *api.APIServer) {
		widgetEndpoints := endpoints.NewWidgetEndpoints(s.Widget())

		mux.HandleFunc(prefix+"/widget", s.MakeHTTPHandleFunc(widgetEndpoints.Settings))
	}
}
