package router

import (
	"net/http"

	"support-chat-backend/internal/api"
	"support-chat-backend/internal/api/endpoints"
	"support-chat-backend/internal/api/middleware"
)

func ConversationPublicRoutes(prefix string) api.RouteRegistrar {
	return func(mux *http.ServeMux, s *api.APIServer) {
		convEndpoints := endpoints.NewConversationEndpoints(s.Conversations(), prefix)

		mux.HandleFunc(prefix+"/conversations", s.MakeHTTPHandleFunc(convEndpoints.Conversations))
		mux.HandleFunc(prefix+"/conversations/", s.MakeHTTPHandleFunc(convEndpoints.Conversation))
	}
}

func ConversationAgentRoutes(prefix string) api.RouteRegistrar {
	return func(mux *http.ServeMux, s *api.APIServer) {
		agentEndpoints := endpoints.NewAgentEndpoints(s.Conversations(), prefix)
		requireAgent := middleware.RequireAgent(s.Auth())

		mux.HandleFunc(prefix+"/conversations", s.MakeHTTPHandleFunc(agentEndpoints.Dashboard, requireAgent))
		mux.HandleFunc(prefix+"/conversations/", s.MakeHTTPHandleFunc(agentEndpoints.Conversation, requireAgent))
	}
}

func ConversationWebsocketRoutes(prefix string) api.RouteRegistrar {
	return func(mux *http.ServeMux, s *api.APIServer) {
		gatewayEndpoints := endpoints.NewGatewayEndpoints(s.Gateway(), prefix)

		mux.HandleFunc(prefix+"/queue", s.MakeHTTPHandleFunc(gatewayEndpoints.Queue))
		mux.HandleFunc(prefix+"/agents/", s.MakeHTTPHandleFunc(gatewayEndpoints.Agent))
		mux.HandleFunc(prefix+"/conversations/", s.MakeHTTPHandleFunc(gatewayEndpoints.Conversation))
	}
}
