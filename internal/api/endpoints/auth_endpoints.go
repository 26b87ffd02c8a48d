package endpoints

import (
	"fmt"
	"net/http"
	"time"

	"support-chat-backend/internal/api/middleware"
	"support-chat-backend/internal/dto"
	"support-chat-backend/internal/model"
	authsvc "support-chat-backend/internal/service/auth"
)

type AuthEndpoints interface {
	RequestOTP(http.ResponseWriter, *http.Request) error
	VerifyOTP(http.ResponseWriter, *http.Request) error
	Logout(http.ResponseWriter, *http.Request) error
	Me(http.ResponseWriter, *http.Request) error
}

type authEndpoints struct {
	service *authsvc.Service
}

func NewAuthEndpoints(service *authsvc.Service) AuthEndpoints {
	return &authEndpoints{
		service: service,
	}
}

func (h *authEndpoints) RequestOTP(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodPost: h.handleRequestOTP,
	})
}

func (h *authEndpoints) VerifyOTP(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodPost: h.handleVerifyOTP,
	})
}

// Logout must be mounted behind middleware.RequireAgent.
func (h *authEndpoints) Logout(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodPost: h.handleLogout,
	})
}

// Me must be mounted behind middleware.RequireAgent.
func (h *authEndpoints) Me(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodGet: h.handleMe,
	})
}

func (h *authEndpoints) handleRequestOTP(w http.ResponseWriter, r *http.Request) error {
	var req dto.RequestOTPRequest
	if err := decodeBody(r, &req); err != nil {
		return err
	}

	if err := h.service.RequestOTP(r.Context(), req.Email); err != nil {
		return err
	}
	return WriteJSON(w, http.StatusOK, dto.OKResponse{OK: true})
}

func (h *authEndpoints) handleVerifyOTP(w http.ResponseWriter, r *http.Request) error {
	var req dto.VerifyOTPRequest
	if err := decodeBody(r, &req); err != nil {
		return err
	}

	result, err := h.service.VerifyOTP(r.Context(), req.Email, req.OTP)
	if err != nil {
		return err
	}

	http.SetCookie(w, sessionCookie(r, result.Token, result.ExpiresAt))
	return WriteJSON(w, http.StatusOK, dto.LoginResponse{
		OK:        true,
		Token:     result.Token,
		ExpiresAt: model.FormatTime(result.ExpiresAt),
		Agent:     toAgentResponse(result.Agent),
	})
}

func (h *authEndpoints) handleLogout(w http.ResponseWriter, r *http.Request) error {
	if err := h.service.Logout(r.Context(), middleware.SessionToken(r)); err != nil {
		return err
	}

	http.SetCookie(w, sessionCookie(r, "", time.Unix(0, 0)))
	return WriteJSON(w, http.StatusOK, dto.OKResponse{OK: true})
}

func (h *authEndpoints) handleMe(w http.ResponseWriter, r *http.Request) error {
	identity, ok := middleware.AgentFromContext(r.Context())
	if !ok {
		return &HTTPError{
			StatusCode: http.StatusUnauthorized,
			Message:    "Unauthorized",
			ErrorLog:   fmt.Errorf("agent identity missing from context"),
		}
	}
	return WriteJSON(w, http.StatusOK, dto.MeResponse{OK: true, Agent: toAgentResponse(identity.Agent)})
}

func sessionCookie(r *http.Request, value string, expires time.Time) *http.Cookie {
	cookie := &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	}
	if value == "" {
		cookie.MaxAge = -1
	}
	return cookie
}

func toAgentResponse(agent model.AgentItem) dto.AgentResponse {
	return dto.AgentResponse{
		AgentID:            agent.AgentID,
		Name:               agent.Name,
		Email:              agent.Email,
		IsActive:           agent.IsActive,
		IsOnline:           agent.IsOnline,
		MaxConcurrentChats: agent.MaxConcurrentChats,
	}
}
