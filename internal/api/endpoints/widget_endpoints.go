package endpoints

import (
	"net/http"

	"support-chat-backend/internal/config"
	"support-chat-backend/internal/dto"
)

type WidgetEndpoints interface {
	Settings(http.ResponseWriter, *http.Request) error
}

type widgetEndpoints struct {
	settings config.WidgetConfig
}

func NewWidgetEndpoints(settings config.WidgetConfig) WidgetEndpoints {
	return &widgetEndpoints{
		settings: settings,
	}
}

func (h *widgetEndpoints) Settings(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodGet: h.handleSettings,
	})
}

func (h *widgetEndpoints) handleSettings(w http.ResponseWriter, r *http.Request) error {
	return WriteJSON(w, http.StatusOK, dto.WidgetSettingsResponse{
		OK:           true,
		BubbleText:   h.settings.BubbleText,
		HeaderText:   h.settings.HeaderText,
		ThemeColor:   h.settings.ThemeColor,
		WebsocketURL: h.settings.WebsocketURL,
	})
}
