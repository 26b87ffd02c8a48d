package endpoints

import (
	"context"
	"net/http"
	"sort"
	"time"

	"support-chat-backend/internal/api"
	"support-chat-backend/internal/dto"
)

const healthCheckTimeout = 2 * time.Second

type UtilsEndpoints interface {
	Health(http.ResponseWriter, *http.Request) error
}

type utilsEndpoints struct {
	checks map[string]api.HealthCheck
}

func NewUtilsEndpoints(checks map[string]api.HealthCheck) UtilsEndpoints {
	return &utilsEndpoints{checks: checks}
}

// Health runs every dependency check and answers 503 when any of them fails.
func (h *utilsEndpoints) Health(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodGet: func(w http.ResponseWriter, r *http.Request) error {
			ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
			defer cancel()

			names := make([]string, 0, len(h.checks))
			for name := range h.checks {
				names = append(names, name)
			}
			sort.Strings(names)

			resp := dto.HealthResponse{OK: true}
			if len(names) > 0 {
				resp.Checks = make(map[string]string, len(names))
			}
			for _, name := range names {
				if err := h.checks[name](ctx); err != nil {
					resp.OK = false
					resp.Checks[name] = err.Error()
					continue
				}
				resp.Checks[name] = "ok"
			}

			status := http.StatusOK
			if !resp.OK {
				status = http.StatusServiceUnavailable
			}
			return WriteJSON(w, status, resp)
		},
	})
}
