package api

import (
	"encoding/json"
	"net/http"

	"support-chat-backend/internal/api/middleware"
	"support-chat-backend/internal/logger"
	"support-chat-backend/internal/queue"
)

type apiFunc func(http.ResponseWriter, *http.Request) error

func WriteJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Add("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

// MakeHTTPHandleFunc runs f on the request worker queue behind CORS, access
// logging and the given auth middleware, and renders any returned error.
func (s *APIServer) MakeHTTPHandleFunc(f apiFunc, authMiddleware ...middleware.Middleware) http.HandlerFunc {
	baseHandler := func(w http.ResponseWriter, r *http.Request) {
		errc := make(chan error, 1)

		job := queue.Job{
			Fn: func() error {
				return f(w, r)
			},
			Errc: errc,
		}

		if err := s.requestQueueManager.EnqueueJob(r.Context(), job); err != nil {
			s.logger.Warn("request not queued", "path", r.URL.Path, "error", err)
			_ = WriteJSON(w, http.StatusServiceUnavailable, ApiError{Error: "Server busy, try again"})
			return
		}

		if err := <-errc; err != nil {
			s.writeError(w, r, err)
		}
	}

	finalHandler := func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		handler := middleware.Chain(baseHandler, authMiddleware...)
		handler(w, r)
	}

	return middleware.Chain(finalHandler,
		middleware.CORS(s.cors),
		middleware.Logging(s.logger),
	)
}

func (s *APIServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	httpErr, code := FromError(err)
	log := logger.FromContext(r.Context())
	if httpErr.StatusCode >= http.StatusInternalServerError {
		log.Error("request failed", "path", r.URL.Path, "status", httpErr.StatusCode, "error", httpErr.ErrorLog)
	} else {
		log.Debug("request rejected", "path", r.URL.Path, "status", httpErr.StatusCode, "error", httpErr.ErrorLog)
	}
	_ = WriteJSON(w, httpErr.StatusCode, ApiError{Error: httpErr.Message, Code: code})
}
