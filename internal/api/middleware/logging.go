package middleware

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"support-chat-backend/internal/logger"
	"support-chat-backend/utils"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
	size   int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.size += n
	return n, err
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := r.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, fmt.Errorf("statusRecorder: underlying ResponseWriter does not support hijacking")
}

func (r *statusRecorder) Push(target string, opts *http.PushOptions) error {
	if p, ok := r.ResponseWriter.(http.Pusher); ok {
		return p.Push(target, opts)
	}
	return http.ErrNotSupported
}

type accessAttrsKey struct{}

// accessAttrs collects fields that inner middleware learn about the request,
// such as the authenticated agent, for the access record.
type accessAttrs struct {
	attrs []any
}

func annotateAccess(ctx context.Context, args ...any) {
	if a, ok := ctx.Value(accessAttrsKey{}).(*accessAttrs); ok {
		a.attrs = append(a.attrs, args...)
	}
}

// Logging emits one access record per request and tags the request context
// with a logger carrying its request id.
func Logging(base *slog.Logger) Middleware {
	if base == nil {
		base = slog.Default()
	}
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}

			reqID := r.Header.Get("X-Request-ID")
			if reqID == "" {
				reqID = generateRequestID()
			}
			w.Header().Set("X-Request-ID", reqID)

			reqLogger := base.With("request_id", reqID)
			extra := &accessAttrs{}
			ctx := context.WithValue(logger.WithContext(r.Context(), reqLogger), accessAttrsKey{}, extra)
			next(rec, r.WithContext(ctx))

			status := rec.status
			if status == 0 {
				status = http.StatusOK
			}
			level := slog.LevelInfo
			if status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			reqLogger.Log(r.Context(), level, "http request", append([]any{
				"method", r.Method,
				"uri", r.URL.RequestURI(),
				"status", status,
				"size", rec.size,
				"duration", time.Since(start).String(),
				"client_ip", utils.RealClientIP(r),
				"user_agent", r.UserAgent(),
				"referer", r.Referer(),
			}, extra.attrs...)...)
		}
	}
}

func generateRequestID() string {
	id := utils.CreateToken()
	if len(id) > 16 {
		id = id[:16]
	}
	return id
}
