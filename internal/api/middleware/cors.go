package middleware

import (
	"net/http"
	"strconv"
	"strings"
)

// preflightMaxAge lets browsers reuse a preflight answer for ten minutes.
const preflightMaxAge = 600

type CORSConfig struct {
	// AllowedOrigins holds exact origins, "*", or subdomain patterns such as
	// "https://*.example.com" for widgets embedded across a customer's sites.
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
}

// MatchOrigin reports whether origin satisfies one allowed-origin pattern.
func MatchOrigin(pattern, origin string) bool {
	if pattern == "*" || pattern == origin {
		return true
	}
	scheme, host, ok := strings.Cut(pattern, "://*.")
	if !ok || origin == "" {
		return false
	}
	rest, found := strings.CutPrefix(origin, scheme+"://")
	return found && strings.HasSuffix(rest, "."+host)
}

func CORS(config CORSConfig) Middleware {
	methods := strings.Join(config.AllowedMethods, ", ")
	headers := strings.Join(config.AllowedHeaders, ", ")
	exposed := strings.Join(config.ExposedHeaders, ", ")

	return func(f http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			allowedOrigin := ""

			for _, o := range config.AllowedOrigins {
				if !MatchOrigin(o, origin) {
					continue
				}
				// Credentials cannot be combined with a literal wildcard.
				if o == "*" && !config.AllowCredentials {
					allowedOrigin = "*"
				} else {
					allowedOrigin = origin
				}
				break
			}

			if allowedOrigin != "" {
				w.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
				w.Header().Add("Vary", "Origin")
				if config.AllowCredentials {
					w.Header().Set("Access-Control-Allow-Credentials", "true")
				}
				w.Header().Set("Access-Control-Allow-Methods", methods)
				w.Header().Set("Access-Control-Allow-Headers", headers)
				if exposed != "" {
					w.Header().Set("Access-Control-Expose-Headers", exposed)
				}
			}

			if r.Method == http.MethodOptions {
				if allowedOrigin != "" {
					w.Header().Set("Access-Control-Max-Age", strconv.Itoa(preflightMaxAge))
					w.WriteHeader(http.StatusOK)
				} else {
					w.WriteHeader(http.StatusForbidden)
				}
				return
			}

			f(w, r)
		}
	}
}
