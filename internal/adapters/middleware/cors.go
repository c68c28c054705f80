package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

var (
	DefaultCORSHeaders = []string{"Content-Type", "Authorization", "X-Requested-With"}
	corsMethods        = strings.Join([]string{
		http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions,
	}, ", ")
)

// CORSPolicy lists what browsers on other origins may do. An origin of "*"
// admits every origin; the caller's origin is echoed back so credentials
// keep working.
type CORSPolicy struct {
	AllowedOrigins []string
	AllowedHeaders []string
	// ExposedHeaders are readable by scripts, e.g. Content-Disposition on
	// receipt downloads.
	ExposedHeaders []string
	MaxAge         time.Duration
}

type corsRules struct {
	anyOrigin bool
	origins   map[string]struct{}
	headers   string
	exposed   string
	maxAge    string
}

func compileCORS(p CORSPolicy) corsRules {
	rules := corsRules{origins: make(map[string]struct{}, len(p.AllowedOrigins))}
	for _, o := range p.AllowedOrigins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "*" {
			rules.anyOrigin = true
			continue
		}
		if o != "" {
			rules.origins[o] = struct{}{}
		}
	}
	headers := p.AllowedHeaders
	if len(headers) == 0 {
		headers = DefaultCORSHeaders
	}
	rules.headers = strings.Join(headers, ", ")
	rules.exposed = strings.Join(p.ExposedHeaders, ", ")
	if p.MaxAge <= 0 {
		p.MaxAge = 24 * time.Hour
	}
	rules.maxAge = strconv.Itoa(int(p.MaxAge.Seconds()))
	return rules
}

// allowOrigin returns the Access-Control-Allow-Origin value for a request,
// or "" when the origin is not admitted.
func (c corsRules) allowOrigin(origin string) string {
	switch {
	case origin == "":
		if c.anyOrigin {
			return "*"
		}
		return ""
	case c.anyOrigin:
		return origin
	}
	if _, ok := c.origins[origin]; ok {
		return origin
	}
	return ""
}

// CORS applies policy to every request. OPTIONS requests are answered here
// and never reach the router.
func CORS(policy CORSPolicy) func(http.Handler) http.Handler {
	rules := compileCORS(policy)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" {
				w.Header().Add("Vary", "Origin")
			}

			if allow := rules.allowOrigin(origin); allow != "" {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", allow)
				h.Set("Access-Control-Allow-Methods", corsMethods)
				h.Set("Access-Control-Allow-Headers", rules.headers)
				h.Set("Access-Control-Allow-Credentials", "true")
				h.Set("Access-Control-Max-Age", rules.maxAge)
				if rules.exposed != "" {
					h.Set("Access-Control-Expose-Headers", rules.exposed)
				}
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
