package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/pralapin/school-service/internal/core/domain"
	"github.com/pralapin/school-service/internal/core/services"
)

// Authenticator resolves an access token into the calling principal.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*services.Principal, error)
}

type AuthMiddleware struct {
	auth    Authenticator
	denials *prometheus.CounterVec
	logger  *logrus.Logger
}

// NewAuthMiddleware builds the middleware. denials may be nil.
func NewAuthMiddleware(auth Authenticator, denials *prometheus.CounterVec, logger *logrus.Logger) *AuthMiddleware {
	return &AuthMiddleware{auth: auth, denials: denials, logger: logger}
}

type contextKey string

const principalKey contextKey = "principal"

// WithPrincipal stores the caller in ctx.
func WithPrincipal(ctx context.Context, p *services.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFrom returns the caller bound by Authenticate.
func PrincipalFrom(ctx context.Context) (*services.Principal, bool) {
	p, ok := ctx.Value(principalKey).(*services.Principal)
	return p, ok && p != nil
}

func deny(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// Authenticate requires a valid bearer access token and binds the caller.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			deny(w, http.StatusUnauthorized, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			deny(w, http.StatusUnauthorized, "invalid authorization header")
			return
		}

		principal, err := m.auth.Authenticate(r.Context(), strings.TrimSpace(parts[1]))
		if errors.Is(err, domain.ErrUnavailable) {
			m.logger.WithError(err).Error("authentication backend unavailable")
			deny(w, http.StatusServiceUnavailable, "service unavailable")
			return
		}
		if err != nil {
			m.logger.WithError(err).Debug("authentication failed")
			deny(w, http.StatusUnauthorized, "invalid token")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
	})
}

// RequirePermission lets the request through when the caller's role grants
// action on module.
func (m *AuthMiddleware) RequirePermission(module domain.Module, action domain.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m.check(w, r, next, module, action)
		})
	}
}

// RequireModulePermission derives the action from the HTTP method.
func (m *AuthMiddleware) RequireModulePermission(module domain.Module) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			action, ok := domain.ActionForMethod(r.Method)
			if !ok {
				deny(w, http.StatusMethodNotAllowed, "method not allowed")
				return
			}
			m.check(w, r, next, module, action)
		})
	}
}

func (m *AuthMiddleware) check(w http.ResponseWriter, r *http.Request, next http.Handler, module domain.Module, action domain.Action) {
	p, ok := PrincipalFrom(r.Context())
	if !ok {
		deny(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if !domain.HasPermission(p.Role, module, action) {
		if m.denials != nil {
			m.denials.WithLabelValues(module.Key(), string(action)).Inc()
		}
		m.logger.WithFields(logrus.Fields{
			"user_id": p.User.ID,
			"role":    p.User.Role,
			"module":  module.Key(),
			"action":  action,
		}).Info("permission denied")
		deny(w, http.StatusForbidden, "you do not have "+string(action)+" permission for "+module.DisplayName())
		return
	}
	next.ServeHTTP(w, r)
}
