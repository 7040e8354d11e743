// Package auth gates console routes behind an operator session.
package auth

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/Talhakhan-pm/CRM-AutoXpress/internal/session"
)

type contextKey struct{}

// WithOperator stores the resolved operator in the request context.
func WithOperator(ctx context.Context, op *session.Operator) context.Context {
	return context.WithValue(ctx, contextKey{}, op)
}

// FromContext retrieves the operator from context.
func FromContext(ctx context.Context) (*session.Operator, bool) {
	op, ok := ctx.Value(contextKey{}).(*session.Operator)
	return op, ok
}

// Middleware enforces an active session on incoming requests.
type Middleware struct {
	sessions *session.Manager
	skipper  func(r *http.Request) bool
}

// NewMiddleware constructs Middleware. Health, metrics and the login/signup
// endpoints stay reachable without a session.
func NewMiddleware(sessions *session.Manager) Middleware {
	skipper := func(r *http.Request) bool {
		switch r.URL.Path {
		case "/healthz", "/metrics", "/console/login", "/console/signup":
			return true
		}
		return false
	}
	return Middleware{sessions: sessions, skipper: skipper}
}

// Wrap attaches session handling to an http.Handler. Requests without a
// usable session get 401 and never reach the inner handler.
func (m Middleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.skipper(r) {
			next.ServeHTTP(w, r)
			return
		}
		op, err := m.sessions.Current(r)
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"type":   "unauthorized",
				"detail": "login required",
			})
			return
		}
		next.ServeHTTP(w, r.WithContext(WithOperator(r.Context(), op)))
	})
}
