package middleware

import (
	"net/http"

	"github.com/ghaggin/automl/internal/session"
)

const (
	PublicRoute = "/"
	HomeRoute   = "/home"
)

// StateSource reports the session state the guard decides on.
type StateSource interface {
	State() session.State
}

// Guard gates views on the session state. While the store is still restoring
// it serves the placeholder and makes no redirect.
type Guard struct {
	src         StateSource
	placeholder http.Handler
}

func NewGuard(src StateSource, placeholder http.Handler) *Guard {
	if placeholder == nil {
		placeholder = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "loading", http.StatusServiceUnavailable)
		})
	}

	return &Guard{src: src, placeholder: placeholder}
}

func (g *Guard) loading(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Retry-After", "1")
	w.Header().Set("Cache-Control", "no-store")
	g.placeholder.ServeHTTP(w, r)
}

// RequireAuth lets authenticated requests through and sends anonymous ones
// to the public entry route.
func (g *Guard) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch g.src.State() {
		case session.Authenticated:
			next.ServeHTTP(w, r)
		case session.Anonymous:
			http.Redirect(w, r, PublicRoute, http.StatusSeeOther)
		default:
			g.loading(w, r)
		}
	})
}

// PublicOnly serves the entry views to anonymous requests and sends
// authenticated ones home.
func (g *Guard) PublicOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch g.src.State() {
		case session.Anonymous:
			next.ServeHTTP(w, r)
		case session.Authenticated:
			http.Redirect(w, r, HomeRoute, http.StatusSeeOther)
		default:
			g.loading(w, r)
		}
	})
}
