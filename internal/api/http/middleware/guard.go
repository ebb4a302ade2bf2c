package middleware

import (
	"net/http"
	"net/url"

	"github.com/dtroode/flavourmarket/internal/session"
)

// RequireIdentity lets a request through only when its client context has a signed-in identity.
// It waits for the first identity lookup, so nothing of a protected page is rendered while
// loading, and otherwise redirects to /login with the requested path as next.
func RequireIdentity(m ClientManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cc, ok := ClientFrom(r.Context(), m)
			if !ok {
				http.Redirect(w, r, LoginURL(r), http.StatusSeeOther)
				return
			}

			identity := cc.Identity(r.Context())
			if session.Decide(identity, false) != session.Allow {
				http.Redirect(w, r, LoginURL(r), http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// LoginURL returns the login page URL that sends the user back to r after signing in.
// Form posts return to the page they were posted from.
func LoginURL(r *http.Request) string {
	next := r.URL.RequestURI()
	if r.Method != http.MethodGet {
		if ref, err := url.Parse(r.Referer()); err == nil && ref.Path != "" {
			next = ref.RequestURI()
		} else {
			next = "/"
		}
	}
	return "/login?next=" + url.QueryEscape(next)
}
