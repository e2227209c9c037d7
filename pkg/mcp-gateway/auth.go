package mcpgateway

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// authGate checks a single shared secret presented as a bearer token. A gate
// with no secret lets every request through.
type authGate struct {
	secret []byte
	strict bool
}

func newAuthGate(secret string, strict bool) *authGate {
	return &authGate{secret: []byte(secret), strict: strict}
}

func (a *authGate) enabled() bool { return len(a.secret) > 0 }

func (a *authGate) allow(r *http.Request) bool {
	if !a.enabled() {
		return true
	}
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(strings.TrimSpace(token)), a.secret) == 1
}

func (a *authGate) require(next http.Handler) http.Handler {
	if !a.enabled() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.allow(r) {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeDetail(w, http.StatusUnauthorized, "Invalid or missing API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Tools gates synthesized tool endpoints. Strict gates are applied once at
// the outermost handler instead, so Tools is a pass-through for them.
func (a *authGate) Tools(next http.Handler) http.Handler {
	if a.strict {
		return next
	}
	return a.require(next)
}

// All gates every request when the gate is strict.
func (a *authGate) All(next http.Handler) http.Handler {
	if !a.strict {
		return next
	}
	return a.require(next)
}
