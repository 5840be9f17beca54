// Package auth holds tool access roles and the HTTP middleware guarding the
// event-stream transport.
package auth

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strings"
)

// Role decides which tools a caller may run.
type Role string

const (
	RoleReader Role = "reader"
	RoleWriter Role = "writer"
	RoleAdmin  Role = "admin"
)

const allTools = "*"

var readTools = []string{"search_confluence", "get_page_content", "list_pages", "health_check"}

var permissions = map[Role][]string{
	RoleReader: readTools,
	RoleWriter: readTools,
	RoleAdmin:  {allTools},
}

// ParseRole maps a case-insensitive name to a Role. Empty means reader.
func ParseRole(s string) (Role, error) {
	if s == "" {
		return RoleReader, nil
	}
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := permissions[r]; !ok {
		return "", fmt.Errorf("unknown role %q (want reader, writer or admin)", s)
	}
	return r, nil
}

// Allows reports whether the role may call tool.
func (r Role) Allows(tool string) bool {
	allowed := permissions[r]
	return slices.Contains(allowed, allTools) || slices.Contains(allowed, tool)
}

// HeaderAPIKey carries the API key on every request.
const HeaderAPIKey = "X-API-Key"

// PublicPaths are served without an API key.
var PublicPaths = []string{"/health"}

// RequireAPIKey rejects requests without the right X-API-Key header. An
// empty key disables the check.
func RequireAPIKey(key string, next http.Handler) http.Handler {
	if key == "" {
		return next
	}
	want := []byte(key)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if slices.Contains(PublicPaths, r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		got := []byte(r.Header.Get(HeaderAPIKey))
		if len(got) == 0 || subtle.ConstantTimeCompare(got, want) != 1 {
			WriteJSONError(w, http.StatusUnauthorized, "Invalid or missing API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SecurityHeaders sets the standard hardening headers on every response.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-XSS-Protection", "1; mode=block")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// WriteJSONError writes {"detail": msg} with the given status.
func WriteJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": msg})
}
