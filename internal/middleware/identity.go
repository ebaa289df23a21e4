package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"queryguard/internal/domain"
)

// Identity is the authenticated caller as asserted by the gateway in
// front of this service. Token verification happens upstream; this
// layer only consumes the asserted headers.
type Identity struct {
	TenantID string
	UserID   string
	Role     domain.Role
}

type identityKey struct{}

// IdentityFromContext extracts the caller identity from the context.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// RequireIdentity returns a middleware that rejects requests missing the
// X-Tenant-ID or X-User-ID headers. An unknown or absent X-Role header
// degrades to viewer rather than failing, so a misconfigured gateway can
// never grant privilege.
func RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenant := strings.TrimSpace(r.Header.Get("X-Tenant-ID"))
		user := strings.TrimSpace(r.Header.Get("X-User-ID"))
		if tenant == "" || user == "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"code":    http.StatusUnauthorized,
				"message": "missing caller identity",
			})
			return
		}

		role := domain.Role(strings.ToLower(strings.TrimSpace(r.Header.Get("X-Role"))))
		if !role.Valid() {
			role = domain.RoleViewer
		}

		ctx := context.WithValue(r.Context(), identityKey{}, Identity{
			TenantID: tenant,
			UserID:   user,
			Role:     role,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
