package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/arcadehub/arcade/internal/auth"
	"github.com/arcadehub/arcade/internal/domain"
	"github.com/arcadehub/arcade/internal/metrics"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const claimsContextKey contextKey = "claims"

// claimsFromContext returns the authenticated claims, or nil for guests
func claimsFromContext(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsContextKey).(*auth.Claims)
	return claims
}

// bearerToken extracts the token from the Authorization header
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

// authenticate resolves the caller's identity when a token is present.
// Requests without a token pass through as guests; routes that require an
// identity layer requireAuth on top.
func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := h.tokens.Verify(token)
		if err != nil {
			h.writeError(w, http.StatusUnauthorized, domain.ErrAuthRequired)
			return
		}

		ctx := context.WithValue(r.Context(), claimsContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireAuth rejects requests with no authenticated identity
func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if claimsFromContext(r.Context()) == nil {
			h.writeError(w, http.StatusUnauthorized, domain.ErrAuthRequired)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requirePermission gates a route on the caller's role granting a permission
func (h *Handler) requirePermission(permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := claimsFromContext(r.Context())
			if claims == nil {
				h.writeError(w, http.StatusUnauthorized, domain.ErrAuthRequired)
				return
			}
			if !h.roles.Can(claims.Role, permission) {
				h.writeError(w, http.StatusForbidden, domain.ErrPermissionDenied)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// countRequests records request totals by method and status
func countRequests(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			if m != nil {
				m.HTTPRequests.WithLabelValues(r.Method, strconv.Itoa(ww.Status())).Inc()
			}
		})
	}
}

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
