package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/iho/homeledger/internal/adapter/http/dto"
	"github.com/iho/homeledger/internal/domain"
	"github.com/iho/homeledger/internal/infrastructure/auth"
	"github.com/iho/homeledger/internal/infrastructure/metrics"
)

// ContextKey is the type for context keys
type ContextKey string

const (
	// TenantContextKey is the context key for the request's tenant
	TenantContextKey ContextKey = "tenant"

	FamilyIDHeader = "X-Family-ID"
	UserIDHeader   = "X-User-ID"
)

// TenantVerifier verifies bearer tokens.
type TenantVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// Tenant resolves the family a request acts for. With a verifier the tenant
// comes from a bearer token; without one it is read from the X-Family-ID and
// X-User-ID headers. m may be nil.
func Tenant(verifier TenantVerifier, m *metrics.Metrics) func(http.Handler) http.Handler {
	fail := func(w http.ResponseWriter, reason, message string) {
		if m != nil {
			m.AuthFailures.WithLabelValues(reason).Inc()
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(dto.ErrorResponse{Error: "unauthorized", Message: message})
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var tenant domain.Tenant

			if verifier != nil {
				authHeader := r.Header.Get("Authorization")
				if authHeader == "" {
					fail(w, "missing_token", "missing authorization header")
					return
				}

				scheme, token, ok := strings.Cut(authHeader, " ")
				if !ok || !strings.EqualFold(scheme, "Bearer") {
					fail(w, "bad_header", "invalid authorization header format")
					return
				}

				claims, err := verifier.Verify(token)
				if err != nil {
					fail(w, "invalid_token", err.Error())
					return
				}
				tenant = claims.Tenant()
			} else {
				tenant = domain.Tenant{
					FamilyID: r.Header.Get(FamilyIDHeader),
					UserID:   r.Header.Get(UserIDHeader),
				}
			}

			if err := tenant.Validate(); err != nil {
				fail(w, "missing_family", err.Error())
				return
			}

			next.ServeHTTP(w, r.WithContext(WithTenant(r.Context(), tenant)))
		})
	}
}

// WithTenant stores tenant in ctx.
func WithTenant(ctx context.Context, tenant domain.Tenant) context.Context {
	return context.WithValue(ctx, TenantContextKey, tenant)
}

// TenantFromContext extracts the tenant stored by Tenant.
func TenantFromContext(ctx context.Context) (domain.Tenant, bool) {
	tenant, ok := ctx.Value(TenantContextKey).(domain.Tenant)
	return tenant, ok
}
