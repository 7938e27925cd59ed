package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/homeledger/internal/domain"
	"github.com/iho/homeledger/internal/infrastructure/auth"
	"github.com/iho/homeledger/internal/infrastructure/metrics"
)

func TestTenantFromHeaders(t *testing.T) {
	var got domain.Tenant
	h := Tenant(nil, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = TenantFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/accounts", nil)
	req.Header.Set(FamilyIDHeader, "fam-1")
	req.Header.Set(UserIDHeader, "user-1")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, domain.Tenant{FamilyID: "fam-1", UserID: "user-1"}, got)
}

func TestTenantFromToken(t *testing.T) {
	manager := auth.NewJWTManager("0123456789abcdef0123456789abcdef", time.Minute)
	token, err := manager.Generate(domain.Tenant{FamilyID: "fam-9", UserID: "user-9"})
	require.NoError(t, err)

	m := metrics.New(prometheus.NewRegistry())

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantReason string
	}{
		{name: "valid", header: "Bearer " + token, wantStatus: http.StatusOK},
		{name: "missing", wantStatus: http.StatusUnauthorized, wantReason: "missing_token"},
		{name: "wrong scheme", header: "Basic abc", wantStatus: http.StatusUnauthorized, wantReason: "bad_header"},
		{name: "garbage", header: "Bearer nope", wantStatus: http.StatusUnauthorized, wantReason: "invalid_token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got domain.Tenant
			h := Tenant(manager, m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got, _ = TenantFromContext(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/v1/accounts", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			// Headers are ignored once tokens are required.
			req.Header.Set(FamilyIDHeader, "fam-spoofed")
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantReason != "" {
				assert.Equal(t, float64(1), testutil.ToFloat64(m.AuthFailures.WithLabelValues(tt.wantReason)))
				return
			}
			assert.Equal(t, "fam-9", got.FamilyID)
		})
	}
}

func TestTenantRequiresFamilyHeader(t *testing.T) {
	h := Tenant(nil, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run without a family")
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/accounts", nil))

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), domain.ErrMissingTenant.Error())
}
