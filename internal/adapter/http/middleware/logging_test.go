package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggingMiddlewareLevelsByStatus(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantLevel string
	}{
		{name: "ok", status: http.StatusCreated, wantLevel: "info"},
		{name: "rejected", status: http.StatusConflict, wantLevel: "warn"},
		{name: "failed", status: http.StatusInternalServerError, wantLevel: "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			r := chi.NewRouter()
			r.Use(NewLoggingMiddleware(zerolog.New(&buf)).Wrap)
			r.Post("/invoices/{id}/close", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("done"))
			})

			req := httptest.NewRequest(http.MethodPost, "/invoices/inv-1/close", nil)
			req.Header.Set(FamilyIDHeader, "fam-1")
			req.Header.Set(IdempotencyKeyHeader, "key-1")
			r.ServeHTTP(httptest.NewRecorder(), req)

			var line map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
			assert.Equal(t, tt.wantLevel, line["level"])
			assert.Equal(t, "/invoices/{id}/close", line["route"])
			assert.Equal(t, "fam-1", line["family_id"])
			assert.Equal(t, "key-1", line["idempotency_key"])
			assert.Equal(t, float64(tt.status), line["status"])
			assert.Equal(t, float64(4), line["bytes"])
		})
	}
}
