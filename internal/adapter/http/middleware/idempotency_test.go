package middleware

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"github.com/iho/homeledger/internal/domain"
	"github.com/iho/homeledger/internal/usecase/mocks"
)

func newIdempotencyRequest(method, key string) *http.Request {
	req := httptest.NewRequest(method, "/api/v1/transactions", bytes.NewBufferString(`{}`))
	if key != "" {
		req.Header.Set(IdempotencyKeyHeader, key)
	}
	return req.WithContext(WithTenant(req.Context(), domain.Tenant{FamilyID: "fam-1"}))
}

func TestIdempotencyMiddleware_StoreErrorStopsRequest(t *testing.T) {
	store := mocks.NewMockIdempotencyStore(gomock.NewController(t))
	store.EXPECT().CheckAndSet(gomock.Any(), "fam-1:key-err", nil, time.Hour).Return(false, nil, context.DeadlineExceeded)
	mw := NewIdempotencyMiddleware(store, time.Hour, zerolog.Nop())

	rr := httptest.NewRecorder()
	mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called when store errors")
	})).ServeHTTP(rr, newIdempotencyRequest(http.MethodPost, "key-err"))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestIdempotencyMiddleware_ReleasesFailedResponses(t *testing.T) {
	store := mocks.NewMockIdempotencyStore(gomock.NewController(t))
	store.EXPECT().CheckAndSet(gomock.Any(), "fam-1:key-fail", nil, gomock.Any()).Return(false, nil, nil)
	store.EXPECT().Release(gomock.Any(), "fam-1:key-fail").Return(nil)
	mw := NewIdempotencyMiddleware(store, time.Hour, zerolog.Nop())

	rr := httptest.NewRecorder()
	mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	})).ServeHTTP(rr, newIdempotencyRequest(http.MethodPost, "key-fail"))

	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestIdempotencyMiddleware_SkipsRequestsWithoutKey(t *testing.T) {
	tests := []struct {
		name   string
		method string
		key    string
	}{
		{name: "get", method: http.MethodGet, key: "key-1"},
		{name: "post without key", method: http.MethodPost},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := mocks.NewMockIdempotencyStore(gomock.NewController(t))
			mw := NewIdempotencyMiddleware(store, time.Hour, zerolog.Nop())

			called := false
			mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
			})).ServeHTTP(httptest.NewRecorder(), newIdempotencyRequest(tt.method, tt.key))

			assert.True(t, called)
		})
	}
}

func TestIdempotencyMiddleware_ReturnsCachedResponse(t *testing.T) {
	store := mocks.NewMockIdempotencyStore(gomock.NewController(t))
	store.EXPECT().CheckAndSet(gomock.Any(), "fam-1:key-123", nil, gomock.Any()).Return(true, []byte(`{"cached":true}`), nil)
	mw := NewIdempotencyMiddleware(store, time.Hour, zerolog.Nop())

	rr := httptest.NewRecorder()
	mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called when cached response exists")
	})).ServeHTTP(rr, newIdempotencyRequest(http.MethodPost, "key-123"))

	assert.Equal(t, "true", rr.Header().Get("X-Idempotency-Replay"))
	assert.Equal(t, `{"cached":true}`, rr.Body.String())
}

func TestIdempotencyMiddleware_InFlightConflict(t *testing.T) {
	store := mocks.NewMockIdempotencyStore(gomock.NewController(t))
	store.EXPECT().CheckAndSet(gomock.Any(), gomock.Any(), nil, gomock.Any()).Return(true, []byte("processing"), nil)
	mw := NewIdempotencyMiddleware(store, time.Hour, zerolog.Nop())

	rr := httptest.NewRecorder()
	mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run while the first request is in flight")
	})).ServeHTTP(rr, newIdempotencyRequest(http.MethodPost, "key-busy"))

	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestIdempotencyMiddleware_StoresSuccessfulResponse(t *testing.T) {
	store := mocks.NewMockIdempotencyStore(gomock.NewController(t))
	store.EXPECT().CheckAndSet(gomock.Any(), "fam-1:key-456", nil, time.Hour).Return(false, nil, nil)
	store.EXPECT().Update(gomock.Any(), "fam-1:key-456", []byte(`{"ok":true}`), time.Hour).Return(nil)
	mw := NewIdempotencyMiddleware(store, time.Hour, zerolog.Nop())

	rr := httptest.NewRecorder()
	mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})).ServeHTTP(rr, newIdempotencyRequest(http.MethodPost, "key-456"))

	assert.Equal(t, http.StatusCreated, rr.Code)
}
