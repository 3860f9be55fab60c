package idempotency

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmehra2102/storefront-checkout/pkg/logging"
)

type memDeduper struct {
	mu   sync.Mutex
	keys map[string]bool
	err  error
}

func (m *memDeduper) Seen(_ context.Context, key string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys == nil {
		m.keys = map[string]bool{}
	}
	if m.keys[key] {
		return true, nil
	}
	m.keys[key] = true
	return false, nil
}

func (m *memDeduper) Forget(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, key)
	return nil
}

func TestMiddleware(t *testing.T) {
	var calls int
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	})
	d := &memDeduper{}
	h := Middleware(logging.Discard(), d, "checkout")(next)

	do := func(key string) int {
		req := httptest.NewRequest(http.MethodPost, "/checkout", nil)
		if key != "" {
			req.Header.Set(HeaderKey, key)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusCreated, do("k-1"))
	assert.Equal(t, http.StatusConflict, do("k-1"))
	assert.Equal(t, http.StatusCreated, do("k-2"))
	assert.Equal(t, http.StatusCreated, do(""))
	assert.Equal(t, http.StatusCreated, do(""))
	assert.Equal(t, http.StatusBadRequest, do(strings.Repeat("x", 256)))
	assert.Equal(t, 4, calls)
	assert.True(t, d.keys["idem:checkout:k-1"])
}

func TestMiddlewareStoreDown(t *testing.T) {
	h := Middleware(logging.Discard(), &memDeduper{err: errors.New("redis down")}, "checkout")(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { t.Fatal("must not be called") }))

	req := httptest.NewRequest(http.MethodPost, "/checkout", nil)
	req.Header.Set(HeaderKey, "k")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMiddlewareReleasesRejectedKeys(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		keepsKey bool
	}{
		{name: "created", status: http.StatusCreated, keepsKey: true},
		{name: "payment failed", status: http.StatusPaymentRequired, keepsKey: true},
		{name: "bad request", status: http.StatusBadRequest},
		{name: "out of stock", status: http.StatusConflict},
		{name: "gateway down", status: http.StatusBadGateway},
		{name: "internal", status: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &memDeduper{}
			h := Middleware(logging.Discard(), d, "checkout")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))

			req := httptest.NewRequest(http.MethodPost, "/checkout", nil)
			req.Header.Set(HeaderKey, "k")
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.keepsKey, d.keys["idem:checkout:k"])
		})
	}
}
