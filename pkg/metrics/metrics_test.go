package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersAndHandler(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveCheckout("completed", time.Now())
	m.ObserveCheckout("completed", time.Now())
	m.ObserveCheckout("failed", time.Now())
	m.Compensation("ok")
	m.GatewayRequest("authorize", "approved")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.checkoutAttempts.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.checkoutAttempts.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.compensations.WithLabelValues("ok")))

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "storefront_checkout_attempts_total")
	assert.Contains(t, string(body), `storefront_gateway_requests_total{endpoint="authorize",outcome="approved"} 1`)
}

func TestNewIsolatedRegistries(t *testing.T) {
	require.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}
