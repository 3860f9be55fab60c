package wompi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/storefront-checkout/internal/payment/domain"
	"github.com/dmehra2102/storefront-checkout/pkg/logging"
)

func card() domain.Card {
	return domain.Card{Number: "4242424242424242", ExpMonth: "08", ExpYear: "28", CVC: "123", Holder: "Jane Doe"}
}

func TestTokenize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tokens/cards", r.URL.Path)
		assert.Equal(t, "Bearer pub_test", r.Header.Get("Authorization"))
		var body tokenRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body.Number == "4000000000000002" {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"error":{"type":"INPUT_VALIDATION_ERROR","message":"card rejected"}}`))
			return
		}
		assert.Equal(t, "Jane Doe", body.CardHolder)
		_, _ = w.Write([]byte(`{"status":"CREATED","data":{"id":"tok_test_1"}}`))
	}))
	defer srv.Close()

	c := NewClient(logging.Discard(), srv.URL, "pub_test", "prv_test")
	tok, err := c.Tokenize(context.Background(), card())
	require.NoError(t, err)
	assert.Equal(t, domain.CardToken("tok_test_1"), tok)

	bad := card()
	bad.Number = "4000000000000002"
	_, err = c.Tokenize(context.Background(), bad)
	require.ErrorIs(t, err, domain.ErrInvalidCard)
	assert.Contains(t, err.Error(), "card rejected")
}

func TestGatewayDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	c := NewClient(logging.Discard(), srv.URL, "pub", "prv")

	_, err := c.Tokenize(context.Background(), card())
	require.ErrorIs(t, err, domain.ErrGatewayUnavailable)
	_, err = c.CreateCharge(context.Background(), domain.Charge{AmountCents: 100, Token: "tok"})
	require.ErrorIs(t, err, domain.ErrGatewayUnavailable)

	srv.Close()
	_, err = c.GetCharge(context.Background(), "gw-1")
	require.ErrorIs(t, err, domain.ErrGatewayUnavailable)
}

func TestCreateAndGetCharge(t *testing.T) {
	var polls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer prv_test", r.Header.Get("Authorization"))
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/transactions":
			var body transactionRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, int64(20000), body.AmountInCents)
			assert.Equal(t, "COP", body.Currency)
			assert.Equal(t, "CARD", body.PaymentMethod.Type)
			assert.Equal(t, 1, body.PaymentMethod.Installments)
			_, _ = w.Write([]byte(`{"data":{"id":"gw-1","reference":"` + body.Reference + `","status":"PENDING","amount_in_cents":20000}}`))
		case r.Method == http.MethodGet && r.URL.Path == "/transactions/gw-1":
			status := "PENDING"
			if polls.Add(1) >= 2 {
				status = "APPROVED"
			}
			_, _ = w.Write([]byte(`{"data":{"id":"gw-1","reference":"TRX-1-1","status":"` + status + `","amount_in_cents":20000}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewClient(logging.Discard(), srv.URL, "pub_test", "prv_test")
	auth, err := c.CreateCharge(context.Background(), domain.Charge{
		AmountCents: 20000, Currency: "COP", Token: "tok_test_1", Reference: "TRX-1-1", Installments: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.GatewayPending, auth.Status)
	assert.Equal(t, "gw-1", auth.GatewayTransactionID)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	auth, err = c.GetCharge(ctx, "gw-1")
	require.NoError(t, err)
	assert.Equal(t, domain.GatewayPending, auth.Status)
	auth, err = c.GetCharge(ctx, "gw-1")
	require.NoError(t, err)
	assert.Equal(t, domain.GatewayApproved, auth.Status)
}

func TestChargeRejectedIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":{"type":"INPUT_VALIDATION_ERROR","reason":"token expired"}}`))
	}))
	defer srv.Close()

	c := NewClient(logging.Discard(), srv.URL, "pub", "prv")
	auth, err := c.CreateCharge(context.Background(), domain.Charge{AmountCents: 100, Token: "tok", Reference: "TRX-9-9"})
	require.NoError(t, err)
	assert.Equal(t, domain.GatewayError, auth.Status)
	assert.Equal(t, "TRX-9-9", auth.Reference)
}

func TestUnknownStatusMapsToError(t *testing.T) {
	var r transactionResponse
	r.Data.Status = "weird"
	assert.Equal(t, domain.GatewayError, toAuthorization(r).Status)
	r.Data.Status = "declined"
	assert.Equal(t, domain.GatewayDeclined, toAuthorization(r).Status)
}

func TestGetChargeRejectedIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transactions/txn-gone", r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"type":"NOT_FOUND_ERROR","reason":"transaction not found"}}`))
	}))
	defer srv.Close()
	c := NewClient(logging.Discard(), srv.URL, "pub", "prv")

	_, err := c.GetCharge(context.Background(), "txn-gone")
	require.ErrorIs(t, err, domain.ErrGatewayUnavailable)
	assert.Contains(t, err.Error(), "transaction not found")
}
