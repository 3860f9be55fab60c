// Package wompi is an HTTP client for a Wompi-compatible card gateway.
package wompi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmehra2102/storefront-checkout/internal/payment/domain"
)

type Client struct {
	log        *slog.Logger
	baseURL    string
	publicKey  string
	privateKey string
	http       *http.Client
}

func NewClient(log *slog.Logger, baseURL, publicKey, privateKey string) *Client {
	return &Client{
		log:        log,
		baseURL:    strings.TrimRight(baseURL, "/"),
		publicKey:  publicKey,
		privateKey: privateKey,
		http:       &http.Client{Timeout: 15 * time.Second},
	}
}

type tokenRequest struct {
	Number     string `json:"number"`
	CVC        string `json:"cvc"`
	ExpMonth   string `json:"exp_month"`
	ExpYear    string `json:"exp_year"`
	CardHolder string `json:"card_holder"`
}

type tokenResponse struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

type paymentMethod struct {
	Type         string `json:"type"`
	Token        string `json:"token"`
	Installments int    `json:"installments"`
}

type transactionRequest struct {
	AmountInCents int64         `json:"amount_in_cents"`
	Currency      string        `json:"currency"`
	PaymentMethod paymentMethod `json:"payment_method"`
	Reference     string        `json:"reference"`
}

type transactionResponse struct {
	Data struct {
		ID            string `json:"id"`
		Reference     string `json:"reference"`
		Status        string `json:"status"`
		AmountInCents int64  `json:"amount_in_cents"`
	} `json:"data"`
}

type errorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Reason  string `json:"reason"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) Tokenize(ctx context.Context, card domain.Card) (domain.CardToken, error) {
	var out tokenResponse
	status, err := c.do(ctx, http.MethodPost, "/tokens/cards", c.publicKey, tokenRequest{
		Number:     card.Number,
		CVC:        card.CVC,
		ExpMonth:   card.ExpMonth,
		ExpYear:    card.ExpYear,
		CardHolder: card.Holder,
	}, &out)
	if err != nil {
		if status >= 400 && status < 500 {
			return "", fmt.Errorf("%w: %v", domain.ErrInvalidCard, err)
		}
		return "", err
	}
	if out.Data.ID == "" {
		return "", fmt.Errorf("%w: empty token in response", domain.ErrGatewayUnavailable)
	}
	return domain.CardToken(out.Data.ID), nil
}

// CreateCharge starts a card transaction. A 4xx rejection of the charge
// itself is reported as a final ERROR status rather than as a failure.
func (c *Client) CreateCharge(ctx context.Context, charge domain.Charge) (domain.Authorization, error) {
	var out transactionResponse
	status, err := c.do(ctx, http.MethodPost, "/transactions", c.privateKey, transactionRequest{
		AmountInCents: charge.AmountCents,
		Currency:      charge.Currency,
		PaymentMethod: paymentMethod{Type: "CARD", Token: string(charge.Token), Installments: charge.Installments},
		Reference:     charge.Reference,
	}, &out)
	if err != nil {
		if status >= 400 && status < 500 {
			c.log.Warn("gateway rejected charge", "reference", charge.Reference, "status", status, "err", err)
			return domain.Authorization{Reference: charge.Reference, Status: domain.GatewayError, AmountCents: charge.AmountCents}, nil
		}
		return domain.Authorization{}, err
	}
	return toAuthorization(out), nil
}

// GetCharge reads a charge while it is being polled. The charge was accepted
// earlier, so even a 4xx here means the gateway cannot answer for it.
func (c *Client) GetCharge(ctx context.Context, id string) (domain.Authorization, error) {
	var out transactionResponse
	status, err := c.do(ctx, http.MethodGet, "/transactions/"+url.PathEscape(id), c.privateKey, nil, &out)
	if err != nil {
		if status >= 400 && status < 500 {
			return domain.Authorization{}, fmt.Errorf("%w: %w", domain.ErrGatewayUnavailable, err)
		}
		return domain.Authorization{}, err
	}
	return toAuthorization(out), nil
}

// do returns the HTTP status (0 on transport failure). Transport errors and
// 5xx wrap domain.ErrGatewayUnavailable.
func (c *Client) do(ctx context.Context, method, path, key string, in, out any) (int, error) {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return 0, err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Authorization", "Bearer "+key)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, fmt.Errorf("%w: %w", domain.ErrGatewayUnavailable, ctx.Err())
		}
		return 0, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("%w: read body: %v", domain.ErrGatewayUnavailable, err)
	}
	if resp.StatusCode >= 500 {
		return resp.StatusCode, fmt.Errorf("%w: %s %s returned %d", domain.ErrGatewayUnavailable, method, path, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		var e errorResponse
		_ = json.Unmarshal(raw, &e)
		msg := e.Error.Message
		if msg == "" {
			msg = e.Error.Reason
		}
		if msg == "" {
			msg = e.Error.Type
		}
		return resp.StatusCode, fmt.Errorf("%s %s returned %d: %s", method, path, resp.StatusCode, msg)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return resp.StatusCode, fmt.Errorf("%w: decode: %v", domain.ErrGatewayUnavailable, err)
	}
	return resp.StatusCode, nil
}

func toAuthorization(r transactionResponse) domain.Authorization {
	status := domain.GatewayStatus(strings.ToUpper(r.Data.Status))
	switch status {
	case domain.GatewayPending, domain.GatewayApproved, domain.GatewayDeclined, domain.GatewayVoided, domain.GatewayError:
	default:
		status = domain.GatewayError
	}
	return domain.Authorization{
		GatewayTransactionID: r.Data.ID,
		Reference:            r.Data.Reference,
		Status:               status,
		AmountCents:          r.Data.AmountInCents,
	}
}
