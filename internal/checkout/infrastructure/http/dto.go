package http

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dmehra2102/storefront-checkout/internal/checkout/domain"
	invdomain "github.com/dmehra2102/storefront-checkout/internal/inventory/domain"
	paydomain "github.com/dmehra2102/storefront-checkout/internal/payment/domain"
	txdomain "github.com/dmehra2102/storefront-checkout/internal/transaction/domain"
	"github.com/dmehra2102/storefront-checkout/pkg/money"
)

type cardReq struct {
	Number     string `json:"number"`
	ExpMonth   string `json:"exp_month"`
	ExpYear    string `json:"exp_year"`
	CVC        string `json:"cvc"`
	CardHolder string `json:"card_holder"`
}

type checkoutReq struct {
	ProductID int64   `json:"product_id"`
	Quantity  int     `json:"quantity"`
	Card      cardReq `json:"card"`
}

func (r checkoutReq) validate() error {
	var missing []string
	if r.ProductID <= 0 {
		missing = append(missing, "product_id")
	}
	if r.Quantity <= 0 {
		missing = append(missing, "quantity")
	}
	for name, v := range map[string]string{
		"card.number":      r.Card.Number,
		"card.exp_month":   r.Card.ExpMonth,
		"card.exp_year":    r.Card.ExpYear,
		"card.cvc":         r.Card.CVC,
		"card.card_holder": r.Card.CardHolder,
	} {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing or invalid %s", errBadRequest, strings.Join(sorted(missing), ", "))
	}
	return nil
}

func (c cardReq) toDomain() paydomain.Card {
	return paydomain.Card{Number: c.Number, ExpMonth: c.ExpMonth, ExpYear: c.ExpYear, CVC: c.CVC, Holder: c.CardHolder}
}

type statusReq struct {
	Status string `json:"status"`
}

type productResp struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Price        string `json:"price"`
	PriceInCents int64  `json:"price_in_cents"`
	Description  string `json:"description"`
	Stock        int    `json:"stock"`
}

func toProductResp(p invdomain.Product) productResp {
	return productResp{
		ID:           p.ID,
		Name:         p.Name,
		Price:        money.Format(p.PriceCents),
		PriceInCents: p.PriceCents,
		Description:  p.Description,
		Stock:        p.Stock,
	}
}

type summaryResp struct {
	TransactionNumber string                  `json:"transaction_number"`
	Status            txdomain.Status         `json:"status"`
	Amount            string                  `json:"amount"`
	AmountInCents     int64                   `json:"amount_in_cents"`
	ProductID         int64                   `json:"product_id"`
	Quantity          int                     `json:"quantity"`
	GatewayStatus     paydomain.GatewayStatus `json:"gateway_status,omitempty"`
}

func toSummaryResp(s domain.Summary) summaryResp {
	return summaryResp{
		TransactionNumber: s.TransactionNumber,
		Status:            s.Status,
		Amount:            money.Format(s.AmountCents),
		AmountInCents:     s.AmountCents,
		ProductID:         s.ProductID,
		Quantity:          s.Quantity,
		GatewayStatus:     s.GatewayStatus,
	}
}

type transactionResp struct {
	ID                int64           `json:"id"`
	TransactionNumber string          `json:"transaction_number"`
	Amount            string          `json:"amount"`
	AmountInCents     int64           `json:"amount_in_cents"`
	Quantity          int             `json:"quantity"`
	Status            txdomain.Status `json:"status"`
	PaymentMethod     string          `json:"payment_method"`
	PaymentDetails    json.RawMessage `json:"payment_details,omitempty"`
	ProductID         int64           `json:"product_id"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

func toTransactionResp(t txdomain.Transaction) transactionResp {
	return transactionResp{
		ID:                t.ID,
		TransactionNumber: t.Number,
		Amount:            money.Format(t.AmountCents),
		AmountInCents:     t.AmountCents,
		Quantity:          t.Quantity,
		Status:            t.Status,
		PaymentMethod:     t.PaymentMethod,
		PaymentDetails:    t.PaymentDetails,
		ProductID:         t.ProductID,
		CreatedAt:         t.CreatedAt,
		UpdatedAt:         t.UpdatedAt,
	}
}

type errorResp struct {
	Error             string            `json:"error"`
	Fields            map[string]string `json:"fields,omitempty"`
	TransactionNumber string            `json:"transaction_number,omitempty"`
}
