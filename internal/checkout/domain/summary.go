package domain

import (
	paydomain "github.com/dmehra2102/storefront-checkout/internal/payment/domain"
	txdomain "github.com/dmehra2102/storefront-checkout/internal/transaction/domain"
)

// Summary is what a shopper sees after a checkout attempt.
type Summary struct {
	TransactionNumber string
	Status            txdomain.Status
	AmountCents       int64
	ProductID         int64
	Quantity          int
	GatewayStatus     paydomain.GatewayStatus
}

// GatewayTimeout is recorded when authorization did not finish in time.
const GatewayTimeout paydomain.GatewayStatus = "TIMEOUT"

// SettlementFor maps a final gateway status to the transaction outcome.
// Anything but APPROVED fails the transaction.
func SettlementFor(s paydomain.GatewayStatus) txdomain.Status {
	if s.Approved() {
		return txdomain.StatusCompleted
	}
	return txdomain.StatusFailed
}

// PaymentDetails is stored with the transaction. It never holds card data
// beyond brand and last four digits.
type PaymentDetails struct {
	GatewayTransactionID string                  `json:"gateway_transaction_id,omitempty"`
	GatewayStatus        paydomain.GatewayStatus `json:"gateway_status"`
	CardBrand            paydomain.Brand         `json:"card_brand,omitempty"`
	CardLast4            string                  `json:"card_last4,omitempty"`
	Error                string                  `json:"error,omitempty"`
	Source               string                  `json:"source"`
}
