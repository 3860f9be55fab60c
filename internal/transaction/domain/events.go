package domain

import "time"

const (
	AggregateType           = "transaction"
	EventTransactionCreated = "TransactionCreated"
	EventTransactionSettled = "TransactionSettled"
)

type TransactionCreated struct {
	TransactionNumber string    `json:"transaction_number"`
	ProductID         int64     `json:"product_id"`
	Quantity          int       `json:"quantity"`
	AmountCents       int64     `json:"amount_cents"`
	PaymentMethod     string    `json:"payment_method"`
	CreatedAt         time.Time `json:"created_at"`
}

type TransactionSettled struct {
	TransactionNumber string    `json:"transaction_number"`
	Status            Status    `json:"status"`
	SettledAt         time.Time `json:"settled_at"`
}
