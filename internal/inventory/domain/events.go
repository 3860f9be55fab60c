package domain

// StockReleaseFailed is published when a compensating release could not be
// applied in-band and must be retried by the reconciler.
type StockReleaseFailed struct {
	EventID           string `json:"event_id"`
	TransactionNumber string `json:"transaction_number"`
	ProductID         int64  `json:"product_id"`
	Quantity          int    `json:"quantity"`
	Reason            string `json:"reason"`
	// SettlePending marks a transaction that is still PENDING. Its stock may
	// only be released by whoever moves it to FAILED.
	SettlePending bool `json:"settle_pending,omitempty"`
}

const EventStockReleaseFailed = "StockReleaseFailed"
