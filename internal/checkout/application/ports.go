package application

import (
	"context"
	"encoding/json"
	"time"

	invdomain "github.com/dmehra2102/storefront-checkout/internal/inventory/domain"
	paydomain "github.com/dmehra2102/storefront-checkout/internal/payment/domain"
	txapp "github.com/dmehra2102/storefront-checkout/internal/transaction/application"
	txdomain "github.com/dmehra2102/storefront-checkout/internal/transaction/domain"
)

// Inventory is satisfied by the in-process ledger and by its gRPC client.
type Inventory interface {
	GetProduct(ctx context.Context, id int64) (invdomain.Product, error)
	ListProducts(ctx context.Context) ([]invdomain.Product, error)
	ReserveStock(ctx context.Context, id int64, qty int) (invdomain.Product, error)
	ReleaseStock(ctx context.Context, id int64, qty int) (invdomain.Product, error)
}

type Transactions interface {
	Create(ctx context.Context, in txapp.NewTransaction) (txdomain.Transaction, error)
	FindByNumber(ctx context.Context, number string) (txdomain.Transaction, error)
	FindByID(ctx context.Context, id int64) (txdomain.Transaction, error)
	UpdateStatus(ctx context.Context, number string, to txdomain.Status, details json.RawMessage) (txdomain.Transaction, error)
	List(ctx context.Context, f txdomain.Filter) ([]txdomain.Transaction, error)
}

type Payments interface {
	ValidateCard(card paydomain.Card) error
	TokenizeCard(ctx context.Context, card paydomain.Card) (paydomain.CardToken, error)
	Authorize(ctx context.Context, amountCents int64, token paydomain.CardToken, reference string) (paydomain.Authorization, error)
}

type Metrics interface {
	ObserveCheckout(outcome string, started time.Time)
	Compensation(outcome string)
}
