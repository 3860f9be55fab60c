package application

import (
	"context"
	"encoding/json"

	"github.com/dmehra2102/storefront-checkout/internal/transaction/domain"
	"github.com/dmehra2102/storefront-checkout/pkg/outbox"
)

// Repository persists transactions. Writes carry an outbox message that must
// be committed atomically with the row change.
type Repository interface {
	// InsertWithOutbox returns domain.ErrDuplicateReference when the number is taken.
	InsertWithOutbox(ctx context.Context, t domain.Transaction, msg outbox.Message) (domain.Transaction, error)
	FindByNumber(ctx context.Context, number string) (domain.Transaction, error)
	FindByID(ctx context.Context, id int64) (domain.Transaction, error)
	// SettleWithOutbox applies PENDING -> to only if the row is still PENDING.
	SettleWithOutbox(ctx context.Context, number string, to domain.Status, details json.RawMessage, msg outbox.Message) (domain.Transaction, error)
	List(ctx context.Context, f domain.Filter) ([]domain.Transaction, error)
}

// Cache holds terminal transactions, which never change again.
type Cache interface {
	Get(ctx context.Context, number string) (domain.Transaction, bool, error)
	Put(ctx context.Context, t domain.Transaction) error
}
