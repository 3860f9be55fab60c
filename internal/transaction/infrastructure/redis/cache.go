package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmehra2102/storefront-checkout/internal/transaction/domain"
)

const keyTransaction = "transaction:%s"

type cachedTransaction struct {
	ID             int64           `json:"id"`
	Number         string          `json:"transaction_number"`
	AmountCents    int64           `json:"amount_cents"`
	Quantity       int             `json:"quantity"`
	Status         domain.Status   `json:"status"`
	PaymentMethod  string          `json:"payment_method"`
	PaymentDetails json.RawMessage `json:"payment_details,omitempty"`
	ProductID      int64           `json:"product_id"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Cache keeps terminal transactions in Redis for ttl.
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewCache(rdb *redis.Client, ttl time.Duration) *Cache {
	return &Cache{rdb: rdb, ttl: ttl}
}

func (c *Cache) Get(ctx context.Context, number string) (domain.Transaction, bool, error) {
	raw, err := c.rdb.Get(ctx, fmt.Sprintf(keyTransaction, number)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Transaction{}, false, nil
	}
	if err != nil {
		return domain.Transaction{}, false, err
	}
	var ct cachedTransaction
	if err := json.Unmarshal(raw, &ct); err != nil {
		return domain.Transaction{}, false, err
	}
	return domain.Transaction(ct), true, nil
}

// Put ignores non-terminal transactions.
func (c *Cache) Put(ctx context.Context, t domain.Transaction) error {
	if !t.Status.IsTerminal() {
		return nil
	}
	raw, err := json.Marshal(cachedTransaction(t))
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, fmt.Sprintf(keyTransaction, t.Number), raw, c.ttl).Err()
}
