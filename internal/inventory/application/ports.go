package application

import (
	"context"

	"github.com/dmehra2102/storefront-checkout/internal/inventory/domain"
)

// ProductRepository persists products. Reserve and Release must be atomic
// with respect to concurrent callers on the same product.
type ProductRepository interface {
	Get(ctx context.Context, id int64) (domain.Product, error)
	List(ctx context.Context) ([]domain.Product, error)
	Reserve(ctx context.Context, id int64, qty int) (domain.Product, error)
	Release(ctx context.Context, id int64, qty int) (domain.Product, error)
}
