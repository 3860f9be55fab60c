//go:build integration

package integration

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/storefront-checkout/internal/inventory/domain"
	invpg "github.com/dmehra2102/storefront-checkout/internal/inventory/infrastructure/postgres"
	"github.com/dmehra2102/storefront-checkout/pkg/logging"
)

func TestProductRepository_ReserveRelease(t *testing.T) {
	ctx := context.Background()
	repo := invpg.NewRepository(logging.Discard(), pool)

	p, err := repo.Insert(ctx, domain.Product{Name: "Mug", PriceCents: 1500, Stock: 3})
	require.NoError(t, err)

	got, err := repo.Reserve(ctx, p.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Stock)

	_, err = repo.Reserve(ctx, p.ID, 2)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	_, err = repo.Reserve(ctx, p.ID+100000, 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	got, err = repo.Release(ctx, p.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Stock)
}

func TestProductRepository_ConcurrentReserveNeverOversells(t *testing.T) {
	ctx := context.Background()
	repo := invpg.NewRepository(logging.Discard(), pool)

	p, err := repo.Insert(ctx, domain.Product{Name: "Poster", PriceCents: 900, Stock: 10})
	require.NoError(t, err)

	var ok atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.Reserve(ctx, p.ID, 1); err == nil {
				ok.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 10, ok.Load())
	got, err := repo.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Zero(t, got.Stock)
}
