package application

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/storefront-checkout/internal/inventory/domain"
)

// Ledger is the only writer of product stock.
type Ledger struct {
	log    *slog.Logger
	repo   ProductRepository
	tracer trace.Tracer
}

func NewLedger(log *slog.Logger, repo ProductRepository) *Ledger {
	return &Ledger{log: log, repo: repo, tracer: otel.Tracer("inventory-ledger")}
}

func (l *Ledger) GetProduct(ctx context.Context, id int64) (domain.Product, error) {
	return l.repo.Get(ctx, id)
}

func (l *Ledger) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return l.repo.List(ctx)
}

// ReserveStock decrements stock by qty if and only if enough is available.
func (l *Ledger) ReserveStock(ctx context.Context, id int64, qty int) (domain.Product, error) {
	ctx, span := l.tracer.Start(ctx, "ReserveStock", trace.WithAttributes(
		attribute.Int64("product.id", id), attribute.Int("quantity", qty)))
	defer span.End()

	if err := domain.ValidateQuantity(qty); err != nil {
		return domain.Product{}, err
	}
	p, err := l.repo.Reserve(ctx, id, qty)
	if err != nil {
		span.RecordError(err)
		return domain.Product{}, err
	}
	l.log.Info("stock reserved", "product_id", id, "quantity", qty, "stock", p.Stock)
	return p, nil
}

// ReleaseStock returns qty units to the product.
func (l *Ledger) ReleaseStock(ctx context.Context, id int64, qty int) (domain.Product, error) {
	ctx, span := l.tracer.Start(ctx, "ReleaseStock", trace.WithAttributes(
		attribute.Int64("product.id", id), attribute.Int("quantity", qty)))
	defer span.End()

	if err := domain.ValidateQuantity(qty); err != nil {
		return domain.Product{}, err
	}
	p, err := l.repo.Release(ctx, id, qty)
	if err != nil {
		span.RecordError(err)
		l.log.Error("stock release failed", "product_id", id, "quantity", qty, "err", err)
		return domain.Product{}, err
	}
	l.log.Info("stock released", "product_id", id, "quantity", qty, "stock", p.Stock)
	return p, nil
}
