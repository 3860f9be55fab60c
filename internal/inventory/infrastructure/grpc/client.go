package grpc

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/dmehra2102/storefront-checkout/internal/inventory/domain"
)

// LedgerClient talks to a remote InventoryLedger and returns domain errors.
type LedgerClient struct {
	log *slog.Logger
	cc  grpc.ClientConnInterface
}

func NewLedgerClient(log *slog.Logger, addr string, opts ...grpc.DialOption) (*LedgerClient, *grpc.ClientConn, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
	}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, nil, err
	}
	return &LedgerClient{log: log, cc: conn}, conn, nil
}

func (c *LedgerClient) GetProduct(ctx context.Context, id int64) (domain.Product, error) {
	var out ProductMessage
	if err := c.invoke(ctx, "GetProduct", &ProductRequest{ID: id}, &out); err != nil {
		return domain.Product{}, err
	}
	return fromMessage(out), nil
}

func (c *LedgerClient) ListProducts(ctx context.Context) ([]domain.Product, error) {
	var out ProductList
	if err := c.invoke(ctx, "ListProducts", &ListRequest{}, &out); err != nil {
		return nil, err
	}
	ps := make([]domain.Product, 0, len(out.Products))
	for _, m := range out.Products {
		ps = append(ps, fromMessage(m))
	}
	return ps, nil
}

func (c *LedgerClient) ReserveStock(ctx context.Context, id int64, qty int) (domain.Product, error) {
	var out ProductMessage
	if err := c.invoke(ctx, "ReserveStock", &StockRequest{ProductID: id, Quantity: qty}, &out); err != nil {
		return domain.Product{}, err
	}
	return fromMessage(out), nil
}

func (c *LedgerClient) ReleaseStock(ctx context.Context, id int64, qty int) (domain.Product, error) {
	var out ProductMessage
	if err := c.invoke(ctx, "ReleaseStock", &StockRequest{ProductID: id, Quantity: qty}, &out); err != nil {
		return domain.Product{}, err
	}
	return fromMessage(out), nil
}

func (c *LedgerClient) invoke(ctx context.Context, method string, in, out any) error {
	err := c.cc.Invoke(ctx, fullMethod(method), in, out, grpc.CallContentSubtype(codecName))
	if err != nil {
		c.log.Debug("ledger rpc failed", "method", method, "err", err)
		return fromStatus(err)
	}
	return nil
}

func fromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.NotFound:
		return domain.ErrNotFound
	case codes.FailedPrecondition:
		return domain.ErrInsufficientStock
	case codes.InvalidArgument:
		return domain.ErrInvalidQuantity
	default:
		return fmt.Errorf("inventory ledger: %w", err)
	}
}

func fromMessage(m ProductMessage) domain.Product {
	return domain.Product{
		ID:          m.ID,
		Name:        m.Name,
		PriceCents:  m.PriceCents,
		Description: m.Description,
		Stock:       m.Stock,
	}
}
