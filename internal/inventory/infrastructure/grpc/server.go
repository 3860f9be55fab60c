package grpc

import (
	"context"
	"errors"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dmehra2102/storefront-checkout/internal/inventory/application"
	"github.com/dmehra2102/storefront-checkout/internal/inventory/domain"
)

type Server struct {
	log    *slog.Logger
	ledger *application.Ledger
}

func NewServer(log *slog.Logger, ledger *application.Ledger) *Server {
	return &Server{log: log, ledger: ledger}
}

func (s *Server) GetProduct(ctx context.Context, req *ProductRequest) (*ProductMessage, error) {
	p, err := s.ledger.GetProduct(ctx, req.ID)
	if err != nil {
		return nil, toStatus(err)
	}
	return toMessage(p), nil
}

func (s *Server) ListProducts(ctx context.Context, _ *ListRequest) (*ProductList, error) {
	ps, err := s.ledger.ListProducts(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	out := &ProductList{Products: make([]ProductMessage, 0, len(ps))}
	for _, p := range ps {
		out.Products = append(out.Products, *toMessage(p))
	}
	return out, nil
}

func (s *Server) ReserveStock(ctx context.Context, req *StockRequest) (*ProductMessage, error) {
	p, err := s.ledger.ReserveStock(ctx, req.ProductID, req.Quantity)
	if err != nil {
		return nil, toStatus(err)
	}
	return toMessage(p), nil
}

func (s *Server) ReleaseStock(ctx context.Context, req *StockRequest) (*ProductMessage, error) {
	p, err := s.ledger.ReleaseStock(ctx, req.ProductID, req.Quantity)
	if err != nil {
		return nil, toStatus(err)
	}
	return toMessage(p), nil
}

func Run(addr string, srv *Server) (*grpc.Server, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	gs := grpc.NewServer()
	RegisterLedgerServer(gs, srv)
	go func() {
		if err := gs.Serve(lis); err != nil {
			srv.log.Error("grpc serve stopped", "err", err)
		}
	}()
	srv.log.Info("grpc listening", "addr", lis.Addr().String())
	return gs, nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrInsufficientStock):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, domain.ErrInvalidQuantity):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

func toMessage(p domain.Product) *ProductMessage {
	return &ProductMessage{
		ID:          p.ID,
		Name:        p.Name,
		PriceCents:  p.PriceCents,
		Description: p.Description,
		Stock:       p.Stock,
	}
}
