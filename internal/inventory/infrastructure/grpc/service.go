package grpc

import (
	"context"

	"google.golang.org/grpc"
)

const serviceName = "storefront.inventory.v1.InventoryLedger"

type ProductRequest struct {
	ID int64 `json:"id"`
}

type ListRequest struct{}

type StockRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type ProductMessage struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	PriceCents  int64  `json:"price_cents"`
	Description string `json:"description"`
	Stock       int    `json:"stock"`
}

type ProductList struct {
	Products []ProductMessage `json:"products"`
}

// LedgerServer is the server API of the InventoryLedger service.
type LedgerServer interface {
	GetProduct(ctx context.Context, req *ProductRequest) (*ProductMessage, error)
	ListProducts(ctx context.Context, req *ListRequest) (*ProductList, error)
	ReserveStock(ctx context.Context, req *StockRequest) (*ProductMessage, error)
	ReleaseStock(ctx context.Context, req *StockRequest) (*ProductMessage, error)
}

func fullMethod(name string) string { return "/" + serviceName + "/" + name }

func unary[Req any, Resp any](name string, call func(LedgerServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(LedgerServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(LedgerServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*LedgerServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("GetProduct", LedgerServer.GetProduct),
		unary("ListProducts", LedgerServer.ListProducts),
		unary("ReserveStock", LedgerServer.ReserveStock),
		unary("ReleaseStock", LedgerServer.ReleaseStock),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "inventory_ledger",
}

func RegisterLedgerServer(s grpc.ServiceRegistrar, srv LedgerServer) {
	s.RegisterService(&serviceDesc, srv)
}
