package grpc

import (
	"context"

	"github.com/shopspring/decimal"
	"google.golang.org/grpc"
)

const (
	serviceName      = "lipos.checkout.v1.CheckoutService"
	placeOrderMethod = "/" + serviceName + "/PlaceOrder"
	errorInfoDomain  = "lipos.checkout"
)

type CartLine struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type PlaceOrderRequest struct {
	Items          []CartLine      `json:"items"`
	DeclaredTotal  decimal.Decimal `json:"declared_total"`
	CustomerID     string          `json:"customer_id,omitempty"`
	PaymentMethod  string          `json:"payment_method,omitempty"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
}

type PlaceOrderResponse struct {
	OrderID        string `json:"order_id"`
	ConfirmedTotal string `json:"confirmed_total"`
	Replayed       bool   `json:"replayed"`
}

// CheckoutServer is implemented by CheckoutServiceServer.
type CheckoutServer interface {
	PlaceOrder(ctx context.Context, req *PlaceOrderRequest) (*PlaceOrderResponse, error)
}

var CheckoutServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*CheckoutServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "PlaceOrder", Handler: placeOrderHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "lipos/checkout/v1/checkout.proto",
}

func RegisterCheckoutServer(s grpc.ServiceRegistrar, srv CheckoutServer) {
	s.RegisterService(&CheckoutServiceDesc, srv)
}

func placeOrderHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(PlaceOrderRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CheckoutServer).PlaceOrder(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: placeOrderMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CheckoutServer).PlaceOrder(ctx, req.(*PlaceOrderRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// CheckoutClient calls the service over the JSON codec.
type CheckoutClient struct {
	cc grpc.ClientConnInterface
}

func NewCheckoutClient(cc grpc.ClientConnInterface) *CheckoutClient {
	return &CheckoutClient{cc: cc}
}

func (c *CheckoutClient) PlaceOrder(ctx context.Context, in *PlaceOrderRequest, opts ...grpc.CallOption) (*PlaceOrderResponse, error) {
	out := new(PlaceOrderResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(codecName)}, opts...)
	if err := c.cc.Invoke(ctx, placeOrderMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
