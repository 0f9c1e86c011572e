package grpc

import (
	"context"
	"strconv"

	d "github.com/danirudp/lipos/domain"
	s "github.com/danirudp/lipos/internal/service"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type CheckoutServiceServer struct {
	service s.CheckoutService
}

func NewCheckoutServiceServer(service s.CheckoutService) *CheckoutServiceServer {
	return &CheckoutServiceServer{
		service: service,
	}
}

func (h *CheckoutServiceServer) PlaceOrder(ctx context.Context, req *PlaceOrderRequest) (*PlaceOrderResponse, error) {
	items := make([]d.CartLine, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, d.CartLine{
			ProductID:         item.ProductID,
			Quantity:          item.Quantity,
			UnitPriceSnapshot: item.UnitPrice,
		})
	}

	conf, err := h.service.PlaceOrder(ctx, &d.PlaceOrderRequest{
		Items:          items,
		DeclaredTotal:  req.DeclaredTotal,
		CustomerID:     req.CustomerID,
		PaymentMethod:  req.PaymentMethod,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		return nil, toStatus(err)
	}

	return &PlaceOrderResponse{
		OrderID:        conf.OrderID,
		ConfirmedTotal: conf.TotalAmount.StringFixed(2),
		Replayed:       conf.Replayed,
	}, nil
}

func kindToCode(kind s.Kind) codes.Code {
	switch kind {
	case s.KindEmptyCart, s.KindInvalidLine:
		return codes.InvalidArgument
	case s.KindProductNotFound, s.KindCustomerNotFound:
		return codes.NotFound
	case s.KindInsufficientStock:
		return codes.FailedPrecondition
	case s.KindCommitAborted:
		return codes.Aborted
	case s.KindPersistenceUnavailable:
		return codes.Unavailable
	case s.KindCommitTimeout:
		return codes.DeadlineExceeded
	case s.KindCanceled:
		return codes.Canceled
	default:
		return codes.Internal
	}
}

// toStatus attaches an ErrorInfo carrying the kind and stock detail, so clients need not parse messages.
func toStatus(err error) error {
	ce, ok := s.AsCheckoutError(err)
	if !ok {
		return status.Error(codes.Internal, "checkout failed")
	}

	msg := ce.Error()
	if ce.Retryable() {
		// storage detail stays in the server logs
		msg = string(ce.Kind)
	}
	st := status.New(kindToCode(ce.Kind), msg)

	md := map[string]string{"retryable": strconv.FormatBool(ce.Retryable())}
	if ce.ProductID != "" {
		md["product_id"] = ce.ProductID
	}
	if ce.CustomerID != "" {
		md["customer_id"] = ce.CustomerID
	}
	if ce.HasStockCounts() {
		md["available"] = strconv.Itoa(ce.Available)
	}
	if ce.ProductID != "" && (ce.Kind == s.KindInsufficientStock || ce.Kind == s.KindCommitAborted) {
		md["requested"] = strconv.Itoa(ce.Requested)
	}

	detailed, derr := st.WithDetails(&errdetails.ErrorInfo{
		Reason:   string(ce.Kind),
		Domain:   errorInfoDomain,
		Metadata: md,
	})
	if derr != nil {
		return st.Err()
	}
	return detailed.Err()
}
