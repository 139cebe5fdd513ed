package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/Alexyn15/trangsucvn/app/entity"
	"github.com/Alexyn15/trangsucvn/app/mapper"
	"github.com/Alexyn15/trangsucvn/app/service"
)

type Server struct {
	orderService *service.OrderService
}

func NewServer(orderService *service.OrderService) *Server {
	return &Server{orderService: orderService}
}

func (s *Server) GetOrderByReference(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	reference := strings.TrimSpace(req.GetValue())
	if reference == "" {
		return nil, status.Error(codes.InvalidArgument, "reference is required")
	}

	order, err := s.orderService.GetOrderByReference(ctx, reference)
	if err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			return nil, status.Error(codes.NotFound, "order not found")
		}
		loggerWithContext(ctx).WithError(err).Error("Get order by reference failed")
		return nil, status.Error(codes.Internal, "internal server error")
	}

	return orderToStruct(order)
}

// ConfirmPayment is the internal manual reconciliation path. Callers are
// authorized by the internal access interceptor, so it runs as the system
// actor.
func (s *Server) ConfirmPayment(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	l := loggerWithContext(ctx)
	reference := strings.TrimSpace(req.GetValue())
	if reference == "" {
		return nil, status.Error(codes.InvalidArgument, "reference is required")
	}

	order, err := s.orderService.MarkPaidByReference(ctx, service.SystemActor, reference)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOrderNotFound):
			return nil, status.Error(codes.NotFound, "order not found")
		case errors.Is(err, service.ErrInvalidRequest):
			return nil, status.Error(codes.InvalidArgument, err.Error())
		default:
			l.WithError(err).Error("Confirm payment failed")
			return nil, status.Error(codes.Internal, "internal server error")
		}
	}

	return orderToStruct(order)
}

func orderToStruct(order *entity.Order) (*structpb.Struct, error) {
	raw, err := json.Marshal(mapper.OrderToProto(order))
	if err != nil {
		return nil, status.Error(codes.Internal, "internal server error")
	}

	fields := map[string]interface{}{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, status.Error(codes.Internal, "internal server error")
	}

	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Error(codes.Internal, "internal server error")
	}
	return out, nil
}
