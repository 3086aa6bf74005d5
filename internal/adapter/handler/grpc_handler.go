package handler

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/rl1809/storefront/internal/auth"
	"github.com/rl1809/storefront/internal/core/service"
)

const orderAdminService = "storefront.v1.OrderAdmin"

// OrderAdminServer is the admin surface for order lifecycle operations.
// Requests and responses are google.protobuf.Struct documents shaped like the
// JSON API's payloads.
type OrderAdminServer interface {
	GetOrder(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	TransitionStatus(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListOrdersByEmail(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

var OrderAdminServiceDesc = grpc.ServiceDesc{
	ServiceName: orderAdminService,
	HandlerType: (*OrderAdminServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetOrder", Handler: unaryHandler("GetOrder", OrderAdminServer.GetOrder)},
		{MethodName: "TransitionStatus", Handler: unaryHandler("TransitionStatus", OrderAdminServer.TransitionStatus)},
		{MethodName: "ListOrdersByEmail", Handler: unaryHandler("ListOrdersByEmail", OrderAdminServer.ListOrdersByEmail)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "storefront/v1/order_admin.proto",
}

func unaryHandler(method string, call func(OrderAdminServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	fullMethod := "/" + orderAdminService + "/" + method
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(OrderAdminServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(OrderAdminServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

type GRPCHandler struct {
	orders *service.OrderService
	logger *zap.Logger
}

func NewGRPCHandler(orders *service.OrderService, logger *zap.Logger) *GRPCHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GRPCHandler{orders: orders, logger: logger}
}

// RegisterGRPC registers the order admin service and the standard health service.
func RegisterGRPC(s *grpc.Server, h *GRPCHandler) *health.Server {
	s.RegisterService(&OrderAdminServiceDesc, h)

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(s, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(orderAdminService, grpc_health_v1.HealthCheckResponse_SERVING)
	return healthServer
}

func (h *GRPCHandler) GetOrder(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := requiredField(req, "id")
	if err != nil {
		return nil, err
	}

	order, err := h.orders.GetOrder(ctx, id)
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(map[string]any{"order": order})
}

func (h *GRPCHandler) TransitionStatus(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := requiredField(req, "id")
	if err != nil {
		return nil, err
	}
	next, err := requiredField(req, "newStatus")
	if err != nil {
		return nil, err
	}

	order, err := h.orders.Transition(ctx, id, next)
	if err != nil {
		return nil, grpcError(err)
	}

	h.logger.Info("order status changed over grpc", zap.String("order_id", id), zap.Stringer("status", order.Status))
	return toStruct(map[string]any{"order": order})
}

func (h *GRPCHandler) ListOrdersByEmail(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	email := req.GetFields()["email"].GetStringValue()

	orders, err := h.orders.ListByContactEmail(ctx, email)
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(map[string]any{"orders": orders})
}

func requiredField(req *structpb.Struct, name string) (string, error) {
	v := strings.TrimSpace(req.GetFields()[name].GetStringValue())
	if v == "" {
		return "", status.Errorf(codes.InvalidArgument, "%s is required", name)
	}
	return v, nil
}

// toStruct goes through JSON so the document matches the HTTP payloads.
func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	out := new(structpb.Struct)
	if err := protojson.Unmarshal(raw, out); err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}

func grpcError(err error) error {
	var terr *service.TransitionError
	switch {
	case errors.As(err, &terr) && terr.Conflict:
		return status.Error(codes.Aborted, terr.Error())
	case errors.As(err, &terr):
		return status.Error(codes.FailedPrecondition, terr.Error())
	case errors.Is(err, service.ErrMissingContactInfo):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, service.ErrOrderNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, service.ErrPersistence):
		return status.Error(codes.Unavailable, "store unavailable, retry later")
	default:
		return status.Error(codes.Internal, "internal error")
	}
}

// UnaryLogger logs every unary call with its outcome.
func UnaryLogger(logger *zap.Logger) grpc.UnaryServerInterceptor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		code := status.Code(err)
		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.Stringer("code", code),
			zap.Duration("duration", time.Since(start)),
		}
		if code == codes.Internal || code == codes.Unavailable {
			logger.Error("grpc request failed", append(fields, zap.Error(err))...)
		} else {
			logger.Info("grpc request", fields...)
		}
		return resp, err
	}
}

// UnaryAdminAuth requires an admin bearer token in the authorization metadata
// for the order admin service. Health checks pass through.
func UnaryAdminAuth(authenticator *auth.Authenticator) grpc.UnaryServerInterceptor {
	prefix := "/" + orderAdminService + "/"
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if !strings.HasPrefix(info.FullMethod, prefix) {
			return handler(ctx, req)
		}

		md, _ := metadata.FromIncomingContext(ctx)
		values := md.Get("authorization")
		if len(values) == 0 || !strings.HasPrefix(values[0], "Bearer ") {
			return nil, status.Error(codes.Unauthenticated, "missing bearer token")
		}
		if _, err := authenticator.Verify(strings.TrimPrefix(values[0], "Bearer ")); err != nil {
			return nil, status.Error(codes.Unauthenticated, "invalid token")
		}
		return handler(ctx, req)
	}
}

// OrderAdminClient calls the order admin service on conn.
type OrderAdminClient struct {
	conn grpc.ClientConnInterface
}

func NewOrderAdminClient(conn grpc.ClientConnInterface) *OrderAdminClient {
	return &OrderAdminClient{conn: conn}
}

func (c *OrderAdminClient) GetOrder(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "GetOrder", in, opts...)
}

func (c *OrderAdminClient) TransitionStatus(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "TransitionStatus", in, opts...)
}

func (c *OrderAdminClient) ListOrdersByEmail(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "ListOrdersByEmail", in, opts...)
}

func (c *OrderAdminClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, "/"+orderAdminService+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
