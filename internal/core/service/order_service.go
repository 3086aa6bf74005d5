package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

type OrderService struct {
	orders port.OrderRepository
	logger *zap.Logger
}

func NewOrderService(orders port.OrderRepository, logger *zap.Logger) *OrderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderService{
		orders: orders,
		logger: logger,
	}
}

func (s *OrderService) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	order, err := s.orders.GetOrder(ctx, id)
	if err != nil {
		if errors.Is(err, port.ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, persistenceError("load order", err)
	}
	return order, nil
}

// ListByContactEmail returns the orders placed with email, newest first.
func (s *OrderService) ListByContactEmail(ctx context.Context, email string) ([]domain.Order, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, ErrMissingContactInfo
	}

	orders, err := s.orders.ListOrdersByEmail(ctx, email)
	if err != nil {
		return nil, persistenceError("list orders by email", err)
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	return orders, nil
}

func (s *OrderService) ListOrders(ctx context.Context) ([]domain.Order, error) {
	orders, err := s.orders.ListOrders(ctx)
	if err != nil {
		return nil, persistenceError("list orders", err)
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	return orders, nil
}

// Transition moves the order to the requested status if the transition table
// allows it from the order's current status. The write is conditional on the
// status read here; losing a race yields a TransitionError that also matches
// ErrConcurrentModification and carries the status the winner wrote.
func (s *OrderService) Transition(ctx context.Context, id, requested string) (*domain.Order, error) {
	order, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}

	next, ok := domain.ParseOrderStatus(requested)
	if !ok || !order.Status.CanTransitionTo(next) {
		return nil, &TransitionError{Current: order.Status, Requested: next}
	}

	err = s.orders.UpdateOrderStatus(ctx, id, order.Status, next)
	switch {
	case err == nil:
	case errors.Is(err, port.ErrStatusConflict):
		current, rerr := s.GetOrder(ctx, id)
		if rerr != nil {
			return nil, rerr
		}
		s.logger.Info("status transition lost race",
			zap.String("order_id", id),
			zap.Stringer("expected", order.Status),
			zap.Stringer("current", current.Status),
			zap.Stringer("requested", next),
		)
		return nil, &TransitionError{Current: current.Status, Requested: next, Conflict: true}
	case errors.Is(err, port.ErrOrderNotFound):
		return nil, ErrOrderNotFound
	default:
		return nil, persistenceError("update order status", err)
	}

	order.Status = next
	s.logger.Info("order status changed",
		zap.String("order_id", id),
		zap.Stringer("status", next),
	)
	return order, nil
}
