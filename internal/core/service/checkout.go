package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

// MaxLineQuantity caps the quantity of a single cart line.
const MaxLineQuantity = 999

// maxOrderAmount is the largest amount the order columns hold.
var maxOrderAmount = decimal.RequireFromString("9999999999.99")

type CheckoutSummary struct {
	Subtotal      decimal.Decimal `json:"subtotal"`
	Discount      decimal.Decimal `json:"discount"`
	Total         decimal.Decimal `json:"total"`
	CouponApplied bool            `json:"couponApplied"`
	CouponCode    string          `json:"couponCode,omitempty"`
}

// ComputeCheckout derives the amounts for items and an optional coupon code.
// Unknown coupon codes yield no discount rather than an error. It does not
// validate items: quantities and prices are the caller's responsibility.
func ComputeCheckout(items []domain.CartLineItem, couponCode string, coupons CouponBook) CheckoutSummary {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.LineTotal())
	}

	summary := CheckoutSummary{
		Subtotal: subtotal,
		Discount: decimal.Zero,
		Total:    subtotal,
	}

	if code, rule, ok := coupons.Lookup(couponCode); ok {
		summary.Discount = rule.Discount(subtotal)
		summary.Total = subtotal.Sub(summary.Discount)
		summary.CouponApplied = true
		summary.CouponCode = code
	}

	return summary
}

type Preview struct {
	Cart []domain.CartLineItem `json:"cart"`
	CheckoutSummary
}

type ConfirmRequest struct {
	SessionID string
	Email     string
	Address   string
	Phone     string
	Coupon    string
}

type CheckoutService struct {
	carts    port.CartRepository
	orders   port.OrderRepository
	products port.ProductRepository
	coupons  CouponBook
	logger   *zap.Logger
	now      func() time.Time
}

func NewCheckoutService(
	carts port.CartRepository,
	orders port.OrderRepository,
	products port.ProductRepository,
	coupons CouponBook,
	logger *zap.Logger,
) *CheckoutService {
	if coupons == nil {
		coupons = DefaultCouponBook()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CheckoutService{
		carts:    carts,
		orders:   orders,
		products: products,
		coupons:  coupons,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *CheckoutService) GetCart(ctx context.Context, sessionID string) ([]domain.CartLineItem, error) {
	items, err := s.carts.GetCart(ctx, sessionID)
	if err != nil {
		return nil, persistenceError("load cart", err)
	}
	if items == nil {
		items = []domain.CartLineItem{}
	}
	return items, nil
}

// AddItem snapshots the product's current name and price into the cart,
// merging with an existing line for the same product.
func (s *CheckoutService) AddItem(ctx context.Context, sessionID, productID string, quantity int) ([]domain.CartLineItem, error) {
	if quantity <= 0 || quantity > MaxLineQuantity {
		return nil, ErrInvalidQuantity
	}

	product, err := s.products.GetProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, port.ErrProductNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, persistenceError("load product", err)
	}

	items, err := s.GetCart(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	merged := false
	for i := range items {
		if items[i].ProductRef == product.ID {
			if items[i].Quantity+quantity > MaxLineQuantity {
				return nil, ErrInvalidQuantity
			}
			items[i].Quantity += quantity
			merged = true
			break
		}
	}
	if !merged {
		items = append(items, domain.CartLineItem{
			ProductRef: product.ID,
			Name:       product.Name,
			UnitPrice:  product.Price,
			Quantity:   quantity,
		})
	}

	if err := s.carts.SaveCart(ctx, sessionID, items); err != nil {
		return nil, persistenceError("save cart", err)
	}
	return items, nil
}

func (s *CheckoutService) RemoveItem(ctx context.Context, sessionID, productRef string) ([]domain.CartLineItem, error) {
	items, err := s.GetCart(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	kept := items[:0]
	for _, item := range items {
		if item.ProductRef != productRef {
			kept = append(kept, item)
		}
	}

	if err := s.carts.SaveCart(ctx, sessionID, kept); err != nil {
		return nil, persistenceError("save cart", err)
	}
	return kept, nil
}

// Preview computes the checkout amounts for the session's cart without
// mutating anything.
func (s *CheckoutService) Preview(ctx context.Context, sessionID, coupon string) (*Preview, error) {
	items, err := s.GetCart(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	return &Preview{
		Cart:            items,
		CheckoutSummary: ComputeCheckout(items, coupon, s.coupons),
	}, nil
}

// Confirm turns the session's cart into a Placed order. The cart is cleared
// only after the order is stored, so a failed confirm can be retried as is.
func (s *CheckoutService) Confirm(ctx context.Context, req ConfirmRequest) (*domain.Order, error) {
	items, err := s.GetCart(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return nil, ErrMissingContactInfo
	}

	token := uuid.NewString()
	ok, err := s.carts.AcquireCheckoutLock(ctx, req.SessionID, token)
	if err != nil {
		return nil, persistenceError("acquire checkout lock", err)
	}
	if !ok {
		return nil, ErrCheckoutInProgress
	}
	defer func() {
		if err := s.carts.ReleaseCheckoutLock(context.WithoutCancel(ctx), req.SessionID, token); err != nil {
			s.logger.Warn("failed to release checkout lock", zap.String("session_id", req.SessionID), zap.Error(err))
		}
	}()

	// Re-read under the lock: a concurrent confirm may have emptied the cart.
	items, err = s.GetCart(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	if err := validateCart(items); err != nil {
		return nil, err
	}

	summary := ComputeCheckout(items, req.Coupon, s.coupons)
	if summary.Total.IsNegative() || summary.Subtotal.GreaterThan(maxOrderAmount) {
		return nil, ErrInvalidCart
	}

	order := domain.Order{
		ID:              uuid.NewString(),
		ContactEmail:    email,
		ShippingAddress: strings.TrimSpace(req.Address),
		Phone:           strings.TrimSpace(req.Phone),
		LineItems:       snapshotLineItems(items),
		Subtotal:        summary.Subtotal,
		Discount:        summary.Discount,
		CouponCode:      summary.CouponCode,
		Total:           summary.Total,
		Status:          domain.OrderStatusPlaced,
		CreatedAt:       s.now().UTC(),
	}

	if err := s.orders.CreateOrder(ctx, order); err != nil {
		return nil, persistenceError("create order", err)
	}

	if err := s.carts.ClearCart(ctx, req.SessionID); err != nil {
		// The order is stored; reporting failure here would invite a duplicate confirm.
		s.logger.Error("order stored but cart not cleared",
			zap.String("order_id", order.ID),
			zap.String("session_id", req.SessionID),
			zap.Error(err),
		)
	}

	return &order, nil
}

func validateCart(items []domain.CartLineItem) error {
	for _, item := range items {
		if item.Quantity <= 0 || item.Quantity > MaxLineQuantity || item.UnitPrice.IsNegative() {
			return fmt.Errorf("%w: %s", ErrInvalidCart, item.ProductRef)
		}
	}
	return nil
}

func snapshotLineItems(items []domain.CartLineItem) []domain.LineItem {
	out := make([]domain.LineItem, 0, len(items))
	for _, item := range items {
		out = append(out, domain.LineItem{
			ProductRef:  item.ProductRef,
			ProductName: item.Name,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			LineTotal:   item.LineTotal(),
		})
	}
	return out
}
