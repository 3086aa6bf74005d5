package port

import (
	"context"
	"errors"

	"github.com/rl1809/storefront/internal/core/domain"
)

var (
	ErrOrderNotFound   = errors.New("order not found")
	ErrProductNotFound = errors.New("product not found")

	// ErrStatusConflict is returned when a conditional status write finds the
	// order no longer in the expected status.
	ErrStatusConflict = errors.New("order status conflict")
)

type OrderRepository interface {
	// CreateOrder persists a new order together with its line items
	CreateOrder(ctx context.Context, order domain.Order) error

	// GetOrder retrieves an order by ID, ErrOrderNotFound if absent
	GetOrder(ctx context.Context, id string) (*domain.Order, error)

	// UpdateOrderStatus sets status to next only if it is still expected
	UpdateOrderStatus(ctx context.Context, id string, expected, next domain.OrderStatus) error

	// ListOrdersByEmail returns the orders placed with email, newest first
	ListOrdersByEmail(ctx context.Context, email string) ([]domain.Order, error)

	// ListOrders returns every order, newest first
	ListOrders(ctx context.Context) ([]domain.Order, error)
}

type ProductRepository interface {
	CreateProduct(ctx context.Context, product domain.Product) error
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) error
	DeleteProduct(ctx context.Context, id string) error

	// ListProducts returns one page matching filter and the total match count
	ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, int, error)

	// RelatedProducts returns up to limit products sharing category, excluding excludeID
	RelatedProducts(ctx context.Context, category domain.Category, excludeID string, limit int) ([]domain.Product, error)

	Categories(ctx context.Context) ([]domain.Category, error)
	Stats(ctx context.Context) (domain.CatalogStats, error)
}
