package port

import (
	"context"

	"github.com/rl1809/storefront/internal/core/domain"
)

type CartRepository interface {
	// GetCart returns the session's cart, empty if none exists yet
	GetCart(ctx context.Context, sessionID string) ([]domain.CartLineItem, error)

	// SaveCart replaces the session's cart
	SaveCart(ctx context.Context, sessionID string, items []domain.CartLineItem) error

	// ClearCart drops the session's cart
	ClearCart(ctx context.Context, sessionID string) error

	// AcquireCheckoutLock takes the per-session checkout lock, returns false if already held
	AcquireCheckoutLock(ctx context.Context, sessionID, token string) (bool, error)

	// ReleaseCheckoutLock drops the lock only if it is still held with token
	ReleaseCheckoutLock(ctx context.Context, sessionID, token string) error
}
