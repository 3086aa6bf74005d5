package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

// MemoryAdapter implements every repository port in process memory. It backs
// DB_DRIVER=memory for local runs and the handler tests.
type MemoryAdapter struct {
	mu       sync.Mutex
	orders   map[string]domain.Order
	products map[string]domain.Product
	carts    map[string][]domain.CartLineItem
	locks    map[string]memoryLock
	lockTTL  time.Duration
	now      func() time.Time
}

type memoryLock struct {
	token   string
	expires time.Time
}

func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{
		orders:   make(map[string]domain.Order),
		products: make(map[string]domain.Product),
		carts:    make(map[string][]domain.CartLineItem),
		locks:    make(map[string]memoryLock),
		lockTTL:  DefaultCheckoutLockTTL,
		now:      time.Now,
	}
}

func (m *MemoryAdapter) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (m *MemoryAdapter) CreateOrder(ctx context.Context, order domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	order.LineItems = append([]domain.LineItem(nil), order.LineItems...)
	m.orders[order.ID] = order
	return nil
}

func (m *MemoryAdapter) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	order, ok := m.orders[id]
	if !ok {
		return nil, port.ErrOrderNotFound
	}
	order.LineItems = append([]domain.LineItem(nil), order.LineItems...)
	return &order, nil
}

func (m *MemoryAdapter) UpdateOrderStatus(ctx context.Context, id string, expected, next domain.OrderStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	order, ok := m.orders[id]
	if !ok {
		return port.ErrOrderNotFound
	}
	if order.Status != expected {
		return port.ErrStatusConflict
	}
	order.Status = next
	m.orders[id] = order
	return nil
}

func (m *MemoryAdapter) ListOrdersByEmail(ctx context.Context, email string) ([]domain.Order, error) {
	return m.listOrders(func(o domain.Order) bool { return o.ContactEmail == email }), nil
}

func (m *MemoryAdapter) ListOrders(ctx context.Context) ([]domain.Order, error) {
	return m.listOrders(func(domain.Order) bool { return true }), nil
}

func (m *MemoryAdapter) listOrders(match func(domain.Order) bool) []domain.Order {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.Order
	for _, o := range m.orders {
		if match(o) {
			o.LineItems = append([]domain.LineItem(nil), o.LineItems...)
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (m *MemoryAdapter) CreateProduct(ctx context.Context, p domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.products[p.ID] = p
	return nil
}

func (m *MemoryAdapter) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.products[id]
	if !ok {
		return nil, port.ErrProductNotFound
	}
	return &p, nil
}

func (m *MemoryAdapter) UpdateProduct(ctx context.Context, p domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.products[p.ID]; !ok {
		return port.ErrProductNotFound
	}
	m.products[p.ID] = p
	return nil
}

func (m *MemoryAdapter) DeleteProduct(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.products[id]; !ok {
		return port.ErrProductNotFound
	}
	delete(m.products, id)
	return nil
}

func (m *MemoryAdapter) ListProducts(ctx context.Context, f domain.ProductFilter) ([]domain.Product, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	search := strings.ToLower(f.Search)
	var matched []domain.Product
	for _, p := range m.products {
		switch {
		case f.Category != "" && string(p.Category) != f.Category:
			continue
		case f.MinPrice != nil && p.Price.LessThan(*f.MinPrice):
			continue
		case f.MaxPrice != nil && p.Price.GreaterThan(*f.MaxPrice):
			continue
		case search != "" &&
			!strings.Contains(strings.ToLower(p.Name), search) &&
			!strings.Contains(strings.ToLower(p.Description), search):
			continue
		}
		matched = append(matched, p)
	}

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		switch f.Sort {
		case domain.SortPriceAsc:
			if !a.Price.Equal(b.Price) {
				return a.Price.LessThan(b.Price)
			}
		case domain.SortPriceDesc:
			if !a.Price.Equal(b.Price) {
				return a.Price.GreaterThan(b.Price)
			}
		case domain.SortName:
			if a.Name != b.Name {
				return a.Name < b.Name
			}
		default:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
		}
		return a.ID < b.ID
	})

	total := len(matched)
	start := min(f.Offset(), total)
	end := total
	if f.Limit > 0 {
		end = min(start+f.Limit, total)
	}
	return matched[start:end], total, nil
}

func (m *MemoryAdapter) RelatedProducts(ctx context.Context, category domain.Category, excludeID string, limit int) ([]domain.Product, error) {
	products, _, err := m.ListProducts(ctx, domain.ProductFilter{Category: string(category)})
	if err != nil {
		return nil, err
	}

	var out []domain.Product
	for _, p := range products {
		if p.ID != excludeID && len(out) < limit {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *MemoryAdapter) Categories(ctx context.Context) ([]domain.Category, error) {
	stats, err := m.Stats(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Category, 0, len(stats.Categories))
	for _, c := range stats.Categories {
		out = append(out, c.Category)
	}
	return out, nil
}

func (m *MemoryAdapter) Stats(ctx context.Context) (domain.CatalogStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	counts := make(map[domain.Category]int)
	stats := domain.CatalogStats{TotalProducts: len(m.products), Categories: []domain.CategoryCount{}}
	for _, p := range m.products {
		stats.TotalStock += p.Stock
		counts[p.Category]++
	}
	for c, n := range counts {
		stats.Categories = append(stats.Categories, domain.CategoryCount{Category: c, Count: n})
	}
	sort.Slice(stats.Categories, func(i, j int) bool { return stats.Categories[i].Category < stats.Categories[j].Category })
	return stats, nil
}

func (m *MemoryAdapter) GetCart(ctx context.Context, sessionID string) ([]domain.CartLineItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]domain.CartLineItem{}, m.carts[sessionID]...), nil
}

func (m *MemoryAdapter) SaveCart(ctx context.Context, sessionID string, items []domain.CartLineItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(items) == 0 {
		delete(m.carts, sessionID)
		return nil
	}
	m.carts[sessionID] = append([]domain.CartLineItem(nil), items...)
	return nil
}

func (m *MemoryAdapter) ClearCart(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.carts, sessionID)
	return nil
}

func (m *MemoryAdapter) AcquireCheckoutLock(ctx context.Context, sessionID, token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if l, held := m.locks[sessionID]; held && now.Before(l.expires) {
		return false, nil
	}
	m.locks[sessionID] = memoryLock{token: token, expires: now.Add(m.lockTTL)}
	return true, nil
}

func (m *MemoryAdapter) ReleaseCheckoutLock(ctx context.Context, sessionID, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.locks[sessionID].token == token {
		delete(m.locks, sessionID)
	}
	return nil
}
