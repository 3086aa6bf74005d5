package service

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

// Mock CartRepository
type mockCartRepo struct {
	carts map[string][]domain.CartLineItem
	locks map[string]string
	mu    sync.Mutex

	getErr   error
	saveErr  error
	clearErr error
}

func newMockCartRepo() *mockCartRepo {
	return &mockCartRepo{
		carts: make(map[string][]domain.CartLineItem),
		locks: make(map[string]string),
	}
}

func (m *mockCartRepo) GetCart(ctx context.Context, sessionID string) ([]domain.CartLineItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.getErr != nil {
		return nil, m.getErr
	}
	return append([]domain.CartLineItem(nil), m.carts[sessionID]...), nil
}

func (m *mockCartRepo) SaveCart(ctx context.Context, sessionID string, items []domain.CartLineItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.saveErr != nil {
		return m.saveErr
	}
	m.carts[sessionID] = append([]domain.CartLineItem(nil), items...)
	return nil
}

func (m *mockCartRepo) ClearCart(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.clearErr != nil {
		return m.clearErr
	}
	delete(m.carts, sessionID)
	return nil
}

func (m *mockCartRepo) AcquireCheckoutLock(ctx context.Context, sessionID, token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, held := m.locks[sessionID]; held {
		return false, nil
	}
	m.locks[sessionID] = token
	return true, nil
}

func (m *mockCartRepo) ReleaseCheckoutLock(ctx context.Context, sessionID, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.locks[sessionID] == token {
		delete(m.locks, sessionID)
	}
	return nil
}

func (m *mockCartRepo) cart(sessionID string) []domain.CartLineItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.carts[sessionID]
}

// Mock OrderRepository
type mockOrderRepo struct {
	orders map[string]domain.Order
	mu     sync.Mutex

	createErr error
	updateErr error

	// barrier, when set, holds every status write until enough reads arrived
	barrier *readBarrier
}

func newMockOrderRepo() *mockOrderRepo {
	return &mockOrderRepo{orders: make(map[string]domain.Order)}
}

func (m *mockOrderRepo) CreateOrder(ctx context.Context, order domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.createErr != nil {
		return m.createErr
	}
	order.LineItems = append([]domain.LineItem(nil), order.LineItems...)
	m.orders[order.ID] = order
	return nil
}

func (m *mockOrderRepo) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	m.mu.Lock()
	order, ok := m.orders[id]
	m.mu.Unlock()

	if m.barrier != nil {
		m.barrier.arrive()
	}
	if !ok {
		return nil, port.ErrOrderNotFound
	}
	order.LineItems = append([]domain.LineItem(nil), order.LineItems...)
	return &order, nil
}

func (m *mockOrderRepo) UpdateOrderStatus(ctx context.Context, id string, expected, next domain.OrderStatus) error {
	if m.barrier != nil {
		m.barrier.wait()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.updateErr != nil {
		return m.updateErr
	}
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

func (m *mockOrderRepo) ListOrdersByEmail(ctx context.Context, email string) ([]domain.Order, error) {
	var out []domain.Order
	for _, o := range m.sorted() {
		if o.ContactEmail == email {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *mockOrderRepo) ListOrders(ctx context.Context) ([]domain.Order, error) {
	return m.sorted(), nil
}

func (m *mockOrderRepo) sorted() []domain.Order {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.Order, 0, len(m.orders))
	for _, o := range m.orders {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *mockOrderRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

type readBarrier struct {
	n     int
	count int
	once  sync.Once
	ch    chan struct{}
	mu    sync.Mutex
}

func newReadBarrier(n int) *readBarrier {
	return &readBarrier{n: n, ch: make(chan struct{})}
}

func (b *readBarrier) arrive() {
	b.mu.Lock()
	b.count++
	reached := b.count >= b.n
	b.mu.Unlock()

	if reached {
		b.once.Do(func() { close(b.ch) })
	}
}

func (b *readBarrier) wait() {
	<-b.ch
}

// Mock ProductRepository
type mockProductRepo struct {
	products map[string]domain.Product
	mu       sync.Mutex

	lastFilter domain.ProductFilter
	listErr    error
	relatedErr error
}

func newMockProductRepo(products ...domain.Product) *mockProductRepo {
	m := &mockProductRepo{products: make(map[string]domain.Product)}
	for _, p := range products {
		m.products[p.ID] = p
	}
	return m
}

func (m *mockProductRepo) CreateProduct(ctx context.Context, product domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[product.ID] = product
	return nil
}

func (m *mockProductRepo) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.products[id]
	if !ok {
		return nil, port.ErrProductNotFound
	}
	return &p, nil
}

func (m *mockProductRepo) UpdateProduct(ctx context.Context, product domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.products[product.ID]; !ok {
		return port.ErrProductNotFound
	}
	m.products[product.ID] = product
	return nil
}

func (m *mockProductRepo) DeleteProduct(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.products[id]; !ok {
		return port.ErrProductNotFound
	}
	delete(m.products, id)
	return nil
}

func (m *mockProductRepo) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastFilter = filter
	if m.listErr != nil {
		return nil, 0, m.listErr
	}

	var matched []domain.Product
	for _, p := range m.products {
		if filter.Category != "" && string(p.Category) != filter.Category {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(filter.Search)) {
			continue
		}
		matched = append(matched, p)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	total := len(matched)
	start := filter.Offset()
	if start > total {
		start = total
	}
	end := start + filter.Limit
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (m *mockProductRepo) RelatedProducts(ctx context.Context, category domain.Category, excludeID string, limit int) ([]domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.relatedErr != nil {
		return nil, m.relatedErr
	}

	var out []domain.Product
	for _, p := range m.products {
		if p.Category == category && p.ID != excludeID && len(out) < limit {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockProductRepo) Categories(ctx context.Context) ([]domain.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[domain.Category]bool)
	var out []domain.Category
	for _, p := range m.products {
		if !seen[p.Category] {
			seen[p.Category] = true
			out = append(out, p.Category)
		}
	}
	return out, nil
}

func (m *mockProductRepo) Stats(ctx context.Context) (domain.CatalogStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := domain.CatalogStats{TotalProducts: len(m.products)}
	for _, p := range m.products {
		stats.TotalStock += p.Stock
	}
	return stats, nil
}
