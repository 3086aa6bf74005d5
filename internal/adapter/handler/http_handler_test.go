package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/storefront/internal/adapter/storage"
	"github.com/rl1809/storefront/internal/auth"
	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/core/service"
)

const (
	testAdmin    = "admin"
	testPassword = "correct horse battery staple"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

// flakyOrders fails order writes while err is set.
type flakyOrders struct {
	*storage.MemoryAdapter
	err error
}

func (f *flakyOrders) CreateOrder(ctx context.Context, order domain.Order) error {
	if f.err != nil {
		return f.err
	}
	return f.MemoryAdapter.CreateOrder(ctx, order)
}

type testServer struct {
	*httptest.Server
	store  *storage.MemoryAdapter
	orders *flakyOrders
	auth   *auth.Authenticator
	client *http.Client
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	hash, err := auth.HashPassword(testPassword)
	require.NoError(t, err)
	authenticator := auth.NewAuthenticator(testAdmin, hash, testSecret, time.Hour)

	store := storage.NewMemoryAdapter()
	orders := &flakyOrders{MemoryAdapter: store}

	checkout := service.NewCheckoutService(store, orders, store, service.DefaultCouponBook(), nil)
	h := NewHTTPHandler(
		checkout,
		service.NewOrderService(orders, nil),
		service.NewCatalogService(store, nil),
		authenticator,
		map[string]Pinger{"store": store},
		nil,
	)

	srv := httptest.NewServer(h.Routes(RouterOptions{SessionMaxAge: time.Hour}))
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &testServer{
		Server: srv,
		store:  store,
		orders: orders,
		auth:   authenticator,
		client: &http.Client{Jar: jar},
	}
}

func (s *testServer) addProduct(t *testing.T, id, price string) {
	t.Helper()
	require.NoError(t, s.store.CreateProduct(context.Background(), domain.Product{
		ID:        id,
		Name:      "Product " + id,
		Price:     decimal.RequireFromString(price),
		Category:  domain.CategoryPrints,
		CreatedAt: time.Now(),
	}))
}

func (s *testServer) token(t *testing.T) string {
	t.Helper()
	token, _, err := s.auth.Login(testAdmin, testPassword)
	require.NoError(t, err)
	return token
}

// do sends a JSON request and decodes the JSON response into out when non-nil.
func (s *testServer) do(t *testing.T, method, path string, body any, token string, out any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, s.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil && resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

type orderEnvelope struct {
	Order domain.Order `json:"order"`
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(t)

	var body map[string]any
	resp := s.do(t, http.MethodGet, "/health", nil, "", &body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}

func TestCheckoutFlow(t *testing.T) {
	s := newTestServer(t)
	s.addProduct(t, "p1", "10.00")
	s.addProduct(t, "p2", "5.50")

	resp := s.do(t, http.MethodPost, "/api/cart/items", AddItemRequest{ProductID: "p1"}, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Cookies(), "first cart request issues the session cookie")

	qty := 2
	var cart struct {
		Cart      []domain.CartLineItem `json:"cart"`
		ItemCount int                   `json:"itemCount"`
	}
	s.do(t, http.MethodPost, "/api/cart/items", AddItemRequest{ProductID: "p2", Quantity: &qty}, "", &cart)
	assert.Len(t, cart.Cart, 2)
	assert.Equal(t, 3, cart.ItemCount)

	var preview service.Preview
	resp = s.do(t, http.MethodGet, "/api/order/preview?coupon=save10", nil, "", &preview)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, preview.Subtotal.Equal(decimal.RequireFromString("21.00")))
	assert.True(t, preview.Discount.Equal(decimal.RequireFromString("2.10")))
	assert.True(t, preview.Total.Equal(decimal.RequireFromString("18.90")))
	assert.True(t, preview.CouponApplied)

	var placed orderEnvelope
	resp = s.do(t, http.MethodPost, "/api/order/confirm", ConfirmOrderRequest{
		Email:  " Jane@Example.com ",
		Coupon: "SAVE10",
	}, "", &placed)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, domain.OrderStatusPlaced, placed.Order.Status)
	assert.Equal(t, "jane@example.com", placed.Order.ContactEmail)
	assert.True(t, placed.Order.Total.Equal(decimal.RequireFromString("18.90")))

	s.do(t, http.MethodGet, "/api/cart", nil, "", &cart)
	assert.Empty(t, cart.Cart, "cart is cleared after a successful confirm")

	var fetched orderEnvelope
	resp = s.do(t, http.MethodGet, "/api/order/"+placed.Order.ID, nil, "", &fetched)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, placed.Order.ID, fetched.Order.ID)

	var mine struct {
		Orders []domain.Order `json:"orders"`
		Email  string         `json:"email"`
	}
	s.do(t, http.MethodPost, "/api/order/my-orders", MyOrdersRequest{Email: "JANE@example.com"}, "", &mine)
	assert.Equal(t, "jane@example.com", mine.Email)
	require.Len(t, mine.Orders, 1)
	assert.Equal(t, placed.Order.ID, mine.Orders[0].ID)
}

func TestConfirm_EmptyCartRedirects(t *testing.T) {
	s := newTestServer(t)

	var body errorResponse
	resp := s.do(t, http.MethodPost, "/api/order/confirm", ConfirmOrderRequest{Email: "a@example.com"}, "", &body)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "/cart", body.Redirect)
}

func TestConfirm_MissingEmail(t *testing.T) {
	s := newTestServer(t)
	s.addProduct(t, "p1", "10.00")
	s.do(t, http.MethodPost, "/api/cart/items", AddItemRequest{ProductID: "p1"}, "", nil)

	resp := s.do(t, http.MethodPost, "/api/order/confirm", ConfirmOrderRequest{Email: "   "}, "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestConfirm_StoreUnavailableKeepsCart(t *testing.T) {
	s := newTestServer(t)
	s.addProduct(t, "p1", "10.00")
	s.do(t, http.MethodPost, "/api/cart/items", AddItemRequest{ProductID: "p1"}, "", nil)

	s.orders.err = errors.New("connection refused")
	resp := s.do(t, http.MethodPost, "/api/order/confirm", ConfirmOrderRequest{Email: "a@example.com"}, "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "1", resp.Header.Get("Retry-After"))

	var cart struct {
		Cart []domain.CartLineItem `json:"cart"`
	}
	s.do(t, http.MethodGet, "/api/cart", nil, "", &cart)
	assert.Len(t, cart.Cart, 1)

	s.orders.err = nil
	resp = s.do(t, http.MethodPost, "/api/order/confirm", ConfirmOrderRequest{Email: "a@example.com"}, "", nil)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestAddCartItem_Validation(t *testing.T) {
	s := newTestServer(t)
	s.addProduct(t, "p1", "10.00")

	zero := 0
	resp := s.do(t, http.MethodPost, "/api/cart/items", AddItemRequest{ProductID: "p1", Quantity: &zero}, "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	huge := math.MaxInt
	resp = s.do(t, http.MethodPost, "/api/cart/items", AddItemRequest{ProductID: "p1", Quantity: &huge}, "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = s.do(t, http.MethodPost, "/api/cart/items", AddItemRequest{ProductID: "nope"}, "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = s.do(t, http.MethodPost, "/api/cart/items", AddItemRequest{}, "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetOrder_NotFound(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, http.MethodGet, "/api/order/does-not-exist", nil, "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListProducts(t *testing.T) {
	s := newTestServer(t)
	s.addProduct(t, "p1", "10.00")
	s.addProduct(t, "p2", "150.00")

	var page service.ProductPage
	resp := s.do(t, http.MethodGet, "/api/products?category=all&maxPrice=100", nil, "", &page)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, page.Total)
	require.Len(t, page.Products, 1)
	assert.Equal(t, "p1", page.Products[0].ID)

	resp = s.do(t, http.MethodGet, "/api/products?minPrice=abc", nil, "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAdmin_RequiresToken(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, http.MethodGet, "/api/admin/orders", nil, "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/api/admin/orders", nil, "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAdmin_Login(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, http.MethodPost, "/api/admin/login", LoginRequest{Username: testAdmin, Password: "wrong"}, "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	var login LoginResponse
	resp = s.do(t, http.MethodPost, "/api/admin/login", LoginRequest{Username: testAdmin, Password: testPassword}, "", &login)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, login.Token)

	resp = s.do(t, http.MethodGet, "/api/admin/dashboard", nil, login.Token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAdmin_UpdateStatus(t *testing.T) {
	s := newTestServer(t)
	token := s.token(t)
	require.NoError(t, s.store.CreateOrder(context.Background(), domain.Order{
		ID:        "o-1",
		Status:    domain.OrderStatusPlaced,
		CreatedAt: time.Now(),
	}))

	var updated orderEnvelope
	resp := s.do(t, http.MethodPost, "/api/admin/orders/o-1/status", StatusRequest{NewStatus: "processing"}, token, &updated)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, domain.OrderStatusProcessing, updated.Order.Status)

	// Processing -> Processing is not a legal move.
	var rejected errorResponse
	resp = s.do(t, http.MethodPost, "/api/admin/orders/o-1/status", StatusRequest{NewStatus: "Processing"}, token, &rejected)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "Processing", rejected.CurrentStatus)
	assert.Equal(t, "Processing", rejected.RequestedStatus)
	assert.False(t, rejected.Conflict)

	var detail struct {
		Order        domain.Order         `json:"order"`
		NextStatuses []domain.OrderStatus `json:"nextStatuses"`
	}
	s.do(t, http.MethodGet, "/api/admin/orders/o-1", nil, token, &detail)
	assert.Equal(t, []domain.OrderStatus{domain.OrderStatusDelivered}, detail.NextStatuses)

	resp = s.do(t, http.MethodPost, "/api/admin/orders/missing/status", StatusRequest{NewStatus: "Processing"}, token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAdmin_ProductCRUD(t *testing.T) {
	s := newTestServer(t)
	token := s.token(t)

	req := ProductRequest{
		Name:        "Glacier Print",
		Price:       decimal.RequireFromString("45.00"),
		Category:    domain.CategoryPrints,
		Image:       "/images/glacier.jpg",
		Description: "Archival print",
		Stock:       4,
	}

	var created struct {
		Product domain.Product `json:"product"`
	}
	resp := s.do(t, http.MethodPost, "/api/admin/products", req, token, &created)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.NotEmpty(t, created.Product.ID)

	req.Stock = 9
	resp = s.do(t, http.MethodPut, "/api/admin/products/"+created.Product.ID, req, token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	bad := req
	bad.Category = "Toys"
	resp = s.do(t, http.MethodPost, "/api/admin/products", bad, token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = s.do(t, http.MethodDelete, "/api/admin/products/"+created.Product.ID, nil, token, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/api/products/"+created.Product.ID, nil, "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
