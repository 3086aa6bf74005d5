package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/core/service"
)

func (h *HTTPHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.ProductFilter{
		Category: q.Get("category"),
		Search:   q.Get("search"),
		Sort:     domain.ProductSort(q.Get("sort")),
		Page:     atoiOr(q.Get("page"), 1),
		Limit:    atoiOr(q.Get("limit"), service.DefaultPageSize),
	}

	var err error
	if filter.MinPrice, err = parsePrice(q.Get("minPrice")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid minPrice")
		return
	}
	if filter.MaxPrice, err = parsePrice(q.Get("maxPrice")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid maxPrice")
		return
	}

	page, err := h.catalog.ListProducts(r.Context(), filter)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *HTTPHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalog.Categories(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": categories})
}

func (h *HTTPHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	detail, err := h.catalog.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *HTTPHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	items, err := h.checkout.GetCart(r.Context(), sessionID(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cartResponse(items))
}

type AddItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  *int   `json:"quantity"`
}

func (h *HTTPHandler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.ProductID) == "" {
		writeError(w, http.StatusBadRequest, "productId is required")
		return
	}

	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}

	items, err := h.checkout.AddItem(r.Context(), sessionID(r), req.ProductID, quantity)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cartResponse(items))
}

func (h *HTTPHandler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	items, err := h.checkout.RemoveItem(r.Context(), sessionID(r), chi.URLParam(r, "productRef"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cartResponse(items))
}

type PreviewRequest struct {
	Coupon string `json:"coupon"`
}

// PreviewOrder serves both GET ?coupon= and POST {coupon}.
func (h *HTTPHandler) PreviewOrder(w http.ResponseWriter, r *http.Request) {
	req := PreviewRequest{Coupon: r.URL.Query().Get("coupon")}
	if r.Method == http.MethodPost {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	preview, err := h.checkout.Preview(r.Context(), sessionID(r), req.Coupon)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

type ConfirmOrderRequest struct {
	Email   string `json:"email"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
	Coupon  string `json:"coupon"`
}

func (h *HTTPHandler) ConfirmOrder(w http.ResponseWriter, r *http.Request) {
	var req ConfirmOrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.checkout.Confirm(r.Context(), service.ConfirmRequest{
		SessionID: sessionID(r),
		Email:     req.Email,
		Address:   req.Address,
		Phone:     req.Phone,
		Coupon:    req.Coupon,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.logger.Info("order placed",
		zap.String("order_id", order.ID),
		zap.Stringer("total", order.Total),
		zap.String("coupon", order.CouponCode),
	)
	writeJSON(w, http.StatusCreated, map[string]any{"order": order})
}

func (h *HTTPHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order": order})
}

type MyOrdersRequest struct {
	Email string `json:"email"`
}

func (h *HTTPHandler) MyOrders(w http.ResponseWriter, r *http.Request) {
	var req MyOrdersRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	orders, err := h.orders.ListByContactEmail(r.Context(), req.Email)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"orders": orders,
		"email":  strings.ToLower(strings.TrimSpace(req.Email)),
	})
}

func cartResponse(items []domain.CartLineItem) map[string]any {
	count := 0
	for _, item := range items {
		count += item.Quantity
	}
	return map[string]any{"cart": items, "itemCount": count}
}

func atoiOr(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}

func parsePrice(s string) (*decimal.Decimal, error) {
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
