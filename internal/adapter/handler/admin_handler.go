package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/auth"
	"github.com/rl1809/storefront/internal/core/domain"
)

const recentOrdersOnDashboard = 5

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (h *HTTPHandler) AdminLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, expiresAt, err := h.auth.Login(req.Username, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		h.logger.Warn("admin login failed", zap.String("username", req.Username), zap.String("remote_addr", r.RemoteAddr))
		writeError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{Token: token, ExpiresAt: expiresAt})
}

type DashboardResponse struct {
	Catalog      domain.CatalogStats        `json:"catalog"`
	OrderCount   int                        `json:"orderCount"`
	ByStatus     map[domain.OrderStatus]int `json:"byStatus"`
	Revenue      decimal.Decimal            `json:"revenue"`
	RecentOrders []domain.Order             `json:"recentOrders"`
}

func (h *HTTPHandler) AdminDashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.catalog.Stats(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	orders, err := h.orders.ListOrders(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	resp := DashboardResponse{
		Catalog:    stats,
		OrderCount: len(orders),
		ByStatus:   make(map[domain.OrderStatus]int),
		Revenue:    decimal.Zero,
	}
	for _, status := range domain.OrderStatuses() {
		resp.ByStatus[status] = 0
	}
	for _, o := range orders {
		resp.ByStatus[o.Status]++
		resp.Revenue = resp.Revenue.Add(o.Total)
	}
	resp.RecentOrders = orders[:min(len(orders), recentOrdersOnDashboard)]

	writeJSON(w, http.StatusOK, resp)
}

func (h *HTTPHandler) AdminListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListOrders(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"orders":   orders,
		"statuses": domain.OrderStatuses(),
	})
}

// AdminGetOrder also lists the statuses the order may move to next.
func (h *HTTPHandler) AdminGetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"order":        order,
		"nextStatuses": order.Status.NextStatuses(),
	})
}

type StatusRequest struct {
	NewStatus string `json:"newStatus"`
}

func (h *HTTPHandler) AdminUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req StatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id := chi.URLParam(r, "id")
	order, err := h.orders.Transition(r.Context(), id, req.NewStatus)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.logger.Info("admin changed order status",
		zap.String("admin", adminName(r)),
		zap.String("order_id", id),
		zap.Stringer("status", order.Status),
	)
	writeJSON(w, http.StatusOK, map[string]any{"order": order})
}

type ProductRequest struct {
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Category    domain.Category `json:"category"`
	Image       string          `json:"image"`
	Description string          `json:"description"`
	Stock       int             `json:"stock"`
	Featured    bool            `json:"featured"`
	Rating      float64         `json:"rating"`
}

func (p ProductRequest) product() domain.Product {
	return domain.Product{
		Name:        p.Name,
		Price:       p.Price,
		Category:    p.Category,
		Image:       p.Image,
		Description: p.Description,
		Stock:       p.Stock,
		Featured:    p.Featured,
		Rating:      p.Rating,
	}
}

func (h *HTTPHandler) AdminCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	product, err := h.catalog.CreateProduct(r.Context(), req.product())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"product": product})
}

func (h *HTTPHandler) AdminUpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	product, err := h.catalog.UpdateProduct(r.Context(), chi.URLParam(r, "id"), req.product())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product": product})
}

func (h *HTTPHandler) AdminDeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.DeleteProduct(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
