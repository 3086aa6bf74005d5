package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/auth"
	"github.com/rl1809/storefront/internal/core/service"
)

// Pinger is a dependency the health check probes.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HTTPHandler struct {
	checkout *service.CheckoutService
	orders   *service.OrderService
	catalog  *service.CatalogService
	auth     *auth.Authenticator
	deps     map[string]Pinger
	logger   *zap.Logger
}

func NewHTTPHandler(
	checkout *service.CheckoutService,
	orders *service.OrderService,
	catalog *service.CatalogService,
	authenticator *auth.Authenticator,
	deps map[string]Pinger,
	logger *zap.Logger,
) *HTTPHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPHandler{
		checkout: checkout,
		orders:   orders,
		catalog:  catalog,
		auth:     authenticator,
		deps:     deps,
		logger:   logger,
	}
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := make(map[string]string, len(h.deps))
	status := http.StatusOK
	for name, dep := range h.deps {
		if err := dep.Ping(ctx); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	overall := "ok"
	if status != http.StatusOK {
		overall = "degraded"
	}
	writeJSON(w, status, map[string]any{"status": overall, "checks": checks})
}

type errorResponse struct {
	Error           string `json:"error"`
	Redirect        string `json:"redirect,omitempty"`
	CurrentStatus   string `json:"currentStatus,omitempty"`
	RequestedStatus string `json:"requestedStatus,omitempty"`
	Conflict        bool   `json:"conflict,omitempty"`
}

// writeServiceError maps service errors to HTTP responses and logs the
// failure once.
func (h *HTTPHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	resp := errorResponse{Error: "internal error"}

	var terr *service.TransitionError
	switch {
	case errors.As(err, &terr):
		status = http.StatusConflict
		resp = errorResponse{
			Error:           terr.Error(),
			CurrentStatus:   terr.Current.String(),
			RequestedStatus: terr.Requested.String(),
			Conflict:        terr.Conflict,
		}
	case errors.Is(err, service.ErrEmptyCart):
		status = http.StatusBadRequest
		resp = errorResponse{Error: err.Error(), Redirect: "/cart"}
	case errors.Is(err, service.ErrMissingContactInfo),
		errors.Is(err, service.ErrInvalidQuantity),
		errors.Is(err, service.ErrInvalidCart),
		errors.Is(err, service.ErrInvalidProduct):
		status = http.StatusBadRequest
		resp.Error = err.Error()
	case errors.Is(err, service.ErrOrderNotFound), errors.Is(err, service.ErrProductNotFound):
		status = http.StatusNotFound
		resp.Error = err.Error()
	case errors.Is(err, service.ErrCheckoutInProgress):
		status = http.StatusConflict
		resp.Error = err.Error()
	case errors.Is(err, service.ErrPersistence):
		status = http.StatusServiceUnavailable
		resp.Error = "service temporarily unavailable, please retry"
		w.Header().Set("Retry-After", "1")
	}

	fields := []zap.Field{
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", fields...)
	} else {
		h.logger.Debug("request rejected", fields...)
	}

	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// decodeJSON reads a JSON body into dst. An empty body leaves dst untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
