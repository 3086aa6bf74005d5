package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type RouterOptions struct {
	AllowedOrigins []string
	SecureCookies  bool
	SessionMaxAge  time.Duration
	RequestTimeout time.Duration
}

func (h *HTTPHandler) Routes(opts RouterOptions) http.Handler {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 60 * time.Second
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(RequestLogger(h.logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(opts.RequestTimeout))

	// Browsers only send the sid cookie cross-origin with credentials allowed,
	// which rules out the wildcard origin.
	allowCredentials := !(len(opts.AllowedOrigins) == 1 && opts.AllowedOrigins[0] == "*")
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Link", "Retry-After"},
		AllowCredentials: allowCredentials,
		MaxAge:           300,
	}))

	r.Get("/health", h.HealthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.ListProducts)
			r.Get("/categories", h.ListCategories)
			r.Get("/{id}", h.GetProduct)
		})

		r.Group(func(r chi.Router) {
			r.Use(Session(opts.SecureCookies, opts.SessionMaxAge))

			r.Get("/cart", h.GetCart)
			r.Post("/cart/items", h.AddCartItem)
			r.Delete("/cart/items/{productRef}", h.RemoveCartItem)

			r.Get("/order/preview", h.PreviewOrder)
			r.Post("/order/preview", h.PreviewOrder)
			r.Post("/order/confirm", h.ConfirmOrder)
		})

		r.Post("/order/my-orders", h.MyOrders)
		r.Get("/order/{id}", h.GetOrder)

		r.Route("/admin", func(r chi.Router) {
			r.Post("/login", h.AdminLogin)

			r.Group(func(r chi.Router) {
				r.Use(AdminAuth(h.auth))

				r.Get("/dashboard", h.AdminDashboard)
				r.Get("/orders", h.AdminListOrders)
				r.Get("/orders/{id}", h.AdminGetOrder)
				r.Post("/orders/{id}/status", h.AdminUpdateStatus)
				r.Post("/products", h.AdminCreateProduct)
				r.Put("/products/{id}", h.AdminUpdateProduct)
				r.Delete("/products/{id}", h.AdminDeleteProduct)
			})
		})
	})

	return r
}
