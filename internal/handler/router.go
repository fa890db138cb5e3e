package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	custommiddleware "github.com/twalmsley/FlashSales-sub001/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса флеш-распродаж.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(custommiddleware.Logger(h.logger))

	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(custommiddleware.GzipMiddleware)

		r.Route("/api", func(r chi.Router) {
			r.Get("/sales/active", h.GetActiveSales)
			r.Get("/sales/{saleID}", h.GetSale)

			r.Group(func(r chi.Router) {
				r.Use(h.authMiddleware.Middleware)

				r.Post("/orders", h.CreateOrder)
				r.Get("/orders", h.GetOrders)
				r.Get("/orders/{orderID}", h.GetOrder)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(custommiddleware.AdminOnly(h.adminKey))

				r.Post("/tokens", h.IssueToken)

				r.Post("/products", h.CreateProduct)
				r.Get("/products", h.ListProducts)
				r.Get("/products/{productID}", h.GetProduct)

				r.Post("/sales", h.CreateSale)
				r.Get("/sales", h.ListSales)
				r.Post("/sales/{saleID}/items", h.AddSaleItem)
				r.Get("/sales/{saleID}/stats", h.GetSaleStats)

				r.Get("/orders/{orderID}/history", h.GetOrderHistory)
				r.Put("/orders/{orderID}/status", h.UpdateOrderStatus)
				r.Post("/orders/{orderID}/refund", h.RefundOrder)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
