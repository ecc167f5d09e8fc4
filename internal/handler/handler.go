// Package handler exposes the storefront HTTP API. Handlers translate
// requests into domain calls and domain results (or errors) back into
// JSON responses; all business rules live in the domain packages.
package handler

import (
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/verdora/order-backend/internal/domain/order"
	"github.com/verdora/order-backend/internal/domain/product"
)

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// ImageBaseURL is prepended to relative image paths in product responses.
	// When empty, image paths are returned as stored in the database.
	ImageBaseURL string
}

// Handler serves the public and admin order API.
type Handler struct {
	products     product.Repository
	orders       *order.Service
	validate     *validator.Validate
	imageBaseURL string
}

// New constructs a Handler with the required domain dependencies.
func New(cfg Config, products product.Repository, orders *order.Service) *Handler {
	return &Handler{
		products:     products,
		orders:       orders,
		validate:     validator.New(validator.WithRequiredStructEnabled()),
		imageBaseURL: cfg.ImageBaseURL,
	}
}

// Routes registers every API route on mux. Admin routes are wrapped with the
// given authentication middleware.
func (h *Handler) Routes(mux *http.ServeMux, admin func(http.Handler) http.Handler) {
	mux.HandleFunc("GET /api/products", h.ListProducts)
	mux.HandleFunc("GET /api/products/{id}", h.GetProduct)

	mux.HandleFunc("POST /api/orders", h.PlaceOrder)
	mux.HandleFunc("GET /api/orders/{id}", h.GetOrder)
	mux.HandleFunc("GET /api/users/{id}/orders", h.ListUserOrders)
	mux.HandleFunc("POST /api/orders/{id}/items/{index}/return", h.RequestReturn)
	mux.HandleFunc("POST /api/orders/{id}/items/{index}/cancel", h.CancelItem)

	mux.Handle("POST /api/orders/{id}/items/{index}/return/approve", admin(http.HandlerFunc(h.ApproveReturn)))
	mux.Handle("POST /api/orders/{id}/items/{index}/return/reject", admin(http.HandlerFunc(h.RejectReturn)))
	mux.Handle("POST /api/orders/{id}/items/{index}/return/complete", admin(http.HandlerFunc(h.CompleteReturn)))
	mux.Handle("POST /api/orders/{id}/items/{index}/status", admin(http.HandlerFunc(h.ForceItemStatus)))
}
