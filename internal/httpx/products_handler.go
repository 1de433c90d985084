package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/go-shop-orders/internal/orders"
)

type ProductService interface {
	ListProducts(ctx context.Context, seller string) ([]orders.Product, error)
	GetProduct(ctx context.Context, id string) (orders.Product, error)
}

type ProductsHandler struct {
	Products ProductService
}

func (h *ProductsHandler) Register(r chi.Router) {
	r.Get("/api/products", h.listProducts)
	r.Get("/api/products/{id}", h.getProduct)
}

func (h *ProductsHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Products.ListProducts(ctx, r.URL.Query().Get("seller"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *ProductsHandler) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := h.Products.GetProduct(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// ConfigHandler hands public client-side keys to the storefront.
type ConfigHandler struct {
	PayPalClientID string
	GoogleAPIKey   string
}

func (h *ConfigHandler) Register(r chi.Router) {
	r.Get("/api/config/paypal", plainText(func() string { return h.PayPalClientID }))
	r.Get("/api/config/google", plainText(func() string { return h.GoogleAPIKey }))
}

func plainText(value func() string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(value()))
	}
}
