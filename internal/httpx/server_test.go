package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-shop-orders/internal/metrics"
	"github.com/ariefcatur/go-shop-orders/internal/orders"
)

type fakeProducts struct {
	products   []orders.Product
	lastSeller string
}

func (f *fakeProducts) ListProducts(_ context.Context, seller string) ([]orders.Product, error) {
	f.lastSeller = seller
	return f.products, nil
}

func (f *fakeProducts) GetProduct(_ context.Context, id string) (orders.Product, error) {
	for _, p := range f.products {
		if p.ID == id {
			return p, nil
		}
	}
	return orders.Product{}, &orders.Error{Kind: orders.KindNotFound, Op: "get product", Message: "Product Not Found"}
}

func newPublicRouter(products *fakeProducts) http.Handler {
	r := NewRouter(metrics.NewServerMetrics("order-api-test"))
	(&ProductsHandler{Products: products}).Register(r)
	(&ConfigHandler{PayPalClientID: "sb", GoogleAPIKey: "g-key"}).Register(r)
	return r
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestProducts(t *testing.T) {
	products := &fakeProducts{products: []orders.Product{
		{ID: "p1", Name: "Shirt", Seller: "s1", Price: decimal.RequireFromString("9.50"), CountInStock: 3},
	}}
	h := newPublicRouter(products)

	w := get(h, "/api/products?seller=s1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "s1", products.lastSeller)
	list := decode[[]orders.Product](t, w)
	require.Len(t, list, 1)
	assert.Equal(t, "Shirt", list[0].Name)

	w = get(h, "/api/products/p1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 3, decode[orders.Product](t, w).CountInStock)

	w = get(h, "/api/products/nope")
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Product Not Found", decode[messageResp](t, w).Message)
}

func TestConfigAndHealth(t *testing.T) {
	h := newPublicRouter(&fakeProducts{})

	tests := []struct {
		path string
		want string
	}{
		{path: "/api/config/paypal", want: "sb"},
		{path: "/api/config/google", want: "g-key"},
		{path: "/healthz", want: "ok"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := get(h, tt.path)
			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.want, w.Body.String())
		})
	}
}

func TestMetricsRecordRoutePattern(t *testing.T) {
	h := newPublicRouter(&fakeProducts{})

	get(h, "/api/products/nope")
	get(h, "/healthz")

	w := get(h, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `shop_order_api_test_http_requests_total{route="GET /api/products/{id}",status="404"} 1`)
	assert.Contains(t, body, `shop_order_api_test_http_requests_total{route="GET /healthz",status="200"} 1`)
	assert.Contains(t, body, "shop_order_api_test_http_request_duration_ms_bucket")
}
