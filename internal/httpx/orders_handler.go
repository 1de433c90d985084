package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-shop-orders/internal/auth"
	kafkax "github.com/ariefcatur/go-shop-orders/internal/kafka"
	"github.com/ariefcatur/go-shop-orders/internal/orders"
	"github.com/ariefcatur/go-shop-orders/internal/redisx"
)

type OrderService interface {
	ListOrders(ctx context.Context, seller string) ([]orders.ListedOrder, error)
	ListMyOrders(ctx context.Context, userID string) ([]orders.Order, error)
	CreateOrder(ctx context.Context, userID string, in orders.CreateOrderInput) (orders.Order, error)
	GetOrder(ctx context.Context, id string) (orders.Order, error)
	MarkPaid(ctx context.Context, id string, result orders.PaymentResult) (orders.Order, error)
	MarkDelivered(ctx context.Context, id string) (orders.Order, error)
	DeleteOrder(ctx context.Context, id string) (orders.Order, error)
}

type Publisher interface {
	Publish(topic string, key, value []byte, headers ...kafkago.Header)
}

type Idempotency interface {
	Reserve(ctx context.Context, userID, key string) (string, error)
	Complete(ctx context.Context, userID, key, orderID string) error
	Release(ctx context.Context, userID, key string) error
}

type OrdersHandler struct {
	Orders  OrderService
	Guard   *auth.Guard
	Events  Publisher   // optional
	Idem    Idempotency // optional
	Service string
	Timeout time.Duration
}

type createOrderReq struct {
	OrderItems      []orders.OrderItem     `json:"orderItems"`
	ShippingAddress orders.ShippingAddress `json:"shippingAddress"`
	PaymentMethod   string                 `json:"paymentMethod"`
	ItemsPrice      decimal.Decimal        `json:"itemsPrice"`
	ShippingPrice   decimal.Decimal        `json:"shippingPrice"`
	TaxPrice        decimal.Decimal        `json:"taxPrice"`
	TotalPrice      decimal.Decimal        `json:"totalPrice"`
}

type orderResp struct {
	Message string       `json:"message"`
	Order   orders.Order `json:"order"`
}

func (h *OrdersHandler) Register(r chi.Router) {
	authed := h.Guard.Require(auth.Authenticated)
	admin := h.Guard.Require(auth.Admin)

	r.Route("/api/orders", func(r chi.Router) {
		r.With(h.Guard.Require(auth.SellerOrAdmin)).Get("/", h.listOrders)
		r.With(authed).Get("/mine", h.listMyOrders)
		r.With(authed).Post("/", h.createOrder)
		r.With(authed).Get("/{id}", h.getOrder)
		r.With(authed).Put("/{id}/pay", h.payOrder)
		r.With(admin).Put("/{id}/deliver", h.deliverOrder)
		r.With(admin).Delete("/{id}", h.deleteOrder)
	})
}

func (h *OrdersHandler) ctx(r *http.Request) (context.Context, context.CancelFunc) {
	d := h.Timeout
	if d <= 0 {
		d = 5 * time.Second
	}
	return context.WithTimeout(r.Context(), d)
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ctx(r)
	defer cancel()

	list, err := h.Orders.ListOrders(ctx, r.URL.Query().Get("seller"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *OrdersHandler) listMyOrders(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.FromContext(r.Context())
	ctx, cancel := h.ctx(r)
	defer cancel()

	list, err := h.Orders.ListMyOrders(ctx, caller.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.FromContext(r.Context())
	var req createOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, orders.KindValidation, "invalid json")
		return
	}

	ctx, cancel := h.ctx(r)
	defer cancel()

	key := r.Header.Get("Idempotency-Key")
	if key != "" && h.Idem != nil {
		existing, err := h.Idem.Reserve(ctx, caller.ID, key)
		switch {
		case errors.Is(err, redisx.ErrInFlight):
			writeMessage(w, http.StatusConflict, orders.KindConflict, "Request with this Idempotency-Key is in progress")
			return
		case err != nil:
			log.Printf("idempotency reserve: %v", err)
			key = ""
		case existing != "":
			o, err := h.Orders.GetOrder(ctx, existing)
			if err != nil {
				writeError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, orderResp{Message: "New Order Created", Order: o})
			return
		}
	}

	created, err := h.Orders.CreateOrder(ctx, caller.ID, orders.CreateOrderInput{
		OrderItems:      req.OrderItems,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		ItemsPrice:      req.ItemsPrice,
		ShippingPrice:   req.ShippingPrice,
		TaxPrice:        req.TaxPrice,
		TotalPrice:      req.TotalPrice,
	})
	if key != "" && h.Idem != nil {
		if err != nil {
			if rerr := h.Idem.Release(ctx, caller.ID, key); rerr != nil {
				log.Printf("idempotency release: %v", rerr)
			}
		} else if cerr := h.Idem.Complete(ctx, caller.ID, key, created.ID); cerr != nil {
			log.Printf("idempotency complete: %v", cerr)
		}
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	h.publish(r, orders.TopicOrderCreated, orders.EventOrderCreated, created.ID, orders.OrderCreatedPayload{
		OrderID:    created.ID,
		UserID:     created.User,
		Seller:     created.Seller,
		Items:      orders.ItemQuantities(created.OrderItems),
		TotalPrice: created.TotalPrice.String(),
	})
	writeJSON(w, http.StatusCreated, orderResp{Message: "New Order Created", Order: created})
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ctx(r)
	defer cancel()

	o, err := h.Orders.GetOrder(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) payOrder(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.FromContext(r.Context())
	var result orders.PaymentResult
	if err := json.NewDecoder(r.Body).Decode(&result); err != nil && !errors.Is(err, io.EOF) {
		writeMessage(w, http.StatusBadRequest, orders.KindValidation, "invalid json")
		return
	}

	ctx, cancel := h.ctx(r)
	defer cancel()

	paid, err := h.Orders.MarkPaid(ctx, chi.URLParam(r, "id"), result)
	if err != nil {
		writeError(w, r, err)
		return
	}

	h.publish(r, orders.TopicOrderPaid, orders.EventOrderPaid, paid.ID, orders.OrderPaidPayload{
		OrderID:  paid.ID,
		UserID:   paid.User,
		UserName: caller.Name,
		Items:    orders.ItemQuantities(paid.OrderItems),
		PaidAt:   *paid.PaidAt,
	})
	writeJSON(w, http.StatusOK, orderResp{Message: "Order Paid", Order: paid})
}

func (h *OrdersHandler) deliverOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ctx(r)
	defer cancel()

	delivered, err := h.Orders.MarkDelivered(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	h.publish(r, orders.TopicOrderDelivered, orders.EventOrderDelivered, delivered.ID, orders.OrderDeliveredPayload{
		OrderID:     delivered.ID,
		DeliveredAt: *delivered.DeliveredAt,
	})
	writeJSON(w, http.StatusOK, orderResp{Message: "Order Delivered", Order: delivered})
}

func (h *OrdersHandler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.FromContext(r.Context())
	ctx, cancel := h.ctx(r)
	defer cancel()

	removed, err := h.Orders.DeleteOrder(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	h.publish(r, orders.TopicOrderDeleted, orders.EventOrderDeleted, removed.ID, orders.OrderDeletedPayload{
		OrderID: removed.ID,
		By:      caller.ID,
	})
	writeJSON(w, http.StatusOK, orderResp{Message: "Order Deleted", Order: removed})
}

// publish runs after the change is committed; a lost event does not undo it.
func (h *OrdersHandler) publish(r *http.Request, topic, eventType, orderID string, payload any) {
	if h.Events == nil {
		return
	}
	env := orders.NewEnvelope(eventType, h.Service, middleware.GetReqID(r.Context()), orderID, kafkax.MustMarshal(payload))
	h.Events.Publish(topic, orders.PartitionKey(orderID), kafkax.MustMarshal(env), kafkax.EventHeaders(eventType, env.EventVersion)...)
}
