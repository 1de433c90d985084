package orders

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	EventOrderCreated   = "OrderCreated"
	EventOrderPaid      = "OrderPaid"
	EventOrderDelivered = "OrderDelivered"
	EventOrderDeleted   = "OrderDeleted"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

// NewEnvelope stamps a fresh v1 envelope around an already encoded payload.
func NewEnvelope(eventType, producer, traceID, orderID string, payload json.RawMessage) Envelope {
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		TraceID:       traceID,
		CorrelationID: orderID,
		Payload:       payload,
	}
}

type ItemQty struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

type OrderCreatedPayload struct {
	OrderID    string    `json:"order_id"`
	UserID     string    `json:"user_id"`
	Seller     string    `json:"seller"`
	Items      []ItemQty `json:"items"`
	TotalPrice string    `json:"total_price"`
}

type OrderPaidPayload struct {
	OrderID  string    `json:"order_id"`
	UserID   string    `json:"user_id"`
	UserName string    `json:"user_name"` // who confirmed the payment
	Items    []ItemQty `json:"items"`
	PaidAt   time.Time `json:"paid_at"`
}

type OrderDeliveredPayload struct {
	OrderID     string    `json:"order_id"`
	DeliveredAt time.Time `json:"delivered_at"`
}

type OrderDeletedPayload struct {
	OrderID string `json:"order_id"`
	By      string `json:"by"`
}

func ItemQuantities(items []OrderItem) []ItemQty {
	out := make([]ItemQty, 0, len(items))
	for _, it := range items {
		out = append(out, ItemQty{ProductID: it.Product, Qty: it.Qty})
	}
	return out
}
