package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"

	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/ariefcatur/go-shop-orders/internal/kafka"
	"github.com/ariefcatur/go-shop-orders/internal/orders"
)

const TypeSold = "SOLD"

// Sale is one ledger line for a paid order.
type Sale struct {
	OrderID     string
	UserID      string
	ProductID   string
	Qty         int // negative: stock leaving the shop
	Description string
}

type Ledger interface {
	// RecordSales stores sales idempotently and reports how many lines were new.
	RecordSales(ctx context.Context, sales []Sale) (int, error)
}

type Deduper interface {
	FirstSeen(ctx context.Context, eventID string) (bool, error)
	Forget(ctx context.Context, eventID string) error
}

// Service turns OrderPaid events into SOLD ledger lines.
type Service struct {
	Ledger Ledger
	Dedup  Deduper
}

// HandleOrderPaid is installed as the order.paid consumer handler.
func (s *Service) HandleOrderPaid(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		log.Printf("ledger: skip undecodable message offset=%d: %v", m.Offset, err)
		return nil
	}
	if env.EventType != orders.EventOrderPaid {
		return nil
	}
	p, err := kafkax.UnwrapPayload[orders.OrderPaidPayload](env.Payload)
	if err != nil {
		log.Printf("ledger: skip event %s: %v", env.EventID, err)
		return nil
	}

	first, err := s.Dedup.FirstSeen(ctx, env.EventID)
	if err != nil {
		return err
	}
	if !first {
		return nil
	}

	n, err := s.Ledger.RecordSales(ctx, Sales(p))
	if err != nil {
		if ferr := s.Dedup.Forget(ctx, env.EventID); ferr != nil {
			log.Printf("ledger: forget %s: %v", env.EventID, ferr)
		}
		return fmt.Errorf("record sales for order %s: %w", p.OrderID, err)
	}
	log.Printf("ledger: order=%s trace=%s recorded=%d", p.OrderID, env.TraceID, n)
	return nil
}

// Sales builds one line per product, summing repeated order lines.
func Sales(p orders.OrderPaidPayload) []Sale {
	qty := map[string]int{}
	for _, it := range p.Items {
		qty[it.ProductID] += it.Qty
	}
	desc := fmt.Sprintf("sold to %s on order %s", p.UserName, p.OrderID)

	out := make([]Sale, 0, len(qty))
	for id, q := range qty {
		out = append(out, Sale{OrderID: p.OrderID, UserID: p.UserID, ProductID: id, Qty: -q, Description: desc})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out
}
