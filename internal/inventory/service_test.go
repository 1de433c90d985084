package inventory_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-shop-orders/internal/inventory"
	kafkax "github.com/ariefcatur/go-shop-orders/internal/kafka"
	"github.com/ariefcatur/go-shop-orders/internal/orders"
)

type fakeLedger struct {
	calls [][]inventory.Sale
	err   error
}

func (l *fakeLedger) RecordSales(_ context.Context, sales []inventory.Sale) (int, error) {
	l.calls = append(l.calls, sales)
	if l.err != nil {
		return 0, l.err
	}
	return len(sales), nil
}

type fakeDedup struct {
	seen      map[string]bool
	forgotten []string
	err       error
}

func (d *fakeDedup) FirstSeen(_ context.Context, id string) (bool, error) {
	if d.err != nil {
		return false, d.err
	}
	if d.seen[id] {
		return false, nil
	}
	d.seen[id] = true
	return true, nil
}

func (d *fakeDedup) Forget(_ context.Context, id string) error {
	delete(d.seen, id)
	d.forgotten = append(d.forgotten, id)
	return nil
}

func paidMessage(t *testing.T, eventType string) (kafkago.Message, orders.Envelope) {
	t.Helper()
	payload := orders.OrderPaidPayload{
		OrderID:  "o1",
		UserID:   "u1",
		UserName: "Basir",
		Items:    []orders.ItemQty{{ProductID: "p2", Qty: 1}, {ProductID: "p1", Qty: 2}, {ProductID: "p2", Qty: 3}},
		PaidAt:   time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
	env := orders.NewEnvelope(eventType, "order-api", "trace-1", payload.OrderID, kafkax.MustMarshal(payload))
	return kafkago.Message{Value: kafkax.MustMarshal(env)}, env
}

func TestSales(t *testing.T) {
	_, env := paidMessage(t, orders.EventOrderPaid)
	p, err := kafkax.UnwrapPayload[orders.OrderPaidPayload](env.Payload)
	require.NoError(t, err)

	want := []inventory.Sale{
		{OrderID: "o1", UserID: "u1", ProductID: "p1", Qty: -2, Description: "sold to Basir on order o1"},
		{OrderID: "o1", UserID: "u1", ProductID: "p2", Qty: -4, Description: "sold to Basir on order o1"},
	}
	if diff := cmp.Diff(want, inventory.Sales(p)); diff != "" {
		t.Errorf("Sales() mismatch (-want +got):\n%s", diff)
	}
}

func TestHandleOrderPaid(t *testing.T) {
	ledger := &fakeLedger{}
	dedup := &fakeDedup{seen: map[string]bool{}}
	svc := &inventory.Service{Ledger: ledger, Dedup: dedup}
	m, env := paidMessage(t, orders.EventOrderPaid)

	require.NoError(t, svc.HandleOrderPaid(t.Context(), m))
	require.Len(t, ledger.calls, 1)
	assert.Len(t, ledger.calls[0], 2)
	assert.True(t, dedup.seen[env.EventID])

	// redelivery of the same event is a no-op
	require.NoError(t, svc.HandleOrderPaid(t.Context(), m))
	assert.Len(t, ledger.calls, 1)
}

func TestHandleOrderPaidIgnoresOtherEvents(t *testing.T) {
	ledger := &fakeLedger{}
	svc := &inventory.Service{Ledger: ledger, Dedup: &fakeDedup{seen: map[string]bool{}}}

	m, _ := paidMessage(t, orders.EventOrderDelivered)
	require.NoError(t, svc.HandleOrderPaid(t.Context(), m))

	require.NoError(t, svc.HandleOrderPaid(t.Context(), kafkago.Message{Value: []byte("not json")}))

	bad, _ := json.Marshal(orders.Envelope{EventID: "e1", EventType: orders.EventOrderPaid, Payload: json.RawMessage(`"x"`)})
	require.NoError(t, svc.HandleOrderPaid(t.Context(), kafkago.Message{Value: bad}))

	assert.Empty(t, ledger.calls)
}

func TestHandleOrderPaidLedgerFailureIsRetryable(t *testing.T) {
	ledger := &fakeLedger{err: errors.New("db down")}
	dedup := &fakeDedup{seen: map[string]bool{}}
	svc := &inventory.Service{Ledger: ledger, Dedup: dedup}
	m, env := paidMessage(t, orders.EventOrderPaid)

	err := svc.HandleOrderPaid(t.Context(), m)
	require.ErrorContains(t, err, "db down")
	assert.Equal(t, []string{env.EventID}, dedup.forgotten)

	ledger.err = nil
	require.NoError(t, svc.HandleOrderPaid(t.Context(), m))
	assert.Len(t, ledger.calls, 2)
}

func TestHandleOrderPaidDedupFailure(t *testing.T) {
	ledger := &fakeLedger{}
	svc := &inventory.Service{Ledger: ledger, Dedup: &fakeDedup{err: errors.New("redis down")}}
	m, _ := paidMessage(t, orders.EventOrderPaid)

	require.ErrorContains(t, svc.HandleOrderPaid(t.Context(), m), "redis down")
	assert.Empty(t, ledger.calls)
}
