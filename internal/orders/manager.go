package orders

import (
	"context"
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

const (
	msgOrderNotFound   = "Order Not Found"
	msgProductNotFound = "Product Not Found"
)

// MaxQty bounds a line quantity and the per-product sum of an order; stock columns are INTEGER.
const MaxQty = math.MaxInt32

// Money columns are NUMERIC(12,2).
var maxAmount = decimal.New(1, 10)

func checkAmount(name string, v decimal.Decimal) string {
	switch {
	case v.IsNegative():
		return name + " must not be negative"
	case !v.Equal(v.Round(2)):
		return name + " must have at most 2 decimal places"
	case v.GreaterThanOrEqual(maxAmount):
		return name + " must be less than " + maxAmount.String()
	}
	return ""
}

// describeInvalid turns the first validator failure into a message like "orderItems[0].qty must be greater than 0".
func describeInvalid(prefix string, err error) string {
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) || len(ves) == 0 {
		return prefix + " is invalid"
	}
	fe := ves[0]
	field := prefix + "." + fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "gt":
		return field + " must be greater than " + fe.Param()
	case "lte":
		return field + " must be at most " + fe.Param()
	}
	return field + " is invalid"
}

func jsonName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	if name == "" {
		return f.Name
	}
	return name
}

type CreateOrderInput struct {
	OrderItems      []OrderItem
	ShippingAddress ShippingAddress
	PaymentMethod   string
	ItemsPrice      decimal.Decimal
	ShippingPrice   decimal.Decimal
	TaxPrice        decimal.Decimal
	TotalPrice      decimal.Decimal
}

// Manager runs the order lifecycle against a Store.
// Callers are expected to have passed the Access Guard already.
type Manager struct {
	store    Store
	validate *validator.Validate
	now      func() time.Time
}

func NewManager(store Store) *Manager {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonName)
	return &Manager{
		store:    store,
		validate: v,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ListOrders returns every order, or only the seller's when seller is set.
// The result set is not paginated.
func (m *Manager) ListOrders(ctx context.Context, seller string) ([]ListedOrder, error) {
	const op = "list orders"
	out, err := m.store.ListOrders(ctx, OrderFilter{Seller: seller})
	if err != nil {
		return nil, storeFailure(op, msgOrderNotFound, err)
	}
	return out, nil
}

func (m *Manager) ListMyOrders(ctx context.Context, userID string) ([]Order, error) {
	const op = "list my orders"
	listed, err := m.store.ListOrders(ctx, OrderFilter{User: userID})
	if err != nil {
		return nil, storeFailure(op, msgOrderNotFound, err)
	}
	return lo.Map(listed, func(l ListedOrder, _ int) Order { return l.Order }), nil
}

func (m *Manager) CreateOrder(ctx context.Context, userID string, in CreateOrderInput) (Order, error) {
	const op = "create order"
	if len(in.OrderItems) == 0 {
		return Order{}, validationError(op, "Cart is empty")
	}
	for i, it := range in.OrderItems {
		if err := m.validate.Struct(it); err != nil {
			return Order{}, validationError(op, describeInvalid(fmt.Sprintf("orderItems[%d]", i), err))
		}
		if msg := checkAmount(fmt.Sprintf("orderItems[%d].price", i), it.Price); msg != "" {
			return Order{}, validationError(op, msg)
		}
	}
	for _, q := range quantitiesByProduct(in.OrderItems) {
		if q.Qty > MaxQty {
			return Order{}, validationError(op, fmt.Sprintf("total qty of product %s must be at most %d", q.ProductID, MaxQty))
		}
	}
	for _, a := range []struct {
		name  string
		value decimal.Decimal
	}{
		{"itemsPrice", in.ItemsPrice},
		{"shippingPrice", in.ShippingPrice},
		{"taxPrice", in.TaxPrice},
		{"totalPrice", in.TotalPrice},
	} {
		if msg := checkAmount(a.name, a.value); msg != "" {
			return Order{}, validationError(op, msg)
		}
	}

	now := m.now()
	o := Order{
		ID:              uuid.NewString(),
		Seller:          in.OrderItems[0].Seller,
		OrderItems:      in.OrderItems,
		ShippingAddress: in.ShippingAddress,
		PaymentMethod:   in.PaymentMethod,
		ItemsPrice:      in.ItemsPrice,
		ShippingPrice:   in.ShippingPrice,
		TaxPrice:        in.TaxPrice,
		TotalPrice:      in.TotalPrice,
		User:            userID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	created, err := m.store.InsertOrder(ctx, o)
	if err != nil {
		return Order{}, storeFailure(op, msgOrderNotFound, err)
	}
	return created, nil
}

func (m *Manager) GetOrder(ctx context.Context, id string) (Order, error) {
	const op = "get order"
	o, err := m.store.GetOrder(ctx, id)
	if err != nil {
		return Order{}, storeFailure(op, msgOrderNotFound, err)
	}
	return o, nil
}

// MarkPaid flags the order paid and moves each item's quantity from stock to sold.
// The order and every product adjustment commit together or not at all.
func (m *Manager) MarkPaid(ctx context.Context, id string, result PaymentResult) (Order, error) {
	const op = "mark paid"
	var updated Order
	err := m.store.InTx(ctx, func(tx Tx) error {
		o, err := tx.LockOrder(ctx, id)
		if err != nil {
			return err
		}
		if o.IsPaid {
			return conflictError(op, "Order is already paid")
		}

		now := m.now()
		o.IsPaid = true
		o.PaidAt = &now
		o.PaymentResult = &result
		o.UpdatedAt = now
		if updated, err = tx.UpdateOrder(ctx, o); err != nil {
			return err
		}

		for _, q := range quantitiesByProduct(o.OrderItems) {
			p, err := tx.LockProduct(ctx, q.ProductID)
			if err != nil {
				return storeFailure(op, msgProductNotFound, err)
			}
			if p.CountInStock < q.Qty {
				return conflictError(op, fmt.Sprintf("insufficient stock for product %s: have %d, need %d", p.ID, p.CountInStock, q.Qty))
			}
			p.CountInStock -= q.Qty
			p.Sold += q.Qty
			if err := tx.UpdateProductStock(ctx, p); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Order{}, storeFailure(op, msgOrderNotFound, err)
	}
	return updated, nil
}

// MarkDelivered does not require the order to be paid.
func (m *Manager) MarkDelivered(ctx context.Context, id string) (Order, error) {
	const op = "mark delivered"
	var updated Order
	err := m.store.InTx(ctx, func(tx Tx) error {
		o, err := tx.LockOrder(ctx, id)
		if err != nil {
			return err
		}
		now := m.now()
		o.IsDelivered = true
		o.DeliveredAt = &now
		o.UpdatedAt = now
		updated, err = tx.UpdateOrder(ctx, o)
		return err
	})
	if err != nil {
		return Order{}, storeFailure(op, msgOrderNotFound, err)
	}
	return updated, nil
}

// DeleteOrder removes the order and returns it as it was before removal.
func (m *Manager) DeleteOrder(ctx context.Context, id string) (Order, error) {
	const op = "delete order"
	var removed Order
	err := m.store.InTx(ctx, func(tx Tx) error {
		o, err := tx.LockOrder(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.DeleteOrder(ctx, id); err != nil {
			return err
		}
		removed = o
		return nil
	})
	if err != nil {
		return Order{}, storeFailure(op, msgOrderNotFound, err)
	}
	return removed, nil
}

func (m *Manager) ListProducts(ctx context.Context, seller string) ([]Product, error) {
	const op = "list products"
	ps, err := m.store.ListProducts(ctx, ProductFilter{Seller: seller})
	if err != nil {
		return nil, storeFailure(op, msgProductNotFound, err)
	}
	return ps, nil
}

func (m *Manager) GetProduct(ctx context.Context, id string) (Product, error) {
	const op = "get product"
	p, err := m.store.GetProduct(ctx, id)
	if err != nil {
		return Product{}, storeFailure(op, msgProductNotFound, err)
	}
	return p, nil
}

// quantitiesByProduct sums item quantities per product, sorted by product id
// so concurrent payments lock products in the same order. Line quantities are
// at most MaxQty, so the sums cannot overflow int.
func quantitiesByProduct(items []OrderItem) []ItemQty {
	grouped := lo.GroupBy(items, func(it OrderItem) string { return it.Product })
	out := make([]ItemQty, 0, len(grouped))
	for pid, its := range grouped {
		out = append(out, ItemQty{
			ProductID: pid,
			Qty:       lo.SumBy(its, func(it OrderItem) int { return it.Qty }),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out
}
