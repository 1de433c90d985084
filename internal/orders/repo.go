package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repo is the Postgres Store. Nested order parts are kept as JSONB documents.
type Repo struct{ DB *pgxpool.Pool }

var _ Store = (*Repo)(nil)

const orderColumns = `o.id, o.user_id, o.seller, o.order_items, o.shipping_address, o.payment_method,
	o.items_price::text, o.shipping_price::text, o.tax_price::text, o.total_price::text,
	o.is_paid, o.paid_at, o.payment_result, o.is_delivered, o.delivered_at, o.created_at, o.updated_at`

const productColumns = `id, name, seller, image, brand, category, description, price::text,
	count_in_stock, sold, rating::text, num_reviews, created_at, updated_at`

// querier is satisfied by both the pool and a pgx.Tx.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *Repo) ListOrders(ctx context.Context, filter OrderFilter) ([]ListedOrder, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT `+orderColumns+`, COALESCE(u.name, '')
		FROM orders o
		LEFT JOIN users u ON u.id = o.user_id
		WHERE ($1 = '' OR o.seller = $1) AND ($2 = '' OR o.user_id = $2)
		ORDER BY o.created_at, o.id`, filter.Seller, filter.User)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	out := []ListedOrder{}
	for rows.Next() {
		var (
			sc   orderScan
			name string
		)
		if err := rows.Scan(append(sc.dest(), &name)...); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		o, err := sc.order()
		if err != nil {
			return nil, err
		}
		out = append(out, ListedOrder{Order: o, User: UserRef{ID: o.User, Name: name}})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}
	return out, nil
}

func (r *Repo) GetOrder(ctx context.Context, id string) (Order, error) {
	return getOrder(ctx, r.DB, id, "")
}

func (r *Repo) InsertOrder(ctx context.Context, o Order) (Order, error) {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO orders(id, user_id, seller, order_items, shipping_address, payment_method,
			items_price, shipping_price, tax_price, total_price, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8::numeric, $9::numeric, $10::numeric, $11, $12)`,
		o.ID, o.User, o.Seller, o.OrderItems, o.ShippingAddress, o.PaymentMethod,
		o.ItemsPrice.String(), o.ShippingPrice.String(), o.TaxPrice.String(), o.TotalPrice.String(),
		o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return Order{}, fmt.Errorf("insert order: %w", err)
	}
	return getOrder(ctx, r.DB, o.ID, "")
}

func (r *Repo) ListProducts(ctx context.Context, filter ProductFilter) ([]Product, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+productColumns+` FROM products
		WHERE ($1 = '' OR seller = $1) ORDER BY name, id`, filter.Seller)
	if err != nil {
		return nil, fmt.Errorf("select products: %w", err)
	}
	defer rows.Close()

	out := []Product{}
	for rows.Next() {
		var sc productScan
		if err := rows.Scan(sc.dest()...); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		p, err := sc.product()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return out, nil
}

func (r *Repo) GetProduct(ctx context.Context, id string) (Product, error) {
	return getProduct(ctx, r.DB, id, "")
}

// InTx commits only when fn returns nil.
func (r *Repo) InTx(ctx context.Context, fn func(tx Tx) error) (txErr error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if txErr != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				txErr = errors.Join(txErr, fmt.Errorf("rollback: %w", rbErr))
			}
		}
	}()

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

type pgTx struct{ tx pgx.Tx }

func (t *pgTx) LockOrder(ctx context.Context, id string) (Order, error) {
	return getOrder(ctx, t.tx, id, "FOR UPDATE OF o")
}

func (t *pgTx) LockProduct(ctx context.Context, id string) (Product, error) {
	return getProduct(ctx, t.tx, id, "FOR UPDATE")
}

func (t *pgTx) UpdateOrder(ctx context.Context, o Order) (Order, error) {
	ct, err := t.tx.Exec(ctx, `
		UPDATE orders SET is_paid = $2, paid_at = $3, payment_result = $4,
			is_delivered = $5, delivered_at = $6, updated_at = $7
		WHERE id = $1`,
		o.ID, o.IsPaid, o.PaidAt, o.PaymentResult, o.IsDelivered, o.DeliveredAt, o.UpdatedAt)
	if err != nil {
		return Order{}, fmt.Errorf("update order: %w", err)
	}
	if ct.RowsAffected() != 1 {
		return Order{}, fmt.Errorf("update order %s: %w", o.ID, ErrNotFound)
	}
	return getOrder(ctx, t.tx, o.ID, "")
}

func (t *pgTx) UpdateProductStock(ctx context.Context, p Product) error {
	ct, err := t.tx.Exec(ctx, `
		UPDATE products SET count_in_stock = $2, sold = $3, updated_at = now()
		WHERE id = $1`, p.ID, p.CountInStock, p.Sold)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	if ct.RowsAffected() != 1 {
		return fmt.Errorf("update product %s: %w", p.ID, ErrNotFound)
	}
	return nil
}

func (t *pgTx) DeleteOrder(ctx context.Context, id string) error {
	ct, err := t.tx.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("delete order %s: %w", id, ErrNotFound)
	}
	return nil
}

func getOrder(ctx context.Context, q querier, id, lock string) (Order, error) {
	var sc orderScan
	err := q.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders o WHERE o.id = $1 `+lock, id).Scan(sc.dest()...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, fmt.Errorf("select order %s: %w", id, ErrNotFound)
		}
		return Order{}, fmt.Errorf("select order %s: %w", id, err)
	}
	return sc.order()
}

func getProduct(ctx context.Context, q querier, id, lock string) (Product, error) {
	var sc productScan
	err := q.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1 `+lock, id).Scan(sc.dest()...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, fmt.Errorf("select product %s: %w", id, ErrNotFound)
		}
		return Product{}, fmt.Errorf("select product %s: %w", id, err)
	}
	return sc.product()
}

// orderScan holds the raw columns of an order row; numerics arrive as text.
type orderScan struct {
	o                           Order
	items, shipping, tax, total string
}

func (s *orderScan) dest() []any {
	return []any{
		&s.o.ID, &s.o.User, &s.o.Seller, &s.o.OrderItems, &s.o.ShippingAddress, &s.o.PaymentMethod,
		&s.items, &s.shipping, &s.tax, &s.total,
		&s.o.IsPaid, &s.o.PaidAt, &s.o.PaymentResult, &s.o.IsDelivered, &s.o.DeliveredAt,
		&s.o.CreatedAt, &s.o.UpdatedAt,
	}
}

func (s *orderScan) order() (Order, error) {
	var err error
	o := s.o
	if o.ItemsPrice, err = decimal.NewFromString(s.items); err != nil {
		return Order{}, fmt.Errorf("items_price[%s]: %w", s.items, err)
	}
	if o.ShippingPrice, err = decimal.NewFromString(s.shipping); err != nil {
		return Order{}, fmt.Errorf("shipping_price[%s]: %w", s.shipping, err)
	}
	if o.TaxPrice, err = decimal.NewFromString(s.tax); err != nil {
		return Order{}, fmt.Errorf("tax_price[%s]: %w", s.tax, err)
	}
	if o.TotalPrice, err = decimal.NewFromString(s.total); err != nil {
		return Order{}, fmt.Errorf("total_price[%s]: %w", s.total, err)
	}
	o.PaidAt = utcPtr(o.PaidAt)
	o.DeliveredAt = utcPtr(o.DeliveredAt)
	o.CreatedAt = o.CreatedAt.UTC()
	o.UpdatedAt = o.UpdatedAt.UTC()
	return o, nil
}

type productScan struct {
	p             Product
	price, rating string
}

func (s *productScan) dest() []any {
	return []any{
		&s.p.ID, &s.p.Name, &s.p.Seller, &s.p.Image, &s.p.Brand, &s.p.Category, &s.p.Description,
		&s.price, &s.p.CountInStock, &s.p.Sold, &s.rating, &s.p.NumReviews, &s.p.CreatedAt, &s.p.UpdatedAt,
	}
}

func (s *productScan) product() (Product, error) {
	var err error
	p := s.p
	if p.Price, err = decimal.NewFromString(s.price); err != nil {
		return Product{}, fmt.Errorf("price[%s]: %w", s.price, err)
	}
	if p.Rating, err = decimal.NewFromString(s.rating); err != nil {
		return Product{}, fmt.Errorf("rating[%s]: %w", s.rating, err)
	}
	return p, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
