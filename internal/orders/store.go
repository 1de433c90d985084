package orders

import "context"

// Store is the document store behind the Manager.
// Lookups return an error wrapping ErrNotFound for missing entities.
type Store interface {
	ListOrders(ctx context.Context, filter OrderFilter) ([]ListedOrder, error)
	GetOrder(ctx context.Context, id string) (Order, error)
	InsertOrder(ctx context.Context, o Order) (Order, error)

	ListProducts(ctx context.Context, filter ProductFilter) ([]Product, error)
	GetProduct(ctx context.Context, id string) (Product, error)

	// InTx runs fn in one unit of work. fn returning an error discards every write made through tx.
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx reads lock the returned rows until the unit of work ends.
type Tx interface {
	LockOrder(ctx context.Context, id string) (Order, error)
	LockProduct(ctx context.Context, id string) (Product, error)
	UpdateOrder(ctx context.Context, o Order) (Order, error)
	UpdateProductStock(ctx context.Context, p Product) error
	DeleteOrder(ctx context.Context, id string) error
}
