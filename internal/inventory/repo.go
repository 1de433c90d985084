package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repo writes ledger lines into product_transactions.
type Repo struct{ DB *pgxpool.Pool }

var _ Ledger = (*Repo)(nil)

func (r *Repo) RecordSales(ctx context.Context, sales []Sale) (n int, txErr error) {
	if len(sales) == 0 {
		return 0, nil
	}
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if txErr != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				txErr = errors.Join(txErr, fmt.Errorf("rollback: %w", rbErr))
			}
		}
	}()

	b := &pgx.Batch{}
	for _, s := range sales {
		b.Queue(`
			INSERT INTO product_transactions(product_id, order_id, user_id, qty, transaction_type, description)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (order_id, product_id, transaction_type) DO NOTHING`,
			s.ProductID, s.OrderID, s.UserID, s.Qty, TypeSold, s.Description)
	}
	br := tx.SendBatch(ctx, b)
	for range sales {
		ct, err := br.Exec()
		if err != nil {
			_ = br.Close()
			return 0, fmt.Errorf("insert sale: %w", err)
		}
		n += int(ct.RowsAffected())
	}
	if err := br.Close(); err != nil {
		return 0, fmt.Errorf("close batch: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return n, nil
}
