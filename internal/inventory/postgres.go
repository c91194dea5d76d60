package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/ariefcatur/go-marketplace-orders/internal/apperr"
	"github.com/ariefcatur/go-marketplace-orders/internal/metrics"
	"github.com/ariefcatur/go-marketplace-orders/internal/orders"
	"github.com/ariefcatur/go-marketplace-orders/internal/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresLedger reserves with one conditional UPDATE per line: the stock
// check and the decrement are the same statement, so concurrent reservations
// cannot both pass on a stale read.
type PostgresLedger struct {
	DB      postgres.DB
	Metrics *metrics.Registry
}

var _ orders.Ledger = (*PostgresLedger)(nil)

const reserveSQL = `
	UPDATE products
	SET stock = stock - $2,
	    status = CASE WHEN stock - $2 = 0 THEN 'out-of-stock' ELSE status END
	WHERE id = $1 AND stock >= $2
	RETURNING stock`

const restockSQL = `
	UPDATE products
	SET stock = stock + $2,
	    status = CASE WHEN status = 'out-of-stock' THEN 'active' ELSE status END
	WHERE id = $1`

func reserve(ctx context.Context, q querier, productID string, qty int) error {
	var left int
	err := q.QueryRow(ctx, reserveSQL, productID, qty).Scan(&left)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	// nothing updated: either the product is gone or it is short
	var stock int
	err = q.QueryRow(ctx, `SELECT stock FROM products WHERE id=$1`, productID).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("product %s: %w", productID, apperr.ErrNotFound)
	}
	if err != nil {
		return err
	}
	return &StockError{orders.StockRejectedDetail{ProductID: productID, Required: qty, Available: stock}}
}

func (l *PostgresLedger) Reserve(ctx context.Context, productID string, qty int) error {
	if err := checkQty(productID, qty); err != nil {
		return err
	}
	err := reserve(ctx, l.DB, productID, qty)
	l.Metrics.Reserved(err == nil)
	return err
}

func (l *PostgresLedger) Restock(ctx context.Context, productID string, qty int) error {
	if err := checkQty(productID, qty); err != nil {
		return err
	}
	ct, err := l.DB.Exec(ctx, restockSQL, productID, qty)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return fmt.Errorf("product %s: %w", productID, apperr.ErrNotFound)
	}
	l.Metrics.Restocked(qty)
	return nil
}

// ReserveAll reserves the whole cart in one transaction. Every short line is
// reported; if any line fails nothing is committed. Rows are locked in
// product id order so two carts sharing products cannot deadlock.
func (l *PostgresLedger) ReserveAll(ctx context.Context, items []orders.ItemQty) error {
	for _, it := range items {
		if err := checkQty(it.ProductID, it.Qty); err != nil {
			return err
		}
	}
	items = append([]orders.ItemQty(nil), items...)
	sort.Slice(items, func(i, j int) bool { return items[i].ProductID < items[j].ProductID })
	tx, err := l.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var rejects []error
	for _, it := range items {
		err := reserve(ctx, tx, it.ProductID, it.Qty)
		var se *StockError
		switch {
		case err == nil:
		case errors.As(err, &se):
			rejects = append(rejects, err)
		default:
			return err
		}
	}
	if len(rejects) > 0 {
		l.Metrics.Reserved(false)
		return errors.Join(rejects...) // rollback via defer
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	l.Metrics.Reserved(true)
	return nil
}
