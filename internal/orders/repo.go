package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-marketplace-orders/internal/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// Repo is the Postgres Store. Items, shipping, payment and the timeline are
// JSONB columns of the order row.
type Repo struct{ DB postgres.DB }

var _ Store = (*Repo)(nil)

const orderColumns = `id, buyer_id, items, shipping, payment,
	items_price::text, tax_price::text, shipping_price::text, total_price::text,
	order_status, paid_at, delivered_at, status_timeline, created_at`

func scanOrder(row pgx.Row) (Order, error) {
	var (
		o                                     Order
		items, shipping, payment, timeline    []byte
		itemsPrice, tax, shippingPrice, total string
		status                                string
	)
	if err := row.Scan(&o.ID, &o.BuyerID, &items, &shipping, &payment,
		&itemsPrice, &tax, &shippingPrice, &total,
		&status, &o.PaidAt, &o.DeliveredAt, &timeline, &o.CreatedAt); err != nil {
		return Order{}, err
	}
	o.Status = Status(status)
	for _, f := range []struct {
		raw []byte
		dst any
	}{{items, &o.Items}, {shipping, &o.Shipping}, {payment, &o.Payment}, {timeline, &o.Timeline}} {
		if err := json.Unmarshal(f.raw, f.dst); err != nil {
			return Order{}, fmt.Errorf("order %s: decode: %w", o.ID, err)
		}
	}
	for _, f := range []struct {
		raw string
		dst *decimal.Decimal
	}{{itemsPrice, &o.ItemsPrice}, {tax, &o.TaxPrice}, {shippingPrice, &o.ShippingPrice}, {total, &o.TotalPrice}} {
		d, err := decimal.NewFromString(f.raw)
		if err != nil {
			return Order{}, fmt.Errorf("order %s: price: %w", o.ID, err)
		}
		*f.dst = d
	}
	return o, nil
}

func (r *Repo) Create(ctx context.Context, o Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return err
	}
	shipping, _ := json.Marshal(o.Shipping)
	payment, _ := json.Marshal(o.Payment)
	timeline, err := json.Marshal(o.Timeline)
	if err != nil {
		return err
	}
	_, err = r.DB.Exec(ctx, `
		INSERT INTO orders(id, buyer_id, items, shipping, payment,
			items_price, tax_price, shipping_price, total_price,
			order_status, paid_at, delivered_at, status_timeline, created_at)
		VALUES ($1, $2, $3, $4, $5, $6::numeric, $7::numeric, $8::numeric, $9::numeric, $10, $11, $12, $13, $14)`,
		o.ID, o.BuyerID, items, shipping, payment,
		o.ItemsPrice.String(), o.TaxPrice.String(), o.ShippingPrice.String(), o.TotalPrice.String(),
		string(o.Status), o.PaidAt, o.DeliveredAt, timeline, o.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrAlreadyExists
	}
	return err
}

func (r *Repo) Get(ctx context.Context, id string) (Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, orderNotFound(id)
	}
	return o, err
}

// Update holds the row lock while fn decides; only the mutable fulfillment
// columns are written back.
func (r *Repo) Update(ctx context.Context, id string, fn func(o *Order) error) (Order, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Order{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	cur, err := scanOrder(tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, orderNotFound(id)
	}
	if err != nil {
		return Order{}, err
	}
	next := cur.clone()
	if err := fn(&next); err != nil {
		return Order{}, err
	}
	timeline, err := json.Marshal(next.Timeline)
	if err != nil {
		return Order{}, err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE orders SET order_status=$2, delivered_at=$3, status_timeline=$4
		WHERE id=$1`, id, string(next.Status), next.DeliveredAt, timeline); err != nil {
		return Order{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Order{}, err
	}
	cur.Status, cur.DeliveredAt, cur.Timeline = next.Status, next.DeliveredAt, next.Timeline
	return cur, nil
}

func (r *Repo) list(ctx context.Context, where string, args ...any) ([]Order, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+orderColumns+` FROM orders `+where+` ORDER BY created_at DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

const vendorMatch = `items @> jsonb_build_array(jsonb_build_object('vendorId', $1::text))`

func (r *Repo) ListByBuyer(ctx context.Context, buyerID string) ([]Order, error) {
	return r.list(ctx, `WHERE buyer_id=$1`, buyerID)
}

func (r *Repo) ListByVendor(ctx context.Context, vendorID string) ([]Order, error) {
	return r.list(ctx, `WHERE `+vendorMatch, vendorID)
}

func (r *Repo) List(ctx context.Context) ([]Order, error) {
	return r.list(ctx, ``)
}

func (r *Repo) Delete(ctx context.Context, id string) error {
	ct, err := r.DB.Exec(ctx, `DELETE FROM orders WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return orderNotFound(id)
	}
	return nil
}

func (r *Repo) DeleteDeliveredByVendor(ctx context.Context, vendorID string) (int64, error) {
	ct, err := r.DB.Exec(ctx, `DELETE FROM orders WHERE order_status=$2 AND `+vendorMatch, vendorID, string(StatusDelivered))
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}
