package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema is idempotent; Migrate runs it on every start.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id    TEXT PRIMARY KEY,
		name  TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		role  TEXT NOT NULL DEFAULT 'user' CHECK (role IN ('user', 'vendor', 'admin'))
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id             TEXT PRIMARY KEY,
		vendor_id      TEXT NOT NULL,
		name           TEXT NOT NULL,
		price          NUMERIC(12,2) NOT NULL CHECK (price >= 0),
		image_ref      TEXT NOT NULL DEFAULT '',
		stock          INTEGER NOT NULL CHECK (stock >= 0),
		status         TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'inactive', 'out-of-stock')),
		ratings        DOUBLE PRECISION NOT NULL DEFAULT 0,
		num_of_reviews INTEGER NOT NULL DEFAULT 0,
		reviews        JSONB NOT NULL DEFAULT '[]',
		created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS products_vendor_idx ON products (vendor_id)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id              TEXT PRIMARY KEY,
		buyer_id        TEXT NOT NULL,
		items           JSONB NOT NULL,
		shipping        JSONB NOT NULL,
		payment         JSONB NOT NULL,
		items_price     NUMERIC(12,2) NOT NULL,
		tax_price       NUMERIC(12,2) NOT NULL,
		shipping_price  NUMERIC(12,2) NOT NULL,
		total_price     NUMERIC(12,2) NOT NULL,
		order_status    TEXT NOT NULL,
		paid_at         TIMESTAMPTZ,
		delivered_at    TIMESTAMPTZ,
		status_timeline JSONB NOT NULL,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS orders_buyer_idx ON orders (buyer_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS orders_items_idx ON orders USING GIN (items jsonb_path_ops)`,
}

func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	for i, stmt := range Schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema step %d: %w", i, err)
		}
	}
	return nil
}
