package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-marketplace-orders/internal/postgres"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// PostgresStore keeps one row per product; reviews live in a JSONB column so
// the product stays a single document.
type PostgresStore struct{ DB postgres.DB }

const productColumns = `id, vendor_id, name, price::text, image_ref, stock, status, ratings, num_of_reviews, reviews, created_at`

func scanProduct(row pgx.Row) (Product, error) {
	var (
		p       Product
		price   string
		status  string
		reviews []byte
	)
	if err := row.Scan(&p.ID, &p.VendorID, &p.Name, &price, &p.ImageRef, &p.Stock, &status,
		&p.Ratings, &p.NumOfReviews, &reviews, &p.CreatedAt); err != nil {
		return Product{}, err
	}
	d, err := decimal.NewFromString(price)
	if err != nil {
		return Product{}, fmt.Errorf("product %s price: %w", p.ID, err)
	}
	p.Price = d
	p.Status = Status(status)
	if len(reviews) > 0 {
		if err := json.Unmarshal(reviews, &p.Reviews); err != nil {
			return Product{}, fmt.Errorf("product %s reviews: %w", p.ID, err)
		}
	}
	return p, nil
}

func (s *PostgresStore) Create(ctx context.Context, p Product) (Product, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = StatusActive
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if p.Stock == 0 {
		p.SyncStatus()
	}
	if p.Reviews == nil {
		p.Reviews = []Review{}
	}
	reviews, err := json.Marshal(p.Reviews)
	if err != nil {
		return Product{}, err
	}
	_, err = s.DB.Exec(ctx, `
		INSERT INTO products(id, vendor_id, name, price, image_ref, stock, status, ratings, num_of_reviews, reviews, created_at)
		VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8, $9, $10, $11)`,
		p.ID, p.VendorID, p.Name, p.Price.String(), p.ImageRef, p.Stock, string(p.Status),
		p.Ratings, p.NumOfReviews, reviews, p.CreatedAt)
	if err != nil {
		return Product{}, err
	}
	return p, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (Product, error) {
	p, err := scanProduct(s.DB.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, notFound(id)
	}
	return p, err
}

func (s *PostgresStore) GetMany(ctx context.Context, ids []string) (map[string]Product, error) {
	out := make(map[string]Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := s.DB.Query(ctx, `SELECT `+productColumns+` FROM products WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListByVendor(ctx context.Context, vendorID string) ([]Product, error) {
	rows, err := s.DB.Query(ctx, `SELECT `+productColumns+` FROM products WHERE vendor_id=$1 ORDER BY created_at`, vendorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Update locks the product row for the duration of fn and writes back the
// mutable parts of the document.
func (s *PostgresStore) Update(ctx context.Context, id string, fn func(p *Product) error) (Product, error) {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Product{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	p, err := scanProduct(tx.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, notFound(id)
	}
	if err != nil {
		return Product{}, err
	}
	if err := fn(&p); err != nil {
		return Product{}, err
	}
	if p.Reviews == nil {
		p.Reviews = []Review{}
	}
	reviews, err := json.Marshal(p.Reviews)
	if err != nil {
		return Product{}, err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE products
		SET stock=$2, status=$3, ratings=$4, num_of_reviews=$5, reviews=$6
		WHERE id=$1`,
		id, p.Stock, string(p.Status), p.Ratings, p.NumOfReviews, reviews); err != nil {
		return Product{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Product{}, err
	}
	return p, nil
}
