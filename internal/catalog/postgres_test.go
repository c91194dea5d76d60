package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ariefcatur/go-marketplace-orders/internal/apperr"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var productCols = []string{
	"id", "vendor_id", "name", "price", "image_ref", "stock", "status",
	"ratings", "num_of_reviews", "reviews", "created_at",
}

func newPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return &PostgresStore{DB: mock}, mock
}

func productRow(stock int, status Status) *pgxmock.Rows {
	return pgxmock.NewRows(productCols).AddRow(
		"p1", "v1", "Lamp", "19.90", "", stock, string(status),
		4.5, 2, []byte(`[{"id":"r1","buyerId":"b1","rating":5,"comment":"ok"},{"id":"r2","buyerId":"b2","rating":4,"comment":"fine"}]`),
		time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
	)
}

func TestPostgresStoreGet_DecodesRow(t *testing.T) {
	s, mock := newPostgresStore(t)
	mock.ExpectQuery(`FROM products WHERE id=\$1`).WithArgs("p1").WillReturnRows(productRow(3, StatusActive))

	p, err := s.Get(context.Background(), "p1")
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("19.90").Equal(p.Price))
	assert.Equal(t, 3, p.Stock)
	assert.Equal(t, StatusActive, p.Status)
	assert.Len(t, p.Reviews, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreGet_Missing(t *testing.T) {
	s, mock := newPostgresStore(t)
	mock.ExpectQuery(`FROM products WHERE id=\$1`).WithArgs("nope").WillReturnError(pgx.ErrNoRows)

	_, err := s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreGetMany_EmptySkipsQuery(t *testing.T) {
	s, mock := newPostgresStore(t)

	got, err := s.GetMany(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreUpdate_WritesBackUnderRowLock(t *testing.T) {
	s, mock := newPostgresStore(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`FROM products WHERE id=\$1 FOR UPDATE`).WithArgs("p1").WillReturnRows(productRow(1, StatusActive))
	mock.ExpectExec(`UPDATE products`).
		WithArgs("p1", 0, string(StatusOutOfStock), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	p, err := s.Update(context.Background(), "p1", func(p *Product) error {
		p.Stock--
		p.SyncStatus()
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 0, p.Stock)
	assert.Equal(t, StatusOutOfStock, p.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreUpdate_ErrorRollsBack(t *testing.T) {
	s, mock := newPostgresStore(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).WithArgs("p1").WillReturnRows(productRow(0, StatusOutOfStock))
	mock.ExpectRollback()

	boom := errors.New("short")
	_, err := s.Update(context.Background(), "p1", func(*Product) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}
