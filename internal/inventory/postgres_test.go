package inventory

import (
	"context"
	"testing"

	"github.com/ariefcatur/go-marketplace-orders/internal/apperr"
	"github.com/ariefcatur/go-marketplace-orders/internal/metrics"
	"github.com/ariefcatur/go-marketplace-orders/internal/orders"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPostgresLedger(t *testing.T) (*PostgresLedger, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return &PostgresLedger{DB: mock, Metrics: metrics.NewRegistry()}, mock
}

func TestPostgresReserve_Succeeds(t *testing.T) {
	l, mock := newPostgresLedger(t)
	mock.ExpectQuery(`UPDATE products`).
		WithArgs("p1", 2).
		WillReturnRows(pgxmock.NewRows([]string{"stock"}).AddRow(3))

	require.NoError(t, l.Reserve(context.Background(), "p1", 2))
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, 1.0, testutil.ToFloat64(l.Metrics.Reservations.WithLabelValues("reserved")))
}

func TestPostgresReserve_MissingProduct(t *testing.T) {
	l, mock := newPostgresLedger(t)
	mock.ExpectQuery(`UPDATE products`).WithArgs("ghost", 1).WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`SELECT stock FROM products`).WithArgs("ghost").WillReturnError(pgx.ErrNoRows)

	err := l.Reserve(context.Background(), "ghost", 1)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.NotErrorIs(t, err, apperr.ErrInsufficientStock)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresReserve_Shortfall(t *testing.T) {
	l, mock := newPostgresLedger(t)
	mock.ExpectQuery(`UPDATE products`).WithArgs("p1", 5).WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`SELECT stock FROM products`).
		WithArgs("p1").
		WillReturnRows(pgxmock.NewRows([]string{"stock"}).AddRow(2))

	err := l.Reserve(context.Background(), "p1", 5)
	var se *StockError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, orders.StockRejectedDetail{ProductID: "p1", Required: 5, Available: 2}, se.StockRejectedDetail)
	assert.ErrorIs(t, err, apperr.ErrInsufficientStock)
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, 1.0, testutil.ToFloat64(l.Metrics.Reservations.WithLabelValues("rejected")))
}

func TestPostgresRestock_MissingProduct(t *testing.T) {
	l, mock := newPostgresLedger(t)
	mock.ExpectExec(`UPDATE products`).WithArgs("ghost", 1).WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	assert.ErrorIs(t, l.Restock(context.Background(), "ghost", 1), apperr.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresReserveAll_LocksInProductOrderAndCommits(t *testing.T) {
	l, mock := newPostgresLedger(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE products`).WithArgs("a", 1).WillReturnRows(pgxmock.NewRows([]string{"stock"}).AddRow(4))
	mock.ExpectQuery(`UPDATE products`).WithArgs("b", 2).WillReturnRows(pgxmock.NewRows([]string{"stock"}).AddRow(0))
	mock.ExpectCommit()

	cart := []orders.ItemQty{{ProductID: "b", Qty: 2}, {ProductID: "a", Qty: 1}}
	require.NoError(t, l.ReserveAll(context.Background(), cart))
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, "b", cart[0].ProductID, "caller's slice is left as submitted")
}

func TestPostgresReserveAll_RollsBackWhenAnyLineIsShort(t *testing.T) {
	l, mock := newPostgresLedger(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE products`).WithArgs("a", 1).WillReturnRows(pgxmock.NewRows([]string{"stock"}).AddRow(4))
	mock.ExpectQuery(`UPDATE products`).WithArgs("b", 3).WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`SELECT stock FROM products`).WithArgs("b").WillReturnRows(pgxmock.NewRows([]string{"stock"}).AddRow(1))
	mock.ExpectQuery(`UPDATE products`).WithArgs("c", 1).WillReturnRows(pgxmock.NewRows([]string{"stock"}).AddRow(0))
	mock.ExpectRollback()

	err := l.ReserveAll(context.Background(), []orders.ItemQty{
		{ProductID: "c", Qty: 1}, {ProductID: "b", Qty: 3}, {ProductID: "a", Qty: 1},
	})
	require.ErrorIs(t, err, apperr.ErrInsufficientStock)
	var se *StockError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "b", se.ProductID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresReserveAll_MissingProductAbortsWithoutCommit(t *testing.T) {
	l, mock := newPostgresLedger(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE products`).WithArgs("ghost", 1).WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`SELECT stock FROM products`).WithArgs("ghost").WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	err := l.ReserveAll(context.Background(), []orders.ItemQty{{ProductID: "ghost", Qty: 1}, {ProductID: "p1", Qty: 1}})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
