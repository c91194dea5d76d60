package orders

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/ariefcatur/go-marketplace-orders/internal/apperr"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var orderCols = []string{
	"id", "buyer_id", "items", "shipping", "payment",
	"items_price", "tax_price", "shipping_price", "total_price",
	"order_status", "paid_at", "delivered_at", "status_timeline", "created_at",
}

func newRepo(t *testing.T) (*Repo, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return &Repo{DB: mock}, mock
}

func orderRows(t *testing.T, o Order) *pgxmock.Rows {
	t.Helper()
	enc := func(v any) []byte {
		b, err := json.Marshal(v)
		require.NoError(t, err)
		return b
	}
	return pgxmock.NewRows(orderCols).AddRow(
		o.ID, o.BuyerID, enc(o.Items), enc(o.Shipping), enc(o.Payment),
		o.ItemsPrice.String(), o.TaxPrice.String(), o.ShippingPrice.String(), o.TotalPrice.String(),
		string(o.Status), o.PaidAt, o.DeliveredAt, enc(o.Timeline), o.CreatedAt,
	)
}

func storedOrder() Order {
	created := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	return Order{
		ID:      "o1",
		BuyerID: "b1",
		Items: []OrderItem{
			{ProductID: "p1", VendorID: "v1", Name: "Mug", Price: decimal.RequireFromString("12.50"), Quantity: 2},
		},
		Shipping: ShippingInfo{Address: "1 Main St", City: "Springfield"},
		Payment:  PaymentInfo{ID: "pay-1", Status: PaymentSuccess},
		Pricing: Pricing{
			ItemsPrice: decimal.RequireFromString("25.00"),
			TaxPrice:   decimal.RequireFromString("2.50"),
			TotalPrice: decimal.RequireFromString("27.50"),
		},
		Status:    StatusProcessing,
		PaidAt:    &created,
		Timeline:  []TimelineEntry{{Status: StatusProcessing, Timestamp: created}},
		CreatedAt: created,
	}
}

func TestRepoGet_DecodesRow(t *testing.T) {
	r, mock := newRepo(t)
	want := storedOrder()
	mock.ExpectQuery(`FROM orders WHERE id=\$1`).WithArgs("o1").WillReturnRows(orderRows(t, want))

	got, err := r.Get(context.Background(), "o1")
	require.NoError(t, err)
	assert.Equal(t, "b1", got.BuyerID)
	assert.Equal(t, StatusProcessing, got.Status)
	require.Len(t, got.Items, 1)
	assert.True(t, decimal.RequireFromString("12.5").Equal(got.Items[0].Price))
	assert.True(t, decimal.RequireFromString("27.5").Equal(got.TotalPrice))
	assert.Len(t, got.Timeline, 1)
	assert.Nil(t, got.DeliveredAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepoGet_Missing(t *testing.T) {
	r, mock := newRepo(t)
	mock.ExpectQuery(`FROM orders WHERE id=\$1`).WithArgs("nope").WillReturnError(pgx.ErrNoRows)

	_, err := r.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepoCreate_DuplicateID(t *testing.T) {
	r, mock := newRepo(t)
	mock.ExpectExec(`INSERT INTO orders`).WillReturnError(&pgconn.PgError{Code: "23505"})

	err := r.Create(context.Background(), storedOrder())
	assert.ErrorIs(t, err, ErrAlreadyExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepoUpdate_WritesFulfillmentColumnsUnderRowLock(t *testing.T) {
	r, mock := newRepo(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`FROM orders WHERE id=\$1 FOR UPDATE`).WithArgs("o1").WillReturnRows(orderRows(t, storedOrder()))
	mock.ExpectExec(`UPDATE orders SET order_status`).
		WithArgs("o1", string(StatusShipped), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	got, err := r.Update(context.Background(), "o1", func(o *Order) error {
		o.Status = StatusShipped
		o.Timeline = append(o.Timeline, TimelineEntry{Status: StatusShipped})
		o.BuyerID = "someone-else"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, StatusShipped, got.Status)
	assert.Equal(t, 2, got.Version())
	assert.Equal(t, "b1", got.BuyerID, "only fulfillment fields change")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepoUpdate_RejectedChangeRollsBack(t *testing.T) {
	r, mock := newRepo(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).WithArgs("o1").WillReturnRows(orderRows(t, storedOrder()))
	mock.ExpectRollback()

	boom := errors.New("not allowed")
	_, err := r.Update(context.Background(), "o1", func(*Order) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepoDelete_Missing(t *testing.T) {
	r, mock := newRepo(t)
	mock.ExpectExec(`DELETE FROM orders`).WithArgs("o1").WillReturnResult(pgxmock.NewResult("DELETE", 0))

	assert.ErrorIs(t, r.Delete(context.Background(), "o1"), apperr.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
