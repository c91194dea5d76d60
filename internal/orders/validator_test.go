package orders

import (
	"errors"
	"testing"

	"github.com/ariefcatur/go-marketplace-orders/internal/apperr"
	"github.com/ariefcatur/go-marketplace-orders/internal/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshot() map[string]catalog.Product {
	return map[string]catalog.Product{
		"mug":   {ID: "mug", VendorID: "vendor-1", Name: "Mug", Stock: 5},
		"plate": {ID: "plate", VendorID: "vendor-2", Name: "Plate", Stock: 1},
	}
}

func TestValidate_OK(t *testing.T) {
	err := Validate("buyer-1", []CartLine{{ProductID: "mug", Quantity: 5}, {ProductID: "plate", Quantity: 1}}, snapshot())
	assert.NoError(t, err)
}

func TestValidate_EmptyCart(t *testing.T) {
	err := Validate("buyer-1", nil, snapshot())
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestValidate_CollectsLineErrorsInOrder(t *testing.T) {
	lines := []CartLine{
		{ProductID: "ghost", Quantity: 1},
		{ProductID: "plate", Quantity: 2},
		{ProductID: "mug", Quantity: 0},
		{ProductID: "mug", Quantity: 1},
	}

	err := Validate("buyer-1", lines, snapshot())

	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs))
	require.Len(t, verrs, 3)
	assert.Equal(t, 0, verrs[0].Line)
	assert.ErrorIs(t, verrs[0], apperr.ErrNotFound)
	assert.Equal(t, 1, verrs[1].Line)
	assert.ErrorIs(t, verrs[1], apperr.ErrInsufficientStock)
	assert.Equal(t, 2, verrs[2].Line)
	assert.ErrorIs(t, verrs[2], apperr.ErrValidation)

	assert.ErrorIs(t, err, apperr.ErrInsufficientStock)
	assert.NotErrorIs(t, err, apperr.ErrSelfPurchase)
}

func TestValidate_SelfPurchase(t *testing.T) {
	err := Validate("vendor-1", []CartLine{{ProductID: "plate", Quantity: 1}, {ProductID: "mug", Quantity: 1}}, snapshot())

	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrSelfPurchase)
	assert.Contains(t, err.Error(), "line 1")
}

func TestValidate_RepeatedLinesShareStock(t *testing.T) {
	err := Validate("buyer-1", []CartLine{{ProductID: "mug", Quantity: 3}, {ProductID: "mug", Quantity: 3}}, snapshot())

	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	require.Len(t, verrs, 1)
	assert.Equal(t, 1, verrs[0].Line)
	assert.ErrorIs(t, err, apperr.ErrInsufficientStock)
}
