// Package apperr holds the error kinds shared by the order pipeline.
// Callers wrap them with context and match with errors.Is.
package apperr

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrSelfPurchase      = errors.New("cannot buy own product")
	ErrAlreadyDelivered  = errors.New("order already delivered")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrValidation        = errors.New("validation failed")
	ErrInvalidTransition = errors.New("invalid status transition")
)
