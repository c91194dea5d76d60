// Package inventory owns product stock: atomic reservations at checkout and
// restocks when orders are cancelled.
package inventory

import (
	"context"
	"fmt"
	"log"

	"github.com/ariefcatur/go-marketplace-orders/internal/apperr"
	"github.com/ariefcatur/go-marketplace-orders/internal/catalog"
	"github.com/ariefcatur/go-marketplace-orders/internal/metrics"
	"github.com/ariefcatur/go-marketplace-orders/internal/orders"
)

// StockError reports a reservation that would have driven stock negative.
type StockError struct {
	orders.StockRejectedDetail
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: required %d, available %d",
		e.ProductID, e.Required, e.Available)
}

func (e *StockError) Unwrap() error { return apperr.ErrInsufficientStock }

func checkQty(productID string, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("%w: quantity for product %s must be positive", apperr.ErrValidation, productID)
	}
	return nil
}

// StoreLedger runs every stock change inside the product store's atomic
// per-document Update.
type StoreLedger struct {
	Products catalog.Store
	Metrics  *metrics.Registry
}

var _ orders.Ledger = (*StoreLedger)(nil)

func (l *StoreLedger) Reserve(ctx context.Context, productID string, qty int) error {
	if err := checkQty(productID, qty); err != nil {
		return err
	}
	_, err := l.Products.Update(ctx, productID, func(p *catalog.Product) error {
		if p.Stock < qty {
			return &StockError{orders.StockRejectedDetail{ProductID: productID, Required: qty, Available: p.Stock}}
		}
		p.Stock -= qty
		p.SyncStatus()
		return nil
	})
	l.Metrics.Reserved(err == nil)
	return err
}

func (l *StoreLedger) Restock(ctx context.Context, productID string, qty int) error {
	if err := checkQty(productID, qty); err != nil {
		return err
	}
	_, err := l.Products.Update(ctx, productID, func(p *catalog.Product) error {
		p.Stock += qty
		p.SyncStatus()
		return nil
	})
	if err == nil {
		l.Metrics.Restocked(qty)
	}
	return err
}

// ReserveAll reserves line by line and gives back what it already took when
// a later line fails, so a rejected cart leaves stock untouched.
func (l *StoreLedger) ReserveAll(ctx context.Context, items []orders.ItemQty) error {
	taken := make([]orders.ItemQty, 0, len(items))
	for _, it := range items {
		if err := l.Reserve(ctx, it.ProductID, it.Qty); err != nil {
			l.release(ctx, taken)
			return err
		}
		taken = append(taken, it)
	}
	return nil
}

func (l *StoreLedger) release(ctx context.Context, taken []orders.ItemQty) {
	ctx = context.WithoutCancel(ctx)
	for _, it := range taken {
		if err := l.Restock(ctx, it.ProductID, it.Qty); err != nil {
			log.Printf("inventory: compensate %d x %s: %v", it.Qty, it.ProductID, err)
		}
	}
}
