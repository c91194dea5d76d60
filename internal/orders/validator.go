package orders

import (
	"fmt"
	"strings"

	"github.com/ariefcatur/go-marketplace-orders/internal/apperr"
	"github.com/ariefcatur/go-marketplace-orders/internal/catalog"
)

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", apperr.ErrValidation, fmt.Sprintf(format, args...))
}

// LineError is a failed check on one cart line. Line is zero-based.
type LineError struct {
	Line      int
	ProductID string
	Err       error
}

func (e LineError) Error() string {
	return fmt.Sprintf("line %d (product %s): %v", e.Line, e.ProductID, e.Err)
}

func (e LineError) Unwrap() error { return e.Err }

// ValidationErrors lists every failing line in submission order.
type ValidationErrors []LineError

func (v ValidationErrors) Error() string {
	msgs := make([]string, 0, len(v))
	for _, e := range v {
		msgs = append(msgs, e.Error())
	}
	return "cart rejected: " + strings.Join(msgs, "; ")
}

func (v ValidationErrors) Unwrap() []error {
	out := make([]error, 0, len(v))
	for _, e := range v {
		out = append(out, e)
	}
	return out
}

// Validate is the advisory pre-check of a cart against a catalog snapshot.
// It never mutates anything; Ledger.ReserveAll is the authority on stock.
// Repeated lines for the same product are checked against their running total.
func Validate(buyerID string, lines []CartLine, snapshot map[string]catalog.Product) error {
	if len(lines) == 0 {
		return validationf("cart is empty")
	}
	var errs ValidationErrors
	requested := make(map[string]int, len(lines))
	for i, ln := range lines {
		fail := func(err error) {
			errs = append(errs, LineError{Line: i, ProductID: ln.ProductID, Err: err})
		}
		if ln.Quantity <= 0 {
			fail(validationf("quantity must be positive"))
			continue
		}
		p, ok := snapshot[ln.ProductID]
		if !ok {
			fail(fmt.Errorf("product: %w", apperr.ErrNotFound))
			continue
		}
		requested[ln.ProductID] += ln.Quantity
		if p.Stock < requested[ln.ProductID] {
			fail(fmt.Errorf("%w for %s: requested %d, available %d",
				apperr.ErrInsufficientStock, p.Name, requested[ln.ProductID], p.Stock))
			continue
		}
		if p.VendorID == buyerID {
			fail(fmt.Errorf("%w: %s", apperr.ErrSelfPurchase, p.Name))
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}
