// Package catalog holds the product documents consumed by the order pipeline.
// Product CRUD beyond what the pipeline needs lives with the catalog service.
package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusActive     Status = "active"
	StatusInactive   Status = "inactive"
	StatusOutOfStock Status = "out-of-stock"
)

type Product struct {
	ID           string          `json:"id"`
	VendorID     string          `json:"vendorId"`
	Name         string          `json:"name"`
	Price        decimal.Decimal `json:"price"`
	ImageRef     string          `json:"imageRef,omitempty"`
	Stock        int             `json:"stock"`
	Status       Status          `json:"status"`
	Ratings      float64         `json:"ratings"`
	NumOfReviews int             `json:"numOfReviews"`
	Reviews      []Review        `json:"reviews"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// Review is embedded in its product. An empty OrderID marks a legacy review
// that is not tied to any purchase.
type Review struct {
	ID        string    `json:"id"`
	BuyerID   string    `json:"buyerId"`
	BuyerName string    `json:"name,omitempty"`
	OrderID   string    `json:"orderId,omitempty"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"createdAt"`
}

// SyncStatus keeps Status consistent with Stock: empty shelves are
// out-of-stock, refilled ones become active again. Inactive products stay
// inactive until the vendor flips them.
func (p *Product) SyncStatus() {
	switch {
	case p.Stock <= 0:
		p.Stock = 0
		p.Status = StatusOutOfStock
	case p.Status == StatusOutOfStock:
		p.Status = StatusActive
	}
}

func (p Product) clone() Product {
	if p.Reviews != nil {
		p.Reviews = append([]Review(nil), p.Reviews...)
	}
	return p
}
