// Package reviews attributes buyer reviews to products, one review per buyer
// per order, and keeps the product's aggregate rating in step.
package reviews

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/ariefcatur/go-marketplace-orders/internal/apperr"
	"github.com/ariefcatur/go-marketplace-orders/internal/catalog"
	"github.com/ariefcatur/go-marketplace-orders/internal/metrics"
	"github.com/ariefcatur/go-marketplace-orders/internal/orders"
	"github.com/google/uuid"
)

// OrderLookup resolves the order a review is attributed to.
type OrderLookup interface {
	Get(ctx context.Context, id string) (orders.Order, error)
}

type Engine struct {
	Products    catalog.Store
	Orders      OrderLookup // optional; when set, order-linked reviews must come from a delivered purchase
	Publisher   orders.Publisher
	Metrics     *metrics.Registry
	Now         func() time.Time
	ServiceName string
}

type Submission struct {
	ProductID string
	BuyerID   string
	BuyerName string
	OrderID   string // empty for legacy, order-less reviews
	Rating    int
	Comment   string
}

func (s Submission) validate() error {
	switch {
	case s.ProductID == "":
		return fmt.Errorf("%w: productId is required", apperr.ErrValidation)
	case s.BuyerID == "":
		return fmt.Errorf("%w: buyer is required", apperr.ErrValidation)
	case s.Rating < 1 || s.Rating > 5:
		return fmt.Errorf("%w: rating must be between 1 and 5", apperr.ErrValidation)
	case strings.TrimSpace(s.Comment) == "":
		return fmt.Errorf("%w: comment is required", apperr.ErrValidation)
	}
	return nil
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now().UTC()
	}
	return time.Now().UTC()
}

// Submit creates or updates the buyer's review and recomputes the product
// aggregate in the same atomic product update.
//
// With an order id the review slot is (buyer, order). Without one the first
// review by the buyer is overwritten whatever order it belongs to.
func (e *Engine) Submit(ctx context.Context, sub Submission) (catalog.Product, error) {
	if err := sub.validate(); err != nil {
		return catalog.Product{}, err
	}
	if sub.OrderID != "" && e.Orders != nil {
		if err := e.checkEligible(ctx, sub); err != nil {
			return catalog.Product{}, err
		}
	}

	var updated bool
	p, err := e.Products.Update(ctx, sub.ProductID, func(p *catalog.Product) error {
		updated = attribute(p, sub, e.now())
		recompute(p)
		return nil
	})
	if err != nil {
		return catalog.Product{}, err
	}
	e.Metrics.Reviewed(updated)
	e.publish(ctx, sub, p, updated)
	return p, nil
}

func (e *Engine) checkEligible(ctx context.Context, sub Submission) error {
	o, err := e.Orders.Get(ctx, sub.OrderID)
	if err != nil {
		return err
	}
	if o.BuyerID != sub.BuyerID {
		return fmt.Errorf("%w: order %s was not placed by you", apperr.ErrUnauthorized, o.ID)
	}
	found := false
	for _, it := range o.Items {
		if it.ProductID == sub.ProductID {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("%w: order %s does not contain product %s", apperr.ErrUnauthorized, o.ID, sub.ProductID)
	}
	if o.Status != orders.StatusDelivered {
		return fmt.Errorf("%w: order %s is not delivered yet", apperr.ErrValidation, o.ID)
	}
	return nil
}

// attribute writes sub into p.Reviews and reports whether an existing review
// was overwritten.
func attribute(p *catalog.Product, sub Submission, now time.Time) bool {
	for i := range p.Reviews {
		r := &p.Reviews[i]
		if r.BuyerID != sub.BuyerID {
			continue
		}
		if sub.OrderID != "" && r.OrderID != sub.OrderID {
			continue
		}
		r.Rating = sub.Rating
		r.Comment = sub.Comment
		if sub.BuyerName != "" {
			r.BuyerName = sub.BuyerName
		}
		return true
	}
	p.Reviews = append(p.Reviews, catalog.Review{
		ID:        uuid.NewString(),
		BuyerID:   sub.BuyerID,
		BuyerName: sub.BuyerName,
		OrderID:   sub.OrderID,
		Rating:    sub.Rating,
		Comment:   sub.Comment,
		CreatedAt: now,
	})
	return false
}

func recompute(p *catalog.Product) {
	p.NumOfReviews = len(p.Reviews)
	if p.NumOfReviews == 0 {
		p.Ratings = 0
		return
	}
	sum := 0
	for _, r := range p.Reviews {
		sum += r.Rating
	}
	p.Ratings = float64(sum) / float64(p.NumOfReviews)
}

func (e *Engine) publish(ctx context.Context, sub Submission, p catalog.Product, updated bool) {
	if e.Publisher == nil {
		return
	}
	env, err := orders.NewEnvelope(orders.EventReviewSubmitted, e.ServiceName, p.ID, orders.ReviewSubmittedPayload{
		ProductID:    p.ID,
		BuyerID:      sub.BuyerID,
		OrderID:      sub.OrderID,
		Rating:       sub.Rating,
		Updated:      updated,
		Ratings:      p.Ratings,
		NumOfReviews: p.NumOfReviews,
	})
	if err == nil {
		err = e.Publisher.Publish(ctx, orders.TopicReviewSubmitted, env)
	}
	if err != nil {
		log.Printf("reviews: publish for product %s: %v", p.ID, err)
	}
}

// Reviews lists the reviews stored on a product.
func (e *Engine) Reviews(ctx context.Context, productID string) ([]catalog.Review, error) {
	p, err := e.Products.Get(ctx, productID)
	if err != nil {
		return nil, err
	}
	if p.Reviews == nil {
		return []catalog.Review{}, nil
	}
	return p.Reviews, nil
}
