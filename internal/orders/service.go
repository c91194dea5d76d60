package orders

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/ariefcatur/go-marketplace-orders/internal/apperr"
	"github.com/ariefcatur/go-marketplace-orders/internal/auth"
	"github.com/ariefcatur/go-marketplace-orders/internal/catalog"
	"github.com/ariefcatur/go-marketplace-orders/internal/metrics"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Ledger is the stock authority used at checkout.
type Ledger interface {
	ReserveAll(ctx context.Context, items []ItemQty) error
	Restock(ctx context.Context, productID string, qty int) error
}

// Service runs the order pipeline: validate, reserve, persist, publish.
type Service struct {
	Products    catalog.Store
	Orders      Store
	Ledger      Ledger
	Publisher   Publisher  // optional
	Users       auth.Users // optional, resolves buyer names
	Metrics     *metrics.Registry
	Now         func() time.Time
	ServiceName string
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) publisher() Publisher {
	if s.Publisher == nil {
		return nopPublisher{}
	}
	return s.Publisher
}

type PlaceOrderInput struct {
	BuyerID  string
	Lines    []CartLine
	Shipping ShippingInfo
	Payment  PaymentInfo
	Pricing  Pricing
}

// PlaceOrder accepts or rejects a cart as a whole. Stock is reserved before
// the order is written; a failed write gives the stock back.
func (s *Service) PlaceOrder(ctx context.Context, in PlaceOrderInput) (Order, error) {
	start := time.Now()
	o, reason, err := s.placeOrder(ctx, in)
	if err != nil {
		s.Metrics.OrderRejected(reason)
		return Order{}, err
	}
	s.Metrics.OrderPlaced(time.Since(start).Seconds())

	s.emit(ctx, TopicOrderCreated, EventOrderCreated, o.ID, OrderCreatedPayload{
		OrderID:    o.ID,
		BuyerID:    o.BuyerID,
		Items:      o.Lines(),
		TotalPrice: o.TotalPrice.String(),
		Paid:       o.PaidAt != nil,
	})
	return o, nil
}

func (s *Service) placeOrder(ctx context.Context, in PlaceOrderInput) (Order, string, error) {
	if in.BuyerID == "" {
		return Order{}, "validation", validationf("buyer is required")
	}
	if len(in.Lines) == 0 {
		return Order{}, "validation", validationf("cart is empty")
	}
	if err := in.Pricing.Validate(); err != nil {
		return Order{}, "validation", err
	}

	ids := make([]string, 0, len(in.Lines))
	for _, ln := range in.Lines {
		ids = append(ids, ln.ProductID)
	}
	snapshot, err := s.Products.GetMany(ctx, ids)
	if err != nil {
		return Order{}, "store", fmt.Errorf("load products: %w", err)
	}
	if err := Validate(in.BuyerID, in.Lines, snapshot); err != nil {
		return Order{}, rejectReason(err), err
	}
	if err := checkItemsPrice(in.Pricing.ItemsPrice, in.Lines, snapshot); err != nil {
		return Order{}, "validation", err
	}

	items := mergeLines(in.Lines)
	if err := s.Ledger.ReserveAll(ctx, items); err != nil {
		return Order{}, rejectReason(err), err
	}

	now := s.now()
	o := Order{
		ID:        uuid.NewString(),
		BuyerID:   in.BuyerID,
		Items:     make([]OrderItem, 0, len(in.Lines)),
		Shipping:  in.Shipping,
		Payment:   in.Payment,
		Pricing:   in.Pricing,
		Status:    StatusProcessing,
		Timeline:  []TimelineEntry{{Status: StatusProcessing, Timestamp: now}},
		CreatedAt: now,
	}
	for _, ln := range in.Lines {
		p := snapshot[ln.ProductID]
		o.Items = append(o.Items, OrderItem{
			ProductID: p.ID,
			VendorID:  p.VendorID,
			Name:      p.Name,
			Price:     p.Price,
			Quantity:  ln.Quantity,
			ImageRef:  p.ImageRef,
		})
	}
	if in.Payment.Status == PaymentSuccess {
		paid := now
		o.PaidAt = &paid
	}

	if err := s.Orders.Create(ctx, o); err != nil {
		s.giveBack(ctx, items)
		return Order{}, "store", fmt.Errorf("save order: %w", err)
	}
	return o, "", nil
}

// checkItemsPrice compares the submitted items total with the catalog prices
// the order will record.
func checkItemsPrice(submitted decimal.Decimal, lines []CartLine, snapshot map[string]catalog.Product) error {
	want := decimal.Zero
	for _, ln := range lines {
		want = want.Add(snapshot[ln.ProductID].Price.Mul(decimal.NewFromInt(int64(ln.Quantity))))
	}
	if !submitted.Equal(want) {
		return validationf("itemsPrice %s does not match catalog total %s", submitted, want)
	}
	return nil
}

// mergeLines folds repeated products into one reservation line each.
func mergeLines(lines []CartLine) []ItemQty {
	idx := make(map[string]int, len(lines))
	out := make([]ItemQty, 0, len(lines))
	for _, ln := range lines {
		if i, ok := idx[ln.ProductID]; ok {
			out[i].Qty += ln.Quantity
			continue
		}
		idx[ln.ProductID] = len(out)
		out = append(out, ItemQty{ProductID: ln.ProductID, Qty: ln.Quantity})
	}
	return out
}

func (s *Service) giveBack(ctx context.Context, items []ItemQty) {
	ctx = context.WithoutCancel(ctx)
	for _, it := range items {
		if err := s.Ledger.Restock(ctx, it.ProductID, it.Qty); err != nil {
			log.Printf("orders: compensate %d x %s: %v", it.Qty, it.ProductID, err)
		}
	}
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, apperr.ErrSelfPurchase):
		return "self_purchase"
	case errors.Is(err, apperr.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, apperr.ErrNotFound):
		return "not_found"
	case errors.Is(err, apperr.ErrValidation):
		return "validation"
	default:
		return "other"
	}
}

type TransitionInput struct {
	OrderID string
	Actor   auth.Actor
	Status  Status
	Note    string
}

// Transition moves an order through fulfillment. Admins may move any order;
// vendors only orders holding at least one of their items.
func (s *Service) Transition(ctx context.Context, in TransitionInput) (Order, error) {
	if !in.Status.Valid() {
		return Order{}, validationf("unknown order status %q", in.Status)
	}
	var from Status
	o, err := s.Orders.Update(ctx, in.OrderID, func(o *Order) error {
		if !in.Actor.Is(auth.RoleAdmin) && !(in.Actor.Is(auth.RoleVendor) && o.HasVendor(in.Actor.ID)) {
			return fmt.Errorf("%w: order %s has none of your items", apperr.ErrUnauthorized, o.ID)
		}
		if o.Status == StatusDelivered {
			return fmt.Errorf("order %s: %w", o.ID, apperr.ErrAlreadyDelivered)
		}
		if !CanTransition(o.Status, in.Status) {
			return fmt.Errorf("%w: %s -> %s", apperr.ErrInvalidTransition, o.Status, in.Status)
		}
		now := s.now()
		from = o.Status
		o.Status = in.Status
		if in.Status == StatusDelivered {
			o.DeliveredAt = &now
		}
		o.Timeline = append(o.Timeline, TimelineEntry{Status: in.Status, Timestamp: now, Note: in.Note})
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	s.Metrics.Transitioned(string(in.Status))

	s.emit(ctx, TopicOrderStatusChanged, EventOrderStatusChanged, o.ID, OrderStatusChangedPayload{
		OrderID: o.ID, From: from, To: o.Status, ActorID: in.Actor.ID, Note: in.Note,
	})
	if o.Status == StatusCancelled {
		s.emit(ctx, TopicOrderCancelled, EventOrderCancelled, o.ID, OrderCancelledPayload{
			OrderID: o.ID, Items: o.Lines(),
		})
	}
	return o, nil
}

func (s *Service) emit(ctx context.Context, topic, eventType, correlationID string, payload any) {
	env, err := NewEnvelope(eventType, s.ServiceName, correlationID, payload)
	if err != nil {
		log.Printf("orders: build %s: %v", eventType, err)
		return
	}
	env.TraceID = middleware.GetReqID(ctx)
	if err := s.publisher().Publish(ctx, topic, env); err != nil {
		log.Printf("orders: publish %s for %s: %v", eventType, correlationID, err)
	}
}

func (s *Service) Get(ctx context.Context, id string) (Order, error) {
	return s.Orders.Get(ctx, id)
}

// CanView reports whether a may read o: its buyer, an admin, or a vendor
// selling in it.
func CanView(a auth.Actor, o Order) bool {
	return a.ID == o.BuyerID || a.Is(auth.RoleAdmin) || (a.Is(auth.RoleVendor) && o.HasVendor(a.ID))
}

type ItemView struct {
	OrderItem
	ProductName string `json:"productName,omitempty"` // current catalog name; empty if the product is gone
	IsReviewed  bool   `json:"isReviewed"`
}

type OrderView struct {
	Order
	Items     []ItemView `json:"orderItems"`
	BuyerName string     `json:"buyerName,omitempty"`
}

// View is o joined with its buyer's name and the current product names.
func (s *Service) View(ctx context.Context, o Order) (OrderView, error) {
	snapshot, err := s.Products.GetMany(ctx, productIDs(o))
	if err != nil {
		return OrderView{}, err
	}
	v := view(o, snapshot)
	if s.Users != nil {
		if u, err := s.Users.Lookup(ctx, o.BuyerID); err == nil {
			v.BuyerName = u.Name
		} else if !errors.Is(err, apperr.ErrNotFound) {
			return OrderView{}, err
		}
	}
	return v, nil
}

// ListMine returns buyerID's orders, each item flagged when the buyer has
// already reviewed that product for that order.
func (s *Service) ListMine(ctx context.Context, buyerID string) ([]OrderView, error) {
	list, err := s.Orders.ListByBuyer(ctx, buyerID)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var ids []string
	for _, o := range list {
		for _, id := range productIDs(o) {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	snapshot, err := s.Products.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]OrderView, 0, len(list))
	for _, o := range list {
		out = append(out, view(o, snapshot))
	}
	return out, nil
}

func view(o Order, snapshot map[string]catalog.Product) OrderView {
	v := OrderView{Order: o, Items: make([]ItemView, 0, len(o.Items))}
	for _, it := range o.Items {
		iv := ItemView{OrderItem: it}
		if p, ok := snapshot[it.ProductID]; ok {
			iv.ProductName = p.Name
			for _, r := range p.Reviews {
				if r.BuyerID == o.BuyerID && r.OrderID == o.ID {
					iv.IsReviewed = true
					break
				}
			}
		}
		v.Items = append(v.Items, iv)
	}
	return v
}

func productIDs(o Order) []string {
	ids := make([]string, 0, len(o.Items))
	for _, it := range o.Items {
		ids = append(ids, it.ProductID)
	}
	return ids
}

func (s *Service) VendorOrders(ctx context.Context, vendorID string) ([]Order, error) {
	return s.Orders.ListByVendor(ctx, vendorID)
}

// AllOrders returns every order and the sum of their totals.
func (s *Service) AllOrders(ctx context.Context) ([]Order, decimal.Decimal, error) {
	list, err := s.Orders.List(ctx)
	if err != nil {
		return nil, decimal.Zero, err
	}
	total := decimal.Zero
	for _, o := range list {
		total = total.Add(o.TotalPrice)
	}
	return list, total, nil
}

type DashboardStats struct {
	ProductCount     int             `json:"productCount"`
	TotalOrders      int             `json:"totalOrders"`
	TotalSales       decimal.Decimal `json:"totalSales"`
	OrderStatusCount map[Status]int  `json:"orderStatusCount"`
}

// VendorDashboard counts only the vendor's own lines towards sales.
func (s *Service) VendorDashboard(ctx context.Context, vendorID string) (DashboardStats, error) {
	products, err := s.Products.ListByVendor(ctx, vendorID)
	if err != nil {
		return DashboardStats{}, err
	}
	list, err := s.Orders.ListByVendor(ctx, vendorID)
	if err != nil {
		return DashboardStats{}, err
	}
	st := DashboardStats{
		ProductCount:     len(products),
		TotalOrders:      len(list),
		TotalSales:       decimal.Zero,
		OrderStatusCount: make(map[Status]int, len(AllStatuses)),
	}
	for _, status := range AllStatuses {
		st.OrderStatusCount[status] = 0
	}
	for _, o := range list {
		st.OrderStatusCount[o.Status]++
		for _, it := range o.Items {
			if it.VendorID == vendorID {
				st.TotalSales = st.TotalSales.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
			}
		}
	}
	return st, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.Orders.Delete(ctx, id)
}

// PurgeDelivered removes the vendor's Delivered orders and returns how many.
func (s *Service) PurgeDelivered(ctx context.Context, vendorID string) (int64, error) {
	return s.Orders.DeleteDeliveredByVendor(ctx, vendorID)
}
