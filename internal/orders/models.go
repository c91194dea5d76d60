package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentSuccess is the only payment status that stamps PaidAt.
const PaymentSuccess = "success"

type OrderItem struct {
	ProductID string          `json:"productId"`
	VendorID  string          `json:"vendorId"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	ImageRef  string          `json:"imageRef,omitempty"`
}

type ShippingInfo struct {
	Address string `json:"address"`
	City    string `json:"city"`
	State   string `json:"state"`
	Country string `json:"country"`
	PinCode string `json:"pinCode"`
	PhoneNo string `json:"phoneNo"`
}

type PaymentInfo struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type Pricing struct {
	ItemsPrice    decimal.Decimal `json:"itemsPrice"`
	TaxPrice      decimal.Decimal `json:"taxPrice"`
	ShippingPrice decimal.Decimal `json:"shippingPrice"`
	TotalPrice    decimal.Decimal `json:"totalPrice"`
}

type TimelineEntry struct {
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Note      string    `json:"note"`
}

// Order is created once at checkout. Items, Shipping, Payment and Pricing
// never change afterwards; Status, DeliveredAt and Timeline move only through
// Service.Transition.
type Order struct {
	ID          string          `json:"id"`
	BuyerID     string          `json:"buyerId"`
	Items       []OrderItem     `json:"orderItems"`
	Shipping    ShippingInfo    `json:"shippingInfo"`
	Payment     PaymentInfo     `json:"paymentInfo"`
	Pricing                     // flattened into the order JSON
	Status      Status          `json:"orderStatus"`
	PaidAt      *time.Time      `json:"paidAt"`
	DeliveredAt *time.Time      `json:"deliveredAt"`
	Timeline    []TimelineEntry `json:"statusTimeline"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// HasVendor reports whether any line belongs to vendorID.
func (o Order) HasVendor(vendorID string) bool {
	for _, it := range o.Items {
		if it.VendorID == vendorID {
			return true
		}
	}
	return false
}

// Version grows by one with every status change; the timeline is append-only.
func (o Order) Version() int { return len(o.Timeline) }

// Lines returns the product/quantity pairs of the order.
func (o Order) Lines() []ItemQty {
	out := make([]ItemQty, 0, len(o.Items))
	for _, it := range o.Items {
		out = append(out, ItemQty{ProductID: it.ProductID, Qty: it.Quantity})
	}
	return out
}

func (o Order) clone() Order {
	o.Items = append([]OrderItem(nil), o.Items...)
	o.Timeline = append([]TimelineEntry(nil), o.Timeline...)
	if o.PaidAt != nil {
		t := *o.PaidAt
		o.PaidAt = &t
	}
	if o.DeliveredAt != nil {
		t := *o.DeliveredAt
		o.DeliveredAt = &t
	}
	return o
}

// CartLine is one line of a submitted cart.
type CartLine struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// Validate checks the money fields of a checkout.
func (p Pricing) Validate() error {
	for name, v := range map[string]decimal.Decimal{
		"itemsPrice": p.ItemsPrice, "taxPrice": p.TaxPrice,
		"shippingPrice": p.ShippingPrice, "totalPrice": p.TotalPrice,
	} {
		if v.IsNegative() {
			return validationf("%s must be non-negative", name)
		}
		if !v.Equal(v.Round(2)) {
			return validationf("%s has more than 2 decimal places", name)
		}
	}
	if !p.ItemsPrice.Add(p.TaxPrice).Add(p.ShippingPrice).Equal(p.TotalPrice) {
		return validationf("totalPrice %s does not match itemsPrice + taxPrice + shippingPrice", p.TotalPrice)
	}
	return nil
}
