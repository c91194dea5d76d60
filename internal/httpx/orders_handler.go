package httpx

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/ariefcatur/go-marketplace-orders/internal/apperr"
	"github.com/ariefcatur/go-marketplace-orders/internal/auth"
	"github.com/ariefcatur/go-marketplace-orders/internal/orders"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// OrderCache is a read-through cache of order documents. CacheOrder must not
// replace a cached order with one of a lower Version, and ForgetOrder must
// keep later CacheOrder calls for that id from taking effect until the entry
// expires.
type OrderCache interface {
	CachedOrder(ctx context.Context, id string) (orders.Order, bool, error)
	CacheOrder(ctx context.Context, o orders.Order) (bool, error)
	ForgetOrder(ctx context.Context, id string) error
}

// Idempotency maps a buyer's Idempotency-Key to the order it created.
type Idempotency interface {
	IdempotentOrderID(ctx context.Context, buyerID, key string) (string, bool, error)
	RememberOrderID(ctx context.Context, buyerID, key, orderID string) error
}

type OrdersHandler struct {
	Service *orders.Service
	Cache   OrderCache  // optional
	Idem    Idempotency // optional
	Timeout time.Duration
}

func (h *OrdersHandler) Register(r chi.Router) {
	vendorOrAdmin := auth.RequireRole(auth.RoleVendor, auth.RoleAdmin)
	adminOnly := auth.RequireRole(auth.RoleAdmin)

	r.Post("/order/new", h.createOrder)
	r.Get("/order/{id}", h.getOrder)
	r.Get("/orders/me", h.myOrders)
	r.With(vendorOrAdmin).Get("/vendor/orders", h.vendorOrders)
	r.With(vendorOrAdmin).Get("/vendor/dashboard", h.vendorDashboard)
	r.With(vendorOrAdmin).Delete("/vendor/orders/delivered", h.purgeDelivered)
	r.With(adminOnly).Get("/admin/orders", h.allOrders)
	r.With(vendorOrAdmin).Put("/admin/order/{id}", h.updateOrder)
	r.With(adminOnly).Delete("/admin/order/{id}", h.deleteOrder)
}

func (h *OrdersHandler) ctx(r *http.Request) (context.Context, context.CancelFunc) {
	d := h.Timeout
	if d <= 0 {
		d = 5 * time.Second
	}
	return context.WithTimeout(r.Context(), d)
}

func actor(r *http.Request) auth.Actor {
	a, _ := auth.ActorFrom(r.Context())
	return a
}

type CreateOrderReq struct {
	ShippingInfo  orders.ShippingInfo `json:"shippingInfo"`
	OrderItems    []orders.CartLine   `json:"orderItems"`
	PaymentInfo   orders.PaymentInfo  `json:"paymentInfo"`
	ItemsPrice    decimal.Decimal     `json:"itemsPrice"`
	TaxPrice      decimal.Decimal     `json:"taxPrice"`
	ShippingPrice decimal.Decimal     `json:"shippingPrice"`
	TotalPrice    decimal.Decimal     `json:"totalPrice"`
}

func (req CreateOrderReq) validate() error {
	s := req.ShippingInfo
	for name, v := range map[string]string{
		"address": s.Address, "city": s.City, "state": s.State,
		"country": s.Country, "pinCode": s.PinCode, "phoneNo": s.PhoneNo,
	} {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("shippingInfo.%s is required", name)
		}
	}
	if len(req.OrderItems) == 0 {
		return fmt.Errorf("orderItems must not be empty")
	}
	for i, it := range req.OrderItems {
		if it.ProductID == "" {
			return fmt.Errorf("orderItems[%d].productId is required", i)
		}
		if it.Quantity <= 0 {
			return fmt.Errorf("orderItems[%d].quantity must be positive", i)
		}
	}
	if req.PaymentInfo.Status == "" {
		return fmt.Errorf("paymentInfo.status is required")
	}
	return nil
}

type orderResp struct {
	Success    bool `json:"success"`
	Order      any  `json:"order"`
	Idempotent bool `json:"idempotent,omitempty"`
}

type ordersResp struct {
	Success     bool             `json:"success"`
	Count       int              `json:"count"`
	TotalAmount *decimal.Decimal `json:"totalAmount,omitempty"`
	Orders      any              `json:"orders"`
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderReq
	if err := decode(w, r, &req); err != nil {
		badRequest(w, "invalid json")
		return
	}
	if err := req.validate(); err != nil {
		badRequest(w, err.Error())
		return
	}
	a := actor(r)
	ctx, cancel := h.ctx(r)
	defer cancel()

	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if key != "" && h.Idem != nil {
		id, found, err := h.Idem.IdempotentOrderID(ctx, a.ID, key)
		if err != nil {
			log.Printf("httpx: idempotency lookup: %v", err)
		}
		if found {
			if o, err := h.Service.Get(ctx, id); err == nil {
				writeJSON(w, http.StatusOK, orderResp{Success: true, Order: o, Idempotent: true})
				return
			}
		}
	}

	o, err := h.Service.PlaceOrder(ctx, orders.PlaceOrderInput{
		BuyerID:  a.ID,
		Lines:    req.OrderItems,
		Shipping: req.ShippingInfo,
		Payment:  req.PaymentInfo,
		Pricing: orders.Pricing{
			ItemsPrice:    req.ItemsPrice,
			TaxPrice:      req.TaxPrice,
			ShippingPrice: req.ShippingPrice,
			TotalPrice:    req.TotalPrice,
		},
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if key != "" && h.Idem != nil {
		if err := h.Idem.RememberOrderID(ctx, a.ID, key, o.ID); err != nil {
			log.Printf("httpx: remember idempotency key: %v", err)
		}
	}
	writeJSON(w, http.StatusCreated, orderResp{Success: true, Order: o})
}

// load reads through the cache.
func (h *OrdersHandler) load(ctx context.Context, id string) (orders.Order, error) {
	if h.Cache != nil {
		o, found, err := h.Cache.CachedOrder(ctx, id)
		if err != nil {
			log.Printf("httpx: order cache get %s: %v", id, err)
		}
		if found {
			return o, nil
		}
	}
	o, err := h.Service.Get(ctx, id)
	if err != nil {
		return orders.Order{}, err
	}
	h.remember(ctx, o)
	return o, nil
}

func (h *OrdersHandler) remember(ctx context.Context, o orders.Order) {
	if h.Cache == nil {
		return
	}
	if _, err := h.Cache.CacheOrder(ctx, o); err != nil {
		log.Printf("httpx: order cache set %s: %v", o.ID, err)
	}
}

func (h *OrdersHandler) forget(ctx context.Context, ids ...string) {
	if h.Cache == nil {
		return
	}
	for _, id := range ids {
		if err := h.Cache.ForgetOrder(ctx, id); err != nil {
			log.Printf("httpx: order cache del %s: %v", id, err)
		}
	}
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ctx(r)
	defer cancel()

	o, err := h.load(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if !orders.CanView(actor(r), o) {
		writeError(w, fmt.Errorf("%w: not your order", apperr.ErrUnauthorized))
		return
	}
	v, err := h.Service.View(ctx, o)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orderResp{Success: true, Order: v})
}

func (h *OrdersHandler) myOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ctx(r)
	defer cancel()

	list, err := h.Service.ListMine(ctx, actor(r).ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ordersResp{Success: true, Count: len(list), Orders: list})
}

func (h *OrdersHandler) vendorOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ctx(r)
	defer cancel()

	list, err := h.Service.VendorOrders(ctx, actor(r).ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ordersResp{Success: true, Count: len(list), Orders: list})
}

func (h *OrdersHandler) vendorDashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ctx(r)
	defer cancel()

	st, err := h.Service.VendorDashboard(ctx, actor(r).ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Success bool                  `json:"success"`
		Stats   orders.DashboardStats `json:"stats"`
	}{true, st})
}

func (h *OrdersHandler) purgeDelivered(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ctx(r)
	defer cancel()
	vendorID := actor(r).ID

	if h.Cache != nil {
		list, err := h.Service.VendorOrders(ctx, vendorID)
		if err != nil {
			writeError(w, err)
			return
		}
		var ids []string
		for _, o := range list {
			if o.Status == orders.StatusDelivered {
				ids = append(ids, o.ID)
			}
		}
		h.forget(ctx, ids...)
	}
	n, err := h.Service.PurgeDelivered(ctx, vendorID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Success bool  `json:"success"`
		Deleted int64 `json:"deleted"`
	}{true, n})
}

func (h *OrdersHandler) allOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ctx(r)
	defer cancel()

	list, total, err := h.Service.AllOrders(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ordersResp{Success: true, Count: len(list), TotalAmount: &total, Orders: list})
}

type UpdateOrderReq struct {
	OrderStatus orders.Status `json:"orderStatus"`
	Note        string        `json:"note"`
}

func (h *OrdersHandler) updateOrder(w http.ResponseWriter, r *http.Request) {
	var req UpdateOrderReq
	if err := decode(w, r, &req); err != nil {
		badRequest(w, "invalid json")
		return
	}
	if !req.OrderStatus.Valid() {
		badRequest(w, fmt.Sprintf("orderStatus must be one of %v", orders.AllStatuses))
		return
	}
	ctx, cancel := h.ctx(r)
	defer cancel()

	id := chi.URLParam(r, "id")
	o, err := h.Service.Transition(ctx, orders.TransitionInput{
		OrderID: id,
		Actor:   actor(r),
		Status:  req.OrderStatus,
		Note:    req.Note,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	// write through: the new version fences off reads still holding the old one
	h.remember(ctx, o)
	writeJSON(w, http.StatusOK, orderResp{Success: true, Order: o})
}

func (h *OrdersHandler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ctx(r)
	defer cancel()

	id := chi.URLParam(r, "id")
	if err := h.Service.Delete(ctx, id); err != nil {
		writeError(w, err)
		return
	}
	h.forget(ctx, id)
	writeJSON(w, http.StatusOK, struct {
		Success bool `json:"success"`
	}{true})
}
