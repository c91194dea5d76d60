package orders

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ariefcatur/go-marketplace-orders/internal/apperr"
)

// Store persists orders. Update runs fn against the current order and, when
// fn succeeds, atomically writes back Status, DeliveredAt and Timeline only;
// the rest of the order is immutable once created.
type Store interface {
	Create(ctx context.Context, o Order) error
	Get(ctx context.Context, id string) (Order, error)
	Update(ctx context.Context, id string, fn func(o *Order) error) (Order, error)
	ListByBuyer(ctx context.Context, buyerID string) ([]Order, error)
	ListByVendor(ctx context.Context, vendorID string) ([]Order, error)
	List(ctx context.Context) ([]Order, error)
	Delete(ctx context.Context, id string) error
	DeleteDeliveredByVendor(ctx context.Context, vendorID string) (int64, error)
}

var ErrAlreadyExists = fmt.Errorf("order already exists: %w", apperr.ErrValidation)

func orderNotFound(id string) error {
	return fmt.Errorf("order %s: %w", id, apperr.ErrNotFound)
}

type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]Order
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]Order)}
}

func (s *MemoryStore) Create(_ context.Context, o Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[o.ID]; ok {
		return ErrAlreadyExists
	}
	s.data[o.ID] = o.clone()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.data[id]
	if !ok {
		return Order{}, orderNotFound(id)
	}
	return o.clone(), nil
}

func (s *MemoryStore) Update(_ context.Context, id string, fn func(o *Order) error) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.data[id]
	if !ok {
		return Order{}, orderNotFound(id)
	}
	next := cur.clone()
	if err := fn(&next); err != nil {
		return Order{}, err
	}
	stored := cur.clone()
	stored.Status = next.Status
	stored.DeliveredAt = next.DeliveredAt
	stored.Timeline = next.Timeline
	s.data[id] = stored.clone()
	return stored, nil
}

func (s *MemoryStore) filter(keep func(Order) bool) []Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []Order{}
	for _, o := range s.data {
		if keep(o) {
			out = append(out, o.clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (s *MemoryStore) ListByBuyer(_ context.Context, buyerID string) ([]Order, error) {
	return s.filter(func(o Order) bool { return o.BuyerID == buyerID }), nil
}

func (s *MemoryStore) ListByVendor(_ context.Context, vendorID string) ([]Order, error) {
	return s.filter(func(o Order) bool { return o.HasVendor(vendorID) }), nil
}

func (s *MemoryStore) List(_ context.Context) ([]Order, error) {
	return s.filter(func(Order) bool { return true }), nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[id]; !ok {
		return orderNotFound(id)
	}
	delete(s.data, id)
	return nil
}

func (s *MemoryStore) DeleteDeliveredByVendor(_ context.Context, vendorID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, o := range s.data {
		if o.Status == StatusDelivered && o.HasVendor(vendorID) {
			delete(s.data, id)
			n++
		}
	}
	return n, nil
}
