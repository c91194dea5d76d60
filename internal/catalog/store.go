package catalog

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ariefcatur/go-marketplace-orders/internal/apperr"
	"github.com/google/uuid"
)

// Store is the product document store. Update is the only write path for
// existing products: fn runs against the current document and its result is
// persisted atomically, or discarded when fn returns an error.
type Store interface {
	Create(ctx context.Context, p Product) (Product, error)
	Get(ctx context.Context, id string) (Product, error)
	GetMany(ctx context.Context, ids []string) (map[string]Product, error)
	ListByVendor(ctx context.Context, vendorID string) ([]Product, error)
	Update(ctx context.Context, id string, fn func(p *Product) error) (Product, error)
}

func notFound(id string) error {
	return fmt.Errorf("product %s: %w", id, apperr.ErrNotFound)
}

// MemoryStore is a mutex-guarded Store used by tests and the memory backend.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]Product
}

func NewMemoryStore(seed ...Product) *MemoryStore {
	s := &MemoryStore{data: make(map[string]Product, len(seed))}
	for _, p := range seed {
		_, _ = s.Create(context.Background(), p)
	}
	return s
}

func (s *MemoryStore) Create(_ context.Context, p Product) (Product, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = StatusActive
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if p.Stock < 0 {
		return Product{}, fmt.Errorf("product %s: negative stock: %w", p.ID, apperr.ErrValidation)
	}
	if p.Stock == 0 {
		p.SyncStatus()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[p.ID] = p.clone()
	return p.clone(), nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.data[id]
	if !ok {
		return Product{}, notFound(id)
	}
	return p.clone(), nil
}

func (s *MemoryStore) GetMany(_ context.Context, ids []string) (map[string]Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Product, len(ids))
	for _, id := range ids {
		if p, ok := s.data[id]; ok {
			out[id] = p.clone()
		}
	}
	return out, nil
}

func (s *MemoryStore) ListByVendor(_ context.Context, vendorID string) ([]Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Product
	for _, p := range s.data {
		if p.VendorID == vendorID {
			out = append(out, p.clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) Update(_ context.Context, id string, fn func(p *Product) error) (Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.data[id]
	if !ok {
		return Product{}, notFound(id)
	}
	next := cur.clone()
	if err := fn(&next); err != nil {
		return Product{}, err
	}
	next.ID = id
	s.data[id] = next.clone()
	return next, nil
}
