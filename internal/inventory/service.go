package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	kafkax "github.com/ariefcatur/go-marketplace-orders/internal/kafka"
	"github.com/ariefcatur/go-marketplace-orders/internal/orders"
	kafkago "github.com/segmentio/kafka-go"
)

// Deduper remembers processed event ids. FirstSeen returns true exactly once
// per (scope, id).
type Deduper interface {
	FirstSeen(ctx context.Context, scope, id string) (bool, error)
}

type Restocker interface {
	Restock(ctx context.Context, productID string, qty int) error
}

// Service gives stock back when orders are cancelled.
type Service struct {
	Ledger      Restocker
	Dedup       Deduper // optional
	ServiceName string
}

// HandleMessage is installed as the consumer handler.
func (s *Service) HandleMessage(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}
	return s.Handle(ctx, env)
}

// Handle restocks every line of an OrderCancelled event. Other event types
// are ignored. Redelivered events are skipped by event id.
func (s *Service) Handle(ctx context.Context, env orders.Envelope) error {
	if env.EventType != orders.EventOrderCancelled {
		return nil
	}
	if s.Dedup != nil {
		first, err := s.Dedup.FirstSeen(ctx, s.scope(), env.EventID)
		if err != nil {
			return fmt.Errorf("dedup %s: %w", env.EventID, err)
		}
		if !first {
			return nil
		}
	}

	p, err := kafkax.UnwrapPayload[orders.OrderCancelledPayload](env.Payload)
	if err != nil {
		return err
	}
	var errs []error
	for _, it := range p.Items {
		if err := s.Ledger.Restock(ctx, it.ProductID, it.Qty); err != nil {
			// the event is already marked; a retry would double the lines that did succeed
			log.Printf("inventory: order %s: restock %d x %s failed: %v", p.OrderID, it.Qty, it.ProductID, err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Service) scope() string {
	if s.ServiceName != "" {
		return s.ServiceName
	}
	return "inventory"
}
