package redisx

import (
	"fmt"
	"time"
)

const (
	// idem:order:create:{buyer_id}:{idempotency_key} -> order_id
	KeyIdemOrderCreate = "idem:order:create:%s:%s"

	// order:{order_id} -> hash {v: version, doc: order JSON}
	KeyOrder = "order:%s"

	// dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLOrderCache  = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)

func idemKey(buyerID, key string) string { return fmt.Sprintf(KeyIdemOrderCreate, buyerID, key) }
func orderKey(orderID string) string      { return fmt.Sprintf(KeyOrder, orderID) }
func dedupKey(scope, id string) string    { return fmt.Sprintf(KeyDedup, scope, id) }
