package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"time"

	"github.com/ariefcatur/go-marketplace-orders/internal/orders"
	"github.com/redis/go-redis/v9"
)

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

// Store holds the fast-path state kept next to Postgres. Redis is never the
// source of truth: a miss or an error only means the slow path runs.
type Store struct {
	RDB *redis.Client
}

// IdempotentOrderID returns the order created earlier for the same buyer and
// idempotency key, if any.
func (s *Store) IdempotentOrderID(ctx context.Context, buyerID, key string) (string, bool, error) {
	id, err := s.RDB.Get(ctx, idemKey(buyerID, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

func (s *Store) RememberOrderID(ctx context.Context, buyerID, key, orderID string) error {
	return s.RDB.Set(ctx, idemKey(buyerID, key), orderID, TTLIdempotency).Err()
}

// Cached orders are hashes {v, doc}. v is Order.Version; a write carrying an
// older version than the stored one is dropped, so a slow reader cannot put
// back a document a transition has already replaced.
var cacheOrderScript = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'v')
if cur and tonumber(cur) > tonumber(ARGV[1]) then
	return 0
end
redis.call('HSET', KEYS[1], 'v', ARGV[1], 'doc', ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return 1
`)

// tombstoneVersion outranks every real order version.
const tombstoneVersion = math.MaxInt32

func (s *Store) CachedOrder(ctx context.Context, id string) (orders.Order, bool, error) {
	doc, err := s.RDB.HGet(ctx, orderKey(id), "doc").Bytes()
	if errors.Is(err, redis.Nil) {
		return orders.Order{}, false, nil
	}
	if err != nil {
		return orders.Order{}, false, err
	}
	if len(doc) == 0 {
		return orders.Order{}, false, nil // tombstone
	}
	var o orders.Order
	if err := json.Unmarshal(doc, &o); err != nil {
		return orders.Order{}, false, err
	}
	return o, true, nil
}

// CacheOrder stores o unless a newer version is already cached. It reports
// whether the write happened.
func (s *Store) CacheOrder(ctx context.Context, o orders.Order) (bool, error) {
	b, err := json.Marshal(o)
	if err != nil {
		return false, err
	}
	return s.putOrder(ctx, o.ID, o.Version(), b)
}

// ForgetOrder leaves a tombstone for the cache TTL so a read that started
// before the delete cannot cache the order again.
func (s *Store) ForgetOrder(ctx context.Context, id string) error {
	_, err := s.putOrder(ctx, id, tombstoneVersion, nil)
	return err
}

func (s *Store) putOrder(ctx context.Context, id string, version int, doc []byte) (bool, error) {
	n, err := cacheOrderScript.Run(ctx, s.RDB, []string{orderKey(id)},
		version, doc, TTLOrderCache.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// FirstSeen marks (scope, id) as processed and reports whether this call was
// the one that marked it.
func (s *Store) FirstSeen(ctx context.Context, scope, id string) (bool, error) {
	return s.RDB.SetNX(ctx, dedupKey(scope, id), 1, TTLDedup).Result()
}
