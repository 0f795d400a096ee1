package cart

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store persists carts.  It knows nothing about transitions; callers load,
// apply a transition and save.
type Store interface {
	Load(ctx context.Context, key string) (Cart, error)
	Save(ctx context.Context, key string, c Cart) error
	Delete(ctx context.Context, key string) error
}

// Key is the storage key of a user's cart within a client.
func Key(clientID, userID string) string {
	return clientID + ":" + userID + "_cart"
}

// MemoryStore keeps carts in process memory.  Used when Redis is not
// configured and in tests.
type MemoryStore struct {
	mu    sync.RWMutex
	carts map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{carts: make(map[string][]byte)}
}

func (m *MemoryStore) Load(_ context.Context, key string) (Cart, error) {
	m.mu.RLock()
	raw, ok := m.carts[key]
	m.mu.RUnlock()
	if !ok {
		return Normalize(Cart{}), nil
	}
	return decode(raw)
}

func (m *MemoryStore) Save(_ context.Context, key string, c Cart) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.carts[key] = raw
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.carts, key)
	m.mu.Unlock()
	return nil
}

// RedisStore keeps carts as JSON strings under <prefix><key>, refreshing
// the TTL on every save.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore returns a store that expires idle carts after ttl.
func NewRedisStore(rdb *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "storefront:"
	}
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &RedisStore{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) Load(ctx context.Context, key string) (Cart, error) {
	raw, err := s.rdb.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Normalize(Cart{}), nil
	}
	if err != nil {
		return Cart{}, err
	}
	return decode(raw)
}

func (s *RedisStore) Save(ctx context.Context, key string, c Cart) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.prefix+key, raw, s.ttl).Err()
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, s.prefix+key).Err()
}

func decode(raw []byte) (Cart, error) {
	var c Cart
	if err := json.Unmarshal(raw, &c); err != nil {
		return Cart{}, err
	}
	return Normalize(c), nil
}
