package identity

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenStore persists the raw session token issued to a browser session key.
// Load returns "" with a nil error when nothing is stored.
type TokenStore interface {
	Save(ctx context.Context, key, token string, ttl time.Duration) error
	Load(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

const tokenKeyPrefix = "identity:session:"

type RedisTokenStore struct {
	client *redis.Client
}

func NewRedisTokenStore(client *redis.Client) *RedisTokenStore {
	return &RedisTokenStore{client: client}
}

func (s *RedisTokenStore) Save(ctx context.Context, key, token string, ttl time.Duration) error {
	return s.client.Set(ctx, tokenKeyPrefix+key, token, ttl).Err()
}

func (s *RedisTokenStore) Load(ctx context.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, tokenKeyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return val, err
}

func (s *RedisTokenStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, tokenKeyPrefix+key).Err()
}

// MemoryTokenStore keeps tokens in process. Used in development without Redis and in tests.
type MemoryTokenStore struct {
	mu      sync.Mutex
	tokens  map[string]memoryToken
	nowFunc func() time.Time
}

type memoryToken struct {
	value     string
	expiresAt time.Time
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{tokens: make(map[string]memoryToken), nowFunc: time.Now}
}

func (s *MemoryTokenStore) Save(_ context.Context, key, token string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[key] = memoryToken{value: token, expiresAt: s.nowFunc().Add(ttl)}
	return nil
}

func (s *MemoryTokenStore) Load(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[key]
	if !ok {
		return "", nil
	}
	if !s.nowFunc().Before(t.expiresAt) {
		delete(s.tokens, key)
		return "", nil
	}
	return t.value, nil
}

func (s *MemoryTokenStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, key)
	return nil
}
