package cache

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/daimoniac/pkgstatus/internal/errors"
)

const redisScanCount = 500

// RedisStore keeps entries in Redis so several console instances share one cache.
// Redis expires keys on its own; the expiry is also kept in the envelope so the
// cache clock stays authoritative.
type RedisStore struct {
	client    redis.UniversalClient
	namespace string
}

type redisEnvelope struct {
	Value     json.RawMessage `json:"value"`
	ExpiresAt int64           `json:"expires_at,omitempty"`
}

// NewRedisStore wraps client; every key is prefixed with namespace
func NewRedisStore(client redis.UniversalClient, namespace string) *RedisStore {
	return &RedisStore{
		client:    client,
		namespace: namespace,
	}
}

// Ping checks connectivity
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return errors.NewTransientf("redis ping: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	data, err := s.client.Get(ctx, s.namespace+key).Bytes()
	if err == redis.Nil {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, errors.NewTransientf("redis get %s: %w", key, err)
	}

	var env redisEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Entry{}, false, errors.NewPermanentf("decode redis entry %s: %w", key, err)
	}

	entry := Entry{Key: key, Value: []byte(env.Value)}
	if env.ExpiresAt != 0 {
		entry.ExpiresAt = time.Unix(0, env.ExpiresAt)
	}
	return entry, true, nil
}

func (s *RedisStore) Set(ctx context.Context, entry Entry) error {
	env := redisEnvelope{Value: json.RawMessage(entry.Value)}
	var expiration time.Duration
	if !entry.ExpiresAt.IsZero() {
		env.ExpiresAt = entry.ExpiresAt.UnixNano()
		expiration = time.Until(entry.ExpiresAt)
		if expiration <= 0 {
			return nil
		}
	}

	data, err := json.Marshal(env)
	if err != nil {
		return errors.NewPermanentf("encode redis entry %s: %w", entry.Key, err)
	}

	if err := s.client.Set(ctx, s.namespace+entry.Key, data, expiration).Err(); err != nil {
		return errors.NewTransientf("redis set %s: %w", entry.Key, err)
	}
	return nil
}

func (s *RedisStore) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	keys, err := s.scan(ctx, escapeGlob(s.namespace+prefix)+"*")
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}

	removed, err := s.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, errors.NewTransientf("redis del: %w", err)
	}
	return int(removed), nil
}

func (s *RedisStore) Len(ctx context.Context) (int, error) {
	keys, err := s.scan(ctx, escapeGlob(s.namespace)+"*")
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

func (s *RedisStore) scan(ctx context.Context, match string) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, match, redisScanCount).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, errors.NewTransientf("redis scan %s: %w", match, err)
	}
	return keys, nil
}

var globEscaper = strings.NewReplacer(
	`\`, `\\`,
	`*`, `\*`,
	`?`, `\?`,
	`[`, `\[`,
	`]`, `\]`,
)

func escapeGlob(s string) string {
	return globEscaper.Replace(s)
}
