package genstore

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis keeps generations as plain strings in Redis and creates them with SET NX,
// so racing creators converge on a single generation.
type Redis struct {
	rdb redis.UniversalClient
}

var _ Store = (*Redis)(nil)

func NewRedis(client redis.UniversalClient) *Redis {
	return &Redis{rdb: client}
}

func (s *Redis) Generation(ctx context.Context, namespaceKey string) (string, bool, error) {
	res, err := s.rdb.Get(ctx, namespaceKey).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return res, true, nil
}

// CreateGeneration issues SET key gen NX [EX ttl]; on contention it re-reads the
// winner's value. ttl <= 0 => no expiry.
func (s *Redis) CreateGeneration(ctx context.Context, namespaceKey, gen string, ttl time.Duration) (string, bool, error) {
	if ttl < 0 {
		ttl = 0
	}
	ok, err := s.rdb.SetNX(ctx, namespaceKey, gen, ttl).Result()
	if err != nil {
		return "", false, err
	}
	if ok {
		return gen, true, nil
	}
	cur, _, err := s.Generation(ctx, namespaceKey)
	return cur, false, err
}

func (s *Redis) ReplaceGeneration(ctx context.Context, namespaceKey, gen string, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return s.rdb.Set(ctx, namespaceKey, gen, ttl).Err()
}
