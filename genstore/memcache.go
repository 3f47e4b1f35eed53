package genstore

import (
	"context"
	"errors"
	"time"

	"github.com/bradfitz/gomemcache/memcache"

	"github.com/unkn0wn-root/cacheclient/internal/ttl"
)

// MemcacheClient is the subset of *memcache.Client used for generations.
type MemcacheClient interface {
	Get(key string) (*memcache.Item, error)
	Add(item *memcache.Item) error
	Set(item *memcache.Item) error
}

// Memcache creates generations with memcached's add, which fails when the key exists.
type Memcache struct {
	mc  MemcacheClient
	now func() time.Time
}

var _ Store = (*Memcache)(nil)

func NewMemcache(client MemcacheClient) *Memcache {
	return &Memcache{mc: client, now: time.Now}
}

// gomemcache has no context support; ctx is accepted for the Store contract.
func (s *Memcache) Generation(_ context.Context, namespaceKey string) (string, bool, error) {
	it, err := s.mc.Get(namespaceKey)
	if errors.Is(err, memcache.ErrCacheMiss) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return string(it.Value), true, nil
}

func (s *Memcache) CreateGeneration(ctx context.Context, namespaceKey, gen string, d time.Duration) (string, bool, error) {
	err := s.mc.Add(&memcache.Item{
		Key:        namespaceKey,
		Value:      []byte(gen),
		Expiration: ttl.Memcache(d, s.now()),
	})
	if err == nil {
		return gen, true, nil
	}
	if !errors.Is(err, memcache.ErrNotStored) {
		return "", false, err
	}
	cur, _, err := s.Generation(ctx, namespaceKey)
	return cur, false, err
}

func (s *Memcache) ReplaceGeneration(_ context.Context, namespaceKey, gen string, d time.Duration) error {
	return s.mc.Set(&memcache.Item{
		Key:        namespaceKey,
		Value:      []byte(gen),
		Expiration: ttl.Memcache(d, s.now()),
	})
}
