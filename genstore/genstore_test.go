package genstore

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bradfitz/gomemcache/memcache"
	"github.com/redis/go-redis/v9"
)

type mapStore struct {
	mu       sync.Mutex
	m        map[string]string
	ttls     map[string]time.Duration
	creates  int
	replaces int
	readErr  error
	// steal simulates a concurrent creator winning right before our create.
	steal string
}

func newMapStore() *mapStore {
	return &mapStore{m: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (s *mapStore) Generation(_ context.Context, k string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return "", false, s.readErr
	}
	g, ok := s.m[k]
	return g, ok, nil
}

func (s *mapStore) CreateGeneration(_ context.Context, k, gen string, ttl time.Duration) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.steal != "" {
		s.m[k] = s.steal
		s.steal = ""
	}
	if cur, ok := s.m[k]; ok {
		return cur, false, nil
	}
	s.creates++
	s.m[k] = gen
	s.ttls[k] = ttl
	return gen, true, nil
}

func (s *mapStore) ReplaceGeneration(_ context.Context, k, gen string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replaces++
	s.m[k] = gen
	s.ttls[k] = ttl
	return nil
}

func fixedClock(ms int64) func() time.Time {
	return func() time.Time { return time.UnixMilli(ms) }
}

func TestResolvePlainKey(t *testing.T) {
	c := NewComposer("my_prefix", ":", newMapStore())
	res, err := c.Resolve(context.Background(), "my_key", "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if res.Key != "my_prefix:my_key" || res.NamespaceKey != "" {
		t.Fatalf("got %+v", res)
	}
}

func TestResolveEmptyPrefixSkipsSeparator(t *testing.T) {
	c := NewComposer("", ":", newMapStore())
	if got := c.Plain("k"); got != "k" {
		t.Fatalf("got %q", got)
	}
}

func TestResolveNamespacedCreatesThenReuses(t *testing.T) {
	ctx := context.Background()
	st := newMapStore()
	c := NewComposer("my_prefix", ":", st).WithClock(fixedClock(1_700_000_000_123))

	first, err := c.Resolve(ctx, "my_key", "my_ns", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if first.Key != "my_prefix:my_ns:1700000000123:my_key" {
		t.Fatalf("key=%q", first.Key)
	}
	if !first.Created || first.NamespaceKey != "my_prefix:my_ns" {
		t.Fatalf("got %+v", first)
	}
	if st.ttls["my_prefix:my_ns"] != time.Minute {
		t.Fatalf("namespace ttl=%v", st.ttls["my_prefix:my_ns"])
	}

	// later clock must not matter once the generation exists
	c2 := c.WithClock(fixedClock(1_800_000_000_000))
	second, err := c2.Resolve(ctx, "my_key", "my_ns", 0)
	if err != nil {
		t.Fatal(err)
	}
	if second.Key != first.Key || second.Created {
		t.Fatalf("second=%+v first=%+v", second, first)
	}
	if st.creates != 1 {
		t.Fatalf("creates=%d", st.creates)
	}
}

func TestRecreateAfterDropNeverReusesGeneration(t *testing.T) {
	ctx := context.Background()
	st := newMapStore()
	c := NewComposer("", ":", st).WithClock(fixedClock(42))

	first, _ := c.Resolve(ctx, "k", "ns", 0)
	delete(st.m, "ns") // flush
	second, err := c.Resolve(ctx, "k", "ns", 0)
	if err != nil {
		t.Fatal(err)
	}
	if first.Generation != "42" || second.Generation != "43" {
		t.Fatalf("first=%q second=%q", first.Generation, second.Generation)
	}
}

func TestResolveGenerationIsEpochMillis(t *testing.T) {
	c := NewComposer("", "", newMapStore())
	res, err := c.Resolve(context.Background(), "k", "ns", 0)
	if err != nil {
		t.Fatal(err)
	}
	if !regexp.MustCompile(`^[1-9][0-9]*$`).MatchString(res.Generation) {
		t.Fatalf("generation %q", res.Generation)
	}
}

func TestResolveDistinctNamespacesDoNotCollide(t *testing.T) {
	ctx := context.Background()
	c := NewComposer("p", ":", newMapStore()).WithClock(fixedClock(5))
	a, _ := c.Resolve(ctx, "k", "n1", 0)
	b, _ := c.Resolve(ctx, "k", "n2", 0)
	if a.Key == b.Key {
		t.Fatalf("collision: %q", a.Key)
	}
}

func TestResolveAdoptsRaceWinner(t *testing.T) {
	st := newMapStore()
	st.steal = "111"
	c := NewComposer("", ":", st).WithClock(fixedClock(999))
	res, err := c.Resolve(context.Background(), "k", "ns", 0)
	if err != nil {
		t.Fatal(err)
	}
	if res.Generation != "111" || res.Created || !res.RaceLost {
		t.Fatalf("got %+v", res)
	}
	if res.Key != "ns:111:k" {
		t.Fatalf("key=%q", res.Key)
	}
}

func TestResolveReplacesUnusableGeneration(t *testing.T) {
	for _, held := range []string{"", "my_value", "12ab"} {
		st := newMapStore()
		st.m["ns"] = held
		c := NewComposer("", ":", st).WithClock(fixedClock(42))
		res, err := c.Resolve(context.Background(), "k", "ns", time.Minute)
		if err != nil {
			t.Fatalf("held %q: %v", held, err)
		}
		if res.Key != "ns:42:k" || !res.Created || res.RaceLost {
			t.Fatalf("held %q: got %+v", held, res)
		}
		if st.m["ns"] != "42" || st.ttls["ns"] != time.Minute || st.replaces != 1 {
			t.Fatalf("held %q: stored %q ttl=%v replaces=%d", held, st.m["ns"], st.ttls["ns"], st.replaces)
		}
	}
}

func TestResolveReplacesWhenRaceWinnerIsUnusable(t *testing.T) {
	st := newMapStore()
	st.steal = "not-a-generation"
	c := NewComposer("", ":", st).WithClock(fixedClock(7))
	res, err := c.Resolve(context.Background(), "k", "ns", 0)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Created || st.replaces != 1 || st.m["ns"] != res.Generation {
		t.Fatalf("got %+v stored=%q", res, st.m["ns"])
	}
}

func TestResolvePropagatesReadErrors(t *testing.T) {
	st := newMapStore()
	st.readErr = errors.New("boom")
	c := NewComposer("", ":", st)
	if _, err := c.Resolve(context.Background(), "k", "ns", 0); err == nil {
		t.Fatalf("expected error")
	}
}

func TestConcurrentCreatorsConvergeOnOneGeneration(t *testing.T) {
	ctx := context.Background()
	st := newMapStore()
	var n int64
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		n++
		return time.UnixMilli(1000 + n)
	}
	c := NewComposer("", ":", st).WithClock(clock)

	const workers = 16
	keys := make([]string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := c.Resolve(ctx, "k", "ns", 0)
			if err != nil {
				t.Error(err)
				return
			}
			keys[i] = res.Key
		}(i)
	}
	wg.Wait()
	for _, k := range keys[1:] {
		if k != keys[0] {
			t.Fatalf("diverged: %q vs %q", k, keys[0])
		}
	}
	if st.creates != 1 {
		t.Fatalf("creates=%d", st.creates)
	}
}

// ==============================
// Backend stores
// ==============================

func TestRedisStoreCreateIfAbsent(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	s := NewRedis(rdb)
	if _, ok, err := s.Generation(ctx, "ns"); err != nil || ok {
		t.Fatalf("expected miss, ok=%v err=%v", ok, err)
	}
	cur, created, err := s.CreateGeneration(ctx, "ns", "100", time.Second)
	if err != nil || !created || cur != "100" {
		t.Fatalf("first create: cur=%q created=%v err=%v", cur, created, err)
	}
	cur, created, err = s.CreateGeneration(ctx, "ns", "200", 0)
	if err != nil || created || cur != "100" {
		t.Fatalf("second create: cur=%q created=%v err=%v", cur, created, err)
	}
	mr.FastForward(2 * time.Second)
	if _, ok, _ := s.Generation(ctx, "ns"); ok {
		t.Fatalf("generation should have expired")
	}
}

type fakeMemcache struct {
	items map[string]*memcache.Item
}

func (f *fakeMemcache) Get(key string) (*memcache.Item, error) {
	it, ok := f.items[key]
	if !ok {
		return nil, memcache.ErrCacheMiss
	}
	return it, nil
}

func (f *fakeMemcache) Add(it *memcache.Item) error {
	if _, ok := f.items[it.Key]; ok {
		return memcache.ErrNotStored
	}
	f.items[it.Key] = it
	return nil
}

func (f *fakeMemcache) Set(it *memcache.Item) error {
	f.items[it.Key] = it
	return nil
}

func TestMemcacheStoreCreateIfAbsent(t *testing.T) {
	ctx := context.Background()
	fm := &fakeMemcache{items: map[string]*memcache.Item{}}
	s := NewMemcache(fm)

	cur, created, err := s.CreateGeneration(ctx, "ns", "100", 90*time.Second)
	if err != nil || !created || cur != "100" {
		t.Fatalf("first create: cur=%q created=%v err=%v", cur, created, err)
	}
	if fm.items["ns"].Expiration != 90 {
		t.Fatalf("expiration=%d", fm.items["ns"].Expiration)
	}
	cur, created, err = s.CreateGeneration(ctx, "ns", "200", 0)
	if err != nil || created || cur != "100" {
		t.Fatalf("second create: cur=%q created=%v err=%v", cur, created, err)
	}
}

func TestBackendStoresReplaceGeneration(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	fm := &fakeMemcache{items: map[string]*memcache.Item{}}

	for name, s := range map[string]Store{"redis": NewRedis(rdb), "memcache": NewMemcache(fm)} {
		if _, _, err := s.CreateGeneration(ctx, "ns", "100", 0); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if err := s.ReplaceGeneration(ctx, "ns", "200", 0); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if cur, ok, err := s.Generation(ctx, "ns"); err != nil || !ok || cur != "200" {
			t.Fatalf("%s: cur=%q ok=%v err=%v", name, cur, ok, err)
		}
	}
}
