package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type recordingObserver struct {
	mu      sync.Mutex
	hits    int
	misses  int
	shared  int
	evicted map[string]EvictReason
}

func (o *recordingObserver) Hit(string)    { o.mu.Lock(); o.hits++; o.mu.Unlock() }
func (o *recordingObserver) Miss(string)   { o.mu.Lock(); o.misses++; o.mu.Unlock() }
func (o *recordingObserver) Shared(string) { o.mu.Lock(); o.shared++; o.mu.Unlock() }
func (o *recordingObserver) Evict(key string, reason EvictReason) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.evicted == nil {
		o.evicted = make(map[string]EvictReason)
	}
	o.evicted[key] = reason
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestGetPut(t *testing.T) {
	obs := &recordingObserver{}
	c := New[string](Options{Observer: obs})

	if _, ok := c.Get("k"); ok {
		t.Fatal("Get() on empty cache hit")
	}
	c.Put("k", "v1")
	if v, ok := c.Get("k"); !ok || v != "v1" {
		t.Errorf("Get() = %q, %v", v, ok)
	}
	c.Put("k", "v2")
	if v, _ := c.Get("k"); v != "v2" {
		t.Errorf("Get() after overwrite = %q", v)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d", c.Len())
	}
	if obs.hits != 2 || obs.misses != 1 {
		t.Errorf("hits = %d, misses = %d", obs.hits, obs.misses)
	}

	if !c.Remove("k") || c.Remove("k") {
		t.Error("Remove() should report presence once")
	}
	c.Put("a", "1")
	c.Put("b", "2")
	c.Purge()
	if c.Len() != 0 {
		t.Errorf("Len() after Purge = %d", c.Len())
	}
}

func TestTTLExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	obs := &recordingObserver{}
	c := New[int](Options{TTL: time.Minute, Now: clock.Now, Observer: obs})

	c.Put("k", 1)
	clock.Advance(59 * time.Second)
	if _, ok := c.Get("k"); !ok {
		t.Fatal("entry expired early")
	}
	clock.Advance(time.Second)
	if _, ok := c.Get("k"); ok {
		t.Fatal("entry served after TTL")
	}
	if c.Len() != 0 {
		t.Errorf("expired entry not removed, Len() = %d", c.Len())
	}
	if obs.evicted["k"] != EvictExpired {
		t.Errorf("evicted = %v", obs.evicted)
	}
}

func TestCapacityEvictsLeastRecentlyInserted(t *testing.T) {
	obs := &recordingObserver{}
	c := New[int](Options{MaxEntries: 2, Observer: obs})

	c.Put("a", 1)
	c.Put("b", 2)
	// Lookups do not refresh recency.
	c.Get("a")
	c.Put("c", 3)

	if _, ok := c.Get("a"); ok {
		t.Error("oldest insertion survived eviction")
	}
	if _, ok := c.Get("b"); !ok {
		t.Error("b evicted")
	}
	if obs.evicted["a"] != EvictCapacity {
		t.Errorf("evicted = %v", obs.evicted)
	}

	// Re-inserting an existing key does not evict.
	c.Put("b", 20)
	if c.Len() != 2 {
		t.Errorf("Len() = %d", c.Len())
	}
}

func TestGetOrFetchSingleFlight(t *testing.T) {
	obs := &recordingObserver{}
	c := New[string](Options{Observer: obs})

	var calls atomic.Int32
	release := make(chan struct{})
	fetch := func(context.Context) (string, error) {
		calls.Add(1)
		<-release
		return "value", nil
	}

	const n = 10
	var wg sync.WaitGroup
	results := make([]string, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.GetOrFetch(context.Background(), "k", fetch)
		}(i)
	}

	waitFor(t, func() bool {
		obs.mu.Lock()
		defer obs.mu.Unlock()
		return obs.misses+obs.shared == n
	})
	close(release)
	wg.Wait()

	if calls.Load() != 1 {
		t.Errorf("fetch ran %d times, want 1", calls.Load())
	}
	for i := 0; i < n; i++ {
		if errs[i] != nil || results[i] != "value" {
			t.Errorf("caller %d got %q, %v", i, results[i], errs[i])
		}
	}
	if v, ok := c.Get("k"); !ok || v != "value" {
		t.Error("fetched value not stored")
	}
	if c.InFlight() != 0 {
		t.Errorf("InFlight() = %d", c.InFlight())
	}

	// Served from the store afterwards.
	if _, err := c.GetOrFetch(context.Background(), "k", fetch); err != nil || calls.Load() != 1 {
		t.Errorf("second GetOrFetch fetched again: calls = %d, err = %v", calls.Load(), err)
	}
}

func TestGetOrFetchErrorNotStored(t *testing.T) {
	c := New[int](Options{})
	boom := errors.New("boom")

	_, err := c.GetOrFetch(context.Background(), "k", func(context.Context) (int, error) {
		return 0, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("GetOrFetch() error = %v", err)
	}
	if c.Len() != 0 {
		t.Error("failed fetch was stored")
	}

	v, err := c.GetOrFetch(context.Background(), "k", func(context.Context) (int, error) {
		return 7, nil
	})
	if err != nil || v != 7 {
		t.Errorf("retry after failure = %d, %v", v, err)
	}
}

func TestGetOrFetchWaiterCancellation(t *testing.T) {
	c := New[string](Options{})
	started := make(chan struct{})
	release := make(chan struct{})
	var fetchCtx context.Context
	fetch := func(ctx context.Context) (string, error) {
		fetchCtx = ctx
		close(started)
		select {
		case <-release:
			return "v", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	ctx1, cancel1 := context.WithCancel(context.Background())
	errc1 := make(chan error, 1)
	go func() {
		_, err := c.GetOrFetch(ctx1, "k", fetch)
		errc1 <- err
	}()
	<-started

	resc2 := make(chan string, 1)
	go func() {
		v, _ := c.GetOrFetch(context.Background(), "k", fetch)
		resc2 <- v
	}()
	waitFor(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		cl := c.calls["k"]
		return cl != nil && cl.waiters == 2
	})

	cancel1()
	if err := <-errc1; !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled waiter error = %v", err)
	}
	if fetchCtx.Err() != nil {
		t.Fatal("fetch cancelled while a waiter remains")
	}

	close(release)
	if v := <-resc2; v != "v" {
		t.Errorf("remaining waiter got %q", v)
	}
}

func TestGetOrFetchLastWaiterCancelsFetch(t *testing.T) {
	c := New[string](Options{})
	started := make(chan struct{})
	fetchDone := make(chan error, 1)
	fetch := func(ctx context.Context) (string, error) {
		close(started)
		<-ctx.Done()
		fetchDone <- ctx.Err()
		return "", ctx.Err()
	}

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := c.GetOrFetch(ctx, "k", fetch)
		errc <- err
	}()
	<-started
	cancel()

	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Fatalf("GetOrFetch() error = %v", err)
	}
	select {
	case err := <-fetchDone:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("fetch ctx error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("fetch not cancelled after last waiter left")
	}

	// A later caller starts a fresh fetch.
	v, err := c.GetOrFetch(context.Background(), "k", func(context.Context) (string, error) { return "fresh", nil })
	if err != nil || v != "fresh" {
		t.Errorf("fresh fetch = %q, %v", v, err)
	}
}

func TestGetOrFetchCancelledBeforeStart(t *testing.T) {
	c := New[int](Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var ran bool
	_, err := c.GetOrFetch(ctx, "k", func(context.Context) (int, error) { ran = true; return 1, nil })
	if !errors.Is(err, context.Canceled) || ran {
		t.Errorf("err = %v, ran = %v", err, ran)
	}
}

func TestGetOrFetchKeepsContextValues(t *testing.T) {
	type ctxKey struct{}
	c := New[string](Options{})
	ctx := context.WithValue(context.Background(), ctxKey{}, "trace-1")
	v, err := c.GetOrFetch(ctx, "k", func(ctx context.Context) (string, error) {
		s, _ := ctx.Value(ctxKey{}).(string)
		return s, nil
	})
	if err != nil || v != "trace-1" {
		t.Errorf("GetOrFetch() = %q, %v", v, err)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met")
		}
		time.Sleep(time.Millisecond)
	}
}
