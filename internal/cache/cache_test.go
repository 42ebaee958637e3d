package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/daimoniac/pkgstatus/internal/observability"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
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

func newTestCache(clock *fakeClock, opts ...Option) *Cache {
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	return New(NewMemoryStore(), observability.NewLogger("error"), opts...)
}

func counter[T any](value T, calls *int32) func(context.Context) (T, error) {
	return func(ctx context.Context) (T, error) {
		atomic.AddInt32(calls, 1)
		return value, nil
	}
}

func TestFetchMemoizesWithinTTL(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(clock)
	ctx := context.Background()
	var calls int32

	for i := 0; i < 3; i++ {
		got, err := Fetch(ctx, c, "status:home:foo", time.Minute, counter([]string{"a", "b"}, &calls))
		if err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
		if len(got) != 2 || got[1] != "b" {
			t.Fatalf("unexpected value %v", got)
		}
		clock.Advance(10 * time.Second)
	}

	if calls != 1 {
		t.Errorf("producer called %d times, want 1", calls)
	}
}

func TestFetchRefetchesOnceAfterExpiry(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(clock)
	ctx := context.Background()
	var calls int32

	if _, err := Fetch(ctx, c, "summary:foo", 30*time.Second, counter(1, &calls)); err != nil {
		t.Fatal(err)
	}

	clock.Advance(30 * time.Second)

	for i := 0; i < 5; i++ {
		if _, err := Fetch(ctx, c, "summary:foo", 30*time.Second, counter(1, &calls)); err != nil {
			t.Fatal(err)
		}
	}

	if calls != 2 {
		t.Errorf("producer called %d times, want 2", calls)
	}
}

func TestFetchDoesNotStoreFailures(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(clock)
	ctx := context.Background()
	boom := errors.New("backend down")

	_, err := Fetch(ctx, c, "requests:new", time.Minute, func(ctx context.Context) (int, error) {
		return 0, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Fetch() error = %v, want %v", err, boom)
	}

	if n, _ := c.Len(ctx); n != 0 {
		t.Fatalf("expected no stored entry, got %d", n)
	}

	var calls int32
	got, err := Fetch(ctx, c, "requests:new", time.Minute, counter(7, &calls))
	if err != nil || got != 7 || calls != 1 {
		t.Errorf("Fetch() = %v, %v (calls %d), want 7, nil (calls 1)", got, err, calls)
	}
}

func TestFetchDiscardOverwrites(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(clock)
	ctx := context.Background()

	if _, err := Fetch(ctx, c, "status:foo", time.Hour, func(context.Context) (string, error) { return "old", nil }); err != nil {
		t.Fatal(err)
	}

	got, err := Fetch(WithDiscard(ctx), c, "status:foo", time.Hour, func(context.Context) (string, error) { return "new", nil })
	if err != nil || got != "new" {
		t.Fatalf("discarding Fetch() = %q, %v", got, err)
	}

	got, err = Fetch(ctx, c, "status:foo", time.Hour, func(context.Context) (string, error) {
		t.Error("producer must not run, entry was overwritten")
		return "", nil
	})
	if err != nil || got != "new" {
		t.Errorf("Fetch() = %q, %v, want new", got, err)
	}
}

func TestFetchForeverTTL(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(clock)
	ctx := context.Background()
	var calls int32

	Fetch(ctx, c, DivergenceKey("a", "b"), TTLForever, counter("different_sources", &calls))
	clock.Advance(365 * 24 * time.Hour)
	got, _ := Fetch(ctx, c, DivergenceKey("a", "b"), TTLForever, counter("different_sources", &calls))

	if got != "different_sources" || calls != 1 {
		t.Errorf("got %q after %d calls", got, calls)
	}
}

func TestFetchReturnsCopies(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(clock)
	ctx := context.Background()

	first, _ := Fetch(ctx, c, "repos:foo", time.Minute, func(context.Context) (map[string][]string, error) {
		return map[string][]string{"standard": {"x86_64"}}, nil
	})
	first["standard"][0] = "mutated"

	second, _ := Fetch(ctx, c, "repos:foo", time.Minute, func(context.Context) (map[string][]string, error) {
		return nil, errors.New("unexpected producer call")
	})
	if second["standard"][0] != "x86_64" {
		t.Errorf("cached value was mutated through a previous read: %v", second)
	}
}

func TestInvalidate(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(clock)
	ctx := context.Background()
	var calls int32

	for _, key := range []string{"dir:foo/a", "dir:foo/b", "dir:bar/a"} {
		Fetch(ctx, c, key, time.Minute, counter(true, &calls))
	}

	n, err := c.Invalidate(ctx, "dir:foo/")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("Invalidate() removed %d, want 2", n)
	}
	if left, _ := c.Len(ctx); left != 1 {
		t.Errorf("Len() = %d, want 1", left)
	}
}

func TestPurgeExpired(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(clock)
	ctx := context.Background()
	var calls int32

	Fetch(ctx, c, "summary:a", 30*time.Second, counter(1, &calls))
	Fetch(ctx, c, "status:a", 10*time.Minute, counter(1, &calls))
	Fetch(ctx, c, "dd:x_y", TTLForever, counter("different_changes", &calls))

	clock.Advance(time.Minute)

	n, err := c.PurgeExpired(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("PurgeExpired() = %d, want 1", n)
	}
}

func TestFetchCoalescing(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(clock, WithCoalescing())
	ctx := context.Background()

	var calls int32
	release := make(chan struct{})
	started := make(chan struct{}, 8)
	produce := func(ctx context.Context) ([]int, error) {
		atomic.AddInt32(&calls, 1)
		started <- struct{}{}
		<-release
		return []int{42}, nil
	}

	var wg sync.WaitGroup
	results := make([][]int, 4)
	errs := make([]error, 4)
	fetch := func(i int) {
		defer wg.Done()
		results[i], errs[i] = Fetch(ctx, c, "requests:new", time.Minute, produce)
	}

	wg.Add(1)
	go fetch(0)
	<-started

	for i := 1; i < len(results); i++ {
		wg.Add(1)
		go fetch(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls != 1 {
		t.Errorf("producer called %d times, want 1", calls)
	}
	for i, r := range results {
		if errs[i] != nil || len(r) != 1 || r[0] != 42 {
			t.Fatalf("result %d = %v, %v, want [42]", i, r, errs[i])
		}
	}

	results[0][0] = -1
	for i := 1; i < len(results); i++ {
		if results[i][0] != 42 {
			t.Errorf("result %d shares memory with another caller: %v", i, results[i])
		}
	}
}

func TestFetchCoalescingIgnoresOtherCallersCancellation(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(clock, WithCoalescing())

	var calls int32
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	produce := func(ctx context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		started <- struct{}{}
		select {
		case <-release:
			return "snapshot", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := Fetch(leaderCtx, c, "status:foo|", time.Minute, produce)
		leaderErr <- err
	}()
	<-started

	type outcome struct {
		value string
		err   error
	}
	follower := make(chan outcome, 1)
	go func() {
		v, err := Fetch(context.Background(), c, "status:foo|", time.Minute, produce)
		follower <- outcome{v, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancelLeader()
	select {
	case err := <-leaderErr:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("leader error = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("cancelled caller did not return")
	}

	close(release)
	select {
	case got := <-follower:
		if got.err != nil || got.value != "snapshot" {
			t.Errorf("follower = %q, %v, want snapshot", got.value, got.err)
		}
	case <-time.After(time.Second):
		t.Fatal("follower did not return")
	}

	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("producer called %d times, want 1", n)
	}
	if n, _ := c.Len(context.Background()); n != 1 {
		t.Errorf("Len() = %d, want the shared result stored", n)
	}
}

type failingStore struct {
	*MemoryStore
}

func (s *failingStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	return Entry{}, false, errors.New("connection reset")
}

func TestFetchDegradesOnStoreReadFailure(t *testing.T) {
	store := &failingStore{MemoryStore: NewMemoryStore()}
	c := New(store, observability.NewLogger("error"))

	got, err := Fetch(context.Background(), c, "status:foo", time.Minute, func(context.Context) (string, error) {
		return "fresh", nil
	})
	if err != nil || got != "fresh" {
		t.Errorf("Fetch() = %q, %v", got, err)
	}
}

func TestKeyKind(t *testing.T) {
	tests := map[string]string{
		"status:foo":       "status",
		"dd:a_b":           "dd",
		"monitor:foo|code": "monitor",
		"nocolon":          "other",
	}
	for key, want := range tests {
		if got := keyKind(key); got != want {
			t.Errorf("keyKind(%q) = %q, want %q", key, got, want)
		}
	}
}

func TestTTLOverrides(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(clock, WithTTLOverrides(map[string]time.Duration{
		"summary": 5 * time.Second,
		"dd":      time.Second,
	}))
	ctx := context.Background()
	var calls int32

	Fetch(ctx, c, SummaryKey("foo"), TTLSummary, counter(1, &calls))
	clock.Advance(5 * time.Second)
	Fetch(ctx, c, SummaryKey("foo"), TTLSummary, counter(1, &calls))
	if calls != 2 {
		t.Errorf("summary producer called %d times, want 2", calls)
	}

	calls = 0
	Fetch(ctx, c, DivergenceKey("a", "b"), TTLForever, counter("different_changes", &calls))
	clock.Advance(time.Hour)
	Fetch(ctx, c, DivergenceKey("a", "b"), TTLForever, counter("different_changes", &calls))
	if calls != 1 {
		t.Errorf("entries without expiry must keep it, producer called %d times", calls)
	}
}
