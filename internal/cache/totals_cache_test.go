package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Sara-Samara/HealthAidProj-sub001/internal/model"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

type fakeKV struct {
	mu      sync.Mutex
	data    map[string]string
	ttl     map[string]time.Duration
	getErr  error
	setErr  error
	deleted []string
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: map[string]string{}, ttl: map[string]time.Duration{}}
}

func (f *fakeKV) Get(ctx context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeKV) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return redis.NewStatusResult("", f.setErr)
	}
	f.data[key] = string(value.([]byte))
	f.ttl[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeKV) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.data, k)
		f.deleted = append(f.deleted, k)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func totals(raised string) *model.CampaignTotals {
	t := model.NewCampaignTotals("sp-1", decimal.NewFromInt(500), decimal.RequireFromString(raised), 2)
	return &t
}

func TestFetch_MissLoadsAndStores(t *testing.T) {
	kv := newFakeKV()
	c := NewTotalsCache(kv, time.Minute)

	loads := 0
	load := func(ctx context.Context) (*model.CampaignTotals, error) {
		loads++
		return totals("250"), nil
	}

	for i := 0; i < 3; i++ {
		got, err := c.Fetch(context.Background(), "sp-1", load)
		if err != nil {
			t.Fatalf("Fetch: %v", err)
		}
		if !got.AmountRaised.Equal(decimal.NewFromInt(250)) || got.DonorCount != 2 {
			t.Errorf("unexpected totals: %+v", got)
		}
	}
	if loads != 1 {
		t.Errorf("expected 1 load, got %d", loads)
	}
	if kv.ttl[keyPrefix+"sp-1"] != time.Minute {
		t.Errorf("expected ttl 1m, got %v", kv.ttl[keyPrefix+"sp-1"])
	}
}

func TestInvalidate_ForcesReload(t *testing.T) {
	kv := newFakeKV()
	c := NewTotalsCache(kv, 0)

	raised := "100"
	load := func(ctx context.Context) (*model.CampaignTotals, error) {
		return totals(raised), nil
	}
	if _, err := c.Fetch(context.Background(), "sp-1", load); err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	raised = "400"
	if err := c.Invalidate(context.Background(), "sp-1"); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	got, err := c.Fetch(context.Background(), "sp-1", load)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !got.AmountRaised.Equal(decimal.NewFromInt(400)) {
		t.Errorf("expected reloaded 400, got %s", got.AmountRaised)
	}
	if kv.ttl[keyPrefix+"sp-1"] != 30*time.Second {
		t.Errorf("expected default ttl 30s, got %v", kv.ttl[keyPrefix+"sp-1"])
	}
}

func TestFetch_RedisDownFallsBackToLoad(t *testing.T) {
	kv := newFakeKV()
	kv.getErr = errors.New("connection refused")
	kv.setErr = errors.New("connection refused")
	c := NewTotalsCache(kv, time.Minute)

	got, err := c.Fetch(context.Background(), "sp-1", func(ctx context.Context) (*model.CampaignTotals, error) {
		return totals("50"), nil
	})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !got.AmountRaised.Equal(decimal.NewFromInt(50)) {
		t.Errorf("unexpected totals: %+v", got)
	}
}

func TestFetch_CorruptEntryReloads(t *testing.T) {
	kv := newFakeKV()
	kv.data[keyPrefix+"sp-1"] = "{not json"
	c := NewTotalsCache(kv, time.Minute)

	got, err := c.Fetch(context.Background(), "sp-1", func(ctx context.Context) (*model.CampaignTotals, error) {
		return totals("75"), nil
	})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !got.AmountRaised.Equal(decimal.NewFromInt(75)) {
		t.Errorf("unexpected totals: %+v", got)
	}
}

func TestFetch_LoadErrorNotCached(t *testing.T) {
	kv := newFakeKV()
	c := NewTotalsCache(kv, time.Minute)
	wantErr := errors.New("db down")

	_, err := c.Fetch(context.Background(), "sp-1", func(ctx context.Context) (*model.CampaignTotals, error) {
		return nil, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected load error, got %v", err)
	}
	if len(kv.data) != 0 {
		t.Error("failed load must not be cached")
	}
}

func TestFetch_ConcurrentMissesShareLoad(t *testing.T) {
	kv := newFakeKV()
	c := NewTotalsCache(kv, time.Minute)

	var loads atomic.Int32
	release := make(chan struct{})
	load := func(ctx context.Context) (*model.CampaignTotals, error) {
		loads.Add(1)
		<-release
		return totals("10"), nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Fetch(context.Background(), "sp-1", load); err != nil {
				t.Errorf("Fetch: %v", err)
			}
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := loads.Load(); n != 1 {
		t.Errorf("expected 1 shared load, got %d", n)
	}
}

func TestFetch_CallerCancelDoesNotFailSharedLoad(t *testing.T) {
	c := NewTotalsCache(newFakeKV(), time.Minute)
	started := make(chan struct{})
	release := make(chan struct{})
	var startOnce sync.Once

	load := func(ctx context.Context) (*model.CampaignTotals, error) {
		startOnce.Do(func() { close(started) })
		<-release
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, ok := ctx.Deadline(); !ok {
			t.Error("shared load must still be bounded by a deadline")
		}
		return &model.CampaignTotals{SponsorshipID: "sp-1", AmountRaised: decimal.NewFromInt(40)}, nil
	}

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := c.Fetch(firstCtx, "sp-1", load)
		firstErr <- err
	}()
	<-started

	secondErr := make(chan error, 1)
	go func() {
		_, err := c.Fetch(context.Background(), "sp-1", load)
		secondErr <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancelFirst()
	close(release)

	if err := <-secondErr; err != nil {
		t.Errorf("waiting caller failed because the first caller went away: %v", err)
	}
	if err := <-firstErr; err != nil {
		t.Errorf("first caller: %v", err)
	}
}
