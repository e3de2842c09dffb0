package cache

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestRedisSetDefaults(t *testing.T) {
	conf := &Redis{}
	conf.SetDefaults()
	if conf.Addr() != "127.0.0.1:6379" {
		t.Errorf("expected default addr 127.0.0.1:6379, got %s", conf.Addr())
	}
}

func TestMemoryCacheBasic(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryCache()

	if _, err := mem.Get(ctx, "missing"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected ErrCacheMiss, got %v", err)
	}

	if err := mem.Set(ctx, "k", "v", 0); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	got, err := mem.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got != "v" {
		t.Errorf("expected v, got %s", got)
	}

	if err := mem.Del(ctx, "k"); err != nil {
		t.Fatalf("del failed: %v", err)
	}
	if _, err := mem.Get(ctx, "k"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("expected ErrCacheMiss after delete, got %v", err)
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryCache()

	if err := mem.Set(ctx, "k", "v", time.Millisecond); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, err := mem.Get(ctx, "k"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("expected ErrCacheMiss after expiry, got %v", err)
	}
}

func TestCachedQueryReadThrough(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryCache()

	calls := 0
	keyFunc := func(params ...any) string {
		return "profile:" + params[0].(string)
	}
	queryFunc := func(ctx context.Context) (string, error) {
		calls++
		return "loaded", nil
	}

	cq := NewCachedQuery(mem, keyFunc, queryFunc, WithTTL[string](time.Minute))

	for i := 0; i < 3; i++ {
		got, err := cq.Get(ctx, "standard")
		if err != nil {
			t.Fatalf("get %d failed: %v", i, err)
		}
		if got != "loaded" {
			t.Errorf("get %d: expected loaded, got %s", i, got)
		}
	}
	if calls != 1 {
		t.Errorf("expected 1 backing query, got %d", calls)
	}

	if err := cq.Invalidate(ctx, "standard"); err != nil {
		t.Fatalf("invalidate failed: %v", err)
	}
	if _, err := cq.Get(ctx, "standard"); err != nil {
		t.Fatalf("get after invalidate failed: %v", err)
	}
	if calls != 2 {
		t.Errorf("expected backing query after invalidate, got %d calls", calls)
	}
}

func TestCachedQueryQueryError(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryCache()

	wantErr := fmt.Errorf("backing store down")
	cq := NewCachedQuery(mem, func(params ...any) string { return "k" },
		func(ctx context.Context) (int, error) { return 0, wantErr })

	if _, err := cq.Get(ctx); !errors.Is(err, wantErr) {
		t.Errorf("expected backing error, got %v", err)
	}
}
