package cache

import (
	"context"
	"testing"
	"time"
)

func TestLocalLRUGetSet(t *testing.T) {
	c, err := NewLocalLRU(2)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if err := c.Set(ctx, "a", []byte("1"), time.Minute); err != nil {
		t.Fatal(err)
	}
	v, ok, err := c.Get(ctx, "a")
	if err != nil || !ok || string(v) != "1" {
		t.Fatalf("Get(a) = %q, %v, %v", v, ok, err)
	}
}

func TestLocalLRUExpires(t *testing.T) {
	c, _ := NewLocalLRU(2)
	ctx := context.Background()
	_ = c.Set(ctx, "a", []byte("1"), time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	_, ok, _ := c.Get(ctx, "a")
	if ok {
		t.Fatal("expected expired entry to miss")
	}
}

func TestLocalLRUEvictsOldest(t *testing.T) {
	c, _ := NewLocalLRU(1)
	ctx := context.Background()
	_ = c.Set(ctx, "a", []byte("1"), time.Minute)
	_ = c.Set(ctx, "b", []byte("2"), time.Minute)
	_, ok, _ := c.Get(ctx, "a")
	if ok {
		t.Fatal("expected a to be evicted once capacity exceeded")
	}
}

func TestKeyNamespacesByScanKind(t *testing.T) {
	k1 := Key("toxicity", "hello")
	k2 := Key("secrets", "hello")
	if k1 == k2 {
		t.Fatal("expected different scan kinds to produce different keys for the same text")
	}
}

func TestManagerGetOrComputeCoalesces(t *testing.T) {
	lru, _ := NewLocalLRU(10)
	m := NewManager(lru, time.Minute, time.Second)

	calls := 0
	compute := func(ctx context.Context) ([]byte, error) {
		calls++
		return []byte("computed"), nil
	}

	v1, err := m.GetOrCompute(context.Background(), "k", compute)
	if err != nil {
		t.Fatal(err)
	}
	v2, err := m.GetOrCompute(context.Background(), "k", compute)
	if err != nil {
		t.Fatal(err)
	}
	if string(v1) != "computed" || string(v2) != "computed" {
		t.Fatalf("v1=%q v2=%q", v1, v2)
	}
	if calls != 1 {
		t.Fatalf("compute called %d times, want 1", calls)
	}
}
