package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryCacheExpiry(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Unix(1000, 0)
	c := NewMemoryCache(0)
	c.now = func() time.Time { return now }

	if err := c.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if v, ok, _ := c.Get(ctx, "k"); !ok || string(v) != "v" {
		t.Fatalf("got %q/%v, want v/true", v, ok)
	}

	now = now.Add(2 * time.Minute)
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Fatal("entry should have expired")
	}
	if c.Len() != 0 {
		t.Fatalf("expired entry should be dropped, have %d", c.Len())
	}
}

func TestMemoryCacheEviction(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := NewMemoryCache(2)
	_ = c.Set(ctx, "soon", []byte("1"), time.Minute)
	_ = c.Set(ctx, "later", []byte("2"), time.Hour)
	_ = c.Set(ctx, "new", []byte("3"), time.Hour)

	if c.Len() != 2 {
		t.Fatalf("got %d entries, want 2", c.Len())
	}
	if _, ok, _ := c.Get(ctx, "soon"); ok {
		t.Fatal("entry closest to expiry should be evicted")
	}
}

func TestRemember(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := NewMemoryCache(0)
	calls := 0
	fn := func(context.Context) ([]string, error) {
		calls++
		return []string{"a", "b"}, nil
	}

	for i := 0; i < 3; i++ {
		got, err := Remember(ctx, c, Key("pair", "d", "m"), time.Minute, fn)
		if err != nil {
			t.Fatalf("remember: %v", err)
		}
		if len(got) != 2 || got[1] != "b" {
			t.Fatalf("got %v", got)
		}
	}
	if calls != 1 {
		t.Fatalf("got %d calls, want 1", calls)
	}
}

func TestRememberDoesNotCacheErrors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := NewMemoryCache(0)
	boom := errors.New("boom")

	_, err := Remember(ctx, c, "k", time.Minute, func(context.Context) (int, error) { return 0, boom })
	if !errors.Is(err, boom) {
		t.Fatalf("got %v, want boom", err)
	}
	if c.Len() != 0 {
		t.Fatal("errors must not be cached")
	}
}

func TestRememberWithoutCache(t *testing.T) {
	t.Parallel()

	got, err := Remember(context.Background(), nil, "k", 0, func(context.Context) (int, error) { return 7, nil })
	if err != nil || got != 7 {
		t.Fatalf("got %d, %v", got, err)
	}
}

func TestKey(t *testing.T) {
	t.Parallel()

	if got := Key("attention_pair", "5044", "DB001"); got != "attention_pair:5044:DB001" {
		t.Fatalf("got %q", got)
	}
}

func TestRedisCacheKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		prefix string
		want   string
	}{
		{"txgnn", "txgnn:attention_pair:D1:R1"},
		{"txgnn:", "txgnn:attention_pair:D1:R1"},
		{"", "attention_pair:D1:R1"},
	}
	for _, tt := range tests {
		c := NewRedisCacheWithClient(nil, tt.prefix)
		if got := c.key("attention_pair:D1:R1"); got != tt.want {
			t.Fatalf("prefix %q: got %q, want %q", tt.prefix, got, tt.want)
		}
	}
}
