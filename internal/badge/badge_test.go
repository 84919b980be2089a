package badge

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestCounterDecrementStopsAtZero(t *testing.T) {
	mr := miniredis.RunT(t)
	c := New(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	ctx := context.Background()

	c.Increment(ctx, "u1")
	c.Increment(ctx, "u1")
	if n, err := c.Decrement(ctx, "u1"); err != nil || n != 1 {
		t.Fatalf("expected 1 after decrement, got %d (%v)", n, err)
	}
	if n, err := c.Decrement(ctx, "u1"); err != nil || n != 0 {
		t.Fatalf("expected 0 after decrement, got %d (%v)", n, err)
	}
	if mr.Exists("badge:u1") {
		t.Fatalf("expected badge key deleted at zero")
	}
	// reset raced the refund
	if n, err := c.Decrement(ctx, "u1"); err != nil || n != 0 {
		t.Fatalf("expected count to stay at 0, got %d (%v)", n, err)
	}
}

func TestCounterIncrementAndReset(t *testing.T) {
	mr := miniredis.RunT(t)
	c := New(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	ctx := context.Background()

	if n, err := c.Get(ctx, "u1"); err != nil || n != 0 {
		t.Fatalf("expected empty count, got %d (%v)", n, err)
	}
	for want := int64(1); want <= 3; want++ {
		n, err := c.Increment(ctx, "u1")
		if err != nil {
			t.Fatalf("increment: %v", err)
		}
		if n != want {
			t.Fatalf("expected %d, got %d", want, n)
		}
	}
	if n, _ := c.Increment(ctx, "u2"); n != 1 {
		t.Fatalf("expected independent counter, got %d", n)
	}

	if err := c.Reset(ctx, "u1"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if mr.Exists("badge:u1") {
		t.Fatalf("expected badge key deleted")
	}
	if n, _ := c.Get(ctx, "u2"); n != 1 {
		t.Fatalf("expected u2 untouched, got %d", n)
	}
}
