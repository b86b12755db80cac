package redisad_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	redisad "recipe_feedback/internal/adapters/redis"
	"recipe_feedback/internal/domain"
)

func TestSummaryCache_SetGetDrop(t *testing.T) {
	mr := miniredis.RunT(t)
	c := redisad.New(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = c.Close() })
	ctx := context.Background()

	want := domain.RatingSummary{SubjectID: "recipe-1", AverageRating: 4.33, TotalCount: 3}
	if err := c.Set(ctx, want, time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, ok, err := c.Get(ctx, "recipe-1")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if got != want {
		t.Fatalf("unexpected value: %+v", got)
	}

	if err := c.Drop(ctx, "recipe-1"); err != nil {
		t.Fatalf("Drop: %v", err)
	}
	if _, ok, err := c.Get(ctx, "recipe-1"); err != nil || ok {
		t.Fatalf("expected miss after Drop, ok=%v err=%v", ok, err)
	}
}

func TestSummaryCache_TTLExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	c := redisad.New(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = c.Close() })
	ctx := context.Background()

	if err := c.Set(ctx, domain.RatingSummary{SubjectID: "recipe-2", AverageRating: 5, TotalCount: 1}, time.Second); err != nil {
		t.Fatalf("Set: %v", err)
	}
	mr.FastForward(2 * time.Second)

	if _, ok, err := c.Get(ctx, "recipe-2"); err != nil || ok {
		t.Fatalf("expected expiry miss, ok=%v err=%v", ok, err)
	}
}

func TestSummaryCache_GetMiss(t *testing.T) {
	mr := miniredis.RunT(t)
	c := redisad.New(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = c.Close() })

	if _, ok, err := c.Get(context.Background(), "absent"); err != nil || ok {
		t.Fatalf("expected miss for absent subject, ok=%v err=%v", ok, err)
	}
}
