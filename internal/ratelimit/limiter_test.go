package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestTokenBucketAllowAndRefill(t *testing.T) {
	tb := NewTokenBucket(Config{RequestsPerSec: 5, Burst: 3})
	now := time.Now()
	tb.lastUpdate = now
	tb.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if !tb.Allow() {
			t.Fatalf("expected token available at %d", i)
		}
	}
	if tb.Allow() {
		t.Fatal("expected no token after burst")
	}
	if wait := tb.Reserve(); wait <= 0 {
		t.Fatalf("expected positive reserve, got %v", wait)
	}

	now = now.Add(250 * time.Millisecond)
	if !tb.Allow() {
		t.Fatal("expected token after partial refill")
	}
}

func TestTokenBucketWaitRespectsContext(t *testing.T) {
	tb := NewTokenBucket(Config{RequestsPerSec: 1, Burst: 1})
	if !tb.Allow() {
		t.Fatal("expected first token")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := tb.Wait(ctx); err == nil {
		t.Fatal("expected timeout")
	}
}

func TestNewLimiterStrategies(t *testing.T) {
	if _, ok := NewLimiter(Config{Strategy: StrategyNone}).(Unlimited); !ok {
		t.Error("expected Unlimited for strategy none")
	}
	if _, ok := NewLimiter(Config{}).(*TokenBucket); !ok {
		t.Error("expected token bucket by default")
	}
}

func TestLoadSourceConfigs(t *testing.T) {
	data := []byte(`
rate_limits:
  priaid:
    requests_per_second: 2
  other:
    strategy: none
`)
	cfgs, err := LoadSourceConfigs(data)
	if err != nil {
		t.Fatal(err)
	}

	got := cfgs.Get("priaid")
	if got.RequestsPerSec != 2 || got.Burst != DefaultConfig().Burst || got.Strategy != StrategyTokenBucket {
		t.Errorf("unexpected priaid config %+v", got)
	}
	if cfgs.Get("other").Strategy != StrategyNone {
		t.Error("expected strategy none for other")
	}
	if cfgs.Get("missing") != DefaultConfig() {
		t.Error("expected defaults for a missing source")
	}
}
