// Package ratelimit throttles outbound calls to the diagnosis provider.
package ratelimit

import (
	"context"
	"time"
)

// Limiter gates outbound requests.
type Limiter interface {
	Wait(ctx context.Context) error
	Allow() bool
	Reserve() time.Duration
}

// Strategy names a limiter implementation in configuration.
type Strategy string

const (
	StrategyTokenBucket Strategy = "token_bucket"
	StrategyNone        Strategy = "none"
)

// NewLimiter creates a limiter for cfg. Unknown strategies fall back to a token bucket.
func NewLimiter(cfg Config) Limiter {
	cfg = applyDefaults(cfg)
	if cfg.Strategy == StrategyNone {
		return Unlimited{}
	}
	return NewTokenBucket(cfg)
}

// Unlimited never blocks.
type Unlimited struct{}

func (Unlimited) Wait(ctx context.Context) error { return ctx.Err() }

func (Unlimited) Allow() bool { return true }

func (Unlimited) Reserve() time.Duration { return 0 }
