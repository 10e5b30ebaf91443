package domain

import (
	"context"
	"time"
)

// PriceCache stores the latest instantaneous YES price per market for
// cheap read access by quote consumers.
type PriceCache interface {
	SetYesPrice(ctx context.Context, marketID string, price float64, ts time.Time) error
	GetYesPrice(ctx context.Context, marketID string) (float64, time.Time, error)
}

// SignalBus publishes engine events (quotes issued, trades executed,
// disputes raised, markets settled) to interested consumers.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	PublishStream(ctx context.Context, stream string, fields map[string]any) error
}

// RateLimiter enforces per-key request limits over a sliding window.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
