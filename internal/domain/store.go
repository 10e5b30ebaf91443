package domain

import (
	"context"
	"time"
)

// ListOpts carries standard pagination parameters.
type ListOpts struct {
	Limit  int
	Offset int
}

// MarketStore persists market record snapshots.
type MarketStore interface {
	Upsert(ctx context.Context, m Market) error
	Get(ctx context.Context, id string) (Market, error)
	List(ctx context.Context, opts ListOpts) ([]Market, error)
}

// TradeStore persists executed-trade audit records.
type TradeStore interface {
	Insert(ctx context.Context, t Trade) error
	ListByMarket(ctx context.Context, marketID string, opts ListOpts) ([]Trade, error)
	ListBefore(ctx context.Context, before time.Time) ([]Trade, error)
}

// OracleRequestStore persists oracle request snapshots. Records are retained
// indefinitely; Upsert overwrites the single row per market.
type OracleRequestStore interface {
	Upsert(ctx context.Context, r OracleRequest) error
	Get(ctx context.Context, marketID string) (OracleRequest, error)
	ListFinalizedBefore(ctx context.Context, before time.Time) ([]OracleRequest, error)
}

// RedemptionStore persists redemption audit records.
type RedemptionStore interface {
	Insert(ctx context.Context, r Redemption) error
	ListByMarket(ctx context.Context, marketID string, opts ListOpts) ([]Redemption, error)
}
