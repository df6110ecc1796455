package domain

import (
	"context"
	"time"
)

// ListOpts carries pagination parameters for list queries.
type ListOpts struct {
	Limit  int
	Offset int
}

// TradeStore persists terminal trade records.
type TradeStore interface {
	Create(ctx context.Context, rec TradeRecord) error
	GetByID(ctx context.Context, id string) (TradeRecord, error)
	ListByWallet(ctx context.Context, wallet string, opts ListOpts) ([]TradeRecord, error)
}

// TokenStore is the durable storage for backend bearer tokens, keyed by
// wallet address. Tokens survive process restarts but are wiped on wallet
// disconnect/switch and expire after their TTL.
type TokenStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// SignalBus is the pub/sub channel carrying status updates from the
// orchestrator to the WebSocket hub.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}
