package repository

import (
	"context"
)

// QuoteStore is the Redis-side view of the quote feed written by the processor.
type QuoteStore interface {
	GetSnapshots(ctx context.Context, stocks []string) ([]string, error)
	SubscribeToFeed(ctx context.Context, stock string) error
	UnsubscribeFromFeed(ctx context.Context, stock string) error
	RunPubSub(ctx context.Context, onMessage func(stock string, payload string))
	Close() error
}
