package repository

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/shubham-shewale/stock-graph/pkg/models"
)

// Compile-time check to ensure RedisStore implements QuoteStore
var _ QuoteStore = (*RedisStore)(nil)

type RedisStore struct {
	client *redis.Client
	pubsub *redis.PubSub
	mu     sync.Mutex // Serializes channel (un)subscription
}

func NewRedisStore(client *redis.Client) *RedisStore {
	ps := client.Subscribe(context.Background())
	return &RedisStore{
		client: client,
		pubsub: ps,
	}
}

// GetSnapshots fetches the latest stored quote for a list of stocks (MGET)
func (r *RedisStore) GetSnapshots(ctx context.Context, stocks []string) ([]string, error) {
	if len(stocks) == 0 {
		return nil, nil
	}

	keys := make([]string, len(stocks))
	for i, stock := range stocks {
		keys[i] = models.SnapshotKey(stock)
	}

	results, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	var snapshots []string
	for _, val := range results {
		if payload, ok := val.(string); ok && payload != "" {
			snapshots = append(snapshots, payload)
		}
	}
	return snapshots, nil
}

func (r *RedisStore) SubscribeToFeed(ctx context.Context, stock string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pubsub.Subscribe(ctx, models.FeedChannel(stock))
}

func (r *RedisStore) UnsubscribeFromFeed(ctx context.Context, stock string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pubsub.Unsubscribe(ctx, models.FeedChannel(stock))
}

// RunPubSub blocks, handing every feed message to onMessage, until ctx is
// done or the subscription is closed.
func (r *RedisStore) RunPubSub(ctx context.Context, onMessage func(stock string, payload string)) {
	ch := r.pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			stock, ok := models.StockFromChannel(msg.Channel)
			if !ok {
				continue
			}
			onMessage(stock, msg.Payload)
		}
	}
}

func (r *RedisStore) Close() error {
	if err := r.pubsub.Close(); err != nil {
		return err
	}
	return r.client.Close()
}
