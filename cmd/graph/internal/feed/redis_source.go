package feed

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-graph/cmd/graph/internal/repository"
	"github.com/shubham-shewale/stock-graph/pkg/models"
)

// RedisSource seeds from the latest stored quotes and then batches the live
// pub/sub stream, flushing once per interval.
type RedisSource struct {
	store    repository.QuoteStore
	tickers  []string
	interval time.Duration
	logger   *zap.Logger
}

func NewRedisSource(store repository.QuoteStore, tickers []string, interval time.Duration, logger *zap.Logger) *RedisSource {
	return &RedisSource{
		store:    store,
		tickers:  tickers,
		interval: interval,
		logger:   logger,
	}
}

func (s *RedisSource) Run(ctx context.Context, emit Emit) error {
	// Subscribe before reading snapshots so nothing falls in between; any
	// overlap is a repeated quote.
	var subscribed []string
	defer func() { s.unsubscribe(subscribed) }()
	for _, stock := range s.tickers {
		if err := s.store.SubscribeToFeed(ctx, stock); err != nil {
			return fmt.Errorf("subscribe to %s feed: %w", stock, err)
		}
		subscribed = append(subscribed, stock)
	}

	snapshots, err := s.store.GetSnapshots(ctx, s.tickers)
	if err != nil {
		s.logger.Warn("Failed to load quote snapshots", zap.Error(err))
	}
	var seed []models.QuoteRecord
	for _, snap := range snapshots {
		if q, ok := decodeQuote([]byte(snap), s.logger); ok {
			seed = append(seed, q)
		}
	}
	if len(seed) > 0 {
		emit(seed)
	}

	incoming := make(chan models.QuoteRecord, 1024)
	go s.store.RunPubSub(ctx, func(stock, payload string) {
		q, ok := decodeQuote([]byte(payload), s.logger)
		if !ok {
			return
		}
		select {
		case incoming <- q:
		case <-ctx.Done():
		}
	})

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	var pending []models.QuoteRecord
	for {
		select {
		case <-ctx.Done():
			return nil
		case q := <-incoming:
			pending = append(pending, q)
		case <-ticker.C:
			if len(pending) > 0 {
				emit(pending)
				pending = nil
			}
		}
	}
}

func (s *RedisSource) unsubscribe(stocks []string) {
	if len(stocks) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for _, stock := range stocks {
		if err := s.store.UnsubscribeFromFeed(ctx, stock); err != nil {
			s.logger.Debug("Failed to unsubscribe feed", zap.String("stock", stock), zap.Error(err))
		}
	}
}
