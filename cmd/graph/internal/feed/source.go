// Package feed delivers quote batches from an upstream source to the chart.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-graph/cmd/graph/internal/repository"
	"github.com/shubham-shewale/stock-graph/pkg/config"
	"github.com/shubham-shewale/stock-graph/pkg/models"
)

var ErrUnknownSource = errors.New("unknown feed source")

// Emit receives one batch of quotes. Sources call it from a single goroutine.
type Emit func(batch []models.QuoteRecord)

// Source produces quote batches until ctx is done.
type Source interface {
	Run(ctx context.Context, emit Emit) error
}

// NewSource builds the source selected by cfg.Source.
func NewSource(cfg config.FeedConfig, store repository.QuoteStore, logger *zap.Logger) (Source, error) {
	switch cfg.Source {
	case config.FeedSourceRedis:
		return NewRedisSource(store, cfg.Tickers, cfg.Interval, logger), nil
	case config.FeedSourceHTTP:
		return NewHTTPSource(cfg.URL, cfg.Interval, logger), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, cfg.Source)
	}
}

func decodeQuote(payload []byte, logger *zap.Logger) (models.QuoteRecord, bool) {
	var q models.QuoteRecord
	if err := json.Unmarshal(payload, &q); err != nil {
		logger.Warn("Dropping malformed quote", zap.Error(err))
		return q, false
	}
	if q.Stock == "" || q.Timestamp.IsZero() {
		logger.Warn("Dropping incomplete quote", zap.String("stock", q.Stock))
		return q, false
	}
	return q, true
}
