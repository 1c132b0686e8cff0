package feed_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-graph/cmd/graph/internal/bridge"
	"github.com/shubham-shewale/stock-graph/cmd/graph/internal/feed"
	"github.com/shubham-shewale/stock-graph/cmd/graph/internal/perspective"
	"github.com/shubham-shewale/stock-graph/cmd/graph/internal/testutils"
	"github.com/shubham-shewale/stock-graph/pkg/config"
	"github.com/shubham-shewale/stock-graph/pkg/models"
)

var base = time.Date(2019, 2, 1, 9, 0, 0, 0, time.UTC)

func tick(stock string, price float64, sec int) models.QuoteRecord {
	return models.QuoteRecord{
		Stock:     stock,
		TopAsk:    &models.TopQuote{Price: price},
		TopBid:    &models.TopQuote{Price: price - 1},
		Timestamp: base.Add(time.Duration(sec) * time.Second),
	}
}

// staticSource emits its batches and then waits for cancellation.
type staticSource struct {
	batches [][]models.QuoteRecord
}

func (s staticSource) Run(ctx context.Context, emit feed.Emit) error {
	for _, b := range s.batches {
		emit(b)
	}
	<-ctx.Done()
	return nil
}

func TestAccumulator_HistoryDelivery(t *testing.T) {
	sink := &testutils.RecordingSink{}
	acc := feed.NewAccumulator(sink, config.DeliveryHistory, 0, zap.NewNop())

	acc.Deliver([]models.QuoteRecord{tick("ABC", 10, 0), tick("DEF", 20, 0)})
	acc.Deliver([]models.QuoteRecord{tick("ABC", 11, 1), tick("DEF", 21, 1)})
	acc.Deliver(nil)

	require.Equal(t, 2, sink.Count())
	assert.Len(t, sink.Deliveries[0], 2)
	assert.Len(t, sink.Deliveries[1], 4, "history mode hands over everything delivered so far")
	assert.Equal(t, 4, acc.HistoryLen())
	assert.Equal(t, 2, acc.Deliveries())
}

func TestAccumulator_IncrementDelivery(t *testing.T) {
	sink := &testutils.RecordingSink{}
	acc := feed.NewAccumulator(sink, config.DeliveryIncrement, 0, zap.NewNop())

	acc.Deliver([]models.QuoteRecord{tick("ABC", 10, 0)})
	acc.Deliver([]models.QuoteRecord{tick("ABC", 11, 1)})

	require.Equal(t, 2, sink.Count())
	assert.Len(t, sink.Last(), 1)
	assert.Equal(t, 0, acc.HistoryLen())
}

func TestAccumulator_MaxHistory(t *testing.T) {
	sink := &testutils.RecordingSink{}
	acc := feed.NewAccumulator(sink, config.DeliveryHistory, 3, zap.NewNop())

	for i := 0; i < 5; i++ {
		acc.Deliver([]models.QuoteRecord{tick("ABC", float64(i), i)})
	}

	last := sink.Last()
	require.Len(t, last, 3)
	assert.Equal(t, 2.0, last[0].TopAsk.Price)
	assert.Equal(t, 4.0, last[2].TopAsk.Price)
}

// Ten minutes of two tickers every 100ms must not grow the per-delivery work
// under the default settings, in either delivery mode.
func TestAccumulator_DefaultsStayBounded(t *testing.T) {
	cfg, err := config.LoadConfig()
	require.NoError(t, err)

	const deliveries = 6000
	for _, delivery := range []string{cfg.Feed.Delivery, config.DeliveryHistory} {
		sink := &sizeSink{}
		acc := feed.NewAccumulator(sink, delivery, cfg.Feed.MaxHistory, zap.NewNop())

		for i := 0; i < deliveries; i++ {
			acc.Deliver([]models.QuoteRecord{tick("ABC", 1, i), tick("DEF", 2, i)})
		}

		assert.LessOrEqual(t, sink.max, config.DefaultMaxHistory, "delivery=%s", delivery)
		assert.LessOrEqual(t, acc.HistoryLen(), config.DefaultMaxHistory, "delivery=%s", delivery)
		assert.Equal(t, deliveries, acc.Deliveries())
	}
}

// sizeSink only tracks the largest delivery it was handed.
type sizeSink struct{ max int }

func (s *sizeSink) ApplyUpdate(batch []models.QuoteRecord) {
	if len(batch) > s.max {
		s.max = len(batch)
	}
}

// Whatever the delivery mode or history cap, the chart table ends up with one
// row per distinct quote.
func TestAccumulator_BridgeNeverDuplicates(t *testing.T) {
	modes := []struct {
		delivery   string
		maxHistory int
	}{
		{config.DeliveryHistory, 0},
		{config.DeliveryHistory, 2},
		{config.DeliveryIncrement, 0},
	}

	for _, mode := range modes {
		viewer := perspective.NewViewer(zap.NewNop())
		graph := bridge.New(perspective.NewHost(zap.NewNop()), viewer, zap.NewNop())
		graph.Initialize()

		acc := feed.NewAccumulator(graph, mode.delivery, mode.maxHistory, zap.NewNop())

		acc.Deliver([]models.QuoteRecord{tick("ABC", 10, 0), tick("DEF", 20, 0)})
		acc.Deliver([]models.QuoteRecord{tick("ABC", 11, 1), tick("DEF", 21, 1)})
		acc.Deliver([]models.QuoteRecord{tick("ABC", 11, 1)}) // redelivered tick
		acc.Deliver([]models.QuoteRecord{tick("ABC", 12, 2)})

		assert.Equal(t, 5, viewer.View().Rows, "delivery=%s max=%d", mode.delivery, mode.maxHistory)
		assert.Equal(t, 5, graph.Committed())
	}
}

func TestAccumulator_Run(t *testing.T) {
	sink := &testutils.RecordingSink{}
	acc := feed.NewAccumulator(sink, config.DeliveryHistory, 0, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	src := staticSource{batches: [][]models.QuoteRecord{
		{tick("ABC", 1, 0)},
		{tick("ABC", 2, 1)},
	}}
	require.NoError(t, acc.Run(ctx, src))
	assert.Equal(t, 2, sink.Count())
	assert.Len(t, sink.Last(), 2)
}

func TestNewSource(t *testing.T) {
	store := testutils.NewMockStore()

	src, err := feed.NewSource(config.FeedConfig{Source: config.FeedSourceRedis, Interval: time.Second, Tickers: []string{"ABC"}}, store, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &feed.RedisSource{}, src)

	src, err = feed.NewSource(config.FeedConfig{Source: config.FeedSourceHTTP, URL: "http://localhost", Interval: time.Second}, store, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &feed.HTTPSource{}, src)

	_, err = feed.NewSource(config.FeedConfig{Source: "ftp"}, store, zap.NewNop())
	assert.ErrorIs(t, err, feed.ErrUnknownSource)
}
