package generator_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-graph/cmd/generator/internal/generator"
	"github.com/shubham-shewale/stock-graph/cmd/generator/internal/testutils"
	"github.com/shubham-shewale/stock-graph/pkg/models"
)

func newGenerator(w generator.KafkaWriter, rnd generator.Rand, clock generator.Clock, opts generator.Options) *generator.QuoteGenerator {
	tickers := []string{"ABC", "DEF"}
	basePrices := map[string]float64{"ABC": 100.0, "DEF": 50.0}
	return generator.NewQuoteGenerator(zap.NewNop(), w, tickers, basePrices, opts, rnd, clock)
}

func TestGenerator_TickPricesAroundMid(t *testing.T) {
	// (0.5 * 10) - 5 = 0 fluctuation, so the mid is the base price
	gen := newGenerator(&testutils.MockKafkaWriter{}, &testutils.MockRand{ValInt: 9, ValFloat: 0.5}, &testutils.MockClock{}, generator.Options{Spread: 0.5})

	ts := time.Date(2019, 2, 1, 9, 0, 0, 0, time.UTC)
	quotes := gen.Tick(ts)
	require.Len(t, quotes, 2)

	abc := quotes[0]
	assert.Equal(t, "ABC", abc.Stock)
	require.NotNil(t, abc.TopAsk)
	require.NotNil(t, abc.TopBid)
	assert.Equal(t, 100.25, abc.TopAsk.Price)
	assert.Equal(t, 99.75, abc.TopBid.Price)
	assert.Equal(t, int64(10), abc.TopAsk.Size)

	def := quotes[1]
	assert.Equal(t, 50.25, def.TopAsk.Price)
	assert.Equal(t, 49.75, def.TopBid.Price)

	for _, q := range quotes {
		assert.True(t, q.Timestamp.Equal(ts), "every ticker shares the tick timestamp")
		assert.Equal(t, int64(1), q.SeqID)
	}
}

func TestGenerator_SeqIDPerStock(t *testing.T) {
	gen := newGenerator(&testutils.MockKafkaWriter{}, &testutils.MockRand{ValFloat: 0.5}, &testutils.MockClock{}, generator.Options{})

	gen.Tick(time.Unix(1, 0))
	quotes := gen.Tick(time.Unix(2, 0))

	for _, q := range quotes {
		assert.Equal(t, int64(2), q.SeqID, "stock %s", q.Stock)
	}
}

func TestGenerator_EmptySide(t *testing.T) {
	// draws: fluctuation, ask side, bid side
	rnd := &testutils.SeqRand{Floats: []float64{0.5, 0.1, 0.9}}
	gen := generator.NewQuoteGenerator(zap.NewNop(), &testutils.MockKafkaWriter{}, []string{"ABC"},
		map[string]float64{"ABC": 100}, generator.Options{Spread: 0.5, EmptySideRatio: 0.5}, rnd, &testutils.MockClock{})

	quotes := gen.Tick(time.Unix(0, 0))
	require.Len(t, quotes, 1)
	assert.Nil(t, quotes[0].TopAsk)
	require.NotNil(t, quotes[0].TopBid)
	assert.Equal(t, 99.75, quotes[0].TopBid.Price)
	assert.Equal(t, 0.0, quotes[0].Row().TopAskPrice)
}

func TestGenerator_RoundsToCents(t *testing.T) {
	// (0.123456 * 10) - 5 = -3.76544, mid rounds to 96.23
	gen := generator.NewQuoteGenerator(zap.NewNop(), &testutils.MockKafkaWriter{}, []string{"ABC"},
		map[string]float64{"ABC": 100}, generator.Options{Spread: 0.1}, &testutils.MockRand{ValFloat: 0.123456}, &testutils.MockClock{})

	q := gen.Tick(time.Unix(0, 0))[0]
	assert.Equal(t, 96.28, q.TopAsk.Price)
	assert.Equal(t, 96.18, q.TopBid.Price)
}

func TestGenerator_Run(t *testing.T) {
	mockWriter := &testutils.MockKafkaWriter{}
	mockClock := &testutils.MockClock{CurrentTime: time.Unix(0, 0)}
	gen := newGenerator(mockWriter, &testutils.MockRand{ValFloat: 0.5}, mockClock, generator.Options{Interval: 100 * time.Millisecond, Spread: 1})

	// MockClock.Sleep advances time instantly, so the loop only stops on the deadline
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	gen.Run(ctx)

	mockWriter.Mu.Lock()
	defer mockWriter.Mu.Unlock()

	require.GreaterOrEqual(t, len(mockWriter.Messages), 2, "Expected messages to be generated")

	var first, second models.QuoteRecord
	require.NoError(t, json.Unmarshal(mockWriter.Messages[0].Value, &first))
	require.NoError(t, json.Unmarshal(mockWriter.Messages[1].Value, &second))

	assert.Equal(t, "ABC", string(mockWriter.Messages[0].Key))
	assert.Equal(t, "DEF", string(mockWriter.Messages[1].Key))
	assert.Equal(t, first.Stock, string(mockWriter.Messages[0].Key))
	assert.True(t, first.Timestamp.Equal(second.Timestamp))
	assert.Equal(t, 100.5, first.TopAsk.Price)
	assert.Equal(t, 99.5, first.TopBid.Price)
}

func TestGenerator_WriteFailureKeepsRunning(t *testing.T) {
	mockWriter := &testutils.MockKafkaWriter{ShouldFail: true}
	mockClock := &testutils.MockClock{CurrentTime: time.Unix(0, 0)}
	gen := newGenerator(mockWriter, &testutils.MockRand{ValFloat: 0.5}, mockClock, generator.Options{Interval: time.Second})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	gen.Run(ctx)

	assert.Empty(t, mockWriter.Messages)
	assert.True(t, mockClock.CurrentTime.After(time.Unix(1, 0)), "loop kept ticking after a failed write")
}

func TestTopicCreator_Flow(t *testing.T) {
	mockDialer := &testutils.MockKafkaDialer{} // Will auto-create ConnSpy
	tc := generator.NewTopicCreator(zap.NewNop(), mockDialer, &testutils.MockClock{}, 3)

	tc.Create(context.Background(), []string{"broker:9092"}, "market_quotes")

	require.NotNil(t, mockDialer.ConnSpy, "Dialer was never called")
	require.Len(t, mockDialer.ConnSpy.CreatedTopics, 1)
	assert.Equal(t, "market_quotes", mockDialer.ConnSpy.CreatedTopics[0])
	assert.Equal(t, 3, mockDialer.ConnSpy.Partitions[0])
}

func TestTopicCreator_DialFailure(t *testing.T) {
	mockDialer := &testutils.MockKafkaDialer{Err: errors.New("connection refused")}
	tc := generator.NewTopicCreator(zap.NewNop(), mockDialer, &testutils.MockClock{}, 0)

	tc.Create(context.Background(), []string{"a:9092", "b:9092"}, "market_quotes")

	assert.Nil(t, mockDialer.ConnSpy)
}
