package generator

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-graph/pkg/models"
)

var two = decimal.NewFromInt(2)

type Options struct {
	Interval       time.Duration
	Spread         float64 // ask minus bid around the mid price
	EmptySideRatio float64 // chance that a side of the book is empty
}

// QuoteGenerator emits one quote per ticker per interval, all sharing the
// tick's timestamp.
type QuoteGenerator struct {
	logger      *zap.Logger
	writer      KafkaWriter
	tickers     []string
	basePrices  map[string]float64
	opts        Options
	rand        Rand
	clock       Clock
	seqCounters map[string]int64
}

func NewQuoteGenerator(
	logger *zap.Logger,
	writer KafkaWriter,
	tickers []string,
	basePrices map[string]float64,
	opts Options,
	rnd Rand,
	clock Clock,
) *QuoteGenerator {
	if opts.Interval <= 0 {
		opts.Interval = 100 * time.Millisecond
	}
	return &QuoteGenerator{
		logger:      logger,
		writer:      writer,
		tickers:     tickers,
		basePrices:  basePrices,
		opts:        opts,
		rand:        rnd,
		clock:       clock,
		seqCounters: make(map[string]int64),
	}
}

func (qg *QuoteGenerator) Run(ctx context.Context) {
	qg.logger.Info("Generator Started", zap.Strings("tickers", qg.tickers), zap.Duration("interval", qg.opts.Interval))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			if len(qg.tickers) == 0 {
				qg.clock.Sleep(1 * time.Second)
				continue
			}

			quotes := qg.Tick(qg.clock.Now())
			msgs := make([]kafka.Message, 0, len(quotes))
			for _, q := range quotes {
				payload, err := json.Marshal(q)
				if err != nil {
					qg.logger.Error("JSON Marshal Error", zap.Error(err))
					continue
				}
				// Key ensures partition ordering per stock
				msgs = append(msgs, kafka.Message{Key: []byte(q.Stock), Value: payload})
			}

			if err := qg.writer.WriteMessages(ctx, msgs...); err != nil {
				qg.logger.Error("Kafka Write Error", zap.Error(err))
			} else {
				qg.logger.Debug("Sent quotes", zap.Int("count", len(msgs)))
			}

			qg.clock.Sleep(qg.opts.Interval)
		}
	}
}

// Tick builds the next quote of every ticker at ts.
func (qg *QuoteGenerator) Tick(ts time.Time) []models.QuoteRecord {
	halfSpread := decimal.NewFromFloat(qg.opts.Spread).Div(two)

	quotes := make([]models.QuoteRecord, 0, len(qg.tickers))
	for _, stock := range qg.tickers {
		fluctuation := (qg.rand.Float64() * 10) - 5
		mid := decimal.NewFromFloat(qg.basePrices[stock]).Add(decimal.NewFromFloat(fluctuation)).Round(2)
		qg.seqCounters[stock]++

		q := models.QuoteRecord{
			Stock:     stock,
			Timestamp: ts,
			SeqID:     qg.seqCounters[stock],
		}
		if !qg.emptySide() {
			q.TopAsk = &models.TopQuote{Price: mid.Add(halfSpread).Round(2).InexactFloat64(), Size: qg.size()}
		}
		if !qg.emptySide() {
			q.TopBid = &models.TopQuote{Price: mid.Sub(halfSpread).Round(2).InexactFloat64(), Size: qg.size()}
		}
		quotes = append(quotes, q)
	}
	return quotes
}

func (qg *QuoteGenerator) emptySide() bool {
	return qg.opts.EmptySideRatio > 0 && qg.rand.Float64() < qg.opts.EmptySideRatio
}

func (qg *QuoteGenerator) size() int64 {
	return int64(qg.rand.Intn(200) + 1)
}
