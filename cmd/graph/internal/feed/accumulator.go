package feed

import (
	"context"

	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-graph/pkg/config"
	"github.com/shubham-shewale/stock-graph/pkg/models"
)

// Sink consumes deliveries. The display bridge is the production sink.
type Sink interface {
	ApplyUpdate(batch []models.QuoteRecord)
}

// Accumulator keeps the delivered history and hands the sink either the whole
// history or only the latest batch, depending on the delivery mode.
type Accumulator struct {
	sink       Sink
	delivery   string
	maxHistory int
	logger     *zap.Logger

	history    []models.QuoteRecord
	deliveries int
}

func NewAccumulator(sink Sink, delivery string, maxHistory int, logger *zap.Logger) *Accumulator {
	return &Accumulator{
		sink:       sink,
		delivery:   delivery,
		maxHistory: maxHistory,
		logger:     logger,
	}
}

// Run pumps src into the sink until ctx is done.
func (a *Accumulator) Run(ctx context.Context, src Source) error {
	a.logger.Info("Feed started", zap.String("delivery", a.delivery), zap.Int("max_history", a.maxHistory))
	if a.delivery != config.DeliveryIncrement && a.maxHistory <= 0 {
		a.logger.Warn("Unbounded history: every delivery grows with uptime")
	}
	return src.Run(ctx, a.Deliver)
}

// Deliver records batch and forwards it. Not safe for concurrent use.
func (a *Accumulator) Deliver(batch []models.QuoteRecord) {
	if len(batch) == 0 {
		return
	}
	a.deliveries++

	if a.delivery == config.DeliveryIncrement {
		a.sink.ApplyUpdate(batch)
		return
	}

	a.history = append(a.history, batch...)
	if a.maxHistory > 0 && len(a.history) > a.maxHistory {
		trimmed := make([]models.QuoteRecord, a.maxHistory)
		copy(trimmed, a.history[len(a.history)-a.maxHistory:])
		a.history = trimmed
	}
	a.sink.ApplyUpdate(a.history)
}

func (a *Accumulator) HistoryLen() int { return len(a.history) }

func (a *Accumulator) Deliveries() int { return a.deliveries }
