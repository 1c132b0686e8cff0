package processor

import (
	"context"
	"encoding/json"
	"errors"
	"hash/fnv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-graph/pkg/config"
	"github.com/shubham-shewale/stock-graph/pkg/models"
)

const (
	workerBuffer = 100
	snapshotTTL  = 1 * time.Hour // bounds memory for delisted stocks
)

type Processor struct {
	logger     Logger
	rdb        RedisClient
	reader     KafkaReader
	numWorkers int
}

func NewProcessor(cfg *config.Config, logger Logger, rdb RedisClient, reader KafkaReader) *Processor {
	numWorkers := cfg.Processor.NumWorkers
	if numWorkers <= 0 {
		numWorkers = 1
	}
	return &Processor{
		logger:     logger,
		rdb:        rdb,
		reader:     reader,
		numWorkers: numWorkers,
	}
}

// Run consumes quotes until ctx is done, then drains the workers.
func (p *Processor) Run(ctx context.Context) error {
	workerChans := make([]chan []byte, p.numWorkers)
	var wg sync.WaitGroup

	for i := 0; i < p.numWorkers; i++ {
		workerChans[i] = make(chan []byte, workerBuffer)
		wg.Add(1)
		go p.worker(i, workerChans[i], &wg)
	}

	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		p.logger.Info("Processor Started", zap.Int("workers", p.numWorkers))
		for {
			m, err := p.reader.ReadMessage(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
					return
				}
				p.logger.Error("Kafka Read Error", zap.Error(err))
				continue
			}

			// Deterministic Sharding: Same stock always goes to same worker
			workerID := getWorkerID(m.Key, p.numWorkers)

			select {
			case workerChans[workerID] <- m.Value:
			case <-ctx.Done():
				return
			default:
				// Latest quote matters more than every quote
				p.logger.Warn("Dropping slow packet", zap.String("key", string(m.Key)), zap.Int("worker_id", workerID))
			}
		}
	}()

	<-ctx.Done()
	p.logger.Info("Shutdown signal received, stopping processor...")
	<-readerDone

	for _, ch := range workerChans {
		close(ch)
	}
	p.logger.Info("Waiting for workers to drain...")
	wg.Wait()

	return nil
}

func (p *Processor) worker(id int, msgs <-chan []byte, wg *sync.WaitGroup) {
	defer wg.Done()
	ctx := context.Background() // a cancelled context must not abort a half-written pipeline

	// Local dedup state; valid only because sharding pins a stock to one worker
	lastSeq := make(map[string]int64)

	for payload := range msgs {
		var quote models.QuoteRecord
		if err := json.Unmarshal(payload, &quote); err != nil {
			p.logger.Error("JSON Unmarshal Error", zap.Error(err))
			continue
		}
		if quote.Stock == "" {
			p.logger.Warn("Quote without stock dropped")
			continue
		}

		// SeqID 0 marks an unsequenced feed; those are passed through
		if quote.SeqID != 0 && quote.SeqID <= lastSeq[quote.Stock] {
			p.logger.Debug("Skipping duplicate quote", zap.String("stock", quote.Stock), zap.Int64("seq_id", quote.SeqID))
			continue
		}

		// Atomic SET + PUBLISH in a single pipeline
		pipe := p.rdb.Pipeline()
		pipe.Set(ctx, models.SnapshotKey(quote.Stock), payload, snapshotTTL)
		pipe.Publish(ctx, models.FeedChannel(quote.Stock), payload)

		if _, err := pipe.Exec(ctx); err != nil {
			p.logger.Error("Redis Pipeline Error", zap.Error(err), zap.String("stock", quote.Stock))
			continue
		}
		p.logger.Debug("Processed", zap.String("stock", quote.Stock), zap.Int("worker_id", id), zap.Int64("seq_id", quote.SeqID))
		if quote.SeqID != 0 {
			lastSeq[quote.Stock] = quote.SeqID
		}
	}
}

func getWorkerID(key []byte, numWorkers int) int {
	h := fnv.New32a()
	h.Write(key)
	return int(h.Sum32() % uint32(numWorkers))
}
