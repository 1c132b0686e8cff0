package tests

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-graph/cmd/processor/internal/processor"
	"github.com/shubham-shewale/stock-graph/cmd/processor/internal/testutils"
	"github.com/shubham-shewale/stock-graph/pkg/config"
	"github.com/shubham-shewale/stock-graph/pkg/models"
)

func TestProcessor_EndToEnd_Flow(t *testing.T) {
	mr := miniredis.RunT(t)
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	quote := models.QuoteRecord{
		Stock:     "DEF",
		TopAsk:    &models.TopQuote{Price: 1500.50, Size: 3},
		Timestamp: time.Date(2019, 2, 1, 9, 0, 0, 0, time.UTC),
		SeqID:     100,
	}
	val, _ := json.Marshal(quote)

	msgs := []kafka.Message{
		{Key: []byte("DEF"), Value: val},
	}
	// Use Mock Reader because spinning up real Kafka is heavy/complex for unit tests
	mockReader := &testutils.MockKafkaReader{Messages: msgs}

	cfg := &config.Config{}
	cfg.Processor.NumWorkers = 1

	proc := processor.NewProcessor(cfg, zap.NewNop(), rdb, mockReader)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		proc.Run(ctx)
		close(done)
	}()

	key := models.SnapshotKey("DEF")

	// Poll until the key appears (since processor is async)
	success := false
	for i := 0; i < 10; i++ {
		if mr.Exists(key) {
			success = true
			break
		}
		time.Sleep(100 * time.Millisecond)
	}

	if !success {
		t.Fatalf("Processor did not write %s to Redis", key)
	}

	savedVal, _ := mr.Get(key)
	if savedVal != string(val) {
		t.Errorf("Redis value mismatch.\nGot:  %s\nWant: %s", savedVal, string(val))
	}

	var stored models.QuoteRecord
	if err := json.Unmarshal([]byte(savedVal), &stored); err != nil {
		t.Fatalf("Stored snapshot is not a quote: %v", err)
	}
	if stored.Row().TopBidPrice != 0 {
		t.Errorf("Missing bid side should project to 0, got %v", stored.Row().TopBidPrice)
	}

	cancel()
	<-done
}
