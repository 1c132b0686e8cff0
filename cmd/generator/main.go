package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-graph/cmd/generator/internal/generator"
	"github.com/shubham-shewale/stock-graph/pkg/config"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	logger, err := config.NewLogger(cfg.Logger)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := generator.RealClock{}

	// Ensure the topic exists before the writer starts producing
	dialer := &generator.RealKafkaDialer{Dialer: &kafka.Dialer{Timeout: 10 * time.Second}}
	generator.NewTopicCreator(logger, dialer, clock, cfg.Kafka.Partitions).
		Create(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic)

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Kafka.Brokers...),
		Topic:        cfg.Kafka.Topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		Async:        true,
	}

	basePrices := make(map[string]float64, len(cfg.Feed.Tickers))
	for _, t := range cfg.Feed.Tickers {
		basePrices[t] = cfg.Generator.BasePrice
	}

	gen := generator.NewQuoteGenerator(
		logger.Named("generator"),
		writer,
		cfg.Feed.Tickers,
		basePrices,
		generator.Options{
			Interval:       cfg.Generator.Interval,
			Spread:         cfg.Generator.Spread,
			EmptySideRatio: cfg.Generator.EmptySideRatio,
		},
		generator.RealRand{Rand: rand.New(rand.NewSource(time.Now().UnixNano()))},
		clock,
	)

	done := make(chan struct{})
	go func() {
		defer close(done)
		gen.Run(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutdown signal received")
	cancel()
	<-done

	// Flush whatever the async writer still buffers
	if err := writer.Close(); err != nil {
		logger.Error("Error closing Kafka writer", zap.Error(err))
	} else {
		logger.Info("Kafka writer closed cleanly")
	}
}
