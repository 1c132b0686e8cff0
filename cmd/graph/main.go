package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-graph/cmd/graph/internal/bridge"
	"github.com/shubham-shewale/stock-graph/cmd/graph/internal/feed"
	"github.com/shubham-shewale/stock-graph/cmd/graph/internal/hub"
	"github.com/shubham-shewale/stock-graph/cmd/graph/internal/perspective"
	"github.com/shubham-shewale/stock-graph/cmd/graph/internal/repository"
	"github.com/shubham-shewale/stock-graph/cmd/graph/internal/server"
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

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	repo := repository.NewRedisStore(rdb)
	defer repo.Close()

	// Chart: the hub must be attached before the bridge configures the viewer
	viewer := perspective.NewViewer(logger.Named("viewer"))
	wsHub := hub.NewHub(viewer, logger.Named("hub"))
	viewer.Attach(wsHub)

	graph := bridge.New(perspective.NewHost(logger.Named("engine")), viewer, logger.Named("bridge"))
	graph.Initialize()

	src, err := feed.NewSource(cfg.Feed, repo, logger.Named("feed"))
	if err != nil {
		logger.Fatal("Invalid feed configuration", zap.Error(err))
	}
	acc := feed.NewAccumulator(graph, cfg.Feed.Delivery, cfg.Feed.MaxHistory, logger.Named("feed"))

	validTickers := make(map[string]bool)
	for _, t := range cfg.Feed.Tickers {
		validTickers[t] = true
	}

	router := server.NewRouter(server.Deps{
		Hub:          wsHub,
		Viewer:       viewer,
		Chart:        graph,
		ValidTickers: validTickers,
		Logger:       logger,
	})
	srv := &http.Server{Addr: cfg.App.Port, Handler: router}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	feedDone := make(chan struct{})
	go func() {
		defer close(feedDone)
		if err := acc.Run(ctx, src); err != nil {
			logger.Error("Feed stopped", zap.Error(err))
		}
	}()

	go func() {
		logger.Info("Server Started", zap.String("port", cfg.App.Port), zap.String("feed", cfg.Feed.Source))
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal("HTTP Error", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("Shutdown signal received")
	cancel()
	<-feedDone

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", zap.Error(err))
	}
	logger.Info("Shutdown Complete", zap.Int("committed_quotes", graph.Committed()))
}
