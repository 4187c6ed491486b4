package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/flood-grid-playback/internal/adapter/floodtiles"
	httpadapter "github.com/couchcryptid/flood-grid-playback/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/flood-grid-playback/internal/adapter/kafka"
	redisadapter "github.com/couchcryptid/flood-grid-playback/internal/adapter/redis"
	"github.com/couchcryptid/flood-grid-playback/internal/adapter/snapshot"
	"github.com/couchcryptid/flood-grid-playback/internal/adapter/websocket"
	"github.com/couchcryptid/flood-grid-playback/internal/config"
	"github.com/couchcryptid/flood-grid-playback/internal/domain"
	"github.com/couchcryptid/flood-grid-playback/internal/flow"
	"github.com/couchcryptid/flood-grid-playback/internal/observability"
	"github.com/couchcryptid/flood-grid-playback/internal/pipeline"
	"github.com/couchcryptid/flood-grid-playback/internal/playback"
	"github.com/jonboulle/clockwork"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	// Snapshot source: local files or a data server, optionally behind Redis,
	// always behind the in-memory LRU.
	var source domain.SnapshotSource
	if cfg.DataBaseURL != "" {
		source = snapshot.NewClient(cfg.DataBaseURL, cfg.DataTimeout, logger)
		logger.Info("snapshot source: http", "base_url", cfg.DataBaseURL, "timeout", cfg.DataTimeout)
	} else {
		source = snapshot.NewFileSource(cfg.DataDir)
		logger.Info("snapshot source: files", "dir", cfg.DataDir)
	}
	if cfg.RedisAddr != "" {
		client := redisadapter.NewClient(cfg.RedisAddr)
		defer client.Close()
		source = redisadapter.NewCachedSource(source, client, cfg.RedisTTL, logger, metrics)
		logger.Info("redis snapshot cache enabled", "addr", cfg.RedisAddr, "ttl", cfg.RedisTTL)
	}
	source = snapshot.NewCachedSource(source, cfg.SnapshotCacheSize, metrics)

	hub := websocket.NewHub(clock, logger, metrics)
	publishers := []pipeline.EventPublisher{hub}

	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		publishers = append(publishers, writer)
		logger.Info("kafka playback events enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaEventsTopic)
	} else {
		logger.Info("kafka playback events disabled")
	}

	animator := flow.NewAnimator(clock, cfg.FrameInterval, logger, metrics)
	animator.Subscribe(hub)

	refresher := pipeline.New(source, animator, logger, metrics, publishers...)
	controller := playback.NewController(clock, cfg.PlaybackInterval, refresher.OnTimestep, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, httpadapter.Dependencies{
		Playback:  controller,
		Frames:    animator,
		Snapshots: refresher,
		Stream:    hub,
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	animator.Start()
	controller.SetTimesteps(floodtiles.NewLister(cfg.FloodTilesDir, logger).Timesteps())

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	controller.Close()
	hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	refresher.Close()
	animator.Close()
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
